package qacache

import (
	"strings"
	"testing"
)

func TestKeyDeterministic(t *testing.T) {
	p := Params{SimilarityThreshold: 0.5, ChunksLimit: 10, Model: "text-embedding-3-large", GenerateAnswer: true}

	a := Key(7, "Quels matériaux ?", p)
	b := Key(7, "Quels matériaux ?", p)

	if a != b {
		t.Errorf("same inputs should give the same key: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "qa:cache:") {
		t.Errorf("key should carry the namespace prefix, got %q", a)
	}
	// prefix + hex sha256
	if len(a) != len("qa:cache:")+64 {
		t.Errorf("key length = %d", len(a))
	}
}

func TestKeyNormalizesQuestion(t *testing.T) {
	p := Params{SimilarityThreshold: 0.5, ChunksLimit: 10, Model: "text-embedding-3-large", GenerateAnswer: true}

	a := Key(7, "Quels matériaux ?", p)
	b := Key(7, "  QUELS MATÉRIAUX ?  ", p)

	if a != b {
		t.Error("trimming and case must not change the key")
	}
}

func TestKeySensitivity(t *testing.T) {
	base := Params{SimilarityThreshold: 0.5, ChunksLimit: 10, Model: "text-embedding-3-large", GenerateAnswer: true}
	baseKey := Key(7, "Quels matériaux ?", base)

	variants := []struct {
		name       string
		documentID uint
		question   string
		params     Params
	}{
		{"different document", 8, "Quels matériaux ?", base},
		{"different question", 7, "Quels équipements ?", base},
		{"different threshold", 7, "Quels matériaux ?", Params{SimilarityThreshold: 0.3, ChunksLimit: 10, Model: base.Model, GenerateAnswer: true}},
		{"different limit", 7, "Quels matériaux ?", Params{SimilarityThreshold: 0.5, ChunksLimit: 5, Model: base.Model, GenerateAnswer: true}},
		{"different model", 7, "Quels matériaux ?", Params{SimilarityThreshold: 0.5, ChunksLimit: 10, Model: "text-embedding-3-small", GenerateAnswer: true}},
		{"answer generation off", 7, "Quels matériaux ?", Params{SimilarityThreshold: 0.5, ChunksLimit: 10, Model: base.Model, GenerateAnswer: false}},
	}

	for _, tt := range variants {
		t.Run(tt.name, func(t *testing.T) {
			if Key(tt.documentID, tt.question, tt.params) == baseKey {
				t.Error("variant should produce a different key")
			}
		})
	}
}

func TestUnavailableCacheDegrades(t *testing.T) {
	var c *Cache
	if c.Available() {
		t.Error("nil cache should report unavailable")
	}

	empty := &Cache{}
	if empty.Available() {
		t.Error("cache without a client should report unavailable")
	}
	if got := empty.Get(nil, 1, "question", Params{}); got != nil {
		t.Error("unavailable cache should miss")
	}
	if empty.Set(nil, 1, "question", Params{}, nil) {
		t.Error("unavailable cache should refuse writes")
	}
	if empty.Clear(nil) != 0 {
		t.Error("unavailable cache should clear nothing")
	}
}

func TestParseInfo(t *testing.T) {
	info := "# Server\r\nredis_version:7.2.4\r\nkeyspace_hits:42\r\nkeyspace_misses:8\r\n\r\n"

	fields := parseInfo(info)
	if fields["redis_version"] != "7.2.4" {
		t.Errorf("redis_version = %q", fields["redis_version"])
	}
	if fields["keyspace_hits"] != "42" {
		t.Errorf("keyspace_hits = %q", fields["keyspace_hits"])
	}
	if _, ok := fields["# Server"]; ok {
		t.Error("comment lines should be skipped")
	}
}
