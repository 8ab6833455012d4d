package controllers

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"docqa/internal/qa"
	"docqa/internal/retrieval"
)

func optionsContext(t *testing.T, query string) *gin.Context {
	t.Helper()

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/qa/ask?"+query, nil)

	return c
}

func TestParseOptionsAskDefaults(t *testing.T) {
	opts := parseOptions(optionsContext(t, ""), qa.AskOptions())

	if opts.SimilarityThreshold != 0.6 {
		t.Errorf("default threshold = %v, want 0.6", opts.SimilarityThreshold)
	}
	if opts.ChunksLimit != 6 {
		t.Errorf("default limit = %v, want 6", opts.ChunksLimit)
	}
	if opts.Model != retrieval.DefaultEmbeddingModel {
		t.Errorf("default model = %q", opts.Model)
	}
	if !opts.GenerateAnswer {
		t.Error("answer generation should default to on")
	}
}

func TestParseOptionsSummaryDefaults(t *testing.T) {
	opts := parseOptions(optionsContext(t, ""), qa.DefaultOptions())

	if opts.SimilarityThreshold != 0.5 {
		t.Errorf("engine threshold = %v, want 0.5", opts.SimilarityThreshold)
	}
	if opts.ChunksLimit != 10 {
		t.Errorf("engine limit = %v, want 10", opts.ChunksLimit)
	}
}

func TestParseOptionsOverrides(t *testing.T) {
	tests := []struct {
		name  string
		query string
		check func(t *testing.T, opts qa.Options)
	}{
		{
			name:  "valid threshold",
			query: "similarity_threshold=0.35",
			check: func(t *testing.T, opts qa.Options) {
				if opts.SimilarityThreshold != 0.35 {
					t.Errorf("threshold = %v, want 0.35", opts.SimilarityThreshold)
				}
			},
		},
		{
			name:  "threshold above one ignored",
			query: "similarity_threshold=1.5",
			check: func(t *testing.T, opts qa.Options) {
				if opts.SimilarityThreshold != 0.6 {
					t.Errorf("threshold = %v, want the 0.6 default", opts.SimilarityThreshold)
				}
			},
		},
		{
			name:  "valid limit",
			query: "limit=15",
			check: func(t *testing.T, opts qa.Options) {
				if opts.ChunksLimit != 15 {
					t.Errorf("limit = %v, want 15", opts.ChunksLimit)
				}
			},
		},
		{
			name:  "limit at the cap",
			query: "limit=20",
			check: func(t *testing.T, opts qa.Options) {
				if opts.ChunksLimit != 20 {
					t.Errorf("limit = %v, want 20", opts.ChunksLimit)
				}
			},
		},
		{
			name:  "limit above the cap ignored",
			query: "limit=50",
			check: func(t *testing.T, opts qa.Options) {
				if opts.ChunksLimit != 6 {
					t.Errorf("limit = %v, want the 6 default", opts.ChunksLimit)
				}
			},
		},
		{
			name:  "zero limit ignored",
			query: "limit=0",
			check: func(t *testing.T, opts qa.Options) {
				if opts.ChunksLimit != 6 {
					t.Errorf("limit = %v, want the 6 default", opts.ChunksLimit)
				}
			},
		},
		{
			name:  "known model accepted",
			query: "model=" + retrieval.EmbeddingModelSmall,
			check: func(t *testing.T, opts qa.Options) {
				if opts.Model != retrieval.EmbeddingModelSmall {
					t.Errorf("model = %q", opts.Model)
				}
			},
		},
		{
			name:  "unknown model ignored",
			query: "model=text-embedding-ada-002",
			check: func(t *testing.T, opts qa.Options) {
				if opts.Model != retrieval.DefaultEmbeddingModel {
					t.Errorf("model = %q, want the default", opts.Model)
				}
			},
		},
		{
			name:  "answer generation off",
			query: "generate_answer=false",
			check: func(t *testing.T, opts qa.Options) {
				if opts.GenerateAnswer {
					t.Error("generate_answer=false should turn generation off")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := parseOptions(optionsContext(t, tt.query), qa.AskOptions())
			tt.check(t, opts)
		})
	}
}
