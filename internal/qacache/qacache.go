// Package qacache caches Q&A responses in Redis. The cache is best effort:
// when Redis is down or misbehaving, every operation quietly degrades and
// questions are simply computed again.
package qacache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"docqa/internal/qa"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix  = "qa:cache:"
	DefaultTTL = 24 * time.Hour
)

// Params are the request knobs that shape an answer; two requests with
// different params must never share a cache entry.
type Params struct {
	SimilarityThreshold float64
	ChunksLimit         int
	Model               string
	GenerateAnswer      bool
}

// Cache is a best-effort Redis cache for Q&A responses.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// New connects to Redis from the REDIS_* environment variables. A failed
// connection is logged, not fatal: the returned cache is a no-op then.
func New(logger *zap.SugaredLogger) *Cache {
	c := &Cache{ttl: DefaultTTL, logger: logger}

	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	db := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			db = parsed
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         host + ":" + port,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnw("redis unavailable, answer cache disabled", "addr", host+":"+port, "error", err)
		return c
	}

	logger.Infow("redis connected", "addr", host+":"+port)
	c.client = client

	return c
}

func (c *Cache) Available() bool {
	return c != nil && c.client != nil
}

// Key derives the content-addressable cache key for a question. The
// question is trimmed and lowercased so trivial rephrasings share an entry;
// everything that shapes the answer goes into the hash.
func Key(documentID uint, question string, p Params) string {
	composite := fmt.Sprintf("%v|%v|%v|%v|%v|%v",
		documentID,
		strings.ToLower(strings.TrimSpace(question)),
		strconv.FormatFloat(p.SimilarityThreshold, 'g', -1, 64),
		p.ChunksLimit,
		p.Model,
		p.GenerateAnswer,
	)

	sum := sha256.Sum256([]byte(composite))

	return keyPrefix + fmt.Sprintf("%x", sum)
}

// Get returns the cached response for the question, or nil on a miss or
// any cache failure.
func (c *Cache) Get(ctx context.Context, documentID uint, question string, p Params) *qa.Response {
	if !c.Available() {
		return nil
	}

	data, err := c.client.Get(ctx, Key(documentID, question, p)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warnw("cache read failed", "error", err)
		}
		return nil
	}

	var response qa.Response
	if err := json.Unmarshal(data, &response); err != nil {
		c.logger.Warnw("cache entry corrupt", "error", err)
		return nil
	}

	return &response
}

// Set stores a response under the question's key. Returns whether the
// entry was written.
func (c *Cache) Set(ctx context.Context, documentID uint, question string, p Params, response *qa.Response) bool {
	if !c.Available() {
		return false
	}

	data, err := json.Marshal(response)
	if err != nil {
		c.logger.Warnw("cache serialization failed", "error", err)
		return false
	}

	if err := c.client.Set(ctx, Key(documentID, question, p), data, c.ttl).Err(); err != nil {
		c.logger.Warnw("cache write failed", "error", err)
		return false
	}

	return true
}

// InvalidateDocument deletes every cached answer for a document. The keys
// are opaque hashes, so each entry is decoded to check its document id;
// entries that fail to decode are deleted too. Returns how many went.
func (c *Cache) InvalidateDocument(ctx context.Context, documentID uint) int {
	if !c.Available() {
		return 0
	}

	keys, err := c.client.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		c.logger.Warnw("cache invalidation scan failed", "error", err)
		return 0
	}

	deleted := 0
	for _, key := range keys {
		data, err := c.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}

		var entry struct {
			DocumentID uint `json:"document_id"`
		}
		if err := json.Unmarshal(data, &entry); err != nil || entry.DocumentID == documentID {
			if c.client.Del(ctx, key).Err() == nil {
				deleted++
			}
		}
	}

	if deleted > 0 {
		c.logger.Infow("cache invalidated for document", "document_id", documentID, "deleted", deleted)
	}

	return deleted
}

// Clear drops every cached answer. Returns how many entries were deleted.
func (c *Cache) Clear(ctx context.Context) int {
	if !c.Available() {
		return 0
	}

	keys, err := c.client.Keys(ctx, keyPrefix+"*").Result()
	if err != nil || len(keys) == 0 {
		return 0
	}

	deleted, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		c.logger.Warnw("cache clear failed", "error", err)
		return 0
	}

	return int(deleted)
}

// Stats reports cache health and hit rates for the stats endpoints.
func (c *Cache) Stats(ctx context.Context) map[string]any {
	if !c.Available() {
		return map[string]any{
			"available": false,
			"error":     "redis unavailable",
		}
	}

	keys, err := c.client.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		return map[string]any{"available": false, "error": err.Error()}
	}

	info, err := c.client.Info(ctx).Result()
	if err != nil {
		return map[string]any{"available": false, "error": err.Error()}
	}
	fields := parseInfo(info)

	hits := parseInt(fields["keyspace_hits"])
	misses := parseInt(fields["keyspace_misses"])
	total := hits + misses
	if total == 0 {
		total = 1
	}

	return map[string]any{
		"available":         true,
		"qa_cache_entries":  len(keys),
		"redis_version":     fields["redis_version"],
		"memory_used":       fields["used_memory_human"],
		"connected_clients": fields["connected_clients"],
		"keyspace_hits":     hits,
		"keyspace_misses":   misses,
		"hit_rate":          math.Round(float64(hits)/float64(total)*10000) / 100,
	}
}

// parseInfo flattens a redis INFO payload into a field map.
func parseInfo(info string) map[string]string {
	fields := map[string]string{}
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, value, ok := strings.Cut(line, ":"); ok {
			fields[key] = value
		}
	}

	return fields
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
