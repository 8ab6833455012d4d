package retrieval

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"docqa/models"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ErrJobRunning is returned when an embedding job is started while another
// one is still going.
var ErrJobRunning = errors.New("an embedding job is already running")

// JobStats summarizes an embedding job run.
type JobStats struct {
	TotalChunks     int     `json:"total_chunks"`
	Processed       int     `json:"processed"`
	Errors          int     `json:"errors"`
	Skipped         int     `json:"skipped"`
	Model           string  `json:"model_used"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// JobStatus reports whether a job is running and what the last one did.
type JobStatus struct {
	Status  string    `json:"status"`
	LastJob *JobStats `json:"last_job,omitempty"`
}

// JobManager generates embeddings for chunks that lack them. Only one job
// runs at a time; batches are embedded concurrently with a pause between
// batches to stay under the provider's rate limits.
type JobManager struct {
	db       *gorm.DB
	embedder *Embedder
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	running bool
	last    *JobStats

	// batchPause is overridable in tests.
	batchPause time.Duration
}

func NewJobManager(db *gorm.DB, embedder *Embedder, logger *zap.SugaredLogger) *JobManager {
	return &JobManager{
		db:         db,
		embedder:   embedder,
		logger:     logger,
		batchPause: time.Second,
	}
}

// Run embeds every chunk without an embedding, batchSize at a time. A
// positive maxChunks caps how many are processed; forceReprocess clears all
// existing embeddings first.
func (m *JobManager) Run(ctx context.Context, model string, batchSize, maxChunks int, forceReprocess bool) (*JobStats, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil, ErrJobRunning
	}
	m.running = true
	m.mu.Unlock()

	start := time.Now()
	stats := &JobStats{Model: model}

	defer func() {
		stats.DurationSeconds = time.Since(start).Seconds()

		m.mu.Lock()
		m.running = false
		m.last = stats
		m.mu.Unlock()
	}()

	if forceReprocess {
		reset, err := models.ResetEmbeddings(m.db)
		if err != nil {
			return stats, err
		}
		m.logger.Infow("cleared existing embeddings", "count", reset)
	}

	chunks, err := models.GetChunksMissingEmbedding(m.db, maxChunks)
	if err != nil {
		return stats, err
	}

	stats.TotalChunks = len(chunks)
	if len(chunks) == 0 {
		return stats, nil
	}

	m.logger.Infow("embedding job started", "chunks", len(chunks), "model", model, "batch_size", batchSize)

	var processed, errored, skipped int64

	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		g, gctx := errgroup.WithContext(ctx)
		for j := i; j < end; j++ {
			chunk := chunks[j]

			if chunk.Embedding != nil {
				atomic.AddInt64(&skipped, 1)
				continue
			}

			g.Go(func() error {
				if err := m.embedChunk(gctx, chunk.ID, chunk.Text, model); err != nil {
					m.logger.Warnw("chunk embedding failed", "chunk_id", chunk.ID, "error", err)
					atomic.AddInt64(&errored, 1)
					return nil
				}

				atomic.AddInt64(&processed, 1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}

		if end < len(chunks) {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(m.batchPause):
			}
		}
	}

	stats.Processed = int(processed)
	stats.Errors = int(errored)
	stats.Skipped = int(skipped)

	m.logger.Infow("embedding job finished",
		"processed", stats.Processed, "errors", stats.Errors, "skipped", stats.Skipped)

	return stats, nil
}

// EmbedChunks embeds the given chunks right away, for freshly ingested
// documents. Chunks that already have an embedding are left alone.
func (m *JobManager) EmbedChunks(ctx context.Context, chunkIDs []uint, model string) (processed, errored int) {
	if len(chunkIDs) == 0 {
		return 0, 0
	}

	var chunks []models.DocumentChunk
	err := m.db.Where("id IN ? AND embedding IS NULL", chunkIDs).Find(&chunks).Error
	if err != nil {
		m.logger.Warnw("loading chunks for embedding failed", "error", err)
		return 0, len(chunkIDs)
	}

	for _, chunk := range chunks {
		if err := m.embedChunk(ctx, chunk.ID, chunk.Text, model); err != nil {
			m.logger.Warnw("chunk embedding failed", "chunk_id", chunk.ID, "error", err)
			errored++
			continue
		}
		processed++
	}

	return processed, errored
}

func (m *JobManager) embedChunk(ctx context.Context, chunkID uint, text, model string) error {
	embedding, err := m.embedder.Embed(ctx, text, model)
	if err != nil {
		return err
	}

	vector := pgvector.NewVector(embedding)
	now := time.Now()

	return m.db.Model(&models.DocumentChunk{}).
		Where("id = ?", chunkID).
		Updates(map[string]any{
			"embedding":            vector,
			"embedding_model":      model,
			"embedding_created_at": now,
		}).Error
}

func (m *JobManager) Status() JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := "idle"
	if m.running {
		status = "running"
	} else if m.last != nil {
		status = "completed"
	}

	return JobStatus{Status: status, LastJob: m.last}
}
