package extraction

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"docqa/models"
)

// chunkPause spaces out the extraction calls a little so a long document
// does not hammer the provider.
const chunkPause = 100 * time.Millisecond

// Runner executes extractions in the background and keeps the extraction
// row's progress current so clients can poll it.
type Runner struct {
	db     *gorm.DB
	client *Client
	logger *zap.SugaredLogger
}

func NewRunner(db *gorm.DB, client *Client, logger *zap.SugaredLogger) *Runner {
	return &Runner{db: db, client: client, logger: logger}
}

// Start kicks off the extraction in a goroutine and returns immediately.
func (r *Runner) Start(extractionID uint, text string) {
	go func() {
		ctx := context.Background()
		if err := r.run(ctx, extractionID, text); err != nil {
			r.logger.Warnw("extraction failed", "extraction_id", extractionID, "error", err)
			r.markFailed(extractionID, err)
		}
	}()
}

// run walks the pipeline: chunk the text, extract each chunk, merge, score.
// Progress moves 0 to 10 while chunking, 10 to 80 across the chunk calls,
// then 85 (merge), 95 (scoring), 100 (done).
func (r *Runner) run(ctx context.Context, extractionID uint, text string) error {
	now := time.Now()
	err := r.db.Model(&models.Extraction{}).
		Where("id = ?", extractionID).
		Updates(map[string]any{
			"status":     models.ExtractionProcessing,
			"progress":   0,
			"started_at": now,
		}).Error
	if err != nil {
		return err
	}

	chunks := ChunkText(text)
	if len(chunks) == 0 {
		return errors.New("texte vide ou invalide")
	}
	if err := r.setProgress(extractionID, 10); err != nil {
		return err
	}

	results := make([]*Result, 0, len(chunks))
	for i, chunk := range chunks {
		progress := 10 + (i*70)/len(chunks)
		if err := r.setProgress(extractionID, progress); err != nil {
			return err
		}

		result, err := r.client.ExtractChunk(ctx, chunk)
		if err != nil {
			r.logger.Warnw("chunk extraction failed, skipping", "extraction_id", extractionID, "chunk", i, "error", err)
			continue
		}
		results = append(results, result)

		if i < len(chunks)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(chunkPause):
			}
		}
	}

	if err := r.setProgress(extractionID, 85); err != nil {
		return err
	}

	merged := Merge(results)
	if merged == nil {
		return errors.New("aucune extraction valide trouvée")
	}

	if err := r.setProgress(extractionID, 95); err != nil {
		return err
	}
	confidence := ConfidenceScore(merged)

	completed := time.Now()
	return r.db.Model(&models.Extraction{}).
		Where("id = ?", extractionID).
		Updates(map[string]any{
			"lot":                  nilIfEmpty(merged.Lot),
			"sub_lot":              nilIfEmpty(merged.SubLot),
			"materials":            models.StringList(merged.Materials),
			"equipment":            models.StringList(merged.Equipment),
			"execution_methods":    models.StringList(merged.ExecutionMethods),
			"performance_criteria": models.StringList(merged.PerformanceCriteria),
			"location":             nilIfEmpty(merged.Location),
			"quantities":           models.QuantityList(merged.Quantities),
			"confidence_score":     confidence,
			"status":               models.ExtractionCompleted,
			"progress":             100,
			"completed_at":         completed,
		}).Error
}

func (r *Runner) setProgress(extractionID uint, progress int) error {
	return r.db.Model(&models.Extraction{}).
		Where("id = ?", extractionID).
		Update("progress", progress).Error
}

func (r *Runner) markFailed(extractionID uint, cause error) {
	now := time.Now()
	err := r.db.Model(&models.Extraction{}).
		Where("id = ?", extractionID).
		Updates(map[string]any{
			"status":        models.ExtractionFailed,
			"error_message": cause.Error(),
			"completed_at":  now,
		}).Error
	if err != nil {
		r.logger.Errorw("marking extraction failed did not stick", "extraction_id", extractionID, "error", err)
	}
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
