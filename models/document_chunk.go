package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// DocumentChunks are the sections a document decomposes into along its CCTP
// structure. They are the unit of semantic search: each chunk carries its
// own embedding, tagged with the model that produced it so that vectors from
// different models are never compared.
type DocumentChunk struct {
	Generic

	DocumentID uint     `gorm:"index;not null" json:"document_id"`
	Document   Document `json:"-"`

	// Structural context detected by the chunker. All optional: plenty of
	// documents carry no detectable structure at all.
	Lot        *string `json:"lot"`
	Article    *string `json:"article"`
	PageNumber *int    `json:"page_number"`

	Text string `gorm:"not null" json:"text"`

	// The column is dimensionless: supported models produce different
	// widths, and vectors are only ever compared within one embedding_model.
	Embedding          *pgvector.Vector `gorm:"type:vector" json:"-"`
	EmbeddingModel     *string          `gorm:"index" json:"embedding_model"`
	EmbeddingCreatedAt *time.Time       `json:"embedding_created_at"`
}

func CreateChunks(db *gorm.DB, chunks []DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	return db.Create(&chunks).Error
}

func GetDocumentChunks(db *gorm.DB, documentID uint) ([]DocumentChunk, error) {
	var chunks []DocumentChunk
	err := db.Where("document_id = ?", documentID).Order("id").Find(&chunks).Error
	if err != nil {
		return nil, err
	}

	return chunks, nil
}

// GetEmbeddedChunks returns the chunks of a document that carry an embedding
// produced by the given model.
func GetEmbeddedChunks(db *gorm.DB, documentID uint, model string) ([]DocumentChunk, error) {
	var chunks []DocumentChunk
	err := db.
		Where("document_id = ? AND embedding IS NOT NULL AND embedding_model = ?", documentID, model).
		Order("id").
		Find(&chunks).Error
	if err != nil {
		return nil, err
	}

	return chunks, nil
}

func CountEmbeddedChunks(db *gorm.DB, documentID uint, model string) (int64, error) {
	var count int64
	err := db.Model(&DocumentChunk{}).
		Where("document_id = ? AND embedding IS NOT NULL AND embedding_model = ?", documentID, model).
		Count(&count).Error
	return count, err
}

// GetChunksMissingEmbedding returns chunks that have not been embedded yet,
// oldest first. A zero limit means no limit.
func GetChunksMissingEmbedding(db *gorm.DB, limit int) ([]DocumentChunk, error) {
	q := db.Where("embedding IS NULL").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var chunks []DocumentChunk
	if err := q.Find(&chunks).Error; err != nil {
		return nil, err
	}

	return chunks, nil
}

// ResetEmbeddings clears all stored embeddings so a job can rebuild them.
// Returns the number of chunks reset.
func ResetEmbeddings(db *gorm.DB) (int64, error) {
	tx := db.Model(&DocumentChunk{}).
		Where("embedding IS NOT NULL").
		Updates(map[string]any{
			"embedding":            nil,
			"embedding_model":      nil,
			"embedding_created_at": nil,
		})

	return tx.RowsAffected, tx.Error
}

// CountUserEmbeddedChunks counts the searchable chunks across all documents
// of a user, and the number of distinct documents that have at least one.
func CountUserEmbeddedChunks(db *gorm.DB, userID uint) (chunks int64, documents int64, err error) {
	err = db.Model(&DocumentChunk{}).
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("documents.owner_id = ? AND document_chunks.embedding IS NOT NULL", userID).
		Count(&chunks).Error
	if err != nil {
		return 0, 0, err
	}

	err = db.Model(&DocumentChunk{}).
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("documents.owner_id = ? AND document_chunks.embedding IS NOT NULL", userID).
		Distinct("document_chunks.document_id").
		Count(&documents).Error
	if err != nil {
		return 0, 0, err
	}

	return chunks, documents, nil
}
