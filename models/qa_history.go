package models

import (
	"errors"

	"gorm.io/gorm"
)

// QAHistory records every question a user asked, whether answered from the
// cache or computed, together with the parameters that shaped the answer.
type QAHistory struct {
	Generic

	UserID     uint     `gorm:"index;not null" json:"user_id"`
	User       User     `json:"-"`
	DocumentID uint     `gorm:"index;not null" json:"document_id"`
	Document   Document `json:"-"`

	Question            string  `gorm:"not null" json:"question"`
	Answer              *string `json:"answer"`
	Confidence          *string `json:"confidence"`
	ProcessingTimeMs    int     `json:"processing_time_ms"`
	ChunksReturned      int     `json:"chunks_returned"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	EmbeddingModel      string  `json:"embedding_model"`
	FromCache           bool    `gorm:"not null;default:false" json:"from_cache"`
}

func GetUserQAHistoryItem(db *gorm.DB, userID, historyID uint) (*QAHistory, error) {
	var item QAHistory
	err := db.Where("id = ? AND user_id = ?", historyID, userID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &item, nil
}
