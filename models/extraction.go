package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type ExtractionStatus string

const (
	ExtractionPending    ExtractionStatus = "pending"
	ExtractionProcessing ExtractionStatus = "processing"
	ExtractionCompleted  ExtractionStatus = "completed"
	ExtractionFailed     ExtractionStatus = "failed"
)

// StringList is a JSON-encoded list of strings stored in a single column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}

	return json.Marshal(l)
}

func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
}

// Quantity is a single measured item detected in the document, such as
// "cloison placo, 120 m²".
type Quantity struct {
	Label string  `json:"label"`
	Qty   float64 `json:"qty"`
	Unit  string  `json:"unite"`
}

// QuantityList is a JSON-encoded list of quantities stored in a single column.
type QuantityList []Quantity

func (l QuantityList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}

	return json.Marshal(l)
}

func (l *QuantityList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into QuantityList", value)
	}
}

// Extractions hold the structured information pulled out of a document by
// the LLM, merged across all of its chunks. Progress and status are updated
// as the background run advances and polled over HTTP.
type Extraction struct {
	Generic

	DocumentID uint     `gorm:"index;not null" json:"document_id"`
	Document   Document `json:"-"`

	Lot                 *string      `json:"lot"`
	SubLot              *string      `json:"sous_lot"`
	Materials           StringList   `gorm:"type:jsonb" json:"materiaux"`
	Equipment           StringList   `gorm:"type:jsonb" json:"equipements"`
	ExecutionMethods    StringList   `gorm:"type:jsonb" json:"methodes_exec"`
	PerformanceCriteria StringList   `gorm:"type:jsonb" json:"criteres_perf"`
	Location            *string      `json:"localisation"`
	Quantities          QuantityList `gorm:"type:jsonb" json:"quantitatifs"`

	ConfidenceScore *float64         `json:"confidence_score"`
	Status          ExtractionStatus `gorm:"index;not null;default:pending" json:"status"`
	Progress        int              `gorm:"not null;default:0" json:"progress"`
	ErrorMessage    *string          `json:"error_message"`
	StartedAt       *time.Time       `json:"started_at"`
	CompletedAt     *time.Time       `json:"completed_at"`
}

func CreateExtraction(db *gorm.DB, documentID uint) (*Extraction, error) {
	extraction := Extraction{
		DocumentID: documentID,
		Status:     ExtractionPending,
	}

	if err := db.Create(&extraction).Error; err != nil {
		return nil, err
	}

	return &extraction, nil
}

func GetExtraction(db *gorm.DB, id uint) (*Extraction, error) {
	var extraction Extraction
	err := db.First(&extraction, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &extraction, nil
}

// GetUserExtraction returns the extraction only if its document belongs to
// the user.
func GetUserExtraction(db *gorm.DB, userID, extractionID uint) (*Extraction, error) {
	var extraction Extraction
	err := db.
		Joins("JOIN documents ON documents.id = extractions.document_id").
		Where("extractions.id = ? AND documents.owner_id = ?", extractionID, userID).
		First(&extraction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &extraction, nil
}
