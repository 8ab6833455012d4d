package models

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Documents are uploaded tender documents. The raw file lives on disk; what
// the Q&A system actually searches are the DocumentChunks derived from the
// extracted text.
type Document struct {
	Generic

	// UUID names the file on disk and stays stable across renames.
	UUID uuid.UUID `gorm:"index;not null" json:"uuid"`

	OwnerID   uint    `gorm:"index;not null" json:"owner_id"`
	Owner     User    `json:"-"`
	ProjectID *uint   `gorm:"index" json:"project_id"`
	Project   Project `json:"-"`

	Filename         string `gorm:"not null" json:"filename"`
	OriginalFilename string `gorm:"not null" json:"original_filename"`
	FileSize         int64  `gorm:"not null" json:"file_size"`
	FileType         string `gorm:"not null" json:"file_type"`
	FilePath         string `gorm:"not null" json:"-"`

	// RawContent is the full extracted text, kept so extractions can run
	// without touching the original file.
	RawContent string `json:"-"`
}

func CreateDocument(db *gorm.DB, ownerID uint, projectID *uint, originalFilename, fileType, filePath string, fileSize int64) (*Document, error) {
	id := uuid.New()
	document := Document{
		UUID:             id,
		OwnerID:          ownerID,
		ProjectID:        projectID,
		Filename:         id.String(),
		OriginalFilename: originalFilename,
		FileSize:         fileSize,
		FileType:         fileType,
		FilePath:         filePath,
	}

	if err := db.Create(&document).Error; err != nil {
		return nil, err
	}

	return &document, nil
}

// GetUserDocument returns the document only if it belongs to the user.
func GetUserDocument(db *gorm.DB, userID, documentID uint) (*Document, error) {
	var document Document
	err := db.Where("id = ? AND owner_id = ?", documentID, userID).First(&document).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &document, nil
}

func CountUserDocuments(db *gorm.DB, userID uint) (int64, error) {
	var count int64
	err := db.Model(&Document{}).Where("owner_id = ?", userID).Count(&count).Error
	return count, err
}
