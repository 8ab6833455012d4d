package models

import (
	"errors"

	"gorm.io/gorm"
)

// Projects group documents belonging to the same construction tender. A
// document may exist outside any project.
type Project struct {
	Generic

	OwnerID     uint   `gorm:"index;not null" json:"owner_id"`
	Owner       User   `json:"-"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
}

func GetUserProject(db *gorm.DB, userID, projectID uint) (*Project, error) {
	var project Project
	err := db.Where("id = ? AND owner_id = ?", projectID, userID).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &project, nil
}
