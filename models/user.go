package models

import (
	"errors"

	"gorm.io/gorm"
)

type User struct {
	Generic

	Email          string `gorm:"unique;not null" json:"email"`
	Username       string `gorm:"unique;not null" json:"username"`
	HashedPassword string `gorm:"not null" json:"-"`
	IsActive       bool   `gorm:"not null;default:true" json:"is_active"`
}

func GetUserByID(db *gorm.DB, id uint) (*User, error) {
	var user User
	err := db.First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &user, nil
}
