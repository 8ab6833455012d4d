package models

import (
	"errors"

	"gorm.io/gorm"
)

type AccessToken struct {
	Generic

	UserID uint `gorm:"index;not null" json:"user_id"`
	User   User `json:"-"`

	Token string `gorm:"uniqueIndex" json:"token"`
}

func CreateAccessToken(db *gorm.DB, userID uint, token string) (*AccessToken, error) {
	accessToken := &AccessToken{
		UserID: userID,
		Token:  token,
	}

	if err := db.Create(accessToken).Error; err != nil {
		return nil, err
	}

	return accessToken, nil
}

func GetAccessToken(db *gorm.DB, token string) (*AccessToken, error) {
	var accessToken AccessToken
	err := db.Where("token = ?", token).First(&accessToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &accessToken, nil
}
