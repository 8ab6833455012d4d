package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa/api"
	"docqa/core"
	"docqa/models"
)

func RequireAuth(c *gin.Context) {
	token := c.GetHeader("X-User-Token")
	if len(token) > 0 {
		db, err := core.GetDB()
		if err == nil {
			accessToken, err := models.GetAccessToken(db, token)
			if err == nil && accessToken != nil {
				c.Set("userID", accessToken.UserID)
				c.Next()
				return
			}
		}
	}

	api.ResultErrorStatus(c, http.StatusForbidden, []string{"accessDenied"})
	c.Abort()
}

func CurrentUserID(c *gin.Context) uint {
	return c.GetUint("userID")
}

func CurrentUser(c *gin.Context) *models.User {
	userID := CurrentUserID(c)
	if userID == 0 {
		return nil
	}

	db, err := core.GetDB()
	if err != nil {
		return nil
	}

	user, _ := models.GetUserByID(db, userID)
	return user
}
