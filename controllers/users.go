package controllers

import (
	"github.com/gin-gonic/gin"

	"docqa/api"
	"docqa/core"
	"docqa/models"
)

type UsersController struct{}

func (u UsersController) GetCurrentUser(c *gin.Context) {
	db, _ := core.GetDB()

	var user models.User
	userID := CurrentUserID(c)
	db.First(&user, userID)

	api.ResultData(c, user)
}
