package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ApiResponse struct {
	Errors []string `json:"errors,omitempty"`
	Data   any      `json:"data,omitempty"`
}

func ResultData(c *gin.Context, obj any) {
	c.JSON(http.StatusOK, ApiResponse{Data: obj})
}

func ResultSuccess(c *gin.Context) {
	c.JSON(http.StatusOK, ApiResponse{})
}

func ResultError(c *gin.Context, errors []string) {
	if len(errors) > 0 {
		c.JSON(http.StatusBadRequest, ApiResponse{Errors: errors})
	} else {
		c.JSON(http.StatusInternalServerError, ApiResponse{Errors: []string{"unknownError"}})
	}
}

func ResultErrorStatus(c *gin.Context, status int, errors []string) {
	c.JSON(status, ApiResponse{Errors: errors})
}
