package controllers

import (
	"github.com/gin-gonic/gin"
)

type Router struct {
	HealthController      *HealthController
	UsersController       *UsersController
	QAController          *QAController
	ExtractionsController *ExtractionsController
	DocumentsController   *DocumentsController
}

func (r Router) RegisterRoutes(router gin.IRouter) {
	//
	// Anonymous requests
	//
	router.GET("/health", r.HealthController.Status)

	//
	// Authorized Requests
	//
	authorized := router.Group("/", RequireAuth)
	authorized.GET("/users/me", r.UsersController.GetCurrentUser)

	authorized.POST("/qa/ask", r.QAController.Ask)
	authorized.GET("/qa/summary/:document_id", r.QAController.Summary)
	authorized.GET("/qa/best-match/:document_id", r.QAController.BestMatch)
	authorized.GET("/qa/stats", r.QAController.Stats)

	authorized.GET("/qa/cache/stats", r.QAController.CacheStats)
	authorized.DELETE("/qa/cache/document/:document_id", r.QAController.InvalidateDocumentCache)
	authorized.DELETE("/qa/cache/clear", r.QAController.ClearCache)

	authorized.GET("/qa/history", r.QAController.History)
	authorized.GET("/qa/history/stats", r.QAController.HistoryStats)
	authorized.GET("/qa/history/:id", r.QAController.HistoryItem)
	authorized.DELETE("/qa/history/:id", r.QAController.DeleteHistoryItem)
	authorized.DELETE("/qa/history", r.QAController.ClearHistory)

	authorized.POST("/extractions/document/:document_id", r.ExtractionsController.Start)
	authorized.GET("/extractions/:id/status", r.ExtractionsController.Status)

	authorized.POST("/documents/:id/chunks", r.DocumentsController.IngestChunks)
	authorized.GET("/documents/:id/chunks", r.DocumentsController.ListChunks)
	authorized.GET("/embeddings/status", r.DocumentsController.EmbeddingStatus)
}
