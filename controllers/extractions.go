package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docqa/api"
	"docqa/core"
	"docqa/internal/extraction"
	"docqa/models"
)

type ExtractionsController struct {
	Runner *extraction.Runner
	Logger *zap.SugaredLogger
}

// Start creates an extraction for the document and launches it in the
// background. The response carries the extraction id to poll.
func (e ExtractionsController) Start(c *gin.Context) {
	documentID, ok := paramUint(c, "document_id")
	if !ok {
		return
	}

	db, err := core.GetDB()
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{"database unavailable"})
		return
	}

	document, err := models.GetUserDocument(db, CurrentUserID(c), documentID)
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}
	if document == nil {
		api.ResultErrorStatus(c, http.StatusNotFound, []string{"document not found or access denied"})
		return
	}

	if strings.TrimSpace(document.RawContent) == "" {
		api.ResultError(c, []string{"le document ne contient aucun texte à analyser"})
		return
	}

	extractionRow, err := models.CreateExtraction(db, documentID)
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}

	e.Runner.Start(extractionRow.ID, document.RawContent)
	e.Logger.Infow("extraction started", "extraction_id", extractionRow.ID, "document_id", documentID)

	c.JSON(http.StatusAccepted, api.ApiResponse{Data: extractionRow})
}

// Status reports an extraction's progress for polling clients.
func (e ExtractionsController) Status(c *gin.Context) {
	extractionID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	db, err := core.GetDB()
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{"database unavailable"})
		return
	}

	extractionRow, err := models.GetUserExtraction(db, CurrentUserID(c), extractionID)
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}
	if extractionRow == nil {
		api.ResultErrorStatus(c, http.StatusNotFound, []string{"extraction introuvable"})
		return
	}

	api.ResultData(c, extractionRow)
}
