package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docqa/api"
	"docqa/core"
	"docqa/internal/chunker"
	"docqa/internal/retrieval"
	"docqa/models"
)

type DocumentsController struct {
	Jobs   *retrieval.JobManager
	Logger *zap.SugaredLogger
}

type ingestRequest struct {
	Text string `json:"text" binding:"required"`
}

// IngestChunks takes a document's extracted text, splits it along its
// structure, persists the chunks and kicks off embedding generation in the
// background. Re-ingesting replaces the previous chunks.
func (d DocumentsController) IngestChunks(c *gin.Context) {
	documentID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		api.ResultError(c, []string{"text est requis"})
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

	parser := chunker.NewParser()
	parsed := parser.Split(req.Text)

	chunks := make([]models.DocumentChunk, 0, len(parsed))
	for _, chunk := range parsed {
		chunk := chunk

		text := parser.Clean(chunk.Text)
		if text == "" {
			continue
		}

		var lot, article *string
		var page *int
		if chunk.Lot != "" {
			lot = &chunk.Lot
		}
		if chunk.Article != "" {
			article = &chunk.Article
		}
		if chunk.PageNumber > 0 {
			page = &chunk.PageNumber
		}

		chunks = append(chunks, models.DocumentChunk{
			DocumentID: documentID,
			Lot:        lot,
			Article:    article,
			PageNumber: page,
			Text:       text,
		})
	}

	if len(chunks) == 0 {
		api.ResultError(c, []string{"aucun contenu exploitable dans le texte fourni"})
		return
	}

	err = db.Where("document_id = ?", documentID).Delete(&models.DocumentChunk{}).Error
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}

	if err := models.CreateChunks(db, chunks); err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}

	err = db.Model(&models.Document{}).
		Where("id = ?", documentID).
		Update("raw_content", req.Text).Error
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}

	chunkIDs := make([]uint, len(chunks))
	for i, chunk := range chunks {
		chunkIDs[i] = chunk.ID
	}

	go func() {
		processed, errored := d.Jobs.EmbedChunks(context.Background(), chunkIDs, retrieval.DefaultEmbeddingModel)
		d.Logger.Infow("ingest embedding finished",
			"document_id", documentID, "processed", processed, "errors", errored)
	}()

	c.JSON(http.StatusCreated, api.ApiResponse{Data: gin.H{
		"document_id":  documentID,
		"chunks_saved": len(chunks),
	}})
}

// EmbeddingStatus reports whether an embedding job is running and what the
// last one did.
func (d DocumentsController) EmbeddingStatus(c *gin.Context) {
	api.ResultData(c, d.Jobs.Status())
}

// ListChunks returns a document's chunks with their structural metadata.
func (d DocumentsController) ListChunks(c *gin.Context) {
	documentID, ok := paramUint(c, "id")
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

	chunks, err := models.GetDocumentChunks(db, documentID)
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}

	api.ResultData(c, gin.H{
		"document_id": documentID,
		"chunks":      chunks,
		"total":       len(chunks),
	})
}
