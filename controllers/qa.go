package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"docqa/api"
	"docqa/core"
	"docqa/internal/qa"
	"docqa/internal/qacache"
	"docqa/internal/retrieval"
	"docqa/models"
)

type QAController struct {
	Engine *qa.Engine
	Cache  *qacache.Cache
	Logger *zap.SugaredLogger
}

// maxChunksLimit caps the limit query parameter.
const maxChunksLimit = 20

// parseOptions reads the tuning query parameters over the given defaults,
// ignoring anything absent, unparseable or out of range.
func parseOptions(c *gin.Context, base qa.Options) qa.Options {
	opts := base

	if raw := c.Query("similarity_threshold"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 && v <= 1 {
			opts.SimilarityThreshold = v
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 1 && v <= maxChunksLimit {
			opts.ChunksLimit = v
		}
	}
	if raw := c.Query("model"); raw != "" {
		if _, ok := retrieval.EmbeddingModels[raw]; ok {
			opts.Model = raw
		}
	}
	if raw := c.Query("generate_answer"); raw != "" {
		opts.GenerateAnswer = raw != "false" && raw != "0"
	}

	return opts
}

func cacheParams(opts qa.Options) qacache.Params {
	return qacache.Params{
		SimilarityThreshold: opts.SimilarityThreshold,
		ChunksLimit:         opts.ChunksLimit,
		Model:               opts.Model,
		GenerateAnswer:      opts.GenerateAnswer,
	}
}

// Ask answers a question about a document. Cached answers are served as-is
// with from_cache set; computed ones are cached for next time. Every ask
// lands in the user's history, cached or not.
func (q QAController) Ask(c *gin.Context) {
	var req qa.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		api.ResultError(c, []string{"corps de requête invalide"})
		return
	}

	if errs := qa.ValidateRequest(req.DocumentID, req.Question); len(errs) > 0 {
		api.ResultError(c, errs)
		return
	}

	userID := CurrentUserID(c)
	opts := parseOptions(c, qa.AskOptions())
	params := cacheParams(opts)

	if cached := q.Cache.Get(c.Request.Context(), req.DocumentID, req.Question, params); cached != nil {
		cached.FromCache = true
		q.recordHistory(userID, req, opts, cached)
		api.ResultData(c, cached)
		return
	}

	response, err := q.ask(c, userID, req, opts)
	if err != nil {
		return
	}

	q.Cache.Set(c.Request.Context(), req.DocumentID, req.Question, params, response)
	q.recordHistory(userID, req, opts, response)

	api.ResultData(c, response)
}

// ask runs the engine and writes the error response itself when it fails,
// returning a nil response in that case.
func (q QAController) ask(c *gin.Context, userID uint, req qa.Request, opts qa.Options) (*qa.Response, error) {
	response, err := q.Engine.Ask(c.Request.Context(), userID, req, opts)
	if err != nil {
		switch {
		case errors.Is(err, qa.ErrDocumentNotFound):
			api.ResultErrorStatus(c, http.StatusNotFound, []string{err.Error()})
		case errors.Is(err, qa.ErrNoEmbeddings):
			api.ResultErrorStatus(c, http.StatusNotFound, []string{err.Error()})
		default:
			q.Logger.Errorw("question answering failed", "document_id", req.DocumentID, "error", err)
			api.ResultErrorStatus(c, http.StatusInternalServerError, []string{"erreur lors de la recherche"})
		}
		return nil, err
	}

	return response, nil
}

// recordHistory is best effort: a failed write is logged, never surfaced.
func (q QAController) recordHistory(userID uint, req qa.Request, opts qa.Options, response *qa.Response) {
	db, err := core.GetDB()
	if err != nil {
		q.Logger.Warnw("history write skipped, no database", "error", err)
		return
	}

	item := models.QAHistory{
		UserID:              userID,
		DocumentID:          req.DocumentID,
		Question:            req.Question,
		Answer:              response.Answer,
		Confidence:          response.Confidence,
		ProcessingTimeMs:    response.ProcessingTimeMs,
		ChunksReturned:      response.ChunksReturned,
		SimilarityThreshold: opts.SimilarityThreshold,
		EmbeddingModel:      opts.Model,
		FromCache:           response.FromCache,
	}

	if err := db.Create(&item).Error; err != nil {
		q.Logger.Warnw("history write failed", "user_id", userID, "error", err)
	}
}

// Summary answers a question and renders it as display-ready text.
func (q QAController) Summary(c *gin.Context) {
	documentID, ok := paramUint(c, "document_id")
	if !ok {
		return
	}

	question := strings.TrimSpace(c.Query("question"))
	if errs := qa.ValidateRequest(documentID, question); len(errs) > 0 {
		api.ResultError(c, errs)
		return
	}

	req := qa.Request{DocumentID: documentID, Question: question}
	response, err := q.ask(c, CurrentUserID(c), req, parseOptions(c, qa.DefaultOptions()))
	if err != nil {
		return
	}

	api.ResultData(c, gin.H{
		"document_id": documentID,
		"question":    question,
		"summary":     qa.FormatSummary(response),
	})
}

// BestMatch returns only the single most similar chunk with a confidence
// grade, for callers that want a pointer into the document rather than a
// full answer.
func (q QAController) BestMatch(c *gin.Context) {
	documentID, ok := paramUint(c, "document_id")
	if !ok {
		return
	}

	question := strings.TrimSpace(c.Query("question"))
	if errs := qa.ValidateRequest(documentID, question); len(errs) > 0 {
		api.ResultError(c, errs)
		return
	}

	opts := parseOptions(c, qa.DefaultOptions())
	opts.GenerateAnswer = false

	req := qa.Request{DocumentID: documentID, Question: question}
	response, err := q.ask(c, CurrentUserID(c), req, opts)
	if err != nil {
		return
	}

	best := qa.BestChunk(response)
	if best == nil {
		api.ResultData(c, gin.H{
			"document_id": documentID,
			"question":    question,
			"best_match":  nil,
			"message":     "Aucune section pertinente trouvée",
		})
		return
	}

	api.ResultData(c, gin.H{
		"document_id": documentID,
		"question":    question,
		"best_match":  best,
		"confidence":  qa.ConfidenceForScore(best.SimilarityScore),
	})
}

// Stats reports the user's readiness for Q&A plus cache health.
func (q QAController) Stats(c *gin.Context) {
	db, err := core.GetDB()
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{"database unavailable"})
		return
	}

	userID := CurrentUserID(c)

	totalDocuments, err := models.CountUserDocuments(db, userID)
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}

	embeddedChunks, searchableDocuments, err := models.CountUserEmbeddedChunks(db, userID)
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}

	api.ResultData(c, gin.H{
		"total_documents":      totalDocuments,
		"searchable_documents": searchableDocuments,
		"embedded_chunks":      embeddedChunks,
		"qa_ready":             embeddedChunks > 0,
		"cache":                q.Cache.Stats(c.Request.Context()),
		"default_settings": gin.H{
			"similarity_threshold": qa.DefaultAskSimilarityThreshold,
			"chunks_limit":         qa.DefaultAskChunksLimit,
			"embedding_model":      retrieval.DefaultEmbeddingModel,
		},
	})
}

func (q QAController) CacheStats(c *gin.Context) {
	api.ResultData(c, q.Cache.Stats(c.Request.Context()))
}

// InvalidateDocumentCache drops the cached answers for one of the user's
// documents, typically after its chunks changed.
func (q QAController) InvalidateDocumentCache(c *gin.Context) {
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
		api.ResultErrorStatus(c, http.StatusNotFound, []string{qa.ErrDocumentNotFound.Error()})
		return
	}

	deleted := q.Cache.InvalidateDocument(c.Request.Context(), documentID)
	api.ResultData(c, gin.H{"document_id": documentID, "deleted_entries": deleted})
}

func (q QAController) ClearCache(c *gin.Context) {
	deleted := q.Cache.Clear(c.Request.Context())
	api.ResultData(c, gin.H{"deleted_entries": deleted})
}

// History lists the user's past questions, newest first, with pagination and
// optional document and question-text filters.
func (q QAController) History(c *gin.Context) {
	db, err := core.GetDB()
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{"database unavailable"})
		return
	}

	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := queryInt(c, "per_page", 20)
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	query := db.Model(&models.QAHistory{}).Where("user_id = ?", CurrentUserID(c))

	if raw := c.Query("document_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			query = query.Where("document_id = ?", uint(id))
		}
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query = query.Where("question ILIKE ?", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}

	var items []models.QAHistory
	err = query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&items).Error
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}

	api.ResultData(c, gin.H{
		"items":    items,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

func (q QAController) HistoryItem(c *gin.Context) {
	historyID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	db, err := core.GetDB()
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{"database unavailable"})
		return
	}

	item, err := models.GetUserQAHistoryItem(db, CurrentUserID(c), historyID)
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}
	if item == nil {
		api.ResultErrorStatus(c, http.StatusNotFound, []string{"entrée d'historique introuvable"})
		return
	}

	api.ResultData(c, item)
}

func (q QAController) DeleteHistoryItem(c *gin.Context) {
	historyID, ok := paramUint(c, "id")
	if !ok {
		return
	}

	db, err := core.GetDB()
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{"database unavailable"})
		return
	}

	item, err := models.GetUserQAHistoryItem(db, CurrentUserID(c), historyID)
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}
	if item == nil {
		api.ResultErrorStatus(c, http.StatusNotFound, []string{"entrée d'historique introuvable"})
		return
	}

	if err := db.Delete(item).Error; err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}

	api.ResultSuccess(c)
}

// ClearHistory deletes the user's history, optionally for one document only.
func (q QAController) ClearHistory(c *gin.Context) {
	db, err := core.GetDB()
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{"database unavailable"})
		return
	}

	query := db.Where("user_id = ?", CurrentUserID(c))
	if raw := c.Query("document_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			query = query.Where("document_id = ?", uint(id))
		}
	}

	tx := query.Delete(&models.QAHistory{})
	if tx.Error != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{tx.Error.Error()})
		return
	}

	api.ResultData(c, gin.H{"deleted": tx.RowsAffected})
}

// HistoryStats summarizes the user's history: volumes, cache hit share, and
// average processing time of computed answers.
func (q QAController) HistoryStats(c *gin.Context) {
	db, err := core.GetDB()
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{"database unavailable"})
		return
	}

	userID := CurrentUserID(c)
	base := func() *gorm.DB {
		return db.Model(&models.QAHistory{}).Where("user_id = ?", userID)
	}

	var total, fromCache, documents int64
	if err := base().Count(&total).Error; err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}
	if err := base().Where("from_cache").Count(&fromCache).Error; err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}
	if err := base().Distinct("document_id").Count(&documents).Error; err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}

	var avgProcessingMs float64
	err = base().
		Where("NOT from_cache").
		Select("COALESCE(AVG(processing_time_ms), 0)").
		Row().
		Scan(&avgProcessingMs)
	if err != nil {
		api.ResultErrorStatus(c, http.StatusInternalServerError, []string{err.Error()})
		return
	}

	cacheHitRate := 0.0
	if total > 0 {
		cacheHitRate = float64(fromCache) / float64(total)
	}

	api.ResultData(c, gin.H{
		"total_questions":        total,
		"from_cache":             fromCache,
		"cache_hit_rate":         cacheHitRate,
		"documents_questioned":   documents,
		"avg_processing_time_ms": avgProcessingMs,
	})
}

// paramUint parses a positive integer path parameter and writes the error
// response itself on failure.
func paramUint(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		api.ResultError(c, []string{name + " doit être un entier positif"})
		return 0, false
	}

	return uint(id), true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}
