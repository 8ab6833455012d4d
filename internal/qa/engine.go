// Package qa answers questions about a document from its embedded chunks,
// optionally synthesizing a cited answer with an LLM.
package qa

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"docqa/internal/retrieval"
	"docqa/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrDocumentNotFound covers both a missing document and one owned by
	// somebody else; callers must not be able to tell them apart.
	ErrDocumentNotFound = errors.New("document not found or access denied")
	// ErrNoEmbeddings means the document has no searchable chunks for the
	// requested embedding model.
	ErrNoEmbeddings = errors.New("no embeddings found for this document with the requested model")
)

const (
	// DefaultAskSimilarityThreshold and DefaultAskChunksLimit are what a
	// bare /qa/ask runs with.
	DefaultAskSimilarityThreshold = 0.6
	DefaultAskChunksLimit         = 6

	// DefaultSimilarityThreshold and DefaultChunksLimit are the engine's
	// internal defaults, used by summary-style calls that want a wider net.
	DefaultSimilarityThreshold = 0.5
	DefaultChunksLimit         = 10

	// maxDisplayTextLength caps chunk text in responses; full text stays in
	// the database.
	maxDisplayTextLength = 1500
)

// Request is a question about one document.
type Request struct {
	DocumentID uint   `json:"document_id" binding:"required"`
	Question   string `json:"question" binding:"required"`
}

// Options shape a single ask.
type Options struct {
	SimilarityThreshold float64
	ChunksLimit         int
	Model               string
	GenerateAnswer      bool
}

// AskOptions returns the API defaults for a direct question.
func AskOptions() Options {
	return Options{
		SimilarityThreshold: DefaultAskSimilarityThreshold,
		ChunksLimit:         DefaultAskChunksLimit,
		Model:               retrieval.DefaultEmbeddingModel,
		GenerateAnswer:      true,
	}
}

// DefaultOptions returns the engine defaults with answer generation on.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: DefaultSimilarityThreshold,
		ChunksLimit:         DefaultChunksLimit,
		Model:               retrieval.DefaultEmbeddingModel,
		GenerateAnswer:      true,
	}
}

// ChunkResult is one retrieved chunk as it appears in a response.
type ChunkResult struct {
	ChunkID         uint      `json:"chunk_id"`
	Lot             *string   `json:"lot"`
	Article         *string   `json:"article"`
	PageNumber      *int      `json:"page_number"`
	Text            string    `json:"text"`
	TextLength      int       `json:"text_length"`
	SimilarityScore float64   `json:"similarity_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// Response is the full answer to a question. It is what gets cached, so
// every field must survive a JSON round trip.
type Response struct {
	DocumentID          uint          `json:"document_id"`
	DocumentName        string        `json:"document_name"`
	Question            string        `json:"question"`
	TotalChunksFound    int           `json:"total_chunks_found"`
	ChunksReturned      int           `json:"chunks_returned"`
	ProcessingTimeMs    int           `json:"processing_time_ms"`
	SimilarityThreshold float64       `json:"similarity_threshold"`
	EmbeddingModel      string        `json:"embedding_model"`
	Chunks              []ChunkResult `json:"chunks"`

	Answer                 *string              `json:"answer,omitempty"`
	Citations              []retrieval.Citation `json:"citations,omitempty"`
	Confidence             *string              `json:"confidence,omitempty"`
	AnswerModelUsed        *string              `json:"gpt_model_used,omitempty"`
	AnswerGenerationTimeMs int                  `json:"answer_generation_time_ms,omitempty"`

	FromCache bool `json:"from_cache"`
}

// Engine runs the retrieval and answering pipeline.
type Engine struct {
	db        *gorm.DB
	searcher  *retrieval.Searcher
	generator *retrieval.Generator
	logger    *zap.SugaredLogger
}

func NewEngine(db *gorm.DB, searcher *retrieval.Searcher, generator *retrieval.Generator, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		db:        db,
		searcher:  searcher,
		generator: generator,
		logger:    logger,
	}
}

// ValidateRequest checks a request before any work happens and returns the
// list of problems, empty when the request is fine.
func ValidateRequest(documentID uint, question string) []string {
	var errs []string

	if documentID == 0 {
		errs = append(errs, "document_id doit être un entier positif")
	}

	trimmed := strings.TrimSpace(question)
	switch {
	case trimmed == "":
		errs = append(errs, "question ne peut pas être vide")
	case len(trimmed) < 3:
		errs = append(errs, "question doit contenir au moins 3 caractères")
	case len(trimmed) > 500:
		errs = append(errs, "question ne peut pas dépasser 500 caractères")
	}

	return errs
}

// Ask answers a question about the user's document. The document must
// belong to the user and carry embeddings for the chosen model.
func (e *Engine) Ask(ctx context.Context, userID uint, req Request, opts Options) (*Response, error) {
	start := time.Now()

	document, err := models.GetUserDocument(e.db, userID, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, ErrDocumentNotFound
	}

	embedded, err := models.CountEmbeddedChunks(e.db, req.DocumentID, opts.Model)
	if err != nil {
		return nil, err
	}
	if embedded == 0 {
		return nil, ErrNoEmbeddings
	}

	scored, err := e.searcher.AdaptiveSearch(ctx, req.DocumentID, req.Question, opts.ChunksLimit, opts.SimilarityThreshold, opts.Model)
	if err != nil {
		return nil, err
	}

	chunks := make([]ChunkResult, 0, len(scored))
	for _, sc := range scored {
		text := sc.Chunk.Text
		if len(text) > maxDisplayTextLength {
			text = text[:maxDisplayTextLength] + "..."
		}

		chunks = append(chunks, ChunkResult{
			ChunkID:         sc.Chunk.ID,
			Lot:             sc.Chunk.Lot,
			Article:         sc.Chunk.Article,
			PageNumber:      sc.Chunk.PageNumber,
			Text:            text,
			TextLength:      len(sc.Chunk.Text),
			SimilarityScore: round4(sc.Similarity),
			CreatedAt:       sc.Chunk.CreatedAt,
		})
	}

	response := &Response{
		DocumentID:          req.DocumentID,
		DocumentName:        document.OriginalFilename,
		Question:            req.Question,
		TotalChunksFound:    len(scored),
		ChunksReturned:      len(chunks),
		ProcessingTimeMs:    int(time.Since(start).Milliseconds()),
		SimilarityThreshold: opts.SimilarityThreshold,
		EmbeddingModel:      opts.Model,
		Chunks:              chunks,
	}

	if opts.GenerateAnswer && len(chunks) > 0 {
		answer, citations, confidence, elapsedMs := e.generator.Answer(ctx, req.Question, document.OriginalFilename, scored)
		model := e.generator.Model()

		response.Answer = &answer
		response.Citations = citations
		response.Confidence = &confidence
		response.AnswerModelUsed = &model
		response.AnswerGenerationTimeMs = elapsedMs
	}

	return response, nil
}

// FormatSummary renders a response as display-ready text.
func FormatSummary(response *Response) string {
	if len(response.Chunks) == 0 {
		return fmt.Sprintf("Aucune information trouvée pour la question : '%v'", response.Question)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question : %v\n", response.Question)
	fmt.Fprintf(&b, "Document : %v\n", response.DocumentName)
	fmt.Fprintf(&b, "Nombre de sections pertinentes trouvées : %v\n\n", response.ChunksReturned)

	if response.Answer != nil {
		b.WriteString("=== RÉPONSE GÉNÉRÉE ===\n")
		b.WriteString(*response.Answer)
		b.WriteString("\n")
		if response.Confidence != nil {
			fmt.Fprintf(&b, "Confiance : %v\n", *response.Confidence)
		}
		b.WriteString("\n")
	}

	if len(response.Citations) > 0 {
		b.WriteString("=== CITATIONS ===\n")
		for i, citation := range response.Citations {
			fmt.Fprintf(&b, "Citation %v\n", i+1)
			if citation.Lot != nil {
				fmt.Fprintf(&b, "  Lot : %v\n", *citation.Lot)
			}
			if citation.Page != nil {
				fmt.Fprintf(&b, "  Page : %v\n", *citation.Page)
			}
			fmt.Fprintf(&b, "  Extrait : %v\n\n", citation.Excerpt)
		}

		return b.String()
	}

	for i, chunk := range response.Chunks {
		fmt.Fprintf(&b, "Section %v (similarité: %.2f%%)\n", i+1, chunk.SimilarityScore*100)
		if chunk.Lot != nil {
			fmt.Fprintf(&b, "  Lot : %v\n", *chunk.Lot)
		}
		if chunk.Article != nil {
			fmt.Fprintf(&b, "  Article : %v\n", *chunk.Article)
		}
		if chunk.PageNumber != nil {
			fmt.Fprintf(&b, "  Page : %v\n", *chunk.PageNumber)
		}

		text := chunk.Text
		if len(text) > 200 {
			text = text[:200]
		}
		fmt.Fprintf(&b, "  Contenu : %v...\n\n", text)
	}

	return b.String()
}

// BestChunk returns the chunk with the highest similarity, or nil.
func BestChunk(response *Response) *ChunkResult {
	if len(response.Chunks) == 0 {
		return nil
	}

	best := &response.Chunks[0]
	for i := range response.Chunks {
		if response.Chunks[i].SimilarityScore > best.SimilarityScore {
			best = &response.Chunks[i]
		}
	}

	return best
}

// ConfidenceForScore grades a single similarity score.
func ConfidenceForScore(score float64) string {
	switch {
	case score >= 0.8:
		return retrieval.ConfidenceHigh
	case score >= 0.6:
		return retrieval.ConfidenceMedium
	default:
		return retrieval.ConfidenceLow
	}
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
