package retrieval

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"docqa/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// FallbackThreshold is retried when the caller's threshold finds too
	// little.
	FallbackThreshold = 0.3
	// MinChunksForQuality is the number of chunks below which a search
	// result is considered too thin to answer from.
	MinChunksForQuality = 3
)

// ScoredChunk pairs a chunk with its similarity to the query.
type ScoredChunk struct {
	Chunk      models.DocumentChunk
	Similarity float64
}

// queryEmbedder is the slice of the embedder the searcher needs.
type queryEmbedder interface {
	Embed(ctx context.Context, text, model string) ([]float32, error)
}

// Searcher ranks a document's chunks against a question by cosine
// similarity of their embeddings.
type Searcher struct {
	embedder   queryEmbedder
	loadChunks func(documentID uint, model string) ([]models.DocumentChunk, error)
	logger     *zap.SugaredLogger
}

func NewSearcher(db *gorm.DB, embedder *Embedder, logger *zap.SugaredLogger) *Searcher {
	return &Searcher{
		embedder: embedder,
		loadChunks: func(documentID uint, model string) ([]models.DocumentChunk, error) {
			return models.GetEmbeddedChunks(db, documentID, model)
		},
		logger: logger,
	}
}

// CosineSimilarity returns the cosine of the angle between two vectors, or
// zero when either has zero norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SearchSimilarChunks embeds the query and ranks the document's embedded
// chunks against it. Chunks below the threshold are dropped; the rest come
// back sorted by descending similarity, at most limit of them.
func (s *Searcher) SearchSimilarChunks(ctx context.Context, documentID uint, query string, limit int, threshold float64, model string) ([]ScoredChunk, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, query, model)
	if err != nil {
		return nil, err
	}

	chunks, err := s.loadChunks(documentID, model)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Embedding == nil {
			continue
		}

		similarity := CosineSimilarity(queryEmbedding, chunk.Embedding.Slice())
		if similarity >= threshold {
			scored = append(scored, ScoredChunk{Chunk: chunk, Similarity: similarity})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })

	if len(scored) > limit {
		scored = scored[:limit]
	}

	return scored, nil
}

// AdaptiveSearch runs up to three passes, each kept only when it yields
// more chunks than the previous one: the preprocessed question at the
// caller's threshold, then at the fallback threshold, then the original
// question at the fallback threshold.
func (s *Searcher) AdaptiveSearch(ctx context.Context, documentID uint, question string, limit int, threshold float64, model string) ([]ScoredChunk, error) {
	processed := PreprocessQuestion(question)

	chunks, err := s.SearchSimilarChunks(ctx, documentID, processed, limit, threshold, model)
	if err != nil {
		return nil, err
	}

	if len(chunks) < MinChunksForQuality && threshold > FallbackThreshold {
		s.logger.Debugw("retrying search with fallback threshold", "document_id", documentID, "found", len(chunks))

		fallback, err := s.SearchSimilarChunks(ctx, documentID, processed, limit, FallbackThreshold, model)
		if err != nil {
			return nil, err
		}

		if len(fallback) > len(chunks) {
			chunks = fallback
		}
	}

	if len(chunks) < MinChunksForQuality {
		s.logger.Debugw("retrying search with original question", "document_id", documentID, "found", len(chunks))

		original, err := s.SearchSimilarChunks(ctx, documentID, question, limit, FallbackThreshold, model)
		if err != nil {
			return nil, err
		}

		if len(original) > len(chunks) {
			chunks = original
		}
	}

	return chunks, nil
}

// Common misspellings in incoming questions. Applied in order: an earlier
// correction may feed the next one.
var corrections = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\bmenuise\b`), "menuiserie"},
	{regexp.MustCompile(`(?i)\bmenuiserie\b`), "menuiseries"},
	{regexp.MustCompile(`(?i)\bvérifié\b`), "vérifier"},
	{regexp.MustCompile(`(?i)\bessai\b`), "essais"},
	{regexp.MustCompile(`(?i)\bperforman\b`), "performance"},
}

// Technical synonyms appended to the question to widen the semantic net.
var expansions = []struct {
	term      string
	expansion string
}{
	{"menuiserie", "menuiserie fenêtre porte"},
	{"performance", "performance test contrôle"},
	{"essai", "essai test vérification"},
	{"vérifier", "vérifier contrôler tester"},
	{"matériaux", "matériaux matériau produit"},
}

// PreprocessQuestion normalizes a question for semantic search: trims it,
// fixes common misspellings and appends technical synonyms for the terms it
// mentions.
func PreprocessQuestion(question string) string {
	question = strings.TrimSpace(question)

	for _, c := range corrections {
		question = c.pattern.ReplaceAllString(question, c.replacement)
	}

	expanded := question
	lower := strings.ToLower(question)
	for _, e := range expansions {
		if strings.Contains(lower, e.term) {
			expanded += " " + e.expansion
		}
	}

	return expanded
}
