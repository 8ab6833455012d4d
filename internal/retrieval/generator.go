package retrieval

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

// Confidence levels attached to generated answers. French, because they
// surface verbatim in the UI.
const (
	ConfidenceHigh   = "haute"
	ConfidenceMedium = "moyenne"
	ConfidenceLow    = "faible"
)

const DefaultAnswerModel = "gpt-4o"

// Citation points back at a chunk the answer drew on.
type Citation struct {
	Lot     *string `json:"lot"`
	Page    *int    `json:"page"`
	Excerpt string  `json:"excerpt"`
	ChunkID uint    `json:"chunk_id"`
}

// Generator writes an answer to a question from the retrieved passages,
// with citations back into the document.
type Generator struct {
	chat            llms.ChatLLM
	model           string
	temperature     float64
	maxOutputTokens int
	logger          *zap.SugaredLogger
}

func NewGenerator(logger *zap.SugaredLogger) (*Generator, error) {
	model := os.Getenv("OPENAI_ANSWER_MODEL")
	if model == "" {
		model = DefaultAnswerModel
	}

	chat, err := openai.NewChat(openai.WithModel(model))
	if err != nil {
		return nil, err
	}

	return &Generator{
		chat:  chat,
		model: model,
		// Low temperature: answers must stay close to the passages.
		temperature:     0.3,
		maxOutputTokens: 1500,
		logger:          logger,
	}, nil
}

func (g *Generator) Model() string {
	return g.model
}

// Answer generates a response to the question from the given passages and
// extracts citations and a confidence level from it. Generation failures
// degrade to a fallback answer built from the top passages; the returned
// elapsed time covers the whole call.
func (g *Generator) Answer(ctx context.Context, question, documentName string, chunks []ScoredChunk) (answer string, citations []Citation, confidence string, elapsedMs int) {
	start := time.Now()

	if len(chunks) == 0 {
		return "Aucune information pertinente trouvée dans le document pour répondre à cette question.",
			nil, ConfidenceLow, int(time.Since(start).Milliseconds())
	}

	prompt := buildAnswerPrompt(question, documentName, chunks)

	input := []schema.ChatMessage{
		schema.SystemChatMessage{
			Text: "Vous êtes un expert en analyse de documents techniques CCTP. Répondez de manière précise et professionnelle en citant vos sources.",
		},
		schema.HumanChatMessage{Text: prompt},
	}

	res, err := g.chat.Call(ctx, input, llms.WithTemperature(g.temperature), llms.WithMaxTokens(g.maxOutputTokens))
	if err != nil {
		g.logger.Warnw("answer generation failed, falling back to passages", "error", err)
		return fallbackAnswer(chunks), nil, ConfidenceLow, int(time.Since(start).Milliseconds())
	}

	citations = ExtractCitations(res, chunks)
	confidence = CalculateConfidence(chunks, citations)

	return res, citations, confidence, int(time.Since(start).Milliseconds())
}

// buildAnswerPrompt lays the passages out as numbered PASSAGE blocks with
// their structural metadata, so the model can reference them and the
// citation extractor can find the references.
func buildAnswerPrompt(question, documentName string, chunks []ScoredChunk) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Vous êtes un expert en analyse de documents techniques CCTP (Cahier des Clauses Techniques Particulières).

Document analysé : %v
Question posée : %v

Voici les passages les plus pertinents trouvés dans le document :

`, documentName, question)

	for i, sc := range chunks {
		fmt.Fprintf(&b, "PASSAGE %v:\n", i+1)

		var metadata []string
		if sc.Chunk.Lot != nil {
			metadata = append(metadata, fmt.Sprintf("Lot: %v", *sc.Chunk.Lot))
		}
		if sc.Chunk.Article != nil {
			metadata = append(metadata, fmt.Sprintf("Article: %v", *sc.Chunk.Article))
		}
		if sc.Chunk.PageNumber != nil {
			metadata = append(metadata, fmt.Sprintf("Page: %v", *sc.Chunk.PageNumber))
		}
		if len(metadata) > 0 {
			fmt.Fprintf(&b, "[%v]\n", strings.Join(metadata, " | "))
		}

		fmt.Fprintf(&b, "Contenu: %v\n", sc.Chunk.Text)
		fmt.Fprintf(&b, "Score de pertinence: %.2f%%\n\n", sc.Similarity*100)
	}

	b.WriteString(`
INSTRUCTIONS IMPORTANTES :

1. Répondez à la question en français de manière claire et précise
2. Basez-vous UNIQUEMENT sur les passages fournis ci-dessus
3. Citez les passages pertinents avec leur numéro (ex: "Selon le PASSAGE 2...")
4. Si possible, mentionnez le lot et la page dans vos citations
5. Si vous ne trouvez pas d'information pertinente, dites-le clairement
6. Structurez votre réponse de manière logique et professionnelle
7. Utilisez un vocabulaire technique approprié au domaine du BTP

Répondez maintenant à la question en suivant ces instructions.
`)

	return b.String()
}

func fallbackAnswer(chunks []ScoredChunk) string {
	var b strings.Builder
	b.WriteString("Désolé, je n'ai pas pu générer une réponse automatique. Voici les passages les plus pertinents trouvés :\n\n")

	top := chunks
	if len(top) > 3 {
		top = top[:3]
	}

	for i, sc := range top {
		fmt.Fprintf(&b, "**Passage %v** ", i+1)

		switch {
		case sc.Chunk.Lot != nil && sc.Chunk.PageNumber != nil:
			fmt.Fprintf(&b, "(%v, page %v): ", *sc.Chunk.Lot, *sc.Chunk.PageNumber)
		case sc.Chunk.Lot != nil:
			fmt.Fprintf(&b, "(%v): ", *sc.Chunk.Lot)
		case sc.Chunk.PageNumber != nil:
			fmt.Fprintf(&b, "(page %v): ", *sc.Chunk.PageNumber)
		}

		fmt.Fprintf(&b, "%v...\n\n", excerpt(sc.Chunk.Text, 200))
	}

	return b.String()
}

var passageRefPattern = regexp.MustCompile(`(?i)passage\s+(\d+)`)

// ExtractCitations finds the PASSAGE references in the answer and turns
// them into citations. References outside the passage range are ignored;
// an answer with no explicit reference cites the first three passages.
func ExtractCitations(answer string, chunks []ScoredChunk) []Citation {
	referenced := map[int]bool{}

	for _, m := range passageRefPattern.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n >= 1 && n <= len(chunks) {
			referenced[n-1] = true
		}
	}

	if len(referenced) == 0 {
		for i := 0; i < len(chunks) && i < 3; i++ {
			referenced[i] = true
		}
	}

	indexes := make([]int, 0, len(referenced))
	for i := range referenced {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	citations := make([]Citation, 0, len(indexes))
	for _, i := range indexes {
		chunk := chunks[i].Chunk
		citations = append(citations, Citation{
			Lot:     chunk.Lot,
			Page:    chunk.PageNumber,
			Excerpt: excerpt(chunk.Text, 150),
			ChunkID: chunk.ID,
		})
	}

	return citations
}

// CalculateConfidence grades the answer by the mean similarity of the
// chunks it cites, falling back to the top three when nothing is cited.
func CalculateConfidence(chunks []ScoredChunk, citations []Citation) string {
	if len(chunks) == 0 {
		return ConfidenceLow
	}

	var relevant []ScoredChunk
	if len(citations) > 0 {
		cited := map[uint]bool{}
		for _, c := range citations {
			cited[c.ChunkID] = true
		}
		for _, sc := range chunks {
			if cited[sc.Chunk.ID] {
				relevant = append(relevant, sc)
			}
		}
	} else {
		relevant = chunks
		if len(relevant) > 3 {
			relevant = relevant[:3]
		}
	}

	if len(relevant) == 0 {
		return ConfidenceLow
	}

	var sum float64
	for _, sc := range relevant {
		sum += sc.Similarity
	}
	avg := sum / float64(len(relevant))

	switch {
	case avg >= 0.8:
		return ConfidenceHigh
	case avg >= 0.6:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// excerpt truncates text to n bytes on a rune boundary, appending an
// ellipsis when something was cut.
func excerpt(text string, n int) string {
	if len(text) <= n {
		return text
	}

	cut := n
	for cut > 0 && !utf8RuneStart(text[cut]) {
		cut--
	}

	return text[:cut] + "..."
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
