package retrieval

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"docqa/models"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{
			name: "identical vectors",
			a:    []float32{1, 2, 3},
			b:    []float32{1, 2, 3},
			want: 1,
		},
		{
			name: "orthogonal vectors",
			a:    []float32{1, 0},
			b:    []float32{0, 1},
			want: 0,
		},
		{
			name: "opposite vectors",
			a:    []float32{1, 0},
			b:    []float32{-1, 0},
			want: -1,
		},
		{
			name: "zero vector",
			a:    []float32{0, 0},
			b:    []float32{1, 1},
			want: 0,
		},
		{
			name: "mismatched lengths",
			a:    []float32{1, 2},
			b:    []float32{1, 2, 3},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPreprocessQuestion(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain question untouched",
			in:   "Quelle est la couleur des murs ?",
			want: "Quelle est la couleur des murs ?",
		},
		{
			name: "trims whitespace",
			in:   "  Quels équipements ?  ",
			want: "Quels équipements ?",
		},
		{
			name: "correction chains into expansion",
			in:   "Où sont les menuise ?",
			want: "Où sont les menuiseries ? menuiserie fenêtre porte",
		},
		{
			name: "expansion for known term",
			in:   "Quels matériaux sont prévus ?",
			want: "Quels matériaux sont prévus ? matériaux matériau produit",
		},
		{
			name: "essai corrected and expanded",
			in:   "Quel essai prévoir ?",
			want: "Quel essais prévoir ? essai test vérification",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PreprocessQuestion(tt.in); got != tt.want {
				t.Errorf("PreprocessQuestion() = %q, want %q", got, tt.want)
			}
		})
	}
}

// stubEmbedder returns a fixed vector per question text and counts calls,
// one per search pass.
type stubEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (s *stubEmbedder) Embed(_ context.Context, text, _ string) ([]float32, error) {
	s.calls++
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}

	return []float32{1, 0}, nil
}

func embeddedChunk(id uint, vec []float32) models.DocumentChunk {
	v := pgvector.NewVector(vec)
	chunk := models.DocumentChunk{Text: "section", Embedding: &v}
	chunk.ID = id

	return chunk
}

func testSearcher(embedder *stubEmbedder, chunks []models.DocumentChunk) *Searcher {
	return &Searcher{
		embedder: embedder,
		loadChunks: func(uint, string) ([]models.DocumentChunk, error) {
			return chunks, nil
		},
		logger: zap.NewNop().Sugar(),
	}
}

func TestSearchSimilarChunksRanksAndFilters(t *testing.T) {
	embedder := &stubEmbedder{}
	searcher := testSearcher(embedder, []models.DocumentChunk{
		embeddedChunk(1, []float32{0, 1}),  // 0
		embeddedChunk(2, []float32{1, 0}),  // 1.0
		embeddedChunk(3, []float32{2, 1}),  // 0.894
		embeddedChunk(4, []float32{1, 1}),  // 0.707
	})

	scored, err := searcher.SearchSimilarChunks(context.Background(), 1, "question", 2, 0.6, EmbeddingModelLarge)
	if err != nil {
		t.Fatal(err)
	}

	if len(scored) != 2 {
		t.Fatalf("got %d chunks, want the limit of 2", len(scored))
	}
	if scored[0].Chunk.ID != 2 || scored[1].Chunk.ID != 3 {
		t.Errorf("ranking = [%d %d], want [2 3]", scored[0].Chunk.ID, scored[1].Chunk.ID)
	}
}

func TestAdaptiveSearch(t *testing.T) {
	// Cosine similarities against the query vector [1,0]:
	// [1,0]=1.0  [2,1]=0.894  [1,1]=0.707  [1,2]=0.447  [1,3]=0.316  [0,1]=0.
	tests := []struct {
		name       string
		question   string
		vectors    map[string][]float32
		chunks     []models.DocumentChunk
		threshold  float64
		wantChunks int
		wantPasses int
	}{
		{
			name:     "first pass is enough",
			question: "question simple",
			chunks: []models.DocumentChunk{
				embeddedChunk(1, []float32{1, 0}),
				embeddedChunk(2, []float32{2, 1}),
				embeddedChunk(3, []float32{1, 1}),
			},
			threshold:  0.6,
			wantChunks: 3,
			wantPasses: 1,
		},
		{
			name:     "fallback threshold adopted when it finds more",
			question: "question simple",
			chunks: []models.DocumentChunk{
				embeddedChunk(1, []float32{1, 0}),
				embeddedChunk(2, []float32{1, 2}),
				embeddedChunk(3, []float32{1, 3}),
			},
			threshold:  0.6,
			wantChunks: 3,
			wantPasses: 2,
		},
		{
			name:     "fallback without gain keeps the first result",
			question: "question simple",
			chunks: []models.DocumentChunk{
				embeddedChunk(1, []float32{1, 0}),
				embeddedChunk(2, []float32{2, 1}),
				embeddedChunk(3, []float32{0, 1}),
			},
			threshold:  0.6,
			wantChunks: 2,
			wantPasses: 3,
		},
		{
			name:     "original question rescues a thin result",
			question: "Quel essai prévoir ?",
			vectors: map[string][]float32{
				"Quel essai prévoir ?":                        {1, 0},
				"Quel essais prévoir ? essai test vérification": {0, 1},
			},
			chunks: []models.DocumentChunk{
				embeddedChunk(1, []float32{1, 0}),
				embeddedChunk(2, []float32{2, 1}),
				embeddedChunk(3, []float32{1, 1}),
			},
			threshold:  0.6,
			wantChunks: 3,
			wantPasses: 3,
		},
		{
			name:     "caller threshold at the floor skips the fallback pass",
			question: "question simple",
			chunks: []models.DocumentChunk{
				embeddedChunk(1, []float32{1, 0}),
				embeddedChunk(2, []float32{0, 1}),
			},
			threshold:  0.3,
			wantChunks: 1,
			wantPasses: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := &stubEmbedder{vectors: tt.vectors}
			searcher := testSearcher(embedder, tt.chunks)

			scored, err := searcher.AdaptiveSearch(context.Background(), 1, tt.question, 10, tt.threshold, EmbeddingModelLarge)
			if err != nil {
				t.Fatal(err)
			}

			if len(scored) != tt.wantChunks {
				t.Errorf("got %d chunks, want %d", len(scored), tt.wantChunks)
			}
			if embedder.calls != tt.wantPasses {
				t.Errorf("ran %d passes, want %d", embedder.calls, tt.wantPasses)
			}
		})
	}
}

func TestPrepareText(t *testing.T) {
	short := "un texte court"
	if got := PrepareText(short, 100); got != short {
		t.Errorf("short text should pass through, got %q", got)
	}

	long := strings.Repeat("a", 500) + strings.Repeat("z", 500)
	got := PrepareText(long, 100) // 400 chars max

	if len(got) != 403 {
		t.Fatalf("truncated length = %d, want 403", len(got))
	}
	if !strings.HasPrefix(got, strings.Repeat("a", 200)) {
		t.Error("truncation should keep the head")
	}
	if !strings.HasSuffix(got, strings.Repeat("z", 200)) {
		t.Error("truncation should keep the tail")
	}
	if !strings.Contains(got, "...") {
		t.Error("truncation should mark the cut")
	}
}
