package qa

import (
	"strings"
	"testing"

	"docqa/internal/retrieval"
)

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name       string
		documentID uint
		question   string
		wantErrs   int
	}{
		{
			name:       "valid",
			documentID: 1,
			question:   "Quels sont les matériaux prévus ?",
			wantErrs:   0,
		},
		{
			name:       "zero document id",
			documentID: 0,
			question:   "Quels sont les matériaux prévus ?",
			wantErrs:   1,
		},
		{
			name:       "empty question",
			documentID: 1,
			question:   "   ",
			wantErrs:   1,
		},
		{
			name:       "question too short",
			documentID: 1,
			question:   "ab",
			wantErrs:   1,
		},
		{
			name:       "question too long",
			documentID: 1,
			question:   strings.Repeat("a", 501),
			wantErrs:   1,
		},
		{
			name:       "everything wrong",
			documentID: 0,
			question:   "",
			wantErrs:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateRequest(tt.documentID, tt.question)
			if len(errs) != tt.wantErrs {
				t.Errorf("ValidateRequest() = %v, want %d error(s)", errs, tt.wantErrs)
			}
		})
	}
}

func TestFormatSummaryNoChunks(t *testing.T) {
	response := &Response{Question: "Quelle isolation ?"}

	summary := FormatSummary(response)
	if !strings.Contains(summary, "Aucune information trouvée") {
		t.Errorf("summary = %q", summary)
	}
	if !strings.Contains(summary, "Quelle isolation ?") {
		t.Error("summary should echo the question")
	}
}

func TestFormatSummaryWithAnswerAndCitations(t *testing.T) {
	answer := "L'isolation sera en laine de roche."
	confidence := retrieval.ConfidenceHigh
	lot := "LOT 5"
	page := 23

	response := &Response{
		Question:       "Quelle isolation ?",
		DocumentName:   "cctp.pdf",
		ChunksReturned: 1,
		Chunks: []ChunkResult{
			{ChunkID: 1, Text: "Isolation en laine de roche.", SimilarityScore: 0.91},
		},
		Answer:     &answer,
		Confidence: &confidence,
		Citations: []retrieval.Citation{
			{Lot: &lot, Page: &page, Excerpt: "laine de roche", ChunkID: 1},
		},
	}

	summary := FormatSummary(response)

	for _, fragment := range []string{
		"Question : Quelle isolation ?",
		"Document : cctp.pdf",
		"RÉPONSE GÉNÉRÉE",
		answer,
		"Confiance : haute",
		"CITATIONS",
		"Lot : LOT 5",
		"Page : 23",
		"laine de roche",
	} {
		if !strings.Contains(summary, fragment) {
			t.Errorf("summary is missing %q", fragment)
		}
	}
}

func TestFormatSummaryFallsBackToChunks(t *testing.T) {
	lot := "LOT 2"
	response := &Response{
		Question:       "Quelle isolation ?",
		DocumentName:   "cctp.pdf",
		ChunksReturned: 1,
		Chunks: []ChunkResult{
			{ChunkID: 1, Lot: &lot, Text: "Contenu de la section.", SimilarityScore: 0.75},
		},
	}

	summary := FormatSummary(response)
	if !strings.Contains(summary, "Section 1 (similarité: 75.00%)") {
		t.Errorf("summary = %q", summary)
	}
	if !strings.Contains(summary, "Lot : LOT 2") {
		t.Error("summary should show the chunk's lot")
	}
}

func TestBestChunk(t *testing.T) {
	if got := BestChunk(&Response{}); got != nil {
		t.Error("no chunks should give no best chunk")
	}

	response := &Response{
		Chunks: []ChunkResult{
			{ChunkID: 1, SimilarityScore: 0.5},
			{ChunkID: 2, SimilarityScore: 0.9},
			{ChunkID: 3, SimilarityScore: 0.7},
		},
	}

	best := BestChunk(response)
	if best == nil || best.ChunkID != 2 {
		t.Errorf("BestChunk() = %+v, want chunk 2", best)
	}
}

func TestConfidenceForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.95, retrieval.ConfidenceHigh},
		{0.8, retrieval.ConfidenceHigh},
		{0.79, retrieval.ConfidenceMedium},
		{0.6, retrieval.ConfidenceMedium},
		{0.59, retrieval.ConfidenceLow},
		{0, retrieval.ConfidenceLow},
	}

	for _, tt := range tests {
		if got := ConfidenceForScore(tt.score); got != tt.want {
			t.Errorf("ConfidenceForScore(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestRound4(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.123456, 0.1235},
		{0.1, 0.1},
		{-0.123456, -0.1235},
		{0, 0},
	}

	for _, tt := range tests {
		if got := round4(tt.in); got != tt.want {
			t.Errorf("round4(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
