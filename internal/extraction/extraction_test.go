package extraction

import (
	"math"
	"strings"
	"testing"

	"docqa/models"
)

func TestChunkTextShortPassesThrough(t *testing.T) {
	text := "Un texte court."
	chunks := ChunkText(text)

	if len(chunks) != 1 || chunks[0] != text {
		t.Errorf("ChunkText() = %v, want the text unchanged", chunks)
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if chunks := ChunkText("   \n  "); chunks != nil {
		t.Errorf("blank text should yield no chunks, got %v", chunks)
	}
}

func TestChunkTextSplitsOnParagraphs(t *testing.T) {
	maxChars := maxChunkTokens * 4

	paragraph := strings.Repeat("mot ", 2000) // ~8000 chars, fits alone
	text := strings.TrimSpace(paragraph) + "\n\n" + strings.TrimSpace(paragraph)

	chunks := ChunkText(text)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > maxChars {
			t.Errorf("chunk %d has %d chars, budget is %d", i, len(chunk), maxChars)
		}
		if strings.TrimSpace(chunk) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestChunkTextSplitsOversizedParagraphBySentence(t *testing.T) {
	maxChars := maxChunkTokens * 4

	sentence := strings.Repeat("mot ", 500)
	text := strings.TrimSpace(strings.Repeat(sentence+". ", 10))

	chunks := ChunkText(text)
	if len(chunks) < 2 {
		t.Fatalf("expected the paragraph to split, got %d chunk(s)", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > maxChars {
			t.Errorf("chunk %d has %d chars, budget is %d", i, len(chunk), maxChars)
		}
	}
}

func TestMerge(t *testing.T) {
	results := []*Result{
		{
			Lot:        "LOT 3",
			SubLot:     "Plomberie sanitaire",
			Materials:  []string{"cuivre", "PVC"},
			Quantities: []models.Quantity{{Label: "Tube cuivre", Qty: 50, Unit: "ml"}},
			Location:   "Bâtiment A",
		},
		nil,
		{
			Lot:       "LOT 3",
			Materials: []string{"PVC", "laiton"},
			Equipment: []string{"chauffe-eau"},
			Quantities: []models.Quantity{
				{Label: "tube cuivre", Qty: 50, Unit: "ML"},
				{Label: "Chauffe-eau", Qty: 2, Unit: "u"},
			},
			Location: "Bâtiment B",
		},
		{
			Lot:      "LOT 7",
			Location: "Bâtiment A",
		},
	}

	merged := Merge(results)
	if merged == nil {
		t.Fatal("Merge() returned nil")
	}

	// Most frequent value wins.
	if merged.Lot != "LOT 3" {
		t.Errorf("lot = %q, want LOT 3", merged.Lot)
	}
	if merged.Location != "Bâtiment A" {
		t.Errorf("location = %q, want Bâtiment A", merged.Location)
	}
	if merged.SubLot != "Plomberie sanitaire" {
		t.Errorf("sub lot = %q", merged.SubLot)
	}

	// Lists deduplicate and sort.
	wantMaterials := []string{"PVC", "cuivre", "laiton"}
	if len(merged.Materials) != len(wantMaterials) {
		t.Fatalf("materials = %v, want %v", merged.Materials, wantMaterials)
	}
	for i, m := range wantMaterials {
		if merged.Materials[i] != m {
			t.Errorf("materials = %v, want %v", merged.Materials, wantMaterials)
			break
		}
	}

	// Quantities deduplicate case-insensitively, keeping first appearance.
	if len(merged.Quantities) != 2 {
		t.Fatalf("quantities = %v, want 2 entries", merged.Quantities)
	}
	if merged.Quantities[0].Label != "Tube cuivre" || merged.Quantities[1].Label != "Chauffe-eau" {
		t.Errorf("quantities = %v", merged.Quantities)
	}
}

func TestMergeEmpty(t *testing.T) {
	if Merge(nil) != nil {
		t.Error("Merge(nil) should be nil")
	}
}

func TestMergeTieKeepsFirstSeen(t *testing.T) {
	merged := Merge([]*Result{{Lot: "LOT 1"}, {Lot: "LOT 2"}})
	if merged.Lot != "LOT 1" {
		t.Errorf("tie should keep the first value seen, got %q", merged.Lot)
	}
}

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   float64
	}{
		{
			name:   "nil result",
			result: nil,
			want:   0,
		},
		{
			name:   "nothing filled",
			result: &Result{},
			want:   0,
		},
		{
			name: "everything filled",
			result: &Result{
				Lot:        "LOT 1",
				SubLot:     "Cloisons",
				Materials:  []string{"placo"},
				Equipment:  []string{"rails"},
				Quantities: []models.Quantity{{Label: "cloison", Qty: 120, Unit: "m²"}},
				Location:   "R+1",
			},
			want: 1,
		},
		{
			name:   "lot only",
			result: &Result{Lot: "LOT 1"},
			want:   0.2,
		},
		{
			name: "lot and materials and quantities",
			result: &Result{
				Lot:        "LOT 1",
				Materials:  []string{"placo"},
				Quantities: []models.Quantity{{Label: "cloison", Qty: 120, Unit: "m²"}},
			},
			want: 0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConfidenceScore(tt.result)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ConfidenceScore() = %v, want %v", got, tt.want)
			}
		})
	}
}
