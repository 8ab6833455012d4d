// Package chunker splits CCTP documents (Cahier des Clauses Techniques
// Particulières) along their detected structure. Chunks follow lot and
// article boundaries rather than a fixed length, so that each one carries
// usable citation metadata.
package chunker

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Chunk is one structural section of a document. Lot and Article are empty
// and PageNumber is zero when the corresponding element was not detected.
type Chunk struct {
	Text       string
	Lot        string
	Article    string
	PageNumber int
}

type divisionKind int

const (
	divisionLot divisionKind = iota
	divisionArticle
)

type divisionPoint struct {
	pos   int
	kind  divisionKind
	title string
}

// Parser detects the hierarchical structure of CCTP documents.
type Parser struct {
	lotPattern     *regexp.Regexp
	articlePattern *regexp.Regexp
	pagePattern    *regexp.Regexp
	spacePattern   *regexp.Regexp
	charPattern    *regexp.Regexp
}

func NewParser() *Parser {
	return &Parser{
		// "LOT N°3 - Menuiseries extérieures", "Lot 12 — Plomberie", ...
		lotPattern: regexp.MustCompile(`(?im)(lot\s*n?°?\s*\d+.*?(?:[-–—].*?)?)\s*\n`),
		// "ARTICLE 2.1 - Matériaux", "Article 3"...
		articlePattern: regexp.MustCompile(`(?im)(article\s*\d+(?:\.\d+)*(?:[-–—].*?)?)\s*\n`),
		// Trailing page markers: "page 12", "12", "12 / 48".
		pagePattern:  regexp.MustCompile(`(?i)^(?:page\s*)?(\d+)\s*(?:/\s*\d+)?\s*$`),
		spacePattern: regexp.MustCompile(`\s+`),
		charPattern:  regexp.MustCompile(`[^\p{L}\p{N}_\s.,;:!?()\[\]{}"'«»“”‘’%°/\\\-–—]`),
	}
}

// Split cuts the text at every detected lot or article heading. Text before
// the first heading becomes a leading chunk; text without any detected
// structure becomes a single chunk.
func (p *Parser) Split(text string) []Chunk {
	points := p.divisionPoints(text)

	if len(points) == 0 {
		return []Chunk{{
			Text:       strings.TrimSpace(text),
			PageNumber: p.extractPageNumber(text),
		}}
	}

	var chunks []Chunk
	var currentLot, currentArticle string

	for i, point := range points {
		end := len(text)
		if i+1 < len(points) {
			end = points[i+1].pos
		}

		chunkText := strings.TrimSpace(text[point.pos:end])
		if chunkText == "" {
			continue
		}

		// A new lot resets the article context.
		switch point.kind {
		case divisionLot:
			currentLot = point.title
			currentArticle = ""
		case divisionArticle:
			currentArticle = point.title
		}

		chunks = append(chunks, Chunk{
			Text:       chunkText,
			Lot:        currentLot,
			Article:    currentArticle,
			PageNumber: p.extractPageNumber(chunkText),
		})
	}

	if points[0].pos > 0 {
		intro := strings.TrimSpace(text[:points[0].pos])
		if intro != "" {
			chunks = append([]Chunk{{
				Text:       intro,
				PageNumber: p.extractPageNumber(intro),
			}}, chunks...)
		}
	}

	return chunks
}

func (p *Parser) divisionPoints(text string) []divisionPoint {
	var points []divisionPoint

	for _, m := range p.lotPattern.FindAllStringSubmatchIndex(text, -1) {
		points = append(points, divisionPoint{
			pos:   m[0],
			kind:  divisionLot,
			title: strings.TrimSpace(text[m[2]:m[3]]),
		})
	}

	for _, m := range p.articlePattern.FindAllStringSubmatchIndex(text, -1) {
		points = append(points, divisionPoint{
			pos:   m[0],
			kind:  divisionArticle,
			title: strings.TrimSpace(text[m[2]:m[3]]),
		})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].pos < points[j].pos })

	return points
}

// extractPageNumber scans the last five lines for a page marker.
func (p *Parser) extractPageNumber(text string) int {
	lines := strings.Split(text, "\n")

	start := len(lines) - 5
	if start < 0 {
		start = 0
	}

	for i := len(lines) - 1; i >= start; i-- {
		m := p.pagePattern.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			continue
		}

		page, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		return page
	}

	return 0
}

// Clean normalizes chunk text for storage: whitespace runs collapse to a
// single space and characters outside the allowed set are dropped.
func (p *Parser) Clean(text string) string {
	text = p.spacePattern.ReplaceAllString(text, " ")
	text = p.charPattern.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
