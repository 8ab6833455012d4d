// Package extraction pulls structured tender data out of a document's text
// with an LLM and merges the per-chunk results into a single record.
package extraction

import "strings"

// maxChunkTokens keeps each extraction call comfortably inside the model's
// context window. One token is estimated at four characters.
const maxChunkTokens = 3000

// ChunkText splits text into pieces that each fit an extraction call.
// It cuts on paragraph boundaries where possible, falling back to sentence
// boundaries for paragraphs that are too long on their own.
func ChunkText(text string) []string {
	maxChars := maxChunkTokens * 4

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if current.Len()+len(paragraph)+2 > maxChars {
			flush()
		}

		if len(paragraph) > maxChars {
			for _, sentence := range splitSentences(paragraph) {
				if current.Len()+len(sentence)+2 > maxChars {
					flush()
				}
				if current.Len() > 0 {
					current.WriteString(" ")
				}
				current.WriteString(sentence)
			}
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}
	flush()

	return chunks
}

func splitSentences(paragraph string) []string {
	parts := strings.Split(paragraph, ". ")

	sentences := make([]string, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i < len(parts)-1 && !strings.HasSuffix(part, ".") {
			part += "."
		}
		sentences = append(sentences, part)
	}

	return sentences
}
