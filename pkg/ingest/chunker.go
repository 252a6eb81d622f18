package ingest

import (
	"regexp"
	"strings"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

var (
	paragraphRe = regexp.MustCompile(`\n\s*\n`)
	sentenceRe  = regexp.MustCompile(`([.!?]+)\s+`)
)

// Chunker splits document content into retrieval-sized chunks. Size and
// Overlap are in runes. Splitting is paragraph-first: paragraphs are packed
// into chunks up to Size, and paragraphs longer than Size are split on
// sentence boundaries.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Split returns the chunks of text in document order. Consecutive chunks
// share up to Overlap runes of trailing context.
func (c *Chunker) Split(text string) []string {
	paragraphs := paragraphRe.Split(text, -1)

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		chunk := current.String()
		chunks = append(chunks, chunk)
		overlap := overlapText(chunk, c.Overlap)
		current.Reset()
		current.WriteString(overlap)
		currentLen = len([]rune(overlap))
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		paraLen := len([]rune(para))
		if paraLen > c.Size {
			for _, sentence := range splitSentences(para) {
				sentence = strings.TrimSpace(sentence)
				if sentence == "" {
					continue
				}
				sentenceLen := len([]rune(sentence))
				if currentLen+sentenceLen+1 > c.Size && currentLen > 0 {
					flush()
				}
				if currentLen > 0 {
					current.WriteString(" ")
					currentLen++
				}
				current.WriteString(sentence)
				currentLen += sentenceLen
			}
			continue
		}

		if currentLen+paraLen+2 > c.Size && currentLen > 0 {
			flush()
		}
		if currentLen > 0 {
			current.WriteString("\n\n")
			currentLen += 2
		}
		current.WriteString(para)
		currentLen += paraLen
	}

	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

func splitSentences(text string) []string {
	parts := sentenceRe.Split(text, -1)
	delimiters := sentenceRe.FindAllString(text, -1)

	var sentences []string
	for i, part := range parts {
		if part == "" {
			continue
		}
		sentence := part
		if i < len(delimiters) {
			sentence += strings.TrimSpace(delimiters[i])
		}
		sentences = append(sentences, sentence)
	}
	return sentences
}

// overlapText returns up to overlapSize trailing runes of text, advanced to
// the next word boundary when one falls in the first half of the overlap.
func overlapText(text string, overlapSize int) string {
	if overlapSize == 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= overlapSize {
		return text
	}

	overlap := string(runes[len(runes)-overlapSize:])
	spaceIdx := strings.Index(overlap, " ")
	if spaceIdx > 0 && spaceIdx < len(overlap)/2 {
		overlap = overlap[spaceIdx+1:]
	}
	return overlap
}
