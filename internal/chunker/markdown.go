package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// splitMarkdown splits along markdown structure, then re-splits any piece
// that is still too large with the recursive strategy.
func splitMarkdown(text string, cfg Config) ([]Chunk, error) {
	seps := cfg.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	splitter := textsplitter.NewMarkdownTextSplitter(
		textsplitter.WithChunkSize(cfg.MaxSize),
		textsplitter.WithChunkOverlap(cfg.Overlap),
		textsplitter.WithCodeBlocks(true),
		textsplitter.WithSecondSplitter(textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.MaxSize),
			textsplitter.WithChunkOverlap(cfg.Overlap),
			textsplitter.WithSeparators(seps),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		)),
	)
	parts, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("markdown split: %w", err)
	}

	var chunks []Chunk
	for _, part := range parts {
		if strings.TrimFunc(part, unicode.IsSpace) == "" {
			continue
		}
		if utf8.RuneCountInString(part) <= cfg.MaxSize {
			chunks = append(chunks, Chunk{Text: part, Index: len(chunks)})
			continue
		}
		for _, sub := range splitRecursive(part, cfg) {
			sub.Index = len(chunks)
			chunks = append(chunks, sub)
		}
	}
	return chunks, nil
}
