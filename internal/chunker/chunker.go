// Package chunker splits document text into overlapping chunks bounded by a
// maximum size.
//
// Sizes are measured in runes. With the recursive strategy every chunk
// after the first starts with up to Overlap runes copied from the end of
// its predecessor; Chunk.Overlap records how many, so stripping that prefix
// from each chunk and concatenating reproduces the input exactly.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Strategy names.
const (
	StrategyRecursive = "recursive"
	StrategyMarkdown  = "markdown"
)

// Defaults used by DefaultConfig.
const (
	DefaultMaxSize = 512
	DefaultOverlap = 50
)

// DefaultSeparators are tried in order: paragraph, line, sentence, word.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

// ErrInvalidConfig is returned for unusable chunking configuration.
var ErrInvalidConfig = errors.New("invalid chunker config")

// Config controls chunking.
type Config struct {
	Strategy   string   `koanf:"strategy" json:"strategy"`
	MaxSize    int      `koanf:"max_size" json:"maxSize"`
	Overlap    int      `koanf:"overlap" json:"overlap"`
	Separators []string `koanf:"separators" json:"separators"`
}

// DefaultConfig returns the recursive 512/50 configuration.
func DefaultConfig() Config {
	return Config{
		Strategy:   StrategyRecursive,
		MaxSize:    DefaultMaxSize,
		Overlap:    DefaultOverlap,
		Separators: append([]string(nil), DefaultSeparators...),
	}
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyRecursive
	}
	if c.MaxSize == 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.Separators == nil {
		c.Separators = append([]string(nil), DefaultSeparators...)
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyRecursive, StrategyMarkdown:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}
	if c.MaxSize <= 0 {
		return fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidConfig, c.MaxSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxSize {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidConfig, c.MaxSize, c.Overlap)
	}
	for _, sep := range c.Separators {
		if sep == "" {
			return fmt.Errorf("%w: empty separator", ErrInvalidConfig)
		}
	}
	return nil
}

// Chunk is one output segment.
type Chunk struct {
	Text    string
	Index   int
	Overlap int // leading runes repeated from the previous chunk
}

// Split chunks text according to cfg. Whitespace-only input yields no chunks.
func Split(text string, cfg Config) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimFunc(text, unicode.IsSpace) == "" {
		return nil, nil
	}

	if cfg.Strategy == StrategyMarkdown {
		return splitMarkdown(text, cfg)
	}
	return splitRecursive(text, cfg), nil
}

func splitRecursive(text string, cfg Config) []Chunk {
	if utf8.RuneCountInString(text) <= cfg.MaxSize {
		return []Chunk{{Text: text, Index: 0}}
	}

	// Leave room for the overlap prefix so no chunk exceeds MaxSize.
	budget := cfg.MaxSize - cfg.Overlap
	pieces := splitPieces(text, cfg.Separators, budget)
	merged := mergePieces(pieces, budget)

	chunks := make([]Chunk, 0, len(merged))
	for i, body := range merged {
		c := Chunk{Text: body, Index: i}
		if i > 0 && cfg.Overlap > 0 {
			prefix := tailRunes(merged[i-1], cfg.Overlap)
			c.Text = prefix + body
			c.Overlap = utf8.RuneCountInString(prefix)
		}
		chunks = append(chunks, c)
	}
	return chunks
}

// splitPieces breaks text into pieces of at most limit runes whose
// concatenation is text. Separators stay attached to the preceding piece.
func splitPieces(text string, separators []string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	for i, sep := range separators {
		if !strings.Contains(text, sep) {
			continue
		}
		var out []string
		for _, part := range strings.SplitAfter(text, sep) {
			if part == "" {
				continue
			}
			if utf8.RuneCountInString(part) <= limit {
				out = append(out, part)
				continue
			}
			out = append(out, splitPieces(part, separators[i+1:], limit)...)
		}
		return out
	}

	return hardSplit(text, limit)
}

func hardSplit(text string, limit int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/limit+1)
	for start := 0; start < len(runes); start += limit {
		end := min(start+limit, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

// mergePieces greedily joins adjacent pieces while the result fits in limit.
func mergePieces(pieces []string, limit int) []string {
	var (
		out     []string
		cur     strings.Builder
		curSize int
	)
	for _, p := range pieces {
		size := utf8.RuneCountInString(p)
		if curSize > 0 && curSize+size > limit {
			out = append(out, cur.String())
			cur.Reset()
			curSize = 0
		}
		cur.WriteString(p)
		curSize += size
	}
	if curSize > 0 {
		out = append(out, cur.String())
	}
	return out
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
