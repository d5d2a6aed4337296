package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() string {
	var b strings.Builder
	for p := 0; p < 12; p++ {
		for s := 0; s < 6; s++ {
			b.WriteString("Vector stores keep embeddings close to the text they came from. ")
		}
		b.WriteString("\n")
		b.WriteString("A second line in the paragraph carries a little more context.")
		b.WriteString("\n\n")
	}
	b.WriteString(strings.Repeat("x", 1300)) // no separators at all
	return b.String()
}

func reconstruct(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(string([]rune(c.Text)[c.Overlap:]))
	}
	return b.String()
}

func TestSplit_Coverage(t *testing.T) {
	inputs := map[string]string{
		"document":   sampleDocument(),
		"unicode":    strings.Repeat("向量索引管理系统。", 200),
		"words only": strings.Repeat("lorem ipsum dolor ", 150),
	}
	for name, text := range inputs {
		t.Run(name, func(t *testing.T) {
			chunks, err := Split(text, DefaultConfig())
			require.NoError(t, err)
			require.NotEmpty(t, chunks)
			assert.Equal(t, text, reconstruct(chunks))
		})
	}
}

func TestSplit_SizeBound(t *testing.T) {
	configs := []Config{
		DefaultConfig(),
		{Strategy: StrategyRecursive, MaxSize: 40, Overlap: 10, Separators: DefaultSeparators},
		{Strategy: StrategyRecursive, MaxSize: 7, Overlap: 0, Separators: DefaultSeparators},
		{Strategy: StrategyRecursive, MaxSize: 100, Overlap: 99, Separators: DefaultSeparators},
	}
	text := sampleDocument()
	for _, cfg := range configs {
		chunks, err := Split(text, cfg)
		require.NoError(t, err)
		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), cfg.MaxSize)
		}
		assert.Equal(t, text, reconstruct(chunks))
	}
}

func TestSplit_IndexContinuity(t *testing.T) {
	chunks, err := Split(sampleDocument(), DefaultConfig())
	require.NoError(t, err)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestSplit_Overlap(t *testing.T) {
	cfg := Config{Strategy: StrategyRecursive, MaxSize: 60, Overlap: 12, Separators: DefaultSeparators}
	chunks, err := Split(sampleDocument(), cfg)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	assert.Zero(t, chunks[0].Overlap)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)[chunks[i-1].Overlap:]
		prefix := []rune(chunks[i].Text)[:chunks[i].Overlap]
		assert.Equal(t, string(prev[len(prev)-len(prefix):]), string(prefix))
		assert.Equal(t, min(12, len(prev)), chunks[i].Overlap)
	}
}

func TestSplit_EdgeCases(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		chunks, err := Split("", DefaultConfig())
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("whitespace only", func(t *testing.T) {
		chunks, err := Split(" \n\n\t  ", DefaultConfig())
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("short text is one chunk", func(t *testing.T) {
		chunks, err := Split("A short note.", DefaultConfig())
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, Chunk{Text: "A short note.", Index: 0}, chunks[0])
	})

	t.Run("exactly max size", func(t *testing.T) {
		text := strings.Repeat("a", DefaultMaxSize)
		chunks, err := Split(text, DefaultConfig())
		require.NoError(t, err)
		require.Len(t, chunks, 1)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"unknown strategy", Config{Strategy: "semantic", MaxSize: 10}, true},
		{"zero size", Config{Strategy: StrategyRecursive}, true},
		{"overlap too large", Config{Strategy: StrategyRecursive, MaxSize: 10, Overlap: 10}, true},
		{"negative overlap", Config{Strategy: StrategyRecursive, MaxSize: 10, Overlap: -1}, true},
		{"empty separator", Config{Strategy: StrategyRecursive, MaxSize: 10, Separators: []string{""}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, StrategyRecursive, cfg.Strategy)
	assert.Equal(t, DefaultMaxSize, cfg.MaxSize)
	assert.Equal(t, DefaultSeparators, cfg.Separators)
}

func TestSplit_Markdown(t *testing.T) {
	doc := "# Title\n\nIntro paragraph.\n\n## Section A\n\n" +
		strings.Repeat("Section A talks about chunking in some detail. ", 30) +
		"\n\n## Section B\n\nShort closing words.\n"

	cfg := DefaultConfig()
	cfg.Strategy = StrategyMarkdown
	cfg.MaxSize = 200
	cfg.Overlap = 20

	chunks, err := Split(doc, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), cfg.MaxSize)
	}
}

func TestSplit_MarkdownKeepsStructure(t *testing.T) {
	doc := "# Guide\n\n## Install\n\nRun the installer.\n\n```go\nfmt.Println(\"hi\")\n```\n\n## Usage\n\nShort closing words.\n"

	cfg := DefaultConfig()
	cfg.Strategy = StrategyMarkdown
	cfg.MaxSize = 300
	cfg.Overlap = 0

	chunks, err := Split(doc, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var joined strings.Builder
	var closing string
	for _, c := range chunks {
		joined.WriteString(c.Text)
		if strings.Contains(c.Text, "Short closing words.") {
			closing = c.Text
		}
	}
	assert.Contains(t, closing, "## Usage")
	assert.Contains(t, joined.String(), `fmt.Println("hi")`)
	assert.Contains(t, joined.String(), "Run the installer.")
}
