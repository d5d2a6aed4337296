package secrets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleKey = "sk-proj-abcdefghijklmnopqrstuvwxyz1234567890123456"

func TestReplaceFindings(t *testing.T) {
	content := "key=" + sampleKey + "\nagain " + sampleKey + "\nshort=abcd1234"
	findings := []Finding{
		{RuleID: "generic", Line: 3, Match: "abcd1234"},
		{RuleID: "openai-api-key", Line: 1, Match: sampleKey},
	}

	got := replaceFindings(content, findings)
	assert.NotContains(t, got, sampleKey)
	assert.Equal(t, 2, strings.Count(got, "[REDACTED:openai-api-key:sk-p]"))
	assert.Contains(t, got, "short=[REDACTED:generic:abcd]")
	assert.Equal(t, 3, strings.Count(got, "\n")+1, "line structure kept")
}

func TestGitleaks_Redact(t *testing.T) {
	r := NewGitleaks(nil, nil)

	res, err := r.Redact(context.Background(), "plain prose with nothing sensitive in it")
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
	assert.Equal(t, "plain prose with nothing sensitive in it", res.Content)

	res, err = r.Redact(context.Background(), `const key = "`+sampleKey+`"`)
	require.NoError(t, err)
	if len(res.Findings) == 0 {
		t.Skip("gitleaks did not flag the sample key")
	}
	assert.NotContains(t, res.Content, sampleKey)
	assert.Contains(t, res.Content, "[REDACTED:")
	assert.Equal(t, len(res.Findings), sumCounts(res.RuleCounts))
}

func TestGitleaks_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGitleaks(nil, nil).Redact(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadAllowlist(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is empty", func(t *testing.T) {
		a, err := LoadAllowlist(filepath.Join(dir, "nope.toml"))
		require.NoError(t, err)
		assert.True(t, a.Empty())
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "ok.toml")
		require.NoError(t, os.WriteFile(path, []byte("[allowlist]\nregexes = ['''demo-[a-z]+''']\nstopwords = [\"dummy\"]\n"), 0o600))
		a, err := LoadAllowlist(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"demo-[a-z]+"}, a.Regexes)
		assert.Equal(t, []string{"dummy"}, a.StopWords)
	})

	t.Run("bad regex", func(t *testing.T) {
		path := filepath.Join(dir, "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("[allowlist]\nregexes = ['''(unclosed''']\n"), 0o600))
		_, err := LoadAllowlist(path)
		assert.ErrorIs(t, err, ErrInvalidRegex)
	})

	t.Run("bad toml", func(t *testing.T) {
		path := filepath.Join(dir, "broken.toml")
		require.NoError(t, os.WriteFile(path, []byte("[allowlist\n"), 0o600))
		_, err := LoadAllowlist(path)
		assert.ErrorIs(t, err, ErrInvalidTOML)
	})
}

func TestNew(t *testing.T) {
	r, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, r)

	res, err := r.Redact(context.Background(), sampleKey)
	require.NoError(t, err)
	assert.Equal(t, sampleKey, res.Content)

	r, err = New(Config{Enabled: true}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Gitleaks{}, r)
}

func sumCounts(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
