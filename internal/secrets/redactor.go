package secrets

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
	"go.uber.org/zap"
)

// Finding is one detected secret.
type Finding struct {
	RuleID string
	Line   int
	Match  string
}

// Result is the outcome of a redaction pass.
type Result struct {
	Content    string
	Findings   []Finding
	RuleCounts map[string]int
	Duration   time.Duration
}

// Redactor scrubs secrets from text.
type Redactor interface {
	Redact(ctx context.Context, content string) (Result, error)
}

// Config enables redaction and points at an optional allowlist file.
type Config struct {
	Enabled       bool   `koanf:"redact_secrets"`
	AllowlistPath string `koanf:"allowlist_path"`
}

// New returns a gitleaks redactor when enabled and a pass-through otherwise.
func New(cfg Config, logger *zap.Logger) (Redactor, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	allowlist, err := LoadAllowlist(cfg.AllowlistPath)
	if err != nil {
		return nil, fmt.Errorf("loading allowlist: %w", err)
	}
	return NewGitleaks(allowlist, logger), nil
}

// Gitleaks redacts using the default gitleaks rule set.
type Gitleaks struct {
	allowlist *Allowlist
	logger    *zap.Logger
}

// NewGitleaks builds a redactor. allowlist may be nil.
func NewGitleaks(allowlist *Allowlist, logger *zap.Logger) *Gitleaks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gitleaks{allowlist: allowlist, logger: logger}
}

// Detect returns every secret found in content.
func (g *Gitleaks) Detect(content string) ([]Finding, error) {
	// A detector accumulates findings internally, so each call gets its own.
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating detector: %w", err)
	}
	if !g.allowlist.Empty() {
		applyAllowlist(&detector.Config, g.allowlist)
	}

	raw := detector.DetectString(content)
	findings := make([]Finding, 0, len(raw))
	for _, f := range raw {
		if f.Secret == "" {
			continue
		}
		findings = append(findings, Finding{RuleID: f.RuleID, Line: f.StartLine, Match: f.Secret})
	}
	return findings, nil
}

// Redact replaces every detected secret with a marker.
func (g *Gitleaks) Redact(ctx context.Context, content string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	findings, err := g.Detect(content)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Content:    replaceFindings(content, findings),
		Findings:   findings,
		RuleCounts: make(map[string]int),
		Duration:   time.Since(start),
	}
	for _, f := range findings {
		res.RuleCounts[f.RuleID]++
	}
	if len(findings) > 0 {
		g.logger.Info("secrets redacted",
			zap.Int("count", len(findings)),
			zap.Any("rules", res.RuleCounts),
			zap.Duration("duration", res.Duration))
	}
	return res, nil
}

func applyAllowlist(cfg *gitleaksConfig.Config, allowlist *Allowlist) {
	global := &gitleaksConfig.Allowlist{Description: "vectord allowlist"}
	for _, pattern := range allowlist.Regexes {
		// Patterns were validated when the allowlist was loaded.
		re := regexp.MustCompile(pattern)
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	global.StopWords = append(global.StopWords, allowlist.StopWords...)
	cfg.Allowlists = append(cfg.Allowlists, global)
}

// replaceFindings swaps each secret for [REDACTED:rule:preview]. Longer
// matches go first so a secret that contains another is replaced whole.
func replaceFindings(content string, findings []Finding) string {
	if len(findings) == 0 {
		return content
	}
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i].Match) > len(sorted[j].Match) })

	for _, f := range sorted {
		marker := fmt.Sprintf("[REDACTED:%s:%s]", f.RuleID, preview(f.Match, 4))
		content = strings.ReplaceAll(content, f.Match, marker)
	}
	return content
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Nop returns content unchanged.
type Nop struct{}

func (Nop) Redact(_ context.Context, content string) (Result, error) {
	return Result{Content: content}, nil
}
