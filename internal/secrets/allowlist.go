package secrets

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

var (
	// ErrInvalidRegex indicates an allowlist pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")
	// ErrInvalidTOML indicates the allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)

// Allowlist holds content patterns that are never treated as secrets.
type Allowlist struct {
	Regexes   []string
	StopWords []string
}

// LoadAllowlist reads a gitleaks-style TOML file:
//
//	[allowlist]
//	regexes = ['''example-[a-z]+''']
//	stopwords = ["dummy"]
//
// A missing file yields an empty allowlist.
func LoadAllowlist(path string) (*Allowlist, error) {
	if path == "" {
		return &Allowlist{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &Allowlist{}, nil
		}
		return nil, err
	}

	var file struct {
		Allowlist struct {
			Regexes   []string `toml:"regexes"`
			StopWords []string `toml:"stopwords"`
		} `toml:"allowlist"`
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}
	for _, pattern := range file.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: %q in %s: %v", ErrInvalidRegex, pattern, path, err)
		}
	}
	return &Allowlist{Regexes: file.Allowlist.Regexes, StopWords: file.Allowlist.StopWords}, nil
}

// Empty reports whether the allowlist has no entries.
func (a *Allowlist) Empty() bool {
	return a == nil || (len(a.Regexes) == 0 && len(a.StopWords) == 0)
}
