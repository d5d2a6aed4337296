package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VECTORD_"

const maxConfigFileSize = 1024 * 1024

// DefaultPath returns ~/.config/vectord/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "vectord", "config.yaml"), nil
}

// LoadDotEnv loads variables from .env files that exist. Variables already
// set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at
// configPath (default path when empty, skipped when missing) and VECTORD_*
// environment variables, then resolves paths and validates.
//
// Environment names map onto keys by matching the known key paths:
//
//	VECTORD_SERVER_PORT            -> server.port
//	VECTORD_VECTORSTORE_QDRANT_HOST -> vectorstore.qdrant.host
//	VECTORD_INGEST_REDACT_SECRETS  -> ingest.redact_secrets
//
// The config file must be owner-only (0600 or 0400) and at most 1MB.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}
	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyMapper()), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Chunking.ApplyDefaults()
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// readConfigFile returns nil content when the file does not exist. The
// file is opened once and checked through its descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFile(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}
	return io.ReadAll(io.LimitReader(f, maxConfigFileSize))
}

func validateConfigFile(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", info.Name())
	}
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// envKeyMapper resolves VECTORD_A_B_C against the key paths of Config so
// that underscores inside field names survive. Unknown names fall back to
// splitting on the first underscore.
func envKeyMapper() func(string) string {
	known := make(map[string]string)
	for _, key := range keyPaths(reflect.TypeOf(Config{}), "") {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}
	return func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		if key, ok := known[name]; ok {
			return key
		}
		section, field, ok := strings.Cut(name, "_")
		if !ok {
			return name
		}
		return section + "." + field
	}
}

// keyPaths lists the dotted koanf paths of every leaf field in t.
func keyPaths(t reflect.Type, prefix string) []string {
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("koanf")
		if tag == "" || tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		ft := f.Type
		if opts == "squash" && ft.Kind() == reflect.Struct {
			out = append(out, keyPaths(ft, prefix)...)
			continue
		}
		path := prefix + name
		if ft.Kind() == reflect.Struct && !isLeafStruct(ft) {
			out = append(out, keyPaths(ft, path+".")...)
			continue
		}
		out = append(out, path)
	}
	return out
}

// isLeafStruct reports whether a struct decodes from a single value.
func isLeafStruct(t reflect.Type) bool {
	return t.PkgPath() == "time"
}
