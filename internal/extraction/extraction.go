package extraction

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MIME types with dedicated handling.
const (
	MIMEDocx     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEPlain    = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMEHTML     = "text/html"
	MIMEJSON     = "application/json"
	MIMECSV      = "text/csv"
)

var (
	// ErrUnsupportedFormat is returned for MIME types no extractor handles.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrCorruptDocument is returned when a document cannot be parsed.
	ErrCorruptDocument = errors.New("corrupt document")
)

// Document is the extracted text plus what was learned while extracting it.
type Document struct {
	Text     string
	MimeType string
	Title    string
}

// Extractor converts one family of formats to text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (Document, error)
	MIMETypes() []string
}

// Registry dispatches on MIME type.
type Registry struct {
	byMIME map[string]Extractor
}

// NewRegistry returns a registry with the built-in extractors.
func NewRegistry() *Registry {
	r := &Registry{byMIME: make(map[string]Extractor)}
	r.Register(Docx{})
	r.Register(HTML{})
	r.Register(PlainText{})
	return r
}

// Register adds e for every MIME type it reports, replacing earlier entries.
func (r *Registry) Register(e Extractor) {
	for _, m := range e.MIMETypes() {
		r.byMIME[m] = e
	}
}

// Supports reports whether mimeType has an extractor.
func (r *Registry) Supports(mimeType string) bool {
	_, ok := r.byMIME[baseMIME(mimeType)]
	return ok
}

// Extract detects the type of data and extracts its text.
func (r *Registry) Extract(ctx context.Context, data []byte, fileName, mimeType string) (Document, error) {
	mimeType = DetectMIME(fileName, mimeType, data)
	e, ok := r.byMIME[mimeType]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}
	doc, err := e.Extract(ctx, data)
	if err != nil {
		return Document{}, err
	}
	doc.MimeType = mimeType
	return doc, nil
}

var extensionMIME = map[string]string{
	".docx":     MIMEDocx,
	".txt":      MIMEPlain,
	".text":     MIMEPlain,
	".log":      MIMEPlain,
	".md":       MIMEMarkdown,
	".markdown": MIMEMarkdown,
	".html":     MIMEHTML,
	".htm":      MIMEHTML,
	".json":     MIMEJSON,
	".csv":      MIMECSV,
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".ts":       "text/typescript",
	".js":       "text/javascript",
	".sql":      "text/x-sql",
	".xml":      "application/xml",
}

// DetectMIME picks the MIME type for an upload. A specific declared type
// wins; generic ones (empty or application/octet-stream) fall back to the
// file extension and then to content sniffing.
func DetectMIME(fileName, declared string, data []byte) string {
	if m := baseMIME(declared); m != "" && m != "application/octet-stream" {
		return m
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if m, ok := extensionMIME[ext]; ok {
		return m
	}
	if m := baseMIME(mime.TypeByExtension(ext)); m != "" {
		return m
	}
	sniffed := baseMIME(http.DetectContentType(data))
	if sniffed == "application/zip" && looksLikeDocx(data) {
		return MIMEDocx
	}
	if sniffed == "application/octet-stream" && utf8.Valid(data) {
		return MIMEPlain
	}
	return sniffed
}

func baseMIME(m string) string {
	if m == "" {
		return ""
	}
	base, _, err := mime.ParseMediaType(m)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(m))
	}
	return base
}
