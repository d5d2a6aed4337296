package vectorstore

import (
	"strconv"
	"strings"
	"time"
)

// Recognized metadata keys as stored alongside each vector.
const (
	KeyID          = "id"
	KeyText        = "text"
	KeySource      = "source"
	KeyChunkIndex  = "chunkIndex"
	KeyTotalChunks = "totalChunks"
	KeyCreatedAt   = "createdAt"
	KeyFileSize    = "fileSize"

	// CustomPrefix namespaces caller-supplied keys so they never shadow recognized ones.
	CustomPrefix = "custom."
)

// Metadata is the typed record stored with every vector.
type Metadata struct {
	ID          string            `json:"id"`
	Text        string            `json:"text"`
	Source      string            `json:"source"`
	ChunkIndex  int               `json:"chunkIndex"`
	TotalChunks int               `json:"totalChunks"`
	CreatedAt   time.Time         `json:"createdAt"`
	FileSize    int64             `json:"fileSize,omitempty"`
	Custom      map[string]string `json:"custom,omitempty"`
}

// Flatten encodes the record as string pairs. Custom keys get CustomPrefix.
func (m Metadata) Flatten() map[string]string {
	out := make(map[string]string, 7+len(m.Custom))
	out[KeyID] = m.ID
	out[KeyText] = m.Text
	out[KeySource] = m.Source
	out[KeyChunkIndex] = strconv.Itoa(m.ChunkIndex)
	out[KeyTotalChunks] = strconv.Itoa(m.TotalChunks)
	if !m.CreatedAt.IsZero() {
		out[KeyCreatedAt] = m.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if m.FileSize > 0 {
		out[KeyFileSize] = strconv.FormatInt(m.FileSize, 10)
	}
	for k, v := range m.Custom {
		out[CustomPrefix+k] = v
	}
	return out
}

// ParseMetadata reverses Flatten. Malformed numbers decode as zero and
// unknown unprefixed keys are dropped.
func ParseMetadata(flat map[string]string) Metadata {
	m := Metadata{
		ID:     flat[KeyID],
		Text:   flat[KeyText],
		Source: flat[KeySource],
	}
	m.ChunkIndex, _ = strconv.Atoi(flat[KeyChunkIndex])
	m.TotalChunks, _ = strconv.Atoi(flat[KeyTotalChunks])
	if ts := flat[KeyCreatedAt]; ts != "" {
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	}
	if fs := flat[KeyFileSize]; fs != "" {
		m.FileSize, _ = strconv.ParseInt(fs, 10, 64)
	}
	for k, v := range flat {
		if name, ok := strings.CutPrefix(k, CustomPrefix); ok {
			if m.Custom == nil {
				m.Custom = make(map[string]string)
			}
			m.Custom[name] = v
		}
	}
	return m
}
