package metadata

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrIndexNameTaken is returned when an index name is already in use.
	ErrIndexNameTaken = errors.New("index name already exists")
	// ErrInvalidArgument is returned for malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Project is the root of the ownership hierarchy.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerUserID string    `json:"ownerUserId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	IndexCount  int       `json:"indexCount"`
}

// ProjectDetail is a project together with its indexes.
type ProjectDetail struct {
	Project
	Indexes []Index `json:"indexes"`
}

// ProjectUpdate carries the fields to change; nil fields are left alone.
type ProjectUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Index is a named vector collection inside a project.
type Index struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Dimension int       `json:"dimension"`
	ProjectID string    `json:"projectId"`
	CreatedAt time.Time `json:"createdAt"`
	FileCount int       `json:"fileCount"`
}

// File is one ingested document or text blob.
type File struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimeType"`
	IndexID    string    `json:"indexId"`
	CreatedAt  time.Time `json:"createdAt"`
	ChunkCount int       `json:"chunkCount"`
}

// FileDetail is a file with its parent index and ordered chunks.
type FileDetail struct {
	File
	Index  Index   `json:"index"`
	Chunks []Chunk `json:"chunks"`
}

// Chunk is a text segment joined to exactly one vector by VectorID.
type Chunk struct {
	ID         string            `json:"id"`
	FileID     string            `json:"fileId"`
	ChunkIndex int               `json:"chunkIndex"`
	Text       string            `json:"text"`
	VectorID   string            `json:"vectorId"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// FileRef identifies a file in search results.
type FileRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChunkRef is the enrichment record for a vector hit.
type ChunkRef struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	ChunkIndex int               `json:"chunkIndex"`
	File       FileRef           `json:"file"`
	Metadata   map[string]string `json:"-"`
}

// APIToken is a hashed bearer credential. The raw token is never stored.
type APIToken struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	TokenHash  string     `json:"-"`
	UserID     string     `json:"userId"`
	IsActive   bool       `json:"isActive"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
