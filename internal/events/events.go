// Package events publishes lifecycle notifications over NATS.
//
// Subjects are <prefix>.<type>, for example:
//
//	vectord.ingested
//	vectord.file.deleted
//	vectord.index.deleted
//	vectord.project.deleted
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Type names an event and is the subject suffix it is published under.
type Type string

const (
	TypeIngested       Type = "ingested"
	TypeFileDeleted    Type = "file.deleted"
	TypeIndexDeleted   Type = "index.deleted"
	TypeProjectDeleted Type = "project.deleted"
)

// DefaultSubjectPrefix is used when Config.SubjectPrefix is empty.
const DefaultSubjectPrefix = "vectord"

// Event is the JSON payload published for every notification.
type Event struct {
	Type       Type      `json:"type"`
	OwnerID    string    `json:"ownerId"`
	ProjectID  string    `json:"projectId,omitempty"`
	IndexID    string    `json:"indexId,omitempty"`
	IndexName  string    `json:"indexName,omitempty"`
	FileID     string    `json:"fileId,omitempty"`
	FileName   string    `json:"fileName,omitempty"`
	ChunkCount int       `json:"chunkCount,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher sends events. Publishing is best effort: callers log failures
// and carry on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Config selects and configures the publisher.
type Config struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// New returns a NATS publisher when enabled and a no-op otherwise.
func New(cfg Config, logger *zap.Logger) (Publisher, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("vectord"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	logger.Info("connected to NATS", zap.String("url", url))
	return NewNATSPublisher(nc, cfg.SubjectPrefix, logger), nil
}

// NATSPublisher publishes events on a NATS connection it owns.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(t Type) string {
	return p.prefix + "." + string(t)
}

// Publish marshals e and publishes it.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(p.Subject(e.Type), data); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Type, err)
	}
	p.logger.Debug("event published", zap.String("type", string(e.Type)), zap.String("file_id", e.FileID))
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close()                               {}
