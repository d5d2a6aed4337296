// Package journal records ingestion intents in a bbolt file so a crash or a
// failed metadata write between the vector upsert and the chunk insert can
// be found and repaired later.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// State of an intent.
type State string

const (
	StatePending  State = "pending"
	StateComplete State = "complete"
)

var validStates = map[State]bool{
	StatePending:  true,
	StateComplete: true,
}

var intentsBucket = []byte("intents")

var (
	// ErrNotFound is returned when no intent has the given id.
	ErrNotFound = errors.New("intent not found")
	// ErrInvalidIntent is returned for intents missing required fields.
	ErrInvalidIntent = errors.New("invalid intent")
)

// Intent describes the vectors one ingestion is about to write.
type Intent struct {
	ID        string    `json:"id"`
	IndexName string    `json:"indexName"`
	FileID    string    `json:"fileId"`
	VectorIDs []string  `json:"vectorIds"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
}

// Journal is a bbolt-backed intent log. It is safe for concurrent use.
type Journal struct {
	db     *bbolt.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens or creates the journal file at path.
func Open(path string, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("journal: creating directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("journal: opening %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(intentsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: creating bucket: %w", err)
	}

	j := &Journal{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
	pending, _ := j.Pending(context.Background(), 0)
	logger.Info("journal opened", zap.String("path", path), zap.Int("pending", len(pending)))
	return j, nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Begin records a pending intent. It must be durable before vectors are written.
func (j *Journal) Begin(_ context.Context, in Intent) (Intent, error) {
	if in.ID == "" || in.IndexName == "" || len(in.VectorIDs) == 0 {
		return Intent{}, fmt.Errorf("%w: id, index name and vector ids are required", ErrInvalidIntent)
	}
	now := j.now()
	in.State = StatePending
	in.CreatedAt, in.UpdatedAt = now, now
	return in, j.put(in)
}

// Complete marks the intent done.
func (j *Journal) Complete(_ context.Context, id string) error {
	return j.update(id, func(in *Intent) {
		in.State = StateComplete
		in.LastError = ""
	})
}

// RecordFailure notes a failed step without changing the state.
func (j *Journal) RecordFailure(_ context.Context, id string, cause error) error {
	return j.update(id, func(in *Intent) {
		in.Attempts++
		if cause != nil {
			in.LastError = cause.Error()
		}
	})
}

// Get returns one intent.
func (j *Journal) Get(_ context.Context, id string) (Intent, error) {
	var in Intent
	err := j.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(intentsBucket).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return decode(data, &in)
	})
	return in, err
}

// Remove deletes an intent. Removing a missing intent is not an error.
func (j *Journal) Remove(_ context.Context, id string) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(intentsBucket).Delete([]byte(id))
	})
}

// Pending returns pending intents last updated at least olderThan ago,
// oldest first.
func (j *Journal) Pending(_ context.Context, olderThan time.Duration) ([]Intent, error) {
	cutoff := j.now().Add(-olderThan)
	var out []Intent
	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(intentsBucket).ForEach(func(k, v []byte) error {
			var in Intent
			if err := decode(v, &in); err != nil {
				j.logger.Warn("journal: skipping unreadable intent", zap.ByteString("id", k), zap.Error(err))
				return nil
			}
			if in.State == StatePending && !in.UpdatedAt.After(cutoff) {
				out = append(out, in)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("journal: listing pending: %w", err)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

// Compact removes completed intents older than retain and returns how many
// were removed.
func (j *Journal) Compact(_ context.Context, retain time.Duration) (int, error) {
	cutoff := j.now().Add(-retain)
	removed := 0
	err := j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(intentsBucket)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var in Intent
			if err := decode(v, &in); err != nil {
				return nil
			}
			if in.State == StateComplete && in.UpdatedAt.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("journal: compacting: %w", err)
	}
	return removed, nil
}

func (j *Journal) put(in Intent) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("journal: encoding intent: %w", err)
	}
	return j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(intentsBucket).Put([]byte(in.ID), data)
	})
}

func (j *Journal) update(id string, fn func(*Intent)) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(intentsBucket)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		var in Intent
		if err := decode(data, &in); err != nil {
			return err
		}
		fn(&in)
		in.UpdatedAt = j.now()
		out, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("journal: encoding intent: %w", err)
		}
		return b.Put([]byte(id), out)
	})
}

func decode(data []byte, in *Intent) error {
	if err := json.Unmarshal(data, in); err != nil {
		return fmt.Errorf("journal: decoding intent: %w", err)
	}
	if !validStates[in.State] {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidIntent, in.State)
	}
	return nil
}
