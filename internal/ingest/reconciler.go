package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/journal"
	"github.com/fyrsmithlabs/vectord/internal/vectorstore"
)

// DefaultGrace is how long an intent may stay pending before the
// reconciler treats it as abandoned.
const DefaultGrace = 10 * time.Minute

// DefaultRetention is how long completed intents are kept before
// compaction drops them.
const DefaultRetention = 24 * time.Hour

// IntentLog is the journal view used by the reconciler.
type IntentLog interface {
	Pending(ctx context.Context, olderThan time.Duration) ([]journal.Intent, error)
	Complete(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, cause error) error
	Remove(ctx context.Context, id string) error
	Compact(ctx context.Context, retain time.Duration) (int, error)
}

// VectorIDChecker reports which vector ids have chunk rows.
type VectorIDChecker interface {
	ExistingVectorIDs(ctx context.Context, vectorIDs []string) (map[string]bool, error)
}

// Reconciler resolves intents left pending by failed or interrupted
// ingestions.
type Reconciler struct {
	journal   IntentLog
	metadata  VectorIDChecker
	vectors   vectorstore.Adapter
	grace     time.Duration
	retention time.Duration
	logger    *zap.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithRetention sets how long completed intents survive compaction.
// Non-positive values keep DefaultRetention.
func WithRetention(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.retention = d
		}
	}
}

// NewReconciler creates a reconciler. A non-positive grace uses DefaultGrace.
func NewReconciler(j IntentLog, md VectorIDChecker, vectors vectorstore.Adapter, grace time.Duration, logger *zap.Logger, opts ...ReconcilerOption) *Reconciler {
	if grace <= 0 {
		grace = DefaultGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{journal: j, metadata: md, vectors: vectors, grace: grace, retention: DefaultRetention, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Examined       int `json:"examined"`
	Completed      int `json:"completed"`
	Removed        int `json:"removed"`
	Failed         int `json:"failed"`
	VectorsDeleted int `json:"vectorsDeleted"`
	Compacted      int `json:"compacted"`
}

// Sweep handles every intent pending for longer than the grace period.
// An intent whose chunk rows exist is marked complete. Otherwise its
// vectors are deleted and the intent removed. Failures are recorded on the
// intent and retried by a later sweep. Completed intents older than the
// retention period are then compacted away.
func (r *Reconciler) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	pending, err := r.journal.Pending(ctx, r.grace)
	if err != nil {
		return res, fmt.Errorf("listing pending intents: %w", err)
	}

	for _, in := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Examined++
		outcome, deleted, err := r.resolve(ctx, in)
		res.VectorsDeleted += deleted
		switch {
		case err != nil:
			res.Failed++
			ReconcileTotal.WithLabelValues("failed").Inc()
			r.logger.Warn("reconciling intent failed",
				zap.String("intent_id", in.ID),
				zap.String("index", in.IndexName),
				zap.Error(err))
			if rerr := r.journal.RecordFailure(ctx, in.ID, err); rerr != nil {
				r.logger.Warn("recording reconcile failure failed", zap.String("intent_id", in.ID), zap.Error(rerr))
			}
		case outcome == "completed":
			res.Completed++
			ReconcileTotal.WithLabelValues(outcome).Inc()
		default:
			res.Removed++
			ReconcileTotal.WithLabelValues(outcome).Inc()
		}
	}

	compacted, err := r.journal.Compact(ctx, r.retention)
	if err != nil {
		return res, fmt.Errorf("compacting journal: %w", err)
	}
	res.Compacted = compacted

	if res.Examined > 0 {
		r.logger.Info("reconcile sweep finished",
			zap.Int("examined", res.Examined),
			zap.Int("completed", res.Completed),
			zap.Int("removed", res.Removed),
			zap.Int("failed", res.Failed),
			zap.Int("vectors_deleted", res.VectorsDeleted))
	}
	return res, nil
}

func (r *Reconciler) resolve(ctx context.Context, in journal.Intent) (string, int, error) {
	existing, err := r.metadata.ExistingVectorIDs(ctx, in.VectorIDs)
	if err != nil {
		return "", 0, fmt.Errorf("checking chunk rows: %w", err)
	}
	if len(existing) > 0 {
		// The file transaction committed; only the completion mark was lost.
		return "completed", 0, r.journal.Complete(ctx, in.ID)
	}

	r.logger.Warn("orphaned vectors found",
		zap.String("kind", "consistency"),
		zap.String("intent_id", in.ID),
		zap.String("index", in.IndexName),
		zap.Int("vectors", len(in.VectorIDs)))
	err = r.vectors.Delete(ctx, in.IndexName, in.VectorIDs)
	if err != nil && !errors.Is(err, vectorstore.ErrIndexNotFound) {
		return "", 0, fmt.Errorf("deleting orphaned vectors: %w", err)
	}
	deleted := 0
	if err == nil {
		deleted = len(in.VectorIDs)
		OrphanVectorsTotal.Add(float64(deleted))
	}
	return "removed", deleted, r.journal.Remove(ctx, in.ID)
}

// Run sweeps every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("reconcile sweep failed", zap.Error(err))
			}
		}
	}
}
