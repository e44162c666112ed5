package whatsapp

import (
	"context"
	"sort"

	"whatsapp-gateway/store"
	"whatsapp-gateway/types"

	"github.com/rs/zerolog"
)

// Reconciler prunes stale timestamped duplicate snapshots left behind by
// older writers. The canonical creds_<number>.json is the live snapshot and
// is never part of the duplicate set.
type Reconciler struct {
	store store.Store
	log   zerolog.Logger
}

func NewReconciler(s store.Store, log zerolog.Logger) *Reconciler {
	return &Reconciler{store: s, log: log.With().Str("component", "reconciler").Logger()}
}

// Reconcile keeps the newest timestamped duplicate for number and deletes
// the rest sequentially. Individual deletion failures are logged and skipped
// so one bad object cannot block the prune.
func (r *Reconciler) Reconcile(ctx context.Context, number string) error {
	snapshots, err := r.snapshots(ctx, number)
	if err != nil {
		return err
	}
	if len(snapshots) <= 1 {
		return nil
	}

	for _, snap := range snapshots[1:] {
		path := store.SessionDir + "/" + snap.Name
		if err := r.store.Delete(ctx, path, snap.Revision); err != nil {
			r.log.Warn().Err(err).Str("name", snap.Name).Msg("failed to delete duplicate snapshot")
			continue
		}
		r.log.Info().Str("name", snap.Name).Str("number", number).Msg("deleted duplicate snapshot")
	}
	return nil
}

// Latest returns the newest timestamped duplicate for number, or nil when
// none exist. Restore consults the canonical snapshot first; this is the
// fallback for state left behind by older writers.
func (r *Reconciler) Latest(ctx context.Context, number string) (*types.Snapshot, error) {
	snapshots, err := r.snapshots(ctx, number)
	if err != nil || len(snapshots) == 0 {
		return nil, err
	}
	return &snapshots[0], nil
}

// snapshots lists the timestamped duplicates for number sorted by embedded
// timestamp descending. The canonical snapshot is excluded.
func (r *Reconciler) snapshots(ctx context.Context, number string) ([]types.Snapshot, error) {
	entries, err := r.store.List(ctx, store.CredsPrefix(number))
	if err != nil {
		return nil, err
	}

	var snapshots []types.Snapshot
	for _, e := range entries {
		ts, ok := store.ParseSnapshotTime(e.Name, number)
		if !ok {
			continue
		}
		snapshots = append(snapshots, types.Snapshot{Name: e.Name, Revision: e.Revision, StoredAt: ts})
	}
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].StoredAt.After(snapshots[j].StoredAt)
	})
	return snapshots, nil
}
