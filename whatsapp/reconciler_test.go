package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"whatsapp-gateway/store"

	"github.com/rs/zerolog"
)

func seedSnapshots(t *testing.T, st store.Store, names ...string) {
	t.Helper()
	ctx := context.Background()
	for _, name := range names {
		if _, err := st.Put(ctx, store.SessionDir+"/"+name, []byte("creds"), ""); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
}

func TestReconcileKeepsNewestDuplicate(t *testing.T) {
	st := store.NewMemory()
	seedSnapshots(t, st,
		"creds_111.json",
		"creds_111_1000.json",
		"creds_111_3000.json",
		"creds_111_2000.json",
		"creds_222_9000.json",
	)

	r := NewReconciler(st, zerolog.Nop())
	if err := r.Reconcile(context.Background(), "111"); err != nil {
		t.Fatal(err)
	}

	// The canonical snapshot is the live one and must never be pruned.
	if _, _, err := st.Get(context.Background(), store.CredsPath("111")); err != nil {
		t.Fatalf("reconcile deleted the live canonical snapshot: %v", err)
	}

	entries, err := st.List(context.Background(), store.CredsPrefix("111"))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"creds_111.json": true, "creds_111_3000.json": true}
	if len(entries) != 2 {
		t.Fatalf("expected canonical plus newest duplicate, got %v", entries)
	}
	for _, e := range entries {
		if !want[e.Name] {
			t.Fatalf("unexpected survivor %s in %v", e.Name, entries)
		}
	}

	// Another number's snapshots are untouched.
	if _, _, err := st.Get(context.Background(), store.SessionDir+"/creds_222_9000.json"); err != nil {
		t.Fatalf("unrelated snapshot was deleted: %v", err)
	}
}

func TestReconcileSingleSnapshotNoop(t *testing.T) {
	st := store.NewMemory()
	seedSnapshots(t, st, "creds_111.json")

	r := NewReconciler(st, zerolog.Nop())
	if err := r.Reconcile(context.Background(), "111"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := st.Get(context.Background(), store.CredsPath("111")); err != nil {
		t.Fatalf("sole snapshot was deleted: %v", err)
	}
}

type flakyDeleteStore struct {
	*store.Memory
	failPath string
}

func (s *flakyDeleteStore) Delete(ctx context.Context, path, revision string) error {
	if path == s.failPath {
		return fmt.Errorf("%w: injected", store.ErrUnavailable)
	}
	return s.Memory.Delete(ctx, path, revision)
}

func TestReconcileContinuesPastDeleteFailure(t *testing.T) {
	mem := store.NewMemory()
	seedSnapshots(t, mem,
		"creds_111_1000.json",
		"creds_111_2000.json",
		"creds_111_3000.json",
	)
	st := &flakyDeleteStore{Memory: mem, failPath: store.SessionDir + "/creds_111_2000.json"}

	r := NewReconciler(st, zerolog.Nop())
	if err := r.Reconcile(context.Background(), "111"); err != nil {
		t.Fatal(err)
	}

	// The undeletable snapshot survives, the other stale one does not.
	if _, _, err := mem.Get(context.Background(), store.SessionDir+"/creds_111_1000.json"); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("stale snapshot after the failing one was not pruned")
	}
	if _, _, err := mem.Get(context.Background(), store.SessionDir+"/creds_111_3000.json"); err != nil {
		t.Fatalf("newest snapshot was deleted: %v", err)
	}
}

func TestLatest(t *testing.T) {
	st := store.NewMemory()
	r := NewReconciler(st, zerolog.Nop())

	snap, err := r.Latest(context.Background(), "111")
	if err != nil || snap != nil {
		t.Fatalf("Latest on empty store = %v, %v; want nil, nil", snap, err)
	}

	// The canonical snapshot is not a duplicate; with only it present there
	// is no timestamped fallback.
	seedSnapshots(t, st, "creds_111.json")
	snap, err = r.Latest(context.Background(), "111")
	if err != nil || snap != nil {
		t.Fatalf("Latest with only canonical = %v, %v; want nil, nil", snap, err)
	}

	seedSnapshots(t, st, "creds_111_2000.json", "creds_111_5000.json")
	snap, err = r.Latest(context.Background(), "111")
	if err != nil {
		t.Fatal(err)
	}
	if snap == nil || snap.Name != "creds_111_5000.json" {
		t.Fatalf("Latest = %v, want creds_111_5000.json", snap)
	}
}
