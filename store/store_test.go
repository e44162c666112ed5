package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRevisions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rev1, err := m.Put(ctx, "session/creds_123.json", []byte(`{"a":1}`), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	payload, rev, err := m.Get(ctx, "session/creds_123.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rev != rev1 || string(payload) != `{"a":1}` {
		t.Fatalf("got rev=%q payload=%q", rev, payload)
	}

	// Update with the current revision succeeds, with a stale one conflicts.
	rev2, err := m.Put(ctx, "session/creds_123.json", []byte(`{"a":2}`), rev1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := m.Put(ctx, "session/creds_123.json", []byte(`{"a":3}`), rev1); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale update: got %v, want ErrConflict", err)
	}
	if rev2 == rev1 {
		t.Fatal("revision did not advance on update")
	}
}

func TestMemoryCreateOverExistingConflicts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Put(ctx, "session/creds_123.json", []byte("first"), ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Put(ctx, "session/creds_123.json", []byte("clobber"), ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("create over existing: got %v, want ErrConflict", err)
	}

	payload, _, err := m.Get(ctx, "session/creds_123.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "first" {
		t.Fatalf("existing payload clobbered: %q", payload)
	}
}

func TestMemoryGetMissing(t *testing.T) {
	m := NewMemory()
	if _, _, err := m.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestMemoryList(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, p := range []string{"session/creds_111.json", "session/creds_111_5.json", "session/creds_222.json", "numbers.json"} {
		if _, err := m.Put(ctx, p, []byte("x"), ""); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := m.List(ctx, "session/creds_111")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Revision == "" {
			t.Fatalf("entry %s has no revision", e.Name)
		}
	}
}

func TestNoopDegradesQuietly(t *testing.T) {
	ctx := context.Background()
	n := NewNoop()

	if _, _, err := n.Get(ctx, "session/creds_1.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get: got %v, want ErrNotFound", err)
	}
	if _, err := n.Put(ctx, "session/creds_1.json", []byte("x"), ""); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := n.Delete(ctx, "session/creds_1.json", "r"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	entries, err := n.List(ctx, "session/")
	if err != nil || entries != nil {
		t.Fatalf("list: got %v, %v", entries, err)
	}
}

func TestParseSnapshotTime(t *testing.T) {
	cases := []struct {
		name   string
		number string
		ok     bool
		ts     time.Time
	}{
		{"creds_123_1700000000000.json", "123", true, time.UnixMilli(1700000000000)},
		// The canonical name is the live snapshot, not a duplicate.
		{"creds_123.json", "123", false, time.Time{}},
		{"creds_456.json", "123", false, time.Time{}},
		{"config_123.json", "123", false, time.Time{}},
		{"creds_123_notatime.json", "123", false, time.Time{}},
	}
	for _, c := range cases {
		ts, ok := ParseSnapshotTime(c.name, c.number)
		if ok != c.ok || !ts.Equal(c.ts) {
			t.Errorf("%s: got (%v,%v), want (%v,%v)", c.name, ts, ok, c.ts, c.ok)
		}
	}
}
