package whatsapp

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRegistryRace(t *testing.T) {
	r := NewRegistry()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryRegister("1234567890", &Handle{Number: "1234567890"}) == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one registration to win, got %d", wins)
	}
	if r.Count() != 1 {
		t.Fatalf("expected one handle, got %d", r.Count())
	}
}

func TestRegistryNumbersSorted(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"333", "111", "222"} {
		if err := r.TryRegister(n, &Handle{Number: n}); err != nil {
			t.Fatalf("register %s: %v", n, err)
		}
	}

	want := []string{"111", "222", "333"}
	if got := r.Numbers(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Numbers() = %v, want %v", got, want)
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	h := &Handle{Number: "111"}
	if err := r.TryRegister("111", h); err != nil {
		t.Fatal(err)
	}

	r.Unregister("111")
	if r.Get("111") != nil {
		t.Fatal("handle still present after unregister")
	}
	if err := r.TryRegister("111", h); err != nil {
		t.Fatalf("re-register after unregister: %v", err)
	}
}

func TestRegistryDrain(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"111", "222"} {
		if err := r.TryRegister(n, &Handle{Number: n}); err != nil {
			t.Fatal(err)
		}
	}

	handles := r.Drain()
	if len(handles) != 2 {
		t.Fatalf("drained %d handles, want 2", len(handles))
	}
	if r.Count() != 0 {
		t.Fatalf("registry not empty after drain: %d", r.Count())
	}
}

func TestHandleRegisteredFlag(t *testing.T) {
	h := &Handle{Number: "111"}
	if h.Registered() {
		t.Fatal("new handle should not be registered")
	}
	h.setRegistered(true)
	if !h.Registered() {
		t.Fatal("registered flag not set")
	}
}
