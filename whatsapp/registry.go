package whatsapp

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrAlreadyRegistered means a handle already exists for the number.
var ErrAlreadyRegistered = errors.New("whatsapp: number already registered")

// Handle is one live session: the connection plus its bookkeeping.
type Handle struct {
	Number    string
	CreatedAt time.Time

	mu         sync.Mutex
	conn       Connector
	registered bool
}

// Conn returns the current underlying connection.
func (h *Handle) Conn() Connector {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn
}

// SwapConn replaces the underlying connection after a reconnect.
func (h *Handle) SwapConn(c Connector) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conn = c
}

// Registered reports whether the session is paired, as opposed to still
// awaiting a pairing code.
func (h *Handle) Registered() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registered
}

func (h *Handle) setRegistered(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registered = v
}

// Registry is the single authority on which numbers are live. At most one
// handle per sanitized number exists at any time.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// TryRegister inserts a handle for number. Concurrent attempts for the same
// number are serialized; only the first wins.
func (r *Registry) TryRegister(number string, h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[number]; exists {
		return ErrAlreadyRegistered
	}
	r.handles[number] = h
	return nil
}

// Get returns the handle for number, or nil.
func (r *Registry) Get(number string) *Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handles[number]
}

// Unregister removes the handle for number if present.
func (r *Registry) Unregister(number string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, number)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Numbers returns the registered numbers in stable order.
func (r *Registry) Numbers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	numbers := make([]string, 0, len(r.handles))
	for n := range r.handles {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)
	return numbers
}

// Drain removes and returns every handle, for shutdown.
func (r *Registry) Drain() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	handles := make([]*Handle, 0, len(r.handles))
	for n, h := range r.handles {
		handles = append(handles, h)
		delete(r.handles, n)
	}
	return handles
}
