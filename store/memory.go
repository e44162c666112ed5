package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
)

type memObject struct {
	payload  []byte
	revision string
}

// Memory is an in-process Store with real revision semantics. It backs
// tests and single-node deployments that want persistence semantics without
// a remote backend.
type Memory struct {
	mu      sync.Mutex
	objects map[string]memObject
	revSeq  int64
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memObject)}
}

func (m *Memory) Get(ctx context.Context, path string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[path]
	if !ok {
		return nil, "", ErrNotFound
	}
	payload := make([]byte, len(obj.payload))
	copy(payload, obj.payload)
	return payload, obj.revision, nil
}

func (m *Memory) Put(ctx context.Context, path string, payload []byte, revision string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Empty revision means create; creating over an existing object is a
	// conflict, same as a stale revision.
	if obj, ok := m.objects[path]; ok && revision != obj.revision {
		return "", ErrConflict
	}
	m.revSeq++
	rev := "r" + strconv.FormatInt(m.revSeq, 10)
	stored := make([]byte, len(payload))
	copy(stored, payload)
	m.objects[path] = memObject{payload: stored, revision: rev}
	return rev, nil
}

func (m *Memory) Delete(ctx context.Context, path string, revision string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[path]; !ok {
		return ErrNotFound
	}
	delete(m.objects, path)
	return nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []Entry
	for path, obj := range m.objects {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		name := path
		if i := strings.LastIndex(path, "/"); i >= 0 {
			name = path[i+1:]
		}
		entries = append(entries, Entry{Name: name, Revision: obj.revision, Size: int64(len(obj.payload))})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
