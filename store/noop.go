package store

import "context"

// Noop is the store used when no remote backend is configured. Reads miss,
// writes succeed without effect, so sessions degrade to local-only behavior
// instead of failing.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Get(ctx context.Context, path string) ([]byte, string, error) {
	return nil, "", ErrNotFound
}

func (Noop) Put(ctx context.Context, path string, payload []byte, revision string) (string, error) {
	return "", nil
}

func (Noop) Delete(ctx context.Context, path string, revision string) error {
	return nil
}

func (Noop) List(ctx context.Context, prefix string) ([]Entry, error) {
	return nil, nil
}
