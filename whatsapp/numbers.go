package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"whatsapp-gateway/store"

	"github.com/rs/zerolog"
)

// NumberList maintains the flat list of known paired numbers in the remote
// store. Updates are read-modify-write with a revision check, serialized
// in-process by a mutex.
type NumberList struct {
	store store.Store
	mu    sync.Mutex
	log   zerolog.Logger
}

func NewNumberList(s store.Store, log zerolog.Logger) *NumberList {
	return &NumberList{store: s, log: log.With().Str("component", "numbers").Logger()}
}

// All returns the known numbers. A missing list is empty, not an error.
func (n *NumberList) All(ctx context.Context) ([]string, error) {
	numbers, _, err := n.fetch(ctx)
	return numbers, err
}

// Add records number in the list if absent.
func (n *NumberList) Add(ctx context.Context, number string) error {
	return n.update(ctx, func(numbers []string) ([]string, bool) {
		for _, existing := range numbers {
			if existing == number {
				return numbers, false
			}
		}
		return append(numbers, number), true
	})
}

// Remove drops number from the list. Removing an absent number is a no-op.
func (n *NumberList) Remove(ctx context.Context, number string) error {
	return n.update(ctx, func(numbers []string) ([]string, bool) {
		for i, existing := range numbers {
			if existing == number {
				return append(numbers[:i], numbers[i+1:]...), true
			}
		}
		return numbers, false
	})
}

func (n *NumberList) fetch(ctx context.Context) ([]string, string, error) {
	payload, rev, err := n.store.Get(ctx, store.NumbersPath)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	var numbers []string
	if err := json.Unmarshal(payload, &numbers); err != nil {
		n.log.Warn().Err(err).Msg("number list unreadable, treating as empty")
		return nil, rev, nil
	}
	return numbers, rev, nil
}

func (n *NumberList) update(ctx context.Context, mutate func([]string) ([]string, bool)) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		numbers, rev, err := n.fetch(ctx)
		if err != nil {
			return err
		}
		next, changed := mutate(numbers)
		if !changed {
			return nil
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = n.store.Put(ctx, store.NumbersPath, payload, rev)
		if errors.Is(err, store.ErrConflict) && attempt == 0 {
			continue
		}
		return err
	}
	return store.ErrConflict
}
