package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"whatsapp-gateway/cache"
	"whatsapp-gateway/store"

	"github.com/rs/zerolog"
)

// Record is the per-number behavioral configuration. Toggle values are the
// strings "true"/"false" and every recognized option has a default, so a
// stored record only needs the options its owner changed.
type Record struct {
	AutoViewStatus string   `json:"AUTO_VIEW_STATUS"`
	AutoLikeStatus string   `json:"AUTO_LIKE_STATUS"`
	AutoRecording  string   `json:"AUTO_RECORDING"`
	AutoLikeEmoji  []string `json:"AUTO_LIKE_EMOJI"`
	Prefix         string   `json:"PREFIX"`
	MaxRetries     int      `json:"MAX_RETRIES"`
	ReconnectMax   int      `json:"RECONNECT_MAX"`
	AdminListPath  string   `json:"ADMIN_LIST_PATH"`
	ImagePath      string   `json:"IMAGE_PATH"`
	OwnerNumber    string   `json:"OWNER_NUMBER"`
}

// DefaultRecord returns the gateway defaults for one number.
func DefaultRecord() Record {
	return Record{
		AutoViewStatus: "true",
		AutoLikeStatus: "true",
		AutoRecording:  "true",
		AutoLikeEmoji:  []string{"💥", "👍", "😍", "💗", "🎈", "🎉", "🥳", "😎", "🚀", "🔥"},
		Prefix:         ".",
		MaxRetries:     3,
		ReconnectMax:   5,
		AdminListPath:  "./admin.json",
		ImagePath:      "./connected.jpg",
	}
}

func (r Record) ViewStatus() bool    { return r.AutoViewStatus == "true" }
func (r Record) LikeStatus() bool    { return r.AutoLikeStatus == "true" }
func (r Record) RecordingMode() bool { return r.AutoRecording == "true" }

// Manager loads and updates configuration records through the remote store,
// with a TTL cache in front to avoid redundant round-trips.
type Manager struct {
	store store.Store
	cache *cache.Cache
	log   zerolog.Logger
}

func NewManager(s store.Store, c *cache.Cache, log zerolog.Logger) *Manager {
	return &Manager{store: s, cache: c, log: log.With().Str("component", "config").Logger()}
}

// Load returns the record for number, merged over defaults. Unknown numbers
// get a fully default-populated record; a missing or unreadable remote
// record is not an error.
func (m *Manager) Load(ctx context.Context, number string) Record {
	if v, ok := m.cache.Get(number); ok {
		return v.(Record)
	}

	rec := DefaultRecord()
	payload, _, err := m.store.Get(ctx, store.ConfigPath(number))
	switch {
	case err == nil:
		// Unmarshal over the defaults so absent keys keep their default.
		if err := json.Unmarshal(payload, &rec); err != nil {
			m.log.Warn().Err(err).Str("number", number).Msg("stored config unreadable, using defaults")
			rec = DefaultRecord()
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		m.log.Warn().Err(err).Str("number", number).Msg("config load failed, using defaults")
	}

	if rec.OwnerNumber == "" {
		rec.OwnerNumber = number
	}
	m.cache.Put(number, rec)
	return rec
}

// Update persists the record for number, carrying the current remote
// revision. One conflict is absorbed by re-fetching the revision and
// retrying; a second conflict propagates.
func (m *Manager) Update(ctx context.Context, number string, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		rev := ""
		if _, current, err := m.store.Get(ctx, store.ConfigPath(number)); err == nil {
			rev = current
		}
		_, err = m.store.Put(ctx, store.ConfigPath(number), payload, rev)
		if errors.Is(err, store.ErrConflict) && attempt == 0 {
			m.log.Warn().Str("number", number).Msg("config write conflict, retrying with fresh revision")
			continue
		}
		if err != nil {
			return err
		}
		break
	}

	m.cache.Put(number, rec)
	m.log.Info().Str("number", number).Msg("updated config")
	return nil
}

// Invalidate drops the cached record so the next Load re-fetches.
func (m *Manager) Invalidate(number string) {
	m.cache.Invalidate(number)
}
