package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"whatsapp-gateway/config"

	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	_ "modernc.org/sqlite"
)

// MeowFactory builds whatsmeow-backed connectors with per-number sqlite
// credential state under the session directory.
type MeowFactory struct {
	sessionDir string
	cfg        *config.Manager
	log        zerolog.Logger
	waLog      waLog.Logger
}

func NewMeowFactory(sessionDir string, cfg *config.Manager, log zerolog.Logger) *MeowFactory {
	return &MeowFactory{
		sessionDir: sessionDir,
		cfg:        cfg,
		log:        log.With().Str("component", "connector").Logger(),
		waLog:      waLog.Stdout("WA", "INFO", false),
	}
}

func (f *MeowFactory) sessionPath(number string) string {
	return filepath.Join(f.sessionDir, "session_"+number)
}

// New restores the credential payload into a fresh local session database
// (when the number has no local state yet) and builds a client on top of it.
func (f *MeowFactory) New(ctx context.Context, number string, restored []byte) (Connector, error) {
	dir := f.sessionPath(number)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	dbPath := filepath.Join(dir, "whatsapp.db")
	if restored != nil {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			if err := os.WriteFile(dbPath, restored, 0o600); err != nil {
				return nil, fmt.Errorf("write restored credentials: %w", err)
			}
			f.log.Info().Str("number", number).Msg("restored credential state to local session")
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", dbPath)
	container, err := sqlstore.New(ctx, "sqlite", dsn, f.waLog)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		f.log.Warn().Err(err).Str("number", number).Msg("no usable device in session store, starting blank")
		device = container.NewDevice()
	}

	client := whatsmeow.NewClient(device, f.waLog)
	conn := &meowConn{
		client: client,
		dbPath: dbPath,
		events: make(chan Event, 32),
		quit:   make(chan struct{}),
		log:    f.log.With().Str("number", number).Logger(),
	}

	client.AddEventHandler(conn.handleEvent)
	client.AddEventHandler(newReactionHandler(client, number, f.cfg.Load(ctx, number), conn.log).handle)

	return conn, nil
}

// Cleanup removes the local credential state for number.
func (f *MeowFactory) Cleanup(number string) error {
	return os.RemoveAll(f.sessionPath(number))
}

type meowConn struct {
	client *whatsmeow.Client
	dbPath string

	events    chan Event
	quit      chan struct{}
	closeOnce sync.Once
	emitMu    sync.RWMutex
	closed    bool

	log zerolog.Logger
}

// WAClient exposes the underlying client for post-connect side effects.
func (c *meowConn) WAClient() *whatsmeow.Client {
	return c.client
}

func (c *meowConn) Open(ctx context.Context) error {
	return c.client.Connect()
}

func (c *meowConn) Registered() bool {
	return c.client.Store.ID != nil
}

func (c *meowConn) RequestPairingCode(ctx context.Context, number string) (string, error) {
	return c.client.PairPhone(ctx, number, true, whatsmeow.PairClientChrome, "Chrome (Windows)")
}

func (c *meowConn) Events() <-chan Event {
	return c.events
}

// Snapshot reads the session database as an opaque blob. The gateway never
// inspects it; whatsmeow owns the schema.
func (c *meowConn) Snapshot() ([]byte, error) {
	return os.ReadFile(c.dbPath)
}

func (c *meowConn) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		c.client.RemoveEventHandlers()
		c.client.Disconnect()
		c.emitMu.Lock()
		c.closed = true
		close(c.events)
		c.emitMu.Unlock()
	})
}

func (c *meowConn) emit(e Event) {
	c.emitMu.RLock()
	defer c.emitMu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.events <- e:
	case <-c.quit:
	}
}

// handleEvent maps whatsmeow events onto the supervisor's event stream.
func (c *meowConn) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		c.emit(Event{Kind: EventOpen})
	case *events.PairSuccess:
		c.emit(Event{Kind: EventCredsChanged})
	case *events.LoggedOut:
		c.emit(Event{Kind: EventLoggedOut, Code: int(v.Reason)})
	case *events.StreamReplaced:
		c.emit(Event{Kind: EventLoggedOut})
	case *events.Disconnected:
		c.emit(Event{Kind: EventClosed})
	case *events.ConnectFailure:
		if v.Reason == events.ConnectFailureLoggedOut {
			c.emit(Event{Kind: EventLoggedOut, Code: int(v.Reason)})
			return
		}
		c.emit(Event{Kind: EventClosed, Code: int(v.Reason)})
	case *events.QR:
		c.printQR(v.Codes)
	}
}

// printQR renders a terminal QR code as a fallback pairing channel.
func (c *meowConn) printQR(codes []string) {
	if len(codes) == 0 {
		return
	}
	qr, err := qrcode.New(codes[0], qrcode.Medium)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to render QR code")
		return
	}
	fmt.Printf("\nScan this QR code with the WhatsApp mobile app:\n%s\n", qr.ToSmallString(false))
}
