// Package whatsapp implements the session lifecycle: credential restore,
// connection supervision with exponential-backoff reconnect, bounded
// admission for bulk connects, and reconciliation of stale remote
// credential snapshots.
package whatsapp

import (
	"context"
	"regexp"
)

// EventKind classifies connection events delivered by a Connector.
type EventKind int

const (
	// EventOpen means the connection reached the remote service.
	EventOpen EventKind = iota
	// EventClosed is a transient connection loss; the supervisor may
	// reconnect.
	EventClosed
	// EventLoggedOut is a permanent auth failure (explicit logout); the
	// session is torn down without retry.
	EventLoggedOut
	// EventCredsChanged means the credential state changed and should be
	// persisted.
	EventCredsChanged
)

// Event is one connection-state or credential change.
type Event struct {
	Kind EventKind
	// Code carries the disconnect status code when known.
	Code int
}

// Connector is one underlying WhatsApp connection. The real implementation
// wraps a whatsmeow client; tests inject synthetic event sequences.
type Connector interface {
	// Open starts the connection. Events follow on Events().
	Open(ctx context.Context) error
	// Registered reports whether the credential state is already paired
	// with the remote service.
	Registered() bool
	// RequestPairingCode asks the service for a one-time pairing code.
	RequestPairingCode(ctx context.Context, number string) (string, error)
	// Events delivers connection events in order, one at a time. The
	// channel closes when the connection is finished.
	Events() <-chan Event
	// Snapshot serializes the current credential state.
	Snapshot() ([]byte, error)
	// Close tears the connection down and closes Events().
	Close()
}

// ConnectorFactory builds a Connector for a number from a restored
// credential payload (nil for first-time pairing).
type ConnectorFactory interface {
	New(ctx context.Context, number string, restored []byte) (Connector, error)
	// Cleanup removes any local credential state kept for number.
	Cleanup(number string) error
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// SanitizeNumber reduces a phone number to its digits, the registry key.
func SanitizeNumber(number string) string {
	return nonDigits.ReplaceAllString(number, "")
}
