package types

import "time"

// Session statuses reported by the pairing and bulk-connect endpoints.
const (
	StatusAlreadyConnected    = "already_connected"
	StatusConnectionInitiated = "connection_initiated"
	StatusQueued              = "queued"
	StatusFailed              = "failed"
)

// PairResult is the response to a pairing request. Either Code is set
// (a fresh pairing code was issued) or Status reports an existing session.
type PairResult struct {
	Status  string `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ConnectionStatus is one entry of a connect-all / reconnect-all response.
type ConnectionStatus struct {
	Number string `json:"number"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ActiveSessions lists the currently connected numbers.
type ActiveSessions struct {
	Count   int      `json:"count"`
	Numbers []string `json:"numbers"`
}

// Snapshot is one stored credential blob as seen in the remote store listing.
type Snapshot struct {
	Name     string
	Revision string
	StoredAt time.Time
}
