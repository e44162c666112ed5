package utils

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_active_sessions",
		Help: "Number of live WhatsApp sessions in the registry",
	})
	pairingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_pairing_requests_total",
		Help: "Pairing requests by outcome",
	}, []string{"outcome"})
	reconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_reconnect_attempts_total",
		Help: "Reconnection attempts across all sessions",
	})
	sessionsAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_sessions_abandoned_total",
		Help: "Sessions abandoned after exhausting the reconnect ceiling",
	})
	credsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_credential_writes_total",
		Help: "Credential snapshots persisted to the remote store",
	})
	credsConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_credential_conflicts_total",
		Help: "Revision conflicts observed while persisting credentials",
	})
)

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

func RecordPairing(outcome string) {
	pairingRequests.WithLabelValues(outcome).Inc()
}

func RecordReconnectAttempt() {
	reconnectAttempts.Inc()
}

func RecordAbandoned() {
	sessionsAbandoned.Inc()
}

func RecordCredentialWrite() {
	credsPersisted.Inc()
}

func RecordCredentialConflict() {
	credsConflicts.Inc()
}

// MemoryStats is a point-in-time snapshot for the dashboard.
type MemoryStats struct {
	HeapAlloc   uint64
	HeapInUse   uint64
	HeapObjects uint64
	Goroutines  int
	LastGCTime  time.Time
}

func GetMemoryStats() MemoryStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return MemoryStats{
		HeapAlloc:   ms.HeapAlloc,
		HeapInUse:   ms.HeapInuse,
		HeapObjects: ms.HeapObjects,
		Goroutines:  runtime.NumGoroutine(),
		LastGCTime:  time.Unix(0, int64(ms.LastGC)),
	}
}
