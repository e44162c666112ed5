package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"whatsapp-gateway/cache"
	"whatsapp-gateway/config"
	"whatsapp-gateway/store"
	"whatsapp-gateway/types"
	"whatsapp-gateway/utils"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidNumber means the request carried no usable digits.
	ErrInvalidNumber = errors.New("whatsapp: invalid number")
	// ErrPairingCodeFailed means the pairing-code request retries were
	// exhausted; the session was not registered.
	ErrPairingCodeFailed = errors.New("whatsapp: pairing code request failed")
)

// Hooks receives post-connect side effects. Implementations must be
// best-effort: log failures, never propagate them.
type Hooks interface {
	OnConnected(ctx context.Context, number string, conn Connector, cfg config.Record)
}

// Options wires a Supervisor.
type Options struct {
	Store     store.Store
	Creds     *cache.Cache
	Config    *config.Manager
	Registry  *Registry
	Admission *Admission
	Factory   ConnectorFactory
	Numbers   *NumberList
	Hooks     Hooks
	Log       zerolog.Logger

	// Reconnect is the exponential reconnection schedule. Zero value
	// gets the defaults (5 attempts, 10s base, factor 2).
	Reconnect utils.RetryPolicy
	// Pairing is the linear pairing-code request schedule. Zero value
	// gets the defaults (3 attempts, 2s base).
	Pairing utils.RetryPolicy
	// SettleDelay is the wait before the first pairing-code request.
	SettleDelay time.Duration
	// OpenSettle is the wait after a connection opens before side
	// effects run.
	OpenSettle time.Duration
}

// Supervisor drives the full lifecycle of every session: restore or create
// credentials, open the connection, request a pairing code when
// unregistered, persist credential updates, and reconnect with exponential
// backoff until the retry ceiling.
type Supervisor struct {
	store      store.Store
	creds      *cache.Cache
	config     *config.Manager
	registry   *Registry
	admission  *Admission
	factory    ConnectorFactory
	numbers    *NumberList
	reconciler *Reconciler
	hooks      Hooks
	log        zerolog.Logger

	reconnect   utils.RetryPolicy
	pairing     utils.RetryPolicy
	settleDelay time.Duration
	openSettle  time.Duration

	restoreGroup singleflight.Group
	persistMu    keyedMutex
	revs         sync.Map // number -> last known snapshot revision

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSupervisor(opts Options) *Supervisor {
	if opts.Reconnect.MaxAttempts == 0 {
		opts.Reconnect = utils.RetryPolicy{MaxAttempts: 5, BaseDelay: 10 * time.Second, Growth: utils.Exponential}
	}
	if opts.Pairing.MaxAttempts == 0 {
		opts.Pairing = utils.RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, Growth: utils.Linear}
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = 1500 * time.Millisecond
	}
	if opts.OpenSettle == 0 {
		opts.OpenSettle = 3 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		store:       opts.Store,
		creds:       opts.Creds,
		config:      opts.Config,
		registry:    opts.Registry,
		admission:   opts.Admission,
		factory:     opts.Factory,
		numbers:     opts.Numbers,
		reconciler:  NewReconciler(opts.Store, opts.Log),
		hooks:       opts.Hooks,
		log:         opts.Log.With().Str("component", "supervisor").Logger(),
		reconnect:   opts.Reconnect,
		pairing:     opts.Pairing,
		settleDelay: opts.SettleDelay,
		openSettle:  opts.OpenSettle,
		ctx:         ctx,
		cancel:      cancel,
		sleep:       sleepCtx,
	}
}

// Pair creates or restores the session for number. It returns a pairing
// code for unregistered numbers, an already-connected status for live ones,
// or an error when the connection could not be initiated.
func (s *Supervisor) Pair(ctx context.Context, number string) (types.PairResult, error) {
	num := SanitizeNumber(number)
	if num == "" {
		return types.PairResult{}, ErrInvalidNumber
	}

	if s.registry.Get(num) != nil {
		utils.RecordPairing("already_connected")
		return types.PairResult{Status: types.StatusAlreadyConnected, Message: "This number is already connected"}, nil
	}

	h := &Handle{Number: num, CreatedAt: time.Now()}
	if err := s.registry.TryRegister(num, h); err != nil {
		// Lost the race to a concurrent pairing request.
		utils.RecordPairing("already_connected")
		return types.PairResult{Status: types.StatusAlreadyConnected, Message: "This number is already connected"}, nil
	}
	utils.SetActiveSessions(s.registry.Count())

	result, err := s.initiate(ctx, h, 0)
	if err != nil {
		s.registry.Unregister(num)
		utils.SetActiveSessions(s.registry.Count())
		utils.RecordPairing("failed")
		return types.PairResult{}, err
	}
	utils.RecordPairing("initiated")
	return result, nil
}

// initiate runs one Restoring -> Opening (-> AwaitingPairingCode) pass for
// the handle and hands the connection to a supervision loop. attempt
// carries the reconnect count across re-entries.
func (s *Supervisor) initiate(ctx context.Context, h *Handle, attempt int) (types.PairResult, error) {
	num := h.Number
	log := s.log.With().Str("number", num).Logger()

	if err := s.reconciler.Reconcile(ctx, num); err != nil {
		log.Warn().Err(err).Msg("snapshot reconciliation failed")
	}

	restored := s.restoreCreds(ctx, num)
	if restored != nil {
		log.Info().Msg("restored credential snapshot")
	}

	conn, err := s.factory.New(ctx, num, restored)
	if err != nil {
		return types.PairResult{}, fmt.Errorf("create connection for %s: %w", num, err)
	}
	h.SwapConn(conn)

	cfg := s.config.Load(ctx, num)

	if err := conn.Open(ctx); err != nil {
		conn.Close()
		return types.PairResult{}, fmt.Errorf("open connection for %s: %w", num, err)
	}

	result := types.PairResult{Status: types.StatusConnectionInitiated}
	if !conn.Registered() {
		h.setRegistered(false)
		code, err := s.requestPairingCode(ctx, conn, num, cfg)
		if err != nil {
			conn.Close()
			return types.PairResult{}, err
		}
		result = types.PairResult{Code: code}
	} else {
		h.setRegistered(true)
	}

	s.wg.Add(1)
	go s.run(h, conn, attempt, cfg)
	return result, nil
}

// requestPairingCode asks for a pairing code with bounded retries and
// linear backoff, after a short settle delay.
func (s *Supervisor) requestPairingCode(ctx context.Context, conn Connector, num string, cfg config.Record) (string, error) {
	policy := s.pairing
	if cfg.MaxRetries > 0 {
		policy.MaxAttempts = cfg.MaxRetries
	}

	if err := s.sleep(ctx, s.settleDelay); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		code, err := conn.RequestPairingCode(ctx, num)
		if err == nil {
			return code, nil
		}
		lastErr = err
		s.log.Warn().Err(err).Str("number", num).Int("attempt", attempt).Msg("pairing code request failed")
		if attempt < policy.MaxAttempts {
			if err := s.sleep(ctx, policy.Delay(attempt)); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("%w: %v", ErrPairingCodeFailed, lastErr)
}

// run is the supervision loop for one connection. It consumes the
// connector's ordered event stream and drives the state machine until the
// session ends or is replaced by a reconnect.
func (s *Supervisor) run(h *Handle, conn Connector, attempt int, cfg config.Record) {
	defer s.wg.Done()
	num := h.Number
	log := s.log.With().Str("number", num).Logger()

	policy := s.reconnect
	if cfg.ReconnectMax > 0 {
		policy.MaxAttempts = cfg.ReconnectMax
	}

	for evt := range conn.Events() {
		switch evt.Kind {
		case EventOpen:
			attempt = 0
			h.setRegistered(true)
			log.Info().Msg("connection open")
			s.onConnected(num, conn, cfg)

		case EventCredsChanged:
			s.persistCreds(s.ctx, num, conn)

		case EventLoggedOut:
			log.Warn().Int("code", evt.Code).Msg("logged out, tearing session down")
			conn.Close()
			s.forget(h)
			s.purge(s.ctx, num)
			return

		case EventClosed:
			log.Warn().Int("code", evt.Code).Msg("connection lost")
			conn.Close()
			s.redial(h, attempt, policy)
			return
		}
	}
}

// redial re-enters the connect path with exponential backoff until it
// succeeds or the ceiling is hit.
func (s *Supervisor) redial(h *Handle, attempt int, policy utils.RetryPolicy) {
	num := h.Number
	log := s.log.With().Str("number", num).Logger()

	for {
		attempt++
		if policy.Exhausted(attempt) {
			log.Error().Int("attempts", attempt-1).Msg("reconnect ceiling exceeded, abandoning session")
			s.forget(h)
			utils.RecordAbandoned()
			return
		}
		utils.RecordReconnectAttempt()

		delay := policy.Delay(attempt)
		log.Info().Dur("delay", delay).Int("attempt", attempt).Int("max", policy.MaxAttempts).Msg("reconnecting")
		if err := s.sleep(s.ctx, delay); err != nil {
			return
		}
		if s.registry.Get(num) != h {
			// Deleted while waiting.
			return
		}
		_, err := s.initiate(s.ctx, h, attempt)
		if err == nil {
			return
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")
	}
}

// onConnected runs the post-connect side effects. Each one is best-effort;
// a failure must not prevent the others.
func (s *Supervisor) onConnected(num string, conn Connector, cfg config.Record) {
	ctx := s.ctx
	if err := s.sleep(ctx, s.openSettle); err != nil {
		return
	}

	if s.hooks != nil {
		s.hooks.OnConnected(ctx, num, conn, cfg)
	}
	if err := s.numbers.Add(ctx, num); err != nil {
		s.log.Warn().Err(err).Str("number", num).Msg("failed to record number in known list")
	}
	s.persistCreds(ctx, num, conn)
}

// persistCreds serializes the connection's credential state and writes it
// through to the remote store, carrying the last known revision so
// concurrent external writers are detected. Writes for one number are
// serialized and applied in event order.
func (s *Supervisor) persistCreds(ctx context.Context, num string, conn Connector) {
	unlock := s.persistMu.lock(num)
	defer unlock()

	payload, err := conn.Snapshot()
	if err != nil {
		s.log.Warn().Err(err).Str("number", num).Msg("credential snapshot failed")
		return
	}

	rev := ""
	if v, ok := s.revs.Load(num); ok {
		rev = v.(string)
	}

	path := store.CredsPath(num)
	newRev, err := s.store.Put(ctx, path, payload, rev)
	switch {
	case errors.Is(err, store.ErrConflict):
		utils.RecordCredentialConflict()
		s.log.Warn().Str("number", num).Msg("credential write conflict, refreshing revision")
		s.revs.Delete(num)
		if _, fresh, gerr := s.store.Get(ctx, path); gerr == nil {
			s.revs.Store(num, fresh)
		}
		return
	case err != nil:
		s.log.Warn().Err(err).Str("number", num).Msg("credential write failed, continuing without persistence")
		return
	}

	s.revs.Store(num, newRev)
	s.creds.Put(num, payload)
	utils.RecordCredentialWrite()
}

// restoreCreds fetches the latest snapshot for num, cache first, then the
// canonical remote snapshot, then the newest timestamped duplicate left by
// older writers. Absence is not an error: a nil return starts first-time
// pairing. Concurrent restores for the same number collapse into one remote
// fetch.
func (s *Supervisor) restoreCreds(ctx context.Context, num string) []byte {
	if v, ok := s.creds.Get(num); ok {
		return v.([]byte)
	}

	v, err, _ := s.restoreGroup.Do(num, func() (interface{}, error) {
		payload, rev, err := s.store.Get(ctx, store.CredsPath(num))
		if err == nil {
			s.revs.Store(num, rev)
			return payload, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}

		snap, err := s.reconciler.Latest(ctx, num)
		if err != nil || snap == nil {
			return nil, err
		}
		payload, _, err = s.store.Get(ctx, store.SessionDir+"/"+snap.Name)
		if err != nil {
			return nil, err
		}
		return payload, nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("number", num).Msg("credential restore failed, starting blank")
		return nil
	}
	payload, _ := v.([]byte)
	if payload != nil {
		s.creds.Put(num, payload)
	}
	return payload
}

// Delete tears the session for number down everywhere: live connection,
// local credential state, remote snapshots, and the known-numbers list.
// Deleting an absent session is not an error.
func (s *Supervisor) Delete(ctx context.Context, number string) error {
	num := SanitizeNumber(number)
	if num == "" {
		return ErrInvalidNumber
	}

	if h := s.registry.Get(num); h != nil {
		if c := h.Conn(); c != nil {
			c.Close()
		}
		s.forget(h)
	}
	s.purge(ctx, num)
	s.log.Info().Str("number", num).Msg("session deleted")
	return nil
}

// forget removes the handle from the registry if it is still current.
func (s *Supervisor) forget(h *Handle) {
	if s.registry.Get(h.Number) == h {
		s.registry.Unregister(h.Number)
	}
	utils.SetActiveSessions(s.registry.Count())
}

// purge removes every stored trace of a number. Failures are logged and
// the remaining steps still run.
func (s *Supervisor) purge(ctx context.Context, num string) {
	entries, err := s.store.List(ctx, store.CredsPrefix(num))
	if err != nil {
		s.log.Warn().Err(err).Str("number", num).Msg("snapshot listing failed during purge")
	}
	for _, e := range entries {
		if owner, ok := store.SnapshotOwner(e.Name); !ok || owner != num {
			continue
		}
		if err := s.store.Delete(ctx, store.SessionDir+"/"+e.Name, e.Revision); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.log.Warn().Err(err).Str("name", e.Name).Msg("snapshot delete failed")
		}
	}

	if _, rev, err := s.store.Get(ctx, store.ConfigPath(num)); err == nil {
		if err := s.store.Delete(ctx, store.ConfigPath(num), rev); err != nil {
			s.log.Warn().Err(err).Str("number", num).Msg("config delete failed")
		}
	}

	if err := s.numbers.Remove(ctx, num); err != nil {
		s.log.Warn().Err(err).Str("number", num).Msg("number list update failed")
	}
	if err := s.factory.Cleanup(num); err != nil {
		s.log.Warn().Err(err).Str("number", num).Msg("local session cleanup failed")
	}

	s.creds.Invalidate(num)
	s.config.Invalidate(num)
	s.revs.Delete(num)
}

// Active lists the currently registered numbers.
func (s *Supervisor) Active() types.ActiveSessions {
	numbers := s.registry.Numbers()
	return types.ActiveSessions{Count: len(numbers), Numbers: numbers}
}

// ConnectAll initiates a session for every known number, bounded by the
// admission controller. Numbers beyond the bound report queued.
func (s *Supervisor) ConnectAll(ctx context.Context) ([]types.ConnectionStatus, error) {
	numbers, err := s.numbers.All(ctx)
	if err != nil {
		return nil, err
	}
	return s.connectMany(ctx, numbers), nil
}

// ReconnectAll initiates a session for every number that has a credential
// snapshot in the remote store.
func (s *Supervisor) ReconnectAll(ctx context.Context) ([]types.ConnectionStatus, error) {
	entries, err := s.store.List(ctx, store.SessionDir+"/creds_")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var numbers []string
	for _, e := range entries {
		num, ok := store.SnapshotOwner(e.Name)
		if !ok || seen[num] {
			continue
		}
		seen[num] = true
		numbers = append(numbers, num)
	}
	return s.connectMany(ctx, numbers), nil
}

func (s *Supervisor) connectMany(ctx context.Context, numbers []string) []types.ConnectionStatus {
	results := make([]types.ConnectionStatus, len(numbers))
	var wg sync.WaitGroup

	for i, num := range numbers {
		if s.registry.Get(num) != nil {
			results[i] = types.ConnectionStatus{Number: num, Status: types.StatusAlreadyConnected}
			continue
		}
		if !s.admission.TryAdmit() {
			results[i] = types.ConnectionStatus{Number: num, Status: types.StatusQueued}
			continue
		}

		wg.Add(1)
		go func(i int, num string) {
			defer wg.Done()
			defer s.admission.Release()

			res, err := s.Pair(ctx, num)
			switch {
			case err != nil:
				results[i] = types.ConnectionStatus{Number: num, Status: types.StatusFailed, Error: err.Error()}
			case res.Status == types.StatusAlreadyConnected:
				results[i] = types.ConnectionStatus{Number: num, Status: types.StatusAlreadyConnected}
			default:
				results[i] = types.ConnectionStatus{Number: num, Status: types.StatusConnectionInitiated}
			}
		}(i, num)
	}

	wg.Wait()
	return results
}

// Shutdown closes every registered connection and stops all supervision
// loops, waiting up to the context deadline for them to drain.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.cancel()
	for _, h := range s.registry.Drain() {
		if c := h.Conn(); c != nil {
			c.Close()
		}
	}
	utils.SetActiveSessions(0)
	s.creds.Clear()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// keyedMutex serializes work per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
