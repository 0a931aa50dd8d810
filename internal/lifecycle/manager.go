package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/clock"
	"github.com/MrEthical07/goSession/internal/state"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/session"
)

var (
	// ErrClosed is returned by commands issued after Close.
	ErrClosed = errors.New("lifecycle: manager closed")
	// ErrNotStarted is returned by commands issued before Start.
	ErrNotStarted = errors.New("lifecycle: manager not started")
	// ErrNoSession is returned by ApplySession for a nil session.
	ErrNoSession = errors.New("lifecycle: no session to apply")
)

// Phase is the manager's position in its startup state machine.
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseProbing
	PhaseIdle
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseProbing:
		return "probing"
	case PhaseIdle:
		return "idle"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// ProfileLoader fetches the profile for an identity. found is false with a
// nil error when no profile exists yet.
type ProfileLoader func(ctx context.Context, identityID string) (p *profile.Profile, found bool, err error)

// Config tunes a [Manager].
type Config struct {
	// RefreshLead is how long before expiry the refresh timer fires.
	RefreshLead time.Duration
	// CheckInterval is the period of the expired-session sweep. Zero
	// disables it.
	CheckInterval  time.Duration
	ProbeTimeout   time.Duration
	RefreshTimeout time.Duration
	ProfileTimeout time.Duration
	QueueSize      int
}

// DefaultConfig returns the lifecycle defaults.
func DefaultConfig() Config {
	return Config{
		RefreshLead:    5 * time.Minute,
		CheckInterval:  time.Minute,
		ProbeTimeout:   10 * time.Second,
		RefreshTimeout: 10 * time.Second,
		ProfileTimeout: 10 * time.Second,
		QueueSize:      64,
	}
}

// Hooks observe lifecycle outcomes. Every hook is optional and runs on the
// loop goroutine.
type Hooks struct {
	OnProbe   func(found bool, err error)
	OnEvent   func(provider.EventType)
	OnRefresh func(err error)
	OnExpired func(identityID string)
}

// Deps are the collaborators of a [Manager].
type Deps struct {
	Gateway     provider.Gateway
	LoadProfile ProfileLoader
	Cell        *state.Cell
	Clock       clock.Scheduler
	Logger      *slog.Logger
	Hooks       Hooks
}

// ApplyResult is the outcome of installing a session.
type ApplyResult struct {
	Snapshot state.Snapshot
	// ProfileErr is set when the profile fetch that accompanied the session
	// failed. The session is installed regardless.
	ProfileErr error
}

type fetchMode int

const (
	fetchNever fetchMode = iota
	fetchIfMissing
	fetchAlways
)

type msgKind int

const (
	msgProbe msgKind = iota
	msgReady
	msgEvent
	msgRefreshDue
	msgRefreshDone
	msgCheckDue
	msgApply
	msgSetProfile
	msgClear
	msgBarrier
)

type message struct {
	kind     msgKind
	event    provider.Event
	session  *session.Session
	profile  *profile.Profile
	identity string
	gen      uint64
	epoch    uint64
	err      error
	reply    chan reply
}

type reply struct {
	result  ApplyResult
	applied bool
}

// Manager serializes every change to the current session through one loop.
type Manager struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	queue    chan message
	done     chan struct{}
	loopDone chan struct{}
	ready    chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool
	phase     atomic.Int32
	workers   sync.WaitGroup

	mu           sync.Mutex
	unsubscribe  func()
	inflightDone chan struct{}
	refreshAt    time.Time

	// Owned by the loop goroutine.
	refreshTimer clock.Timer
	refreshGen   uint64
	checkTimer   clock.Timer
	checkGen     uint64
	epoch        uint64
	inflight     bool
	readyMarked  bool
}

// New validates cfg and deps and returns an unstarted [Manager].
func New(cfg Config, deps Deps) (*Manager, error) {
	if deps.Gateway == nil {
		return nil, errors.New("lifecycle: gateway is required")
	}
	if cfg.RefreshLead < 0 || cfg.CheckInterval < 0 {
		return nil, errors.New("lifecycle: durations must not be negative")
	}
	defaults := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaults.ProbeTimeout
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = defaults.RefreshTimeout
	}
	if cfg.ProfileTimeout <= 0 {
		cfg.ProfileTimeout = defaults.ProfileTimeout
	}
	if deps.Cell == nil {
		deps.Cell = state.NewCell()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger.With("component", "lifecycle"),
		queue:    make(chan message, cfg.QueueSize),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
		ready:    make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Cell returns the state cell the manager writes.
func (m *Manager) Cell() *state.Cell {
	return m.deps.Cell
}

// Start launches the loop, queues the session probe and then subscribes to
// provider events. The probe is therefore handled before any event. Start is
// idempotent and a no-op after Close.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		select {
		case <-m.done:
			return
		default:
		}
		m.started.Store(true)
		go m.loop()

		m.enqueue(message{kind: msgProbe})
		unsubscribe := m.deps.Gateway.OnAuthStateChange(m.onEvent)
		m.mu.Lock()
		m.unsubscribe = unsubscribe
		m.mu.Unlock()
		m.enqueue(message{kind: msgReady})
	})
}

// Ready is closed once the probe and the provider subscription are complete.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// WaitReady blocks until Ready is closed, ctx ends or the manager closes.
func (m *Manager) WaitReady(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrClosed
	}
}

// Phase reports the current phase.
func (m *Manager) Phase() Phase {
	return Phase(m.phase.Load())
}

// RefreshDeadline returns when the armed refresh timer fires.
func (m *Manager) RefreshDeadline() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshAt, !m.refreshAt.IsZero()
}

// ApplySession installs s as the current session, loading the profile when
// none is held for the session's identity, and re-arms the refresh timer.
// A session that is not live is discarded and the state cleared.
func (m *Manager) ApplySession(ctx context.Context, s *session.Session) (ApplyResult, error) {
	if s == nil {
		return ApplyResult{}, ErrNoSession
	}
	r, err := m.call(ctx, message{kind: msgApply, session: s.Clone()})
	return r.result, err
}

// SetProfile replaces the profile when the current identity is identityID.
// It reports false when the identity has changed in the meantime.
func (m *Manager) SetProfile(ctx context.Context, identityID string, p *profile.Profile) (bool, error) {
	r, err := m.call(ctx, message{kind: msgSetProfile, identity: identityID, profile: p.Clone()})
	return r.applied, err
}

// Clear cancels the refresh timer and drops identity, session and profile
// together.
func (m *Manager) Clear(ctx context.Context) (state.Snapshot, error) {
	r, err := m.call(ctx, message{kind: msgClear})
	return r.result.Snapshot, err
}

// Flush waits until every message queued before the call, including an
// outstanding refresh and its result, has been handled.
func (m *Manager) Flush(ctx context.Context) error {
	if _, err := m.call(ctx, message{kind: msgBarrier}); err != nil {
		return err
	}
	m.mu.Lock()
	inflight := m.inflightDone
	m.mu.Unlock()
	if inflight != nil {
		select {
		case <-inflight:
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return ErrClosed
		}
	}
	_, err := m.call(ctx, message{kind: msgBarrier})
	return err
}

// Close stops the loop, cancels every timer and outstanding provider call
// and unsubscribes from provider events. It is idempotent.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.phase.Store(int32(PhaseClosed))

		m.mu.Lock()
		unsubscribe := m.unsubscribe
		m.unsubscribe = nil
		m.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}

		close(m.done)
		m.cancel()
		if m.started.Load() {
			<-m.loopDone
		}
		m.workers.Wait()
	})
	return nil
}

func (m *Manager) onEvent(evt provider.Event) {
	m.enqueue(message{kind: msgEvent, event: evt})
}

func (m *Manager) enqueue(msg message) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.queue <- msg:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) call(ctx context.Context, msg message) (reply, error) {
	if !m.started.Load() {
		return reply{}, ErrNotStarted
	}
	select {
	case <-m.done:
		return reply{}, ErrClosed
	default:
	}

	msg.reply = make(chan reply, 1)
	select {
	case m.queue <- msg:
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-m.done:
		return reply{}, ErrClosed
	}

	select {
	case r := <-msg.reply:
		return r, nil
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-m.done:
		return reply{}, ErrClosed
	}
}

func (m *Manager) loop() {
	defer close(m.loopDone)
	defer m.stopTimers()

	for {
		select {
		case <-m.done:
			return
		case msg := <-m.queue:
			m.handle(msg)
		}
	}
}

func (m *Manager) handle(msg message) {
	switch msg.kind {
	case msgProbe:
		m.probe()
	case msgReady:
		m.markReady()
	case msgEvent:
		m.handleEvent(msg.event)
	case msgRefreshDue:
		m.refreshDue(msg.gen)
	case msgRefreshDone:
		m.refreshDone(msg)
	case msgCheckDue:
		m.checkDue(msg.gen)
	case msgApply:
		msg.reply <- reply{result: m.install(msg.session, fetchIfMissing)}
	case msgSetProfile:
		msg.reply <- reply{applied: m.setProfile(msg.identity, msg.profile)}
	case msgClear:
		m.clear()
		msg.reply <- reply{result: ApplyResult{Snapshot: m.deps.Cell.Load()}}
	case msgBarrier:
		msg.reply <- reply{}
	}
}

func (m *Manager) probe() {
	m.phase.Store(int32(PhaseProbing))
	defer m.phase.CompareAndSwap(int32(PhaseProbing), int32(PhaseIdle))

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.ProbeTimeout)
	s, err := m.deps.Gateway.GetSession(ctx)
	cancel()

	if hook := m.deps.Hooks.OnProbe; hook != nil {
		hook(s != nil && err == nil, err)
	}
	if err != nil {
		m.logger.Warn("session probe failed, continuing without session", "error", err)
		return
	}
	if s == nil {
		m.logger.Debug("session probe found no session")
		return
	}
	m.install(s, fetchAlways)
}

func (m *Manager) markReady() {
	if m.readyMarked {
		return
	}
	m.readyMarked = true

	next := m.deps.Cell.Load()
	next.Ready = true
	next.UpdatedAt = m.deps.Clock.Now()
	m.deps.Cell.Replace(next)
	close(m.ready)
	m.armCheck()
}

func (m *Manager) handleEvent(evt provider.Event) {
	if hook := m.deps.Hooks.OnEvent; hook != nil {
		hook(evt.Type)
	}
	m.logger.Debug("provider event", "event", string(evt.Type))

	switch evt.Type {
	case provider.EventSignedOut:
		m.clear()
	case provider.EventSignedIn, provider.EventUserUpdated:
		if evt.Session == nil {
			m.logger.Warn("provider event without session ignored", "event", string(evt.Type))
			return
		}
		m.install(evt.Session, fetchAlways)
	case provider.EventTokenRefreshed:
		if evt.Session == nil {
			m.logger.Warn("provider event without session ignored", "event", string(evt.Type))
			return
		}
		m.install(evt.Session, fetchNever)
	default:
		m.logger.Warn("unknown provider event ignored", "event", string(evt.Type))
	}
}

func (m *Manager) install(s *session.Session, mode fetchMode) ApplyResult {
	now := m.deps.Clock.Now()
	s = s.Clone()
	if s.ExpiresAt.IsZero() {
		exp, err := jwt.ExpiryOf(s.AccessToken)
		if err != nil {
			m.logger.Warn("session has no usable expiry", "identity_id", s.Identity.ID, "error", err)
		} else {
			s.ExpiresAt = exp
		}
	}

	if !s.Live(now) {
		m.logger.Info("discarding session that is not live", "identity_id", s.Identity.ID, "expires_at", s.ExpiresAt)
		m.clear()
		return ApplyResult{Snapshot: m.deps.Cell.Load()}
	}

	cur := m.deps.Cell.Load()
	next := cur
	next.Identity = s.Identity.Clone()
	next.Session = s
	next.UpdatedAt = now
	if cur.Identity == nil || cur.Identity.ID != s.Identity.ID {
		next.Profile = nil
	}

	var profileErr error
	if mode == fetchAlways || (mode == fetchIfMissing && next.Profile == nil) {
		p, found, err := m.loadProfile(s.Identity.ID)
		switch {
		case err != nil:
			profileErr = err
			m.logger.Warn("profile fetch failed", "identity_id", s.Identity.ID, "error", err)
		case found:
			next.Profile = p
		default:
			next.Profile = nil
		}
	}

	committed := m.deps.Cell.Replace(next)
	m.armRefresh(s.ExpiresAt)
	return ApplyResult{Snapshot: committed, ProfileErr: profileErr}
}

func (m *Manager) loadProfile(id string) (*profile.Profile, bool, error) {
	if m.deps.LoadProfile == nil {
		return nil, false, nil
	}
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.ProfileTimeout)
	defer cancel()
	return m.deps.LoadProfile(ctx, id)
}

func (m *Manager) setProfile(identityID string, p *profile.Profile) bool {
	cur := m.deps.Cell.Load()
	if cur.Identity == nil || cur.Identity.ID != identityID {
		m.logger.Debug("profile update for stale identity ignored", "identity_id", identityID)
		return false
	}
	cur.Profile = p
	cur.UpdatedAt = m.deps.Clock.Now()
	m.deps.Cell.Replace(cur)
	return true
}

func (m *Manager) clear() {
	m.cancelRefresh()
	m.epoch++

	cur := m.deps.Cell.Load()
	if cur.Identity == nil && cur.Session == nil && cur.Profile == nil {
		return
	}
	next := cur.SignedOut()
	next.UpdatedAt = m.deps.Clock.Now()
	m.deps.Cell.Replace(next)
}

func (m *Manager) armRefresh(expiresAt time.Time) {
	m.cancelRefresh()

	now := m.deps.Clock.Now()
	delay := expiresAt.Sub(now) - m.cfg.RefreshLead
	if delay <= 0 {
		return
	}
	gen := m.refreshGen
	m.refreshTimer = m.deps.Clock.AfterFunc(delay, func() {
		m.enqueue(message{kind: msgRefreshDue, gen: gen})
	})
	m.setRefreshAt(now.Add(delay))
}

func (m *Manager) cancelRefresh() {
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
	m.refreshGen++
	m.setRefreshAt(time.Time{})
}

func (m *Manager) setRefreshAt(at time.Time) {
	m.mu.Lock()
	m.refreshAt = at
	m.mu.Unlock()
}

func (m *Manager) refreshDue(gen uint64) {
	if gen != m.refreshGen {
		m.logger.Debug("stale refresh timer ignored")
		return
	}
	m.refreshTimer = nil
	m.setRefreshAt(time.Time{})

	cur := m.deps.Cell.Load()
	if m.inflight || cur.Session == nil {
		return
	}
	m.inflight = true

	done := make(chan struct{})
	m.mu.Lock()
	m.inflightDone = done
	m.mu.Unlock()

	epoch := m.epoch
	identityID := cur.Identity.ID
	m.workers.Add(1)
	go func() {
		defer m.workers.Done()
		defer close(done)

		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.RefreshTimeout)
		defer cancel()
		s, err := m.deps.Gateway.RefreshSession(ctx)
		m.enqueue(message{kind: msgRefreshDone, session: s, err: err, epoch: epoch, identity: identityID})
	}()
}

func (m *Manager) refreshDone(msg message) {
	m.inflight = false
	if msg.epoch != m.epoch {
		m.logger.Debug("refresh result discarded after session change", "identity_id", msg.identity)
		return
	}
	if hook := m.deps.Hooks.OnRefresh; hook != nil {
		hook(msg.err)
	}
	if msg.err != nil {
		m.logger.Warn("session refresh failed, keeping current session", "identity_id", msg.identity, "error", msg.err)
		return
	}
	if msg.session == nil || msg.session.Identity.ID != msg.identity {
		return
	}
	m.install(msg.session, fetchNever)
}

func (m *Manager) armCheck() {
	if m.cfg.CheckInterval <= 0 {
		return
	}
	if m.checkTimer != nil {
		m.checkTimer.Stop()
	}
	m.checkGen++
	gen := m.checkGen
	m.checkTimer = m.deps.Clock.AfterFunc(m.cfg.CheckInterval, func() {
		m.enqueue(message{kind: msgCheckDue, gen: gen})
	})
}

func (m *Manager) checkDue(gen uint64) {
	if gen != m.checkGen {
		return
	}
	m.checkTimer = nil

	cur := m.deps.Cell.Load()
	if cur.Session != nil && !cur.Session.Live(m.deps.Clock.Now()) {
		id := cur.Identity.ID
		m.logger.Info("session expired", "identity_id", id)
		m.clear()
		if hook := m.deps.Hooks.OnExpired; hook != nil {
			hook(id)
		}
	}
	m.armCheck()
}

func (m *Manager) stopTimers() {
	m.cancelRefresh()
	if m.checkTimer != nil {
		m.checkTimer.Stop()
		m.checkTimer = nil
	}
	m.checkGen++
}
