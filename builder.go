package goSession

import (
	"errors"
	"log/slog"
	"maps"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/goSession/access"
	"github.com/MrEthical07/goSession/clock"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/lifecycle"
	"github.com/MrEthical07/goSession/internal/limiters"
	"github.com/MrEthical07/goSession/internal/notify"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/internal/security"
	"github.com/MrEthical07/goSession/internal/state"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/provider"
)

const instrumentationName = "github.com/MrEthical07/goSession"

// Builder assembles an [Engine].
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config    Config
	gateway   provider.Gateway
	store     profile.Store
	logger    *slog.Logger
	notifier  Notifier
	scheduler clock.Scheduler
	tracing   trace.TracerProvider
	built     bool
}

// New returns a builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithProvider sets the identity provider gateway. Required.
func (b *Builder) WithProvider(gw provider.Gateway) *Builder {
	b.gateway = gw
	return b
}

// WithProfileStore sets where profiles are kept. Required.
func (b *Builder) WithProfileStore(store profile.Store) *Builder {
	b.store = store
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithNotifier sets the notice consumer. Defaults to logging notices.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithClock replaces wall-clock time and timers, mainly for tests.
func (b *Builder) WithClock(s clock.Scheduler) *Builder {
	b.scheduler = s
	return b
}

// WithTracerProvider sets where operation spans go. Defaults to the global
// otel provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracing = tp
	return b
}

// Build validates the configuration, wires every component and starts the
// session probe. Callers should WaitReady before trusting State.
//
// A Builder can be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.gateway == nil {
		return nil, errors.New("identity provider gateway required")
	}
	if b.store == nil {
		return nil, errors.New("profile store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	sched := b.scheduler
	if sched == nil {
		sched = clock.Real()
	}
	tp := b.tracing
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	// -------- ACCESS --------
	registry := permission.NewRegistry()
	for _, f := range cfg.Access.Features {
		if _, err := registry.Register(f); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	entitlements := permission.NewEntitlements(registry)
	for _, tier := range slices.Sorted(maps.Keys(cfg.Access.Tiers)) {
		if err := entitlements.RegisterTier(tier, cfg.Access.Tiers[tier]); err != nil {
			return nil, err
		}
	}
	entitlements.Freeze()

	roles, err := permission.NewHierarchy(cfg.Access.RoleHierarchy)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		logger:       logger,
		clock:        sched,
		gateway:      b.gateway,
		tracer:       tp.Tracer(instrumentationName),
		metrics:      NewMetrics(cfg.Metrics),
		registry:     registry,
		entitlements: entitlements,
		roles:        roles,
		gate:         access.NewGate(cfg.Access.Routes, roles, entitlements),
		attempts:     security.NewAttemptLog(cfg.Security.AttemptHistory),
		security:     cfg.Security.heuristics(),
	}

	// -------- NOTICES --------
	sink := b.notifier
	if sink == nil {
		sink = notify.NewLogSink(logger.With("component", "notify"))
	}
	engine.sink = sink
	engine.notifier = notify.NewDispatcher(notify.Config{
		Enabled:         cfg.Notify.Enabled,
		BufferSize:      cfg.Notify.BufferSize,
		DropIfFull:      cfg.Notify.DropIfFull,
		DeliveryTimeout: cfg.Notify.DeliveryTimeout,
	}, sink)

	// -------- PROFILE --------
	engine.profiles = profile.NewSynchronizer(b.store, profile.Config{
		FetchAttempts: cfg.Profile.FetchAttempts,
		FetchBackoff:  cfg.Profile.FetchBackoff,
		DefaultRole:   cfg.Profile.DefaultRole,
		DefaultTier:   cfg.Profile.DefaultTier,
	}, sched.Now, logger)

	// -------- LIFECYCLE --------
	mgr, err := lifecycle.New(lifecycle.Config{
		RefreshLead:    cfg.Session.RefreshLead,
		CheckInterval:  cfg.Session.CheckInterval,
		ProbeTimeout:   cfg.Session.ProbeTimeout,
		RefreshTimeout: cfg.Session.RefreshTimeout,
		ProfileTimeout: cfg.Session.ProfileTimeout,
		QueueSize:      cfg.Session.EventQueueSize,
	}, lifecycle.Deps{
		Gateway:     b.gateway,
		LoadProfile: engine.profiles.Fetch,
		Cell:        state.NewCell(),
		Clock:       sched,
		Logger:      logger,
		Hooks:       engine.lifecycleHooks(),
	})
	if err != nil {
		engine.notifier.Close()
		return nil, err
	}
	engine.manager = mgr

	// -------- LIMITERS --------
	engine.limits = limiters.NewSet(cfg.RateLimits.limiterConfig(), sched.Now)
	engine.cooldowns = limiters.NewCooldowns(sched, cfg.OTP.ResendCooldown, engine.otpResendReady)

	// -------- FLOWS --------
	engine.flows = flows.New(flows.Deps{
		Gateway:           b.gateway,
		Profiles:          engine.profiles,
		Attempts:          engine.attempts,
		Security:          engine.security,
		Password:          cfg.Password,
		Logger:            logger,
		Now:               sched.Now,
		CheckRate:         engine.limits.Check,
		CooldownRemaining: engine.cooldowns.Remaining,
		StartCooldown:     engine.cooldowns.Start,
		ResetCooldowns:    engine.cooldowns.Reset,
		Current:           func() state.Snapshot { return mgr.Cell().Load() },
		ApplySession:      mgr.ApplySession,
		SetProfile:        mgr.SetProfile,
		ClearState:        mgr.Clear,
		MetricInc:         func(id int) { engine.metrics.Inc(MetricID(id)) },
		Metrics: flows.MetricIDs{
			RateLimited:        int(MetricRateLimited),
			ValidationRejected: int(MetricValidationRejected),
			ProviderError:      int(MetricProviderError),
			PartialFailure:     int(MetricPartialFailure),
			SuspiciousActivity: int(MetricSuspiciousActivity),
		},
	})

	b.built = true

	mgr.Start()
	return engine, nil
}

func (c RateLimitConfig) limiterConfig() limiters.Config {
	p := func(r RatePolicy) rate.Policy {
		return rate.Policy{MaxAttempts: r.MaxAttempts, Window: r.Window}
	}
	return limiters.Config{
		SignIn:         p(c.SignIn),
		SignUp:         p(c.SignUp),
		OTPRequest:     p(c.OTPRequest),
		OTPVerify:      p(c.OTPVerify),
		PasswordReset:  p(c.PasswordReset),
		PasswordUpdate: p(c.PasswordUpdate),
		AccountDelete:  p(c.AccountDelete),
	}
}

func (c SecurityConfig) heuristics() security.Config {
	return security.Config{
		FailureThreshold: c.FailureThreshold,
		FailureWindow:    c.FailureWindow,
		RecentSignIn:     c.RecentSignIn,
		StaleLogin:       c.StaleLogin,
	}
}
