package goSession

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/goSession/access"
	"github.com/MrEthical07/goSession/clock"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/lifecycle"
	"github.com/MrEthical07/goSession/internal/limiters"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/internal/notify"
	"github.com/MrEthical07/goSession/internal/security"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/provider"
)

// Engine owns the current user's session and mediates every
// identity-affecting operation.
//
// Engine methods are safe for concurrent use. Operations never panic past
// their boundary; failures are reported through [Result].
type Engine struct {
	config  Config
	logger  *slog.Logger
	clock   clock.Scheduler
	tracer  trace.Tracer
	metrics *Metrics

	gateway   provider.Gateway
	profiles  *profile.Synchronizer
	manager   *lifecycle.Manager
	flows     flows.Service
	limits    *limiters.Set
	cooldowns *limiters.Cooldowns
	attempts  *security.AttemptLog
	security  security.Config

	registry     *permission.Registry
	entitlements *permission.Entitlements
	roles        *permission.Hierarchy
	gate         *access.Gate

	notifier *notify.Dispatcher
	sink     Notifier

	closed    atomic.Bool
	closeOnce sync.Once
}

type operationMetrics struct {
	success MetricID
	failure MetricID
}

var opMetrics = map[string]operationMetrics{
	flows.OpSignUp:         {MetricSignUpSuccess, MetricSignUpFailure},
	flows.OpSignIn:         {MetricSignInSuccess, MetricSignInFailure},
	flows.OpSignInWithOTP:  {MetricOTPRequested, metricIDCount},
	flows.OpVerifyOTP:      {MetricOTPVerifySuccess, MetricOTPVerifyFailure},
	flows.OpSignOut:        {MetricSignOut, metricIDCount},
	flows.OpResetPassword:  {MetricPasswordResetRequest, metricIDCount},
	flows.OpUpdatePassword: {MetricPasswordUpdateSuccess, MetricPasswordUpdateFailure},
	flows.OpDeleteAccount:  {MetricAccountDeleted, MetricAccountDeleteFailure},
	flows.OpUpdateProfile:  {MetricProfileUpdated, metricIDCount},
	flows.OpRefreshProfile: {MetricProfileRefreshed, metricIDCount},
}

// run executes one operation inside a span, converts its outcome to a
// Result, records metrics and emits notices.
func (e *Engine) run(ctx context.Context, op string, fn func(context.Context) (flows.Outcome, error)) (res Result) {
	opID := uuid.NewString()
	if e == nil {
		return failedResult(op, opID, ErrEngineNotReady)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if e.closed.Load() {
		return failedResult(op, opID, ErrClosed)
	}
	if !e.flows.Initialized() {
		return failedResult(op, opID, ErrEngineNotReady)
	}

	ctx, span := e.tracer.Start(ctx, "goSession."+op,
		trace.WithAttributes(
			attribute.String("gosession.operation", op),
			attribute.String("gosession.operation_id", opID),
		))
	defer span.End()

	started := time.Now()

	var (
		out flows.Outcome
		err error
	)
	if perr := oops.Code("OPERATION_PANIC").With("operation", op).Recover(func() {
		out, err = fn(ctx)
	}); perr != nil {
		logging.LogError(ctx, e.logger, slog.LevelError, "operation panicked", perr, "operation", op, "operation_id", opID)
		out, err = flows.Outcome{}, perr
	}

	e.metrics.Observe(MetricOperationLatency, time.Since(started))
	res = newResult(op, opID, out, err)

	if m, ok := opMetrics[op]; ok {
		if res.Success {
			e.metrics.Inc(m.success)
		} else {
			e.metrics.Inc(m.failure)
		}
	}

	if res.Success {
		span.SetStatus(codes.Ok, "")
		if res.VerificationRequired {
			e.metrics.Inc(MetricSignUpVerificationRequired)
		}
	} else {
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Error)
		e.logger.LogAttrs(ctx, slog.LevelDebug, "operation failed",
			slog.String("operation", op),
			slog.String("operation_id", opID),
			slog.String("error", err.Error()),
		)
	}

	e.notifyResult(ctx, res)
	return res
}

func (e *Engine) lifecycleHooks() lifecycle.Hooks {
	return lifecycle.Hooks{
		OnEvent: func(provider.EventType) {
			e.metrics.Inc(MetricProviderEvent)
		},
		OnRefresh: func(err error) {
			if err != nil {
				e.metrics.Inc(MetricSessionRefreshFailure)
				return
			}
			e.metrics.Inc(MetricSessionRefreshSuccess)
		},
		OnExpired: func(identityID string) {
			e.metrics.Inc(MetricSessionExpired)
			e.notice(context.Background(), Notice{
				Kind:       NoticeSessionExpired,
				Level:      NoticeWarning,
				IdentityID: identityID,
				Message:    "Your session has expired. Please sign in again.",
			})
		},
	}
}

func (e *Engine) otpResendReady(email string) {
	if e.closed.Load() {
		return
	}
	e.notice(context.Background(), Notice{
		Kind:      NoticeOTPResendReady,
		Level:     NoticeInfo,
		Operation: flows.OpSignInWithOTP,
		Message:   "You can request a new verification code now.",
		Metadata:  map[string]string{"email": email},
	})
}

// Close stops the session lifecycle, cancels every timer (session refresh,
// expiry check and OTP cooldowns), unsubscribes from the provider and drains
// pending notices. It is idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		if e.cooldowns != nil {
			e.cooldowns.Close()
		}
		if e.manager != nil {
			_ = e.manager.Close()
		}
		e.notifier.Close()
	})
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// MetricsSnapshot returns the current counters and latency histogram.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// NotifyDropped returns how many notices were dropped because the notifier
// could not keep up.
func (e *Engine) NotifyDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.notifier.Dropped()
}
