package goSession

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/notify"
)

// Notice is a side-channel message about an operation outcome, the kind a
// UI renders as a toast.
type Notice = notify.Notice

// NoticeLevel is the severity of a [Notice].
type NoticeLevel = notify.Level

const (
	NoticeInfo    = notify.LevelInfo
	NoticeSuccess = notify.LevelSuccess
	NoticeWarning = notify.LevelWarning
	NoticeError   = notify.LevelError
)

// Notice kinds.
const (
	NoticeOperationSucceeded = "operation_succeeded"
	NoticeOperationFailed    = "operation_failed"
	NoticePartialFailure     = "partial_failure"
	NoticeSuspiciousActivity = "suspicious_activity"
	NoticeOTPResendReady     = "otp_resend_ready"
	NoticeSessionExpired     = "session_expired"
)

// Notifier receives notices. Implementations must be safe for concurrent
// use; delivery happens on a background goroutine when Config.Notify is
// enabled and inline otherwise.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NewChannelNotifier returns a notifier that buffers notices in a channel
// readable through Notices.
func NewChannelNotifier(buffer int) *notify.ChannelSink {
	return notify.NewChannelSink(buffer)
}

// NewJSONNotifier writes one JSON notice per line to w.
func NewJSONNotifier(w io.Writer) Notifier {
	return notify.NewJSONWriterSink(w)
}

// NewLogNotifier logs notices through logger.
func NewLogNotifier(logger *slog.Logger) Notifier {
	return notify.NewLogSink(logger)
}

// MultiNotifier delivers each notice to every notifier in order.
func MultiNotifier(notifiers ...Notifier) Notifier {
	fan := make(notify.FanOut, 0, len(notifiers))
	for _, n := range notifiers {
		fan = append(fan, n)
	}
	return fan
}

var successMessages = map[string]string{
	flows.OpSignIn:         "Welcome back!",
	flows.OpSignInWithOTP:  "Verification code sent. Check your email.",
	flows.OpVerifyOTP:      "Your email has been verified.",
	flows.OpSignOut:        "You have been signed out.",
	flows.OpResetPassword:  "If an account exists, a password reset email is on its way.",
	flows.OpUpdatePassword: "Your password has been updated.",
	flows.OpDeleteAccount:  "Your account has been deleted.",
	flows.OpUpdateProfile:  "Profile saved.",
}

func (e *Engine) notice(ctx context.Context, n Notice) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.At.IsZero() {
		n.At = e.clock.Now()
	}
	if e.notifier != nil {
		e.notifier.Notify(ctx, n)
		return
	}
	if e.sink != nil {
		e.sink.Notify(ctx, n)
	}
}

// notifyResult emits the notices that accompany res. The result itself is
// returned to the caller regardless.
func (e *Engine) notifyResult(ctx context.Context, res Result) {
	identityID := ""
	if res.Identity != nil {
		identityID = res.Identity.ID
	}
	base := Notice{Operation: res.Operation, IdentityID: identityID}

	if !res.Success {
		n := base
		n.ID = res.OperationID
		n.Kind = NoticeOperationFailed
		n.Level = NoticeError
		n.Message = res.Error
		e.notice(ctx, n)
		if res.Suspicious {
			s := base
			s.Kind = NoticeSuspiciousActivity
			s.Level = NoticeWarning
			s.Message = "Multiple failed sign-in attempts were detected. Consider resetting your password."
			e.notice(ctx, s)
		}
		return
	}

	msg := successMessages[res.Operation]
	if res.Operation == flows.OpSignUp {
		msg = "Account created. Welcome!"
		if res.VerificationRequired {
			msg = "Check your email for a verification code."
		}
	}
	if msg != "" {
		n := base
		n.ID = res.OperationID
		n.Kind = NoticeOperationSucceeded
		n.Level = NoticeSuccess
		n.Message = msg
		e.notice(ctx, n)
	}
	if res.Partial != nil {
		p := base
		p.Kind = NoticePartialFailure
		p.Level = NoticeWarning
		p.Message = partialMessage(res.Operation)
		e.notice(ctx, p)
	}
}

func partialMessage(op string) string {
	switch op {
	case flows.OpDeleteAccount:
		return "Your account was deleted, but some profile data could not be removed."
	case flows.OpSignUp, flows.OpVerifyOTP:
		return "You're signed in, but your profile could not be set up. Try again from settings."
	default:
		return "You're signed in, but your profile could not be loaded."
	}
}
