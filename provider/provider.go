package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/session"
)

// EventType names a provider state change.
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventUserUpdated    EventType = "USER_UPDATED"
)

// Event is delivered to subscribers on every provider state change. Session is
// nil for EventSignedOut.
type Event struct {
	Type    EventType
	Session *session.Session
	At      time.Time
}

// OTPPurpose selects which verification the provider performs for a code.
type OTPPurpose string

const (
	PurposeSignup OTPPurpose = "signup"
	PurposeEmail  OTPPurpose = "email"
)

// Valid reports whether p is a purpose the provider understands.
func (p OTPPurpose) Valid() bool {
	return p == PurposeSignup || p == PurposeEmail
}

// OTPOptions configures a one-time-code request.
type OTPOptions struct {
	// CreateUser lets the provider register unknown addresses. The engine
	// always sends false.
	CreateUser bool
}

// SignUpOptions carries registration extras.
type SignUpOptions struct {
	Metadata map[string]any
	// CodeVerification asks the provider to confirm the address with a
	// one-time code instead of a magic link.
	CodeVerification bool
}

// AuthResponse is returned by calls that may establish a session. Session is
// nil when the provider requires email confirmation first.
type AuthResponse struct {
	Identity *session.Identity
	Session  *session.Session
}

// UserUpdate lists the identity attributes to change. Empty fields are left
// untouched.
type UserUpdate struct {
	Password string
	Email    string
	Metadata map[string]any
}

// Gateway is the identity provider as seen by the engine.
type Gateway interface {
	GetSession(ctx context.Context) (*session.Session, error)
	SignUp(ctx context.Context, email, password string, opts SignUpOptions) (*AuthResponse, error)
	SignInWithPassword(ctx context.Context, email, password string) (*AuthResponse, error)
	SignInWithOTP(ctx context.Context, email string, opts OTPOptions) error
	VerifyOTP(ctx context.Context, email, token string, purpose OTPPurpose) (*AuthResponse, error)
	RefreshSession(ctx context.Context) (*session.Session, error)
	UpdateUser(ctx context.Context, update UserUpdate) (*session.Identity, error)
	ResetPasswordForEmail(ctx context.Context, email string) error
	SignOut(ctx context.Context) error
	DeleteUser(ctx context.Context, id string) error
	// OnAuthStateChange registers fn for every subsequent event and returns a
	// function that removes the registration.
	OnAuthStateChange(fn func(Event)) (unsubscribe func())
}

// Code classifies provider failures.
type Code string

const (
	CodeInvalidCredentials   Code = "invalid_credentials"
	CodeEmailNotConfirmed    Code = "email_not_confirmed"
	CodeUserAlreadyExists    Code = "user_already_exists"
	CodeUserNotFound         Code = "user_not_found"
	CodeOTPExpired           Code = "otp_expired"
	CodeWeakPassword         Code = "weak_password"
	CodeSamePassword         Code = "same_password"
	CodeOverRequestRateLimit Code = "over_request_rate_limit"
	CodeOverEmailSendLimit   Code = "over_email_send_rate_limit"
	CodeSessionNotFound      Code = "session_not_found"
	CodeSignupDisabled       Code = "signup_disabled"
	CodeValidationFailed     Code = "validation_failed"
	CodeNetwork              Code = "network_error"
	CodeUnexpected           Code = "unexpected_failure"
)

// Error is a classified provider failure.
type Error struct {
	Code    Code
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider: %s", e.Code)
	}
	return fmt.Sprintf("provider: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds an [Error] with the given code and detail message.
func NewError(code Code, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// CodeOf returns the classification of err, or CodeUnexpected when err is not
// an [Error]. A nil err has no code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CodeNetwork
	}
	return CodeUnexpected
}
