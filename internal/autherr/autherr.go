// Package autherr defines the error taxonomy shared by the engine and its
// flows: validation, rate-limit, provider and partial failures.
//
// The root package re-exports every type and sentinel; flows import this
// package directly to avoid an import cycle.
package autherr

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/MrEthical07/goSession/provider"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrRateLimited matches every *RateLimitError.
	ErrRateLimited = errors.New("rate limited")
	// ErrProvider matches every *ProviderError.
	ErrProvider = errors.New("identity provider failure")
	// ErrPartialFailure matches every *PartialFailure.
	ErrPartialFailure = errors.New("partial failure")
	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotReady is returned while the initial session probe is running.
	ErrNotReady = errors.New("engine not ready")
	// ErrClosed is returned by operations issued after Close.
	ErrClosed = errors.New("engine closed")
)

// ValidationError is malformed input rejected before any provider call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UserMessage returns the text shown to the user.
func (e *ValidationError) UserMessage() string { return e.Message }

// Invalid builds a [ValidationError].
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RateLimitError is a local throttle rejection.
type RateLimitError struct {
	Operation  string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited, retry after %s", e.Operation, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

func (e *RateLimitError) UserMessage() string {
	return fmt.Sprintf("Too many attempts. Please try again in %s.", HumanWait(e.RetryAfter))
}

// ProviderError is a failure reported by, or while reaching, the identity
// provider.
type ProviderError struct {
	Operation string
	Code      provider.Code
	Cause     error
}

// FromProvider classifies err as a [ProviderError] for operation.
func FromProvider(operation string, err error) *ProviderError {
	return &ProviderError{Operation: operation, Code: provider.CodeOf(err), Cause: err}
}

func (e *ProviderError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: provider error %s", e.Operation, e.Code)
	}
	return fmt.Sprintf("%s: provider error %s: %v", e.Operation, e.Code, e.Cause)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

func (e *ProviderError) UserMessage() string { return Message(e.Code) }

// PartialFailure is a failed side effect that does not undo the primary
// operation's success.
type PartialFailure struct {
	Operation string
	Step      string
	Cause     error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Operation, e.Step, e.Cause)
}

func (e *PartialFailure) Unwrap() error { return e.Cause }

func (e *PartialFailure) Is(target error) bool { return target == ErrPartialFailure }

var messages = map[provider.Code]string{
	provider.CodeInvalidCredentials:   "Invalid email or password.",
	provider.CodeEmailNotConfirmed:    "Please verify your email address before signing in.",
	provider.CodeUserAlreadyExists:    "An account with this email already exists.",
	provider.CodeUserNotFound:         "No account found for this email address.",
	provider.CodeOTPExpired:           "The verification code is invalid or has expired.",
	provider.CodeWeakPassword:         "Password is too weak. Please choose a stronger password.",
	provider.CodeSamePassword:         "New password must be different from your current password.",
	provider.CodeOverRequestRateLimit: "Too many requests. Please wait a moment and try again.",
	provider.CodeOverEmailSendLimit:   "Too many emails sent. Please wait before requesting another.",
	provider.CodeSessionNotFound:      "Your session has expired. Please sign in again.",
	provider.CodeSignupDisabled:       "New registrations are currently disabled.",
	provider.CodeValidationFailed:     "The information provided is invalid.",
	provider.CodeNetwork:              "Network error. Please check your connection and try again.",
}

const fallbackMessage = "Something went wrong. Please try again."

// Message maps a provider code to the text shown to the user.
func Message(code provider.Code) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return fallbackMessage
}

// UserMessage returns the single human-readable string for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return "You must be signed in to do that."
	case errors.Is(err, ErrNotReady):
		return "Still loading your session. Please try again."
	case errors.Is(err, ErrClosed):
		return "The session service is shutting down."
	default:
		return fallbackMessage
	}
}

// HumanWait renders a wait duration rounded up to whole seconds or minutes.
func HumanWait(d time.Duration) string {
	if d <= time.Second {
		return "1 second"
	}
	if d < time.Minute {
		s := int(math.Ceil(d.Seconds()))
		return fmt.Sprintf("%d seconds", s)
	}
	m := int(math.Ceil(d.Minutes()))
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
