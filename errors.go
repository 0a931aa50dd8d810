package goSession

import (
	"github.com/MrEthical07/goSession/internal/autherr"
)

var (
	// ErrValidation matches any [ValidationError].
	ErrValidation = autherr.ErrValidation
	// ErrRateLimited matches any [RateLimitError].
	ErrRateLimited = autherr.ErrRateLimited
	// ErrProvider matches any [ProviderError].
	ErrProvider = autherr.ErrProvider
	// ErrPartialFailure matches any [PartialFailure].
	ErrPartialFailure = autherr.ErrPartialFailure
	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = autherr.ErrNotAuthenticated
	// ErrEngineNotReady is returned before the engine is fully wired.
	ErrEngineNotReady = autherr.ErrNotReady
	// ErrClosed is returned after Close.
	ErrClosed = autherr.ErrClosed
)

// ValidationError rejects input before any provider call.
type ValidationError = autherr.ValidationError

// RateLimitError carries how long the caller must wait.
type RateLimitError = autherr.RateLimitError

// ProviderError wraps an identity provider failure with a user-facing
// message chosen from its code.
type ProviderError = autherr.ProviderError

// PartialFailure reports a secondary step that failed after the primary
// operation succeeded.
type PartialFailure = autherr.PartialFailure

// UserMessage returns the text shown to a user for err.
func UserMessage(err error) string {
	return autherr.UserMessage(err)
}
