package goSession

import (
	"errors"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/session"
)

// Result is returned by every engine operation. Exactly one of Success or
// Error is set.
type Result struct {
	// OperationID correlates the result with logs, spans and notices.
	OperationID string
	Operation   string

	Success bool
	// Error is the single user-facing message of a failed operation.
	Error string
	// Err is the underlying error for errors.Is and errors.As.
	Err error

	Identity *session.Identity
	Profile  *profile.Profile

	// VerificationRequired is set when a sign-up must be confirmed with a
	// one-time code before a session exists.
	VerificationRequired bool
	// RetryAfter is set on rate-limited failures.
	RetryAfter time.Duration
	// Partial is set when the operation succeeded but a secondary step
	// such as a profile write failed.
	Partial error
	// Suspicious is set on a failed sign-in when recent attempts look like
	// credential guessing.
	Suspicious bool
}

func newResult(op, id string, out flows.Outcome, err error) Result {
	res := Result{
		OperationID: id,
		Operation:   op,
		Identity:    out.Identity,
		Profile:     out.Profile,
		Suspicious:  out.Suspicious,
	}
	if err != nil {
		res.Error = UserMessage(err)
		res.Err = err
		var rl *RateLimitError
		if errors.As(err, &rl) {
			res.RetryAfter = rl.RetryAfter
		}
		return res
	}
	res.Success = true
	res.VerificationRequired = out.VerificationRequired
	res.Partial = out.Partial
	return res
}

func failedResult(op, id string, err error) Result {
	return newResult(op, id, flows.Outcome{}, err)
}
