package flows

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"

	"github.com/MrEthical07/goSession/internal/autherr"
	"github.com/MrEthical07/goSession/internal/limiters"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/profile"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	otpPattern   = regexp.MustCompile(`^\d{6}$`)
)

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks an already normalized address.
func ValidateEmail(email string) error {
	if email == "" {
		return autherr.Invalid("email", "Email is required.")
	}
	if utf8.RuneCountInString(email) > profile.MaxEmailLen || !emailPattern.MatchString(email) {
		return autherr.Invalid("email", "Please enter a valid email address.")
	}
	return nil
}

// ValidateOTP checks that token is exactly six ASCII digits.
func ValidateOTP(token string) error {
	if !otpPattern.MatchString(token) {
		return autherr.Invalid("token", "Verification code must be 6 digits.")
	}
	return nil
}

// ValidatePassword applies policy and converts a violation to a
// validation error carrying the user-facing text.
func ValidatePassword(policy password.Policy, pw string) error {
	err := policy.Check(pw)
	if err == nil {
		return nil
	}
	var v *password.Violation
	if errors.As(err, &v) {
		return autherr.Invalid("password", v.Message())
	}
	return autherr.Invalid("password", "Password does not meet the requirements.")
}

// ValidateBusinessName checks a business name after sanitizing. An absent
// name is allowed; a present one must not sanitize down to nothing or exceed
// the field cap.
func ValidateBusinessName(s *profile.Sanitizer, raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	clean := s.Text(raw, 0)
	if clean == "" {
		return "", autherr.Invalid("business_name", "Business name cannot be blank.")
	}
	if utf8.RuneCountInString(clean) > profile.MaxBusinessNameLen {
		return "", autherr.Invalid("business_name", "Business name must be 100 characters or fewer.")
	}
	return clean, nil
}

func (deps Deps) checkRate(ctx context.Context, op string, class limiters.Class, principal string) error {
	ok, wait := deps.CheckRate(class, principal)
	if ok {
		return nil
	}
	deps.MetricInc(deps.Metrics.RateLimited)
	deps.Logger.LogAttrs(ctx, slog.LevelInfo, "operation rate limited",
		slog.String("operation", op),
		slog.String("class", class.String()),
		slog.Duration("retry_after", wait),
	)
	return &autherr.RateLimitError{Operation: op, RetryAfter: wait}
}

func (deps Deps) rejected(err error) error {
	deps.MetricInc(deps.Metrics.ValidationRejected)
	return err
}

func (deps Deps) providerFailure(ctx context.Context, op, code string, err error) error {
	deps.MetricInc(deps.Metrics.ProviderError)
	wrapped := oops.Code(code).With("operation", op).Wrap(err)
	perr := autherr.FromProvider(op, wrapped)
	logging.LogError(ctx, deps.Logger, slog.LevelWarn, "provider call failed", perr,
		"operation", op, "provider_code", string(perr.Code))
	return perr
}

func (deps Deps) partial(ctx context.Context, op, step, code string, err error) error {
	deps.MetricInc(deps.Metrics.PartialFailure)
	pf := &autherr.PartialFailure{
		Operation: op,
		Step:      step,
		Cause:     oops.Code(code).With("operation", op).With("step", step).Wrap(err),
	}
	logging.LogError(ctx, deps.Logger, slog.LevelWarn, "secondary step failed", pf,
		"operation", op, "step", step)
	return pf
}
