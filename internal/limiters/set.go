package limiters

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/internal/rate"
)

// Class identifies an operation class with its own budget.
type Class int

const (
	SignIn Class = iota
	SignUp
	OTPRequest
	OTPVerify
	PasswordReset
	PasswordUpdate
	AccountDelete
	classCount
)

var classPrefixes = [classCount]string{
	SignIn:         "signin_",
	SignUp:         "signup_",
	OTPRequest:     "otp_",
	OTPVerify:      "verify_",
	PasswordReset:  "reset_",
	PasswordUpdate: "password_",
	AccountDelete:  "delete_",
}

// String returns the key prefix without its trailing underscore.
func (c Class) String() string {
	if c < 0 || c >= classCount {
		return "unknown"
	}
	return strings.TrimSuffix(classPrefixes[c], "_")
}

// Config holds one policy per operation class.
type Config struct {
	SignIn         rate.Policy
	SignUp         rate.Policy
	OTPRequest     rate.Policy
	OTPVerify      rate.Policy
	PasswordReset  rate.Policy
	PasswordUpdate rate.Policy
	AccountDelete  rate.Policy
}

func (c Config) policy(class Class) rate.Policy {
	switch class {
	case SignIn:
		return c.SignIn
	case SignUp:
		return c.SignUp
	case OTPRequest:
		return c.OTPRequest
	case OTPVerify:
		return c.OTPVerify
	case PasswordReset:
		return c.PasswordReset
	case PasswordUpdate:
		return c.PasswordUpdate
	case AccountDelete:
		return c.AccountDelete
	default:
		return rate.Policy{}
	}
}

// Validate checks every class policy.
func (c Config) Validate() error {
	var errs []error
	for class := Class(0); class < classCount; class++ {
		if err := c.policy(class).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", class, err))
		}
	}
	return errors.Join(errs...)
}

// Set holds one sliding-window limiter per operation class.
type Set struct {
	limiters [classCount]*rate.Limiter
	now      func() time.Time
}

// NewSet builds a [Set] from cfg. A nil now defaults to time.Now.
func NewSet(cfg Config, now func() time.Time) *Set {
	if now == nil {
		now = time.Now
	}
	s := &Set{now: now}
	for class := Class(0); class < classCount; class++ {
		s.limiters[class] = rate.New(cfg.policy(class), now)
	}
	return s
}

// Key builds the limiter key for class and principal. Principals are trimmed
// and lower-cased so "A@x.io " and "a@x.io" share a budget.
func Key(class Class, principal string) string {
	if class < 0 || class >= classCount {
		return "unknown_" + normalize(principal)
	}
	return classPrefixes[class] + normalize(principal)
}

// Check records an attempt for principal in class. When the attempt is denied
// it returns false and the wait until the oldest attempt leaves the window.
func (s *Set) Check(class Class, principal string) (bool, time.Duration) {
	l := s.limiter(class)
	if l == nil {
		return true, 0
	}
	key := Key(class, principal)
	if l.Allow(key) {
		return true, 0
	}
	wait := l.ResetTime(key).Sub(s.now())
	if wait < 0 {
		wait = 0
	}
	return false, wait
}

// ResetTime reports when principal's oldest attempt in class expires.
func (s *Set) ResetTime(class Class, principal string) time.Time {
	l := s.limiter(class)
	if l == nil {
		return s.now()
	}
	return l.ResetTime(Key(class, principal))
}

// Remaining returns the attempts principal may still make in class.
func (s *Set) Remaining(class Class, principal string) int {
	l := s.limiter(class)
	if l == nil {
		return 0
	}
	return l.Remaining(Key(class, principal))
}

func (s *Set) limiter(class Class) *rate.Limiter {
	if s == nil || class < 0 || class >= classCount {
		return nil
	}
	return s.limiters[class]
}

func normalize(principal string) string {
	return strings.ToLower(strings.TrimSpace(principal))
}
