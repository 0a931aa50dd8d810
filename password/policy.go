package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Hard bounds on configurable lengths. 72 bytes is the bcrypt input limit
// most providers hash with.
const (
	minLengthFloor   = 6
	maxLengthCeiling = 72
)

var (
	ErrEmpty    = errors.New("password is required")
	ErrTooShort = errors.New("password too short")
	ErrTooLong  = errors.New("password too long")
	ErrWeak     = errors.New("password too weak")
)

// Policy is the password strength policy.
type Policy struct {
	MinLength     int  `yaml:"min_length"`
	MaxLength     int  `yaml:"max_length"`
	RequireUpper  bool `yaml:"require_upper"`
	RequireLower  bool `yaml:"require_lower"`
	RequireDigit  bool `yaml:"require_digit"`
	RequireSymbol bool `yaml:"require_symbol"`
}

// DefaultPolicy returns the default policy: 8 to 72 bytes with upper case,
// lower case and a digit.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:    8,
		MaxLength:    maxLengthCeiling,
		RequireUpper: true,
		RequireLower: true,
		RequireDigit: true,
	}
}

// Validate checks the policy itself.
func (p Policy) Validate() error {
	if p.MinLength < minLengthFloor {
		return fmt.Errorf("min_length must be >= %d", minLengthFloor)
	}
	if p.MaxLength < p.MinLength || p.MaxLength > maxLengthCeiling {
		return fmt.Errorf("max_length must be between min_length and %d", maxLengthCeiling)
	}
	return nil
}

// Violation describes why a password was rejected.
type Violation struct {
	Err     error
	Missing []string
	policy  Policy
}

func (v *Violation) Error() string {
	return v.Message()
}

func (v *Violation) Unwrap() error {
	return v.Err
}

// Message returns the text shown to the user.
func (v *Violation) Message() string {
	switch {
	case errors.Is(v.Err, ErrEmpty):
		return "Password is required."
	case errors.Is(v.Err, ErrTooShort):
		return fmt.Sprintf("Password must be at least %d characters.", v.policy.MinLength)
	case errors.Is(v.Err, ErrTooLong):
		return fmt.Sprintf("Password must be at most %d characters.", v.policy.MaxLength)
	default:
		return "Password must contain " + joinList(v.Missing) + "."
	}
}

// Check returns nil when pw satisfies the policy, or a *Violation.
func (p Policy) Check(pw string) error {
	if pw == "" {
		return &Violation{Err: ErrEmpty, policy: p}
	}
	if utf8.RuneCountInString(pw) < p.MinLength {
		return &Violation{Err: ErrTooShort, policy: p}
	}
	if len(pw) > p.MaxLength {
		return &Violation{Err: ErrTooLong, policy: p}
	}

	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	var missing []string
	if p.RequireUpper && !upper {
		missing = append(missing, "an uppercase letter")
	}
	if p.RequireLower && !lower {
		missing = append(missing, "a lowercase letter")
	}
	if p.RequireDigit && !digit {
		missing = append(missing, "a number")
	}
	if p.RequireSymbol && !symbol {
		missing = append(missing, "a symbol")
	}
	if len(missing) > 0 {
		return &Violation{Err: ErrWeak, Missing: missing, policy: p}
	}
	return nil
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
