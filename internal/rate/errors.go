package rate

import "errors"

var (
	// ErrInvalidPolicy is returned when a policy has a non-positive budget or window.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")
)
