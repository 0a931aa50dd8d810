package profile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Config tunes a [Synchronizer].
type Config struct {
	// FetchAttempts bounds Select calls per Fetch, including the first.
	FetchAttempts int
	// FetchBackoff is the base delay of the exponential retry backoff.
	FetchBackoff time.Duration
	DefaultRole  string
	DefaultTier  string
}

// DefaultConfig returns the synchronizer defaults.
func DefaultConfig() Config {
	return Config{
		FetchAttempts: 3,
		FetchBackoff:  100 * time.Millisecond,
		DefaultRole:   "user",
		DefaultTier:   "free",
	}
}

// Synchronizer reads and writes profiles through a [Store], sanitizing every
// value on the way in.
type Synchronizer struct {
	store     Store
	sanitizer *Sanitizer
	cfg       Config
	now       func() time.Time
	logger    *slog.Logger
}

// NewSynchronizer wires a [Synchronizer]. A nil now defaults to time.Now and
// a nil logger to slog.Default.
func NewSynchronizer(store Store, cfg Config, now func() time.Time, logger *slog.Logger) *Synchronizer {
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = 1
	}
	if cfg.FetchBackoff <= 0 {
		cfg.FetchBackoff = DefaultConfig().FetchBackoff
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = DefaultConfig().DefaultRole
	}
	if cfg.DefaultTier == "" {
		cfg.DefaultTier = DefaultConfig().DefaultTier
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		store:     store,
		sanitizer: NewSanitizer(),
		cfg:       cfg,
		now:       now,
		logger:    logger,
	}
}

// Sanitizer returns the sanitizer applied to every write.
func (s *Synchronizer) Sanitizer() *Sanitizer {
	return s.sanitizer
}

// Fetch loads the profile for id. A missing profile is reported as
// found == false with a nil error. Store failures are retried with
// exponential backoff up to FetchAttempts calls.
func (s *Synchronizer) Fetch(ctx context.Context, id string) (*Profile, bool, error) {
	var (
		out   *Profile
		tries int
	)
	backoff := retry.WithMaxRetries(uint64(s.cfg.FetchAttempts-1), retry.NewExponential(s.cfg.FetchBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tries++
		p, err := s.store.Select(ctx, id)
		switch {
		case err == nil:
			out = p
			return nil
		case errors.Is(err, ErrNotFound):
			out = nil
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			s.logger.DebugContext(ctx, "profile select failed", "profile_id", id, "attempt", tries, "error", err)
			return retry.RetryableError(err)
		}
	})
	if err != nil {
		return nil, false, oops.Code("PROFILE_FETCH_FAILED").
			With("profile_id", id).
			With("attempts", tries).
			Wrap(err)
	}
	if out == nil {
		return nil, false, nil
	}
	return out, true, nil
}

// Create inserts a profile for id built from sanitized fields with the
// default role and tier.
func (s *Synchronizer) Create(ctx context.Context, id string, fields Fields) (*Profile, error) {
	clean := s.sanitizer.Fields(fields)
	now := s.now().UTC()
	p := &Profile{
		ID:               id,
		Email:            clean.Email,
		FullName:         clean.FullName,
		BusinessName:     clean.BusinessName,
		Industry:         clean.Industry,
		TeamSize:         clean.TeamSize,
		RevenueRange:     clean.RevenueRange,
		Bio:              clean.Bio,
		Tools:            clean.Tools,
		Settings:         clean.Settings,
		Role:             s.cfg.DefaultRole,
		SubscriptionTier: s.cfg.DefaultTier,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Insert(ctx, p); err != nil {
		return nil, oops.Code("PROFILE_CREATE_FAILED").With("profile_id", id).Wrap(err)
	}
	return p.Clone(), nil
}

// Update applies a sanitized patch to the stored profile and returns the
// result.
func (s *Synchronizer) Update(ctx context.Context, id string, patch Patch) (*Profile, error) {
	current, err := s.store.Select(ctx, id)
	if err != nil {
		return nil, oops.Code("PROFILE_UPDATE_FAILED").With("profile_id", id).Wrap(err)
	}
	if patch.Empty() {
		return current, nil
	}

	next := s.sanitizer.Patch(patch).Apply(current)
	next.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, next); err != nil {
		return nil, oops.Code("PROFILE_UPDATE_FAILED").With("profile_id", id).Wrap(err)
	}
	return next.Clone(), nil
}

// Delete removes the profile for id.
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return oops.Code("PROFILE_DELETE_FAILED").With("profile_id", id).Wrap(err)
	}
	return nil
}
