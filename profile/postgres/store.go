// Package postgres implements profile.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/MrEthical07/goSession/profile"
)

// Pool is the subset of *pgxpool.Pool the store needs.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	selectProfileSQL = `SELECT id, email, full_name, business_name, industry, team_size, revenue_range, bio, tools, settings, role, subscription_tier, created_at, updated_at FROM user_profiles WHERE id = $1`

	insertProfileSQL = `INSERT INTO user_profiles (id, email, full_name, business_name, industry, team_size, revenue_range, bio, tools, settings, role, subscription_tier, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) ON CONFLICT (id) DO NOTHING`

	updateProfileSQL = `UPDATE user_profiles SET email = $2, full_name = $3, business_name = $4, industry = $5, team_size = $6, revenue_range = $7, bio = $8, tools = $9, settings = $10, updated_at = $11 WHERE id = $1`

	deleteProfileSQL = `DELETE FROM user_profiles WHERE id = $1`
)

// Store persists profiles in the user_profiles table.
type Store struct {
	pool Pool
}

func New(pool Pool) *Store {
	return &Store{pool: pool}
}

var _ profile.Store = (*Store)(nil)

func (s *Store) Select(ctx context.Context, id string) (*profile.Profile, error) {
	var (
		p        profile.Profile
		tools    []byte
		settings []byte
	)
	err := s.pool.QueryRow(ctx, selectProfileSQL, id).Scan(
		&p.ID, &p.Email, &p.FullName, &p.BusinessName, &p.Industry, &p.TeamSize,
		&p.RevenueRange, &p.Bio, &tools, &settings, &p.Role, &p.SubscriptionTier,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, oops.With("operation", "select profile").With("profile_id", id).Wrap(err)
	}
	if err := decodeCollections(tools, settings, &p); err != nil {
		return nil, oops.With("operation", "decode profile").With("profile_id", id).Wrap(err)
	}
	return &p, nil
}

func (s *Store) Insert(ctx context.Context, p *profile.Profile) error {
	tools, settings, err := encodeCollections(p)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, insertProfileSQL,
		p.ID, p.Email, p.FullName, p.BusinessName, p.Industry, p.TeamSize,
		p.RevenueRange, p.Bio, tools, settings, p.Role, p.SubscriptionTier,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return oops.With("operation", "insert profile").With("profile_id", p.ID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return profile.ErrAlreadyExists
	}
	return nil
}

func (s *Store) Update(ctx context.Context, p *profile.Profile) error {
	tools, settings, err := encodeCollections(p)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, updateProfileSQL,
		p.ID, p.Email, p.FullName, p.BusinessName, p.Industry, p.TeamSize,
		p.RevenueRange, p.Bio, tools, settings, p.UpdatedAt,
	)
	if err != nil {
		return oops.With("operation", "update profile").With("profile_id", p.ID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return profile.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, deleteProfileSQL, id); err != nil {
		return oops.With("operation", "delete profile").With("profile_id", id).Wrap(err)
	}
	return nil
}

func encodeCollections(p *profile.Profile) ([]byte, []byte, error) {
	tools := p.Tools
	if tools == nil {
		tools = []string{}
	}
	settings := p.Settings
	if settings == nil {
		settings = map[string]string{}
	}
	rawTools, err := json.Marshal(tools)
	if err != nil {
		return nil, nil, oops.With("operation", "encode tools").Wrap(err)
	}
	rawSettings, err := json.Marshal(settings)
	if err != nil {
		return nil, nil, oops.With("operation", "encode settings").Wrap(err)
	}
	return rawTools, rawSettings, nil
}

func decodeCollections(tools, settings []byte, p *profile.Profile) error {
	if len(tools) > 0 {
		if err := json.Unmarshal(tools, &p.Tools); err != nil {
			return err
		}
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &p.Settings); err != nil {
			return err
		}
	}
	if len(p.Tools) == 0 {
		p.Tools = nil
	}
	if len(p.Settings) == 0 {
		p.Settings = nil
	}
	return nil
}
