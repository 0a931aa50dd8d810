// Package sqlite implements profile.Store on an embedded SQLite database
// (modernc.org/sqlite, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	_ "modernc.org/sqlite"

	"github.com/MrEthical07/goSession/profile"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS user_profiles (
    id                TEXT PRIMARY KEY,
    email             TEXT NOT NULL,
    full_name         TEXT NOT NULL DEFAULT '',
    business_name     TEXT NOT NULL DEFAULT '',
    industry          TEXT NOT NULL DEFAULT '',
    team_size         TEXT NOT NULL DEFAULT '',
    revenue_range     TEXT NOT NULL DEFAULT '',
    bio               TEXT NOT NULL DEFAULT '',
    tools             TEXT NOT NULL DEFAULT '[]',
    settings          TEXT NOT NULL DEFAULT '{}',
    role              TEXT NOT NULL DEFAULT 'user',
    subscription_tier TEXT NOT NULL DEFAULT 'free',
    created_at        INTEGER NOT NULL,
    updated_at        INTEGER NOT NULL
);`

// Store persists profiles in a single SQLite file.
type Store struct {
	conn *sql.DB
}

var _ profile.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		clean := filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(clean), 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = "file:" + filepath.ToSlash(clean) + "?mode=rwc"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: PRAGMAs are per connection and :memory: databases are
	// private to the connection that created them.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Store) Select(ctx context.Context, id string) (*profile.Profile, error) {
	var (
		p                  profile.Profile
		tools, settings    string
		created, updatedAt int64
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, email, full_name, business_name, industry, team_size, revenue_range, bio, tools, settings, role, subscription_tier, created_at, updated_at
		 FROM user_profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.BusinessName, &p.Industry, &p.TeamSize,
		&p.RevenueRange, &p.Bio, &tools, &settings, &p.Role, &p.SubscriptionTier, &created, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, oops.With("operation", "select profile").With("profile_id", id).Wrap(err)
	}

	if err := json.Unmarshal([]byte(tools), &p.Tools); err != nil {
		return nil, oops.With("operation", "decode tools").With("profile_id", id).Wrap(err)
	}
	if err := json.Unmarshal([]byte(settings), &p.Settings); err != nil {
		return nil, oops.With("operation", "decode settings").With("profile_id", id).Wrap(err)
	}
	if len(p.Tools) == 0 {
		p.Tools = nil
	}
	if len(p.Settings) == 0 {
		p.Settings = nil
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &p, nil
}

func (s *Store) Insert(ctx context.Context, p *profile.Profile) error {
	tools, settings, err := encode(p)
	if err != nil {
		return err
	}
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO user_profiles (id, email, full_name, business_name, industry, team_size, revenue_range, bio, tools, settings, role, subscription_tier, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Email, p.FullName, p.BusinessName, p.Industry, p.TeamSize, p.RevenueRange, p.Bio,
		tools, settings, p.Role, p.SubscriptionTier, p.CreatedAt.UnixNano(), p.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return oops.With("operation", "insert profile").With("profile_id", p.ID).Wrap(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return profile.ErrAlreadyExists
	}
	return nil
}

func (s *Store) Update(ctx context.Context, p *profile.Profile) error {
	tools, settings, err := encode(p)
	if err != nil {
		return err
	}
	res, err := s.conn.ExecContext(ctx,
		`UPDATE user_profiles SET email = ?, full_name = ?, business_name = ?, industry = ?, team_size = ?,
		 revenue_range = ?, bio = ?, tools = ?, settings = ?, updated_at = ? WHERE id = ?`,
		p.Email, p.FullName, p.BusinessName, p.Industry, p.TeamSize, p.RevenueRange, p.Bio,
		tools, settings, p.UpdatedAt.UnixNano(), p.ID,
	)
	if err != nil {
		return oops.With("operation", "update profile").With("profile_id", p.ID).Wrap(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return profile.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM user_profiles WHERE id = ?`, id); err != nil {
		return oops.With("operation", "delete profile").With("profile_id", id).Wrap(err)
	}
	return nil
}

// SetEntitlements changes the role and subscription tier of a profile. These
// columns are never written by Update.
func (s *Store) SetEntitlements(ctx context.Context, id, role, tier string) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE user_profiles SET role = ?, subscription_tier = ? WHERE id = ?`, role, tier, id)
	if err != nil {
		return oops.With("operation", "set entitlements").With("profile_id", id).Wrap(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return profile.ErrNotFound
	}
	return nil
}

func encode(p *profile.Profile) (string, string, error) {
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
		return "", "", err
	}
	rawSettings, err := json.Marshal(settings)
	if err != nil {
		return "", "", err
	}
	return string(rawTools), string(rawSettings), nil
}
