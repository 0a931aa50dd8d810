package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSession/profile"
)

var profileColumns = []string{
	"id", "email", "full_name", "business_name", "industry", "team_size", "revenue_range",
	"bio", "tools", "settings", "role", "subscription_tier", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return New(mock), mock
}

func TestSelect(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      *profile.Profile
		wantErr   error
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(selectProfileSQL)).
					WithArgs("u-1").
					WillReturnRows(pgxmock.NewRows(profileColumns).AddRow(
						"u-1", "a@x.io", "Ada", "Acme", "Retail", "1-10", "<1M", "",
						[]byte(`["Slack"]`), []byte(`{"theme":"dark"}`), "manager", "pro", created, created,
					))
			},
			want: &profile.Profile{
				ID: "u-1", Email: "a@x.io", FullName: "Ada", BusinessName: "Acme", Industry: "Retail",
				TeamSize: "1-10", RevenueRange: "<1M", Tools: []string{"Slack"},
				Settings: map[string]string{"theme": "dark"}, Role: "manager", SubscriptionTier: "pro",
				CreatedAt: created, UpdatedAt: created,
			},
		},
		{
			name: "missing row maps to ErrNotFound",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(selectProfileSQL)).
					WithArgs("u-1").
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: profile.ErrNotFound,
		},
		{
			name: "empty collections decode as nil",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(selectProfileSQL)).
					WithArgs("u-1").
					WillReturnRows(pgxmock.NewRows(profileColumns).AddRow(
						"u-1", "a@x.io", "", "", "", "", "", "",
						[]byte(`[]`), []byte(`{}`), "user", "free", created, created,
					))
			},
			want: &profile.Profile{
				ID: "u-1", Email: "a@x.io", Role: "user", SubscriptionTier: "free",
				CreatedAt: created, UpdatedAt: created,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			tt.setupMock(mock)

			got, err := store.Select(context.Background(), "u-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSelectDatabaseError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectProfileSQL)).
		WithArgs("u-1").
		WillReturnError(errors.New("connection refused"))

	_, err := store.Select(context.Background(), "u-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, profile.ErrNotFound)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestInsert(t *testing.T) {
	now := time.Now().UTC()
	p := &profile.Profile{ID: "u-1", Email: "a@x.io", Role: "user", SubscriptionTier: "free", CreatedAt: now, UpdatedAt: now}

	t.Run("inserted", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta(insertProfileSQL)).
			WithArgs("u-1", "a@x.io", "", "", "", "", "", "", []byte(`[]`), []byte(`{}`), "user", "free", now, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, store.Insert(context.Background(), p))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta(insertProfileSQL)).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		assert.ErrorIs(t, store.Insert(context.Background(), p), profile.ErrAlreadyExists)
	})
}

func TestUpdate(t *testing.T) {
	now := time.Now().UTC()
	p := &profile.Profile{ID: "u-1", Email: "a@x.io", FullName: "Grace", Tools: []string{"Jira"}, UpdatedAt: now}

	t.Run("updated", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta(updateProfileSQL)).
			WithArgs("u-1", "a@x.io", "Grace", "", "", "", "", "", []byte(`["Jira"]`), []byte(`{}`), now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, store.Update(context.Background(), p))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta(updateProfileSQL)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, store.Update(context.Background(), p), profile.ErrNotFound)
	})
}

func TestDelete(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(deleteProfileSQL)).
		WithArgs("u-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, store.Delete(context.Background(), "u-1"), "deleting a missing row is not an error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeMigrate struct {
	upErr      error
	versionErr error
	version    uint
}

func (f *fakeMigrate) Up() error   { return f.upErr }
func (f *fakeMigrate) Down() error { return nil }
func (f *fakeMigrate) Version() (uint, bool, error) {
	return f.version, false, f.versionErr
}
func (f *fakeMigrate) Close() (error, error) { return nil, nil }

func TestMigratorTreatsNoChangeAsSuccess(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{upErr: migrate.ErrNoChange}}
	assert.NoError(t, m.Up())

	m = &Migrator{m: &fakeMigrate{upErr: errors.New("dirty")}}
	assert.Error(t, m.Up())
}

func TestMigratorVersionWithoutMigrations(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
	v, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u@h/db", migrateURL("postgres://u@h/db"))
	assert.Equal(t, "pgx5://u@h/db", migrateURL("postgresql://u@h/db"))
	assert.Equal(t, "pgx5://u@h/db", migrateURL("pgx5://u@h/db"))
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
