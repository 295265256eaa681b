package core

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store bundles the repositories over one process-wide database handle.
type Store struct {
	Driver string
	Users  UserRepository
	Posts  PostRepository

	ping  func(ctx context.Context) error
	close func() error
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.ping == nil {
		return errors.New("store not open")
	}
	return s.ping(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStore opens the database named by dsn and applies the embedded migrations.
// postgres:// and postgresql:// select Postgres; sqlite://<path> selects SQLite.
func OpenStore(ctx context.Context, dsn string, logger logrus.FieldLogger) (*Store, error) {
	if logger == nil {
		logger = discardLogger()
	}
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		pool, err := Connect(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		sqlDB := stdlib.OpenDBFromPool(pool)
		err = migrate(ctx, sqlDB, goose.DialectPostgres, "migrations/postgres", logger)
		_ = sqlDB.Close()
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &Store{
			Driver: DriverPostgres,
			Users:  NewPgUserRepository(pool),
			Posts:  NewPgPostRepository(pool),
			ping:   pool.Ping,
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil

	case strings.HasPrefix(dsn, "sqlite://"):
		sqlDB, err := OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
		if err != nil {
			return nil, err
		}
		if err := migrate(ctx, sqlDB, goose.DialectSQLite3, "migrations/sqlite", logger); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		return &Store{
			Driver: DriverSQLite,
			Users:  NewSQLiteUserRepository(sqlDB),
			Posts:  NewSQLitePostRepository(sqlDB),
			ping:   sqlDB.PingContext,
			close:  sqlDB.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database url %q", redactDSN(dsn))
	}
}

func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string, logger logrus.FieldLogger) error {
	sub, err := fs.Sub(migrationFS, dir)
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(dialect, db, sub)
	if err != nil {
		return fmt.Errorf("migrations provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		logger.WithFields(logrus.Fields{"version": r.Source.Version, "duration": r.Duration}).Info("migration applied")
	}
	return nil
}

// redactDSN keeps the scheme only, so credentials never reach the logs.
func redactDSN(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i] + "://…"
	}
	return "…"
}
