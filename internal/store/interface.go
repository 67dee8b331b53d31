package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/studentbulle/internal/models"
)

type RecordStore interface {
	CreateStudent(ctx context.Context, student *models.Student) (*models.Student, error)
	GetStudent(ctx context.Context, studentID string) (*models.Student, error)
	UpdateStudent(ctx context.Context, studentID string, update models.StudentUpdate) (*models.Student, error)
	DeleteStudent(ctx context.Context, studentID string) error
	SearchStudents(ctx context.Context, query string, field models.SearchField) ([]models.Student, error)
}

type AccountStore interface {
	FindUser(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

type Store interface {
	RecordStore
	AccountStore

	Close() error
	Ping(ctx context.Context) error
	ApplyMigrations() error
	// Reset drops and recreates every table. All data is lost.
	Reset(ctx context.Context) error
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
	// IsUniqueViolation recognizes the driver's unique-constraint error.
	IsUniqueViolation func(error) bool
	// LowerFunc is the SQL function used for case-insensitive matching; LOWER when empty.
	LowerFunc         string
	Migrator          *migrate.Migrate
	Now               func() time.Time
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *BaseStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// ApplyMigrations brings the schema up to the latest embedded version.
func (s *BaseStore) ApplyMigrations() error {
	if s.Migrator == nil {
		return fmt.Errorf("store has no migrator")
	}
	if err := s.Migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (s *BaseStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Migrator == nil {
		return fmt.Errorf("store has no migrator")
	}
	if err := s.Migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	return s.ApplyMigrations()
}

func (s *BaseStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// lower wraps expr in the dialect's case-folding function.
func (s *BaseStore) lower(expr string) string {
	fn := s.LowerFunc
	if fn == "" {
		fn = "LOWER"
	}
	return fmt.Sprintf("%s(%s)", fn, expr)
}

func (s *BaseStore) uniqueViolation(err error) bool {
	return s.IsUniqueViolation != nil && s.IsUniqueViolation(err)
}

// withTx runs fn inside one transaction, rolling back when fn fails.
func (s *BaseStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
