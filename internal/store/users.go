package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/studentbulle/internal/apperrors"
	"github.com/shrimpsizemoose/studentbulle/internal/models"
)

func (s *BaseStore) FindUser(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	query := s.Converter(`SELECT id, username, password_hash, role, created_at FROM users WHERE username = ?`)
	err := s.DB.GetContext(ctx, &user, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("user %q", username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// CreateUser inserts an account whose password is already hashed and sets
// user.ID and user.CreatedAt.
func (s *BaseStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	createdAt := s.now().Unix()

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		query := s.Converter(`SELECT COUNT(*) FROM users WHERE username = ?`)
		if err := tx.GetContext(ctx, &n, query, user.Username); err != nil {
			return fmt.Errorf("failed to check username: %w", err)
		}
		if n > 0 {
			return apperrors.NewValidationError("username", "username already exists")
		}

		var id int64
		query = s.Converter(`
			INSERT INTO users (username, password_hash, role, created_at)
			VALUES (?, ?, ?, ?)
			RETURNING id`)
		err := tx.GetContext(ctx, &id, query, user.Username, user.PasswordHash, user.Role, createdAt)
		if err != nil {
			if s.uniqueViolation(err) {
				return apperrors.NewValidationError("username", "username already exists")
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}

		user.ID = id
		user.CreatedAt = createdAt
		return nil
	})
}
