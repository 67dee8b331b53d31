package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/studentbulle/internal/apperrors"
	"github.com/shrimpsizemoose/studentbulle/internal/models"
	"github.com/shrimpsizemoose/studentbulle/internal/store"
)

// bcrypt ignores everything past 72 bytes
const maxPasswordBytes = 72

type Accounts struct {
	store             store.AccountStore
	bcryptCost        int
	minPasswordLength int
}

func NewAccounts(accountStore store.AccountStore, config *Config) *Accounts {
	return &Accounts{
		store:             accountStore,
		bcryptCost:        config.Auth.BcryptCost,
		minPasswordLength: config.Auth.MinPasswordLength,
	}
}

func (a *Accounts) Find(ctx context.Context, username string) (*models.User, error) {
	return a.store.FindUser(ctx, strings.TrimSpace(username))
}

// Create hashes password and stores a new account.
func (a *Accounts) Create(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	if err := a.checkPassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     strings.TrimSpace(username),
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	logger.Info.Printf("Created %s account %q", user.Role, user.Username)
	return user, nil
}

// Verify returns the account when password matches, apperrors.ErrAuth otherwise.
func (a *Accounts) Verify(ctx context.Context, username, password string) (*models.User, error) {
	user, err := a.Find(ctx, username)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrAuth
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrAuth
	}
	return user, nil
}

// EnsureDefaultAdmin creates the bootstrap administrator unless it already exists.
func (a *Accounts) EnsureDefaultAdmin(ctx context.Context, username, password string) error {
	_, err := a.Find(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("failed to look up default admin: %w", err)
	}

	if _, err := a.Create(ctx, username, password, models.RoleAdmin); err != nil {
		return fmt.Errorf("failed to create default admin: %w", err)
	}
	return nil
}

func (a *Accounts) checkPassword(password string) error {
	if len([]rune(password)) < a.minPasswordLength {
		return apperrors.NewValidationError("password",
			fmt.Sprintf("must be at least %d characters", a.minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return apperrors.NewValidationError("password",
			fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}
