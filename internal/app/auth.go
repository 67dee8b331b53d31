package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/studentbulle/internal/apperrors"
	"github.com/shrimpsizemoose/studentbulle/internal/metrics"
	"github.com/shrimpsizemoose/studentbulle/internal/models"
)

const tokenPrefix = "sis-"

type Auth struct {
	sessions SessionStore
	accounts *Accounts
	ttl      time.Duration
	now      func() time.Time
}

func NewAuth(sessions SessionStore, accounts *Accounts, config *Config) *Auth {
	return &Auth{
		sessions: sessions,
		accounts: accounts,
		ttl:      config.Auth.SessionTTL.Duration,
		now:      time.Now,
	}
}

func (a *Auth) Close() error {
	return a.sessions.Close()
}

func generateToken(prefix string, size int) (string, error) {
	randomBytes := make([]byte, size)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return prefix + hex.EncodeToString(randomBytes), nil
}

// Login checks credentials and opens a new session. Unknown users and wrong
// passwords both yield apperrors.ErrAuth.
func (a *Auth) Login(ctx context.Context, username, password string) (*models.Session, error) {
	user, err := a.accounts.Verify(ctx, username, password)
	if err != nil {
		if errors.Is(err, apperrors.ErrAuth) {
			metrics.LoginAttemptsTotal.WithLabelValues("rejected").Inc()
			logger.Debug.Printf("Rejected login for %q", username)
		}
		return nil, err
	}

	token, err := generateToken(tokenPrefix, 32)
	if err != nil {
		return nil, err
	}
	csrf, err := generateToken("", 16)
	if err != nil {
		return nil, err
	}

	now := a.now().UTC().Truncate(time.Second)
	session := &models.Session{
		Token:     token,
		Username:  user.Username,
		Role:      user.Role,
		CSRFToken: csrf,
		CreatedAt: now,
		ExpiresAt: now.Add(a.ttl),
	}
	if err := a.sessions.Save(ctx, session, a.ttl); err != nil {
		return nil, err
	}

	metrics.LoginAttemptsTotal.WithLabelValues("accepted").Inc()
	logger.Info.Printf("User %q logged in as %s", user.Username, user.Role)
	return session, nil
}

// Logout drops the session behind token. Unknown tokens are ignored.
func (a *Auth) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return a.sessions.Delete(ctx, token)
}

// Resolve loads the live session for token.
func (a *Auth) Resolve(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, apperrors.ErrNoSession
	}

	session, err := a.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Expired(a.now()) {
		_ = a.sessions.Delete(ctx, token)
		return nil, apperrors.ErrNoSession
	}
	return session, nil
}

// Require fails with apperrors.ErrNoSession when there is no live session and
// with a forbidden error when the role is below min.
func (a *Auth) Require(session *models.Session, min models.Role) error {
	if session == nil || session.Expired(a.now()) {
		return apperrors.ErrNoSession
	}
	if !session.Role.Satisfies(min) {
		return apperrors.Forbidden("%s role required", min)
	}
	return nil
}

// Register creates an account on behalf of an administrator.
func (a *Auth) Register(ctx context.Context, session *models.Session, username, password string, role models.Role) (*models.User, error) {
	if err := a.Require(session, models.RoleAdmin); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("role", "must be one of: admin user")
	}

	user, err := a.accounts.Create(ctx, username, password, role)
	if err != nil {
		return nil, err
	}
	logger.Info.Printf("%q registered %q", session.Username, user.Username)
	return user, nil
}

// FlushSessions logs everybody out.
func (a *Auth) FlushSessions(ctx context.Context) error {
	return a.sessions.Flush(ctx)
}
