package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/studentbulle/internal/apperrors"
	"github.com/shrimpsizemoose/studentbulle/internal/models"
)

const (
	timeFormat    = "2006-01-02 15:04:05"
	sessionKeyTpl = "session:%s" // session:${token}
)

// SessionStore keeps server-side sessions keyed by token.
type SessionStore interface {
	Save(ctx context.Context, session *models.Session, ttl time.Duration) error
	// Get returns apperrors.ErrNoSession for unknown or expired tokens.
	Get(ctx context.Context, token string) (*models.Session, error)
	Delete(ctx context.Context, token string) error
	Flush(ctx context.Context) error
	Close() error
}

// NewSessionStore returns a Redis-backed store when redisURL is set and an
// in-process one otherwise.
func NewSessionStore(ctx context.Context, redisURL string) (SessionStore, error) {
	if redisURL == "" {
		logger.Info.Println("No redis configured, keeping sessions in memory")
		return NewMemorySessions(), nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisSessions(client), nil
}

type RedisSessions struct {
	redis *redis.Client
}

func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{redis: client}
}

func (rs *RedisSessions) Save(ctx context.Context, session *models.Session, ttl time.Duration) error {
	key := fmt.Sprintf(sessionKeyTpl, session.Token)

	pipe := rs.redis.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"username":         session.Username,
		"role":             string(session.Role),
		"csrf_token":       session.CSRFToken,
		"created_dttm_utc": session.CreatedAt.UTC().Format(timeFormat),
		"expires_dttm_utc": session.ExpiresAt.UTC().Format(timeFormat),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (rs *RedisSessions) Get(ctx context.Context, token string) (*models.Session, error) {
	key := fmt.Sprintf(sessionKeyTpl, token)

	values, err := rs.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(values) == 0 {
		return nil, apperrors.ErrNoSession
	}

	createdAt, err := time.Parse(timeFormat, values["created_dttm_utc"])
	if err != nil {
		logger.Debug.Printf("Dropping session with broken creation time %q", values["created_dttm_utc"])
		return nil, apperrors.ErrNoSession
	}
	expiresAt, err := time.Parse(timeFormat, values["expires_dttm_utc"])
	if err != nil {
		logger.Debug.Printf("Dropping session with broken expiry %q", values["expires_dttm_utc"])
		return nil, apperrors.ErrNoSession
	}

	return &models.Session{
		Token:     token,
		Username:  values["username"],
		Role:      models.Role(values["role"]),
		CSRFToken: values["csrf_token"],
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

func (rs *RedisSessions) Delete(ctx context.Context, token string) error {
	if err := rs.redis.Del(ctx, fmt.Sprintf(sessionKeyTpl, token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (rs *RedisSessions) Flush(ctx context.Context) error {
	pattern := fmt.Sprintf(sessionKeyTpl, "*")
	iter := rs.redis.Scan(ctx, 0, pattern, 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan sessions: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := rs.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to drop sessions: %w", err)
	}
	logger.Info.Printf("Dropped %d sessions", len(keys))
	return nil
}

func (rs *RedisSessions) Close() error {
	if rs.redis != nil {
		return rs.redis.Close()
	}
	return nil
}

type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	now      func() time.Time
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{
		sessions: make(map[string]models.Session),
		now:      time.Now,
	}
}

func (ms *MemorySessions) Save(_ context.Context, session *models.Session, _ time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sessions[session.Token] = *session
	return nil
}

func (ms *MemorySessions) Get(_ context.Context, token string) (*models.Session, error) {
	ms.mu.RLock()
	session, ok := ms.sessions[token]
	ms.mu.RUnlock()

	if !ok {
		return nil, apperrors.ErrNoSession
	}
	if session.Expired(ms.now()) {
		ms.mu.Lock()
		delete(ms.sessions, token)
		ms.mu.Unlock()
		return nil, apperrors.ErrNoSession
	}
	return &session, nil
}

func (ms *MemorySessions) Delete(_ context.Context, token string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.sessions, token)
	return nil
}

func (ms *MemorySessions) Flush(_ context.Context) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sessions = make(map[string]models.Session)
	return nil
}

func (ms *MemorySessions) Close() error {
	return nil
}
