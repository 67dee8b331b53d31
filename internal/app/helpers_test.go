package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shrimpsizemoose/studentbulle/internal/store/sqlite"
)

func testConfig() *Config {
	config := DefaultConfig()
	config.Database.DSN = ":memory:"
	config.Auth.BcryptCost = bcrypt.MinCost
	return config
}

// newTestService builds a service on an in-memory database and in-process sessions.
func newTestService(t *testing.T) (*Service, *MemorySessions) {
	t.Helper()

	st, err := sqlite.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	sessions := NewMemorySessions()
	s, err := NewServiceWith(context.Background(), testConfig(), st, sessions)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s, sessions
}
