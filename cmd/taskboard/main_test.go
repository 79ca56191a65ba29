package main

import (
	"context"
	"net"
	"testing"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/domain/models"
	"taskboard/internal/server"
	inmemory "taskboard/repository/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStorageFallsBackToMemory(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*server.Config)
	}{
		{
			name:   "memory requested",
			mutate: func(c *server.Config) { c.Storage = server.StorageMemory },
		},
		{
			name: "postgres without migrations",
			mutate: func(c *server.Config) {
				c.Storage = server.StoragePostgres
				c.MigratePath = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := server.DefaultConfig()
			tt.mutate(cfg)

			repo := openStorage(context.Background(), cfg)
			require.NotNil(t, repo)
			assert.IsType(t, &inmemory.Storage{}, repo)
			assert.NoError(t, repo.Close())
		})
	}
}

func TestTokenSecret(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.JWTSecret = "configured"
	secret, err := tokenSecret(cfg)
	require.NoError(t, err)
	assert.Equal(t, []byte("configured"), secret)

	cfg.JWTSecret = ""
	first, err := tokenSecret(cfg)
	require.NoError(t, err)
	second, err := tokenSecret(cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestNewRevoker(t *testing.T) {
	tests := []struct {
		name      string
		redisAddr string
	}{
		{name: "no redis configured", redisAddr: ""},
		{name: "redis unreachable", redisAddr: "127.0.0.1:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := server.DefaultConfig()
			cfg.RedisAddr = tt.redisAddr

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			revoker, closeFn := newRevoker(ctx, cfg)
			defer closeFn()

			assert.IsType(t, &auth.MemoryRevoker{}, revoker)
		})
	}
}

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("incomplete seed config is a no-op", func(t *testing.T) {
		repo := inmemory.NewStorage()
		cfg := server.DefaultConfig()
		cfg.AdminUsername = "root"

		require.NoError(t, seedAdmin(ctx, repo, cfg))
		users, err := repo.ListUsers(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("creates the admin once", func(t *testing.T) {
		repo := inmemory.NewStorage()
		cfg := server.DefaultConfig()
		cfg.AdminUsername = "root"
		cfg.AdminEmail = "root@example.com"
		cfg.AdminPassword = "rootpassword"

		require.NoError(t, seedAdmin(ctx, repo, cfg))
		require.NoError(t, seedAdmin(ctx, repo, cfg))

		users, err := repo.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, models.RoleAdmin, users[0].Role)
		assert.True(t, auth.CheckPassword("rootpassword", users[0].PasswordHash))
	})
}

func newServeAPI(t *testing.T, port int) *server.BoardAPI {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.Addr = "127.0.0.1"
	cfg.Port = port
	tokens, err := auth.NewTokens([]byte("serve-secret"), time.Hour)
	require.NoError(t, err)
	api := server.NewBoardAPI(inmemory.NewStorage(), tokens, nil, cfg)
	require.NotNil(t, api)
	return api
}

func TestServeGracefulShutdown(t *testing.T) {
	api := newServeAPI(t, 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- serve(ctx, api) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}

func TestServeReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	api := newServeAPI(t, ln.Addr().(*net.TCPAddr).Port)

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), api) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not report the busy port")
	}
}
