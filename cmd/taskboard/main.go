package main

import (
	"context"
	stderrors "errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/domain/errors"
	"taskboard/internal/domain/models"
	"taskboard/internal/server"
	db "taskboard/repository/db"
	inmemory "taskboard/repository/inmemory"
	"taskboard/repository/mongodb"
)

const shutdownTimeout = 30 * time.Second

type store interface {
	server.Repository
	Close() error
}

func main() {
	log.Println("Starting task board service...")

	cfg, err := server.ReadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("[ERROR] Config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := openStorage(ctx, cfg)
	defer func() {
		if err := repo.Close(); err != nil {
			log.Println("[WARN] Closing storage:", err)
		}
	}()

	secret, err := tokenSecret(cfg)
	if err != nil {
		log.Fatalf("[ERROR] Token secret: %v", err)
	}
	tokens, err := auth.NewTokens(secret, cfg.TokenDuration())
	if err != nil {
		log.Fatalf("[ERROR] Token issuer: %v", err)
	}

	revoker, closeRevoker := newRevoker(ctx, cfg)
	defer closeRevoker()

	if err := seedAdmin(ctx, repo, cfg); err != nil {
		log.Printf("[ERROR] Admin seed failed: %v", err)
	}

	api := server.NewBoardAPI(repo, tokens, revoker, cfg)
	if api == nil {
		log.Fatal("[ERROR] Failed to initialize API")
	}

	if err := serve(ctx, api); err != nil {
		log.Printf("[ERROR] Server error: %v", err)
	}
	log.Println("Service stopped")
}

// openStorage connects the configured backend. When it is unreachable the
// service keeps running on the in-memory store.
func openStorage(ctx context.Context, cfg *server.Config) store {
	switch cfg.Storage {
	case server.StorageMongo:
		s, err := mongodb.NewStorage(ctx, cfg.MongoURI, cfg.MongoDB)
		if err == nil {
			log.Println("[SUCCESS] Connected to MongoDB database", cfg.MongoDB)
			return s
		}
		log.Println("[WARN] MongoDB unavailable, using memory:", err)
	case server.StoragePostgres:
		if err := db.Migration(cfg.DBStr, cfg.MigratePath); err != nil {
			log.Println("[WARN] Migrations failed, using memory:", err)
			break
		}
		log.Println("[SUCCESS] Migrations applied")
		s, err := db.NewStorage(cfg.DBStr)
		if err == nil {
			return s
		}
		log.Println("[WARN] PostgreSQL unavailable, using memory:", err)
	}
	return inmemory.NewStorage()
}

func tokenSecret(cfg *server.Config) ([]byte, error) {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret), nil
	}
	log.Println("[WARN] JWT_SECRET is not set, tokens will not survive a restart")
	return auth.RandomSecret()
}

// newRevoker returns a Redis-backed revocation list when REDIS_ADDR is set
// and reachable, otherwise one kept in process memory.
func newRevoker(ctx context.Context, cfg *server.Config) (auth.Revoker, func()) {
	if cfg.RedisAddr == "" {
		return auth.NewMemoryRevoker(), func() {}
	}
	rdb, err := auth.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Println("[WARN] Redis unavailable, revocations are kept in memory:", err)
		return auth.NewMemoryRevoker(), func() {}
	}
	log.Println("[SUCCESS] Connected to Redis at", cfg.RedisAddr)
	return auth.NewRedisRevoker(rdb), func() {
		if err := rdb.Close(); err != nil {
			log.Println("[WARN] Closing Redis:", err)
		}
	}
}

// seedAdmin creates the configured admin account unless a user with that
// name already exists.
func seedAdmin(ctx context.Context, repo server.Repository, cfg *server.Config) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" || cfg.AdminEmail == "" {
		return nil
	}

	existing, err := repo.GetUserByUsername(ctx, cfg.AdminUsername)
	if err == nil {
		if existing.Role != models.RoleAdmin {
			log.Printf("[WARN] Seed user %s exists without the admin role", cfg.AdminUsername)
		}
		return nil
	}
	if !stderrors.Is(err, errors.ErrUserNotFound) {
		return err
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	admin := models.User{
		Username:     cfg.AdminUsername,
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := repo.CreateUser(ctx, &admin); err != nil {
		return err
	}
	log.Println("[SUCCESS] Admin account seeded:", admin.Username)
	return nil
}

// serve runs the API until ctx is cancelled and then shuts it down gracefully.
func serve(ctx context.Context, api *server.BoardAPI) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- api.Start()
	}()

	select {
	case <-ctx.Done():
		log.Println("[INFO] Shutdown requested, draining connections...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := api.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-serverErr; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		log.Println("[SUCCESS] Graceful shutdown completed")
		return nil

	case err := <-serverErr:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
