package db

import (
	stderrors "errors"
	"fmt"
	"log"

	"taskboard/internal/domain/errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migration applies every pending up migration found in migratePath.
// An already current schema is not an error.
func Migration(dbDSN, migratePath string) error {
	if dbDSN == "" || migratePath == "" {
		return fmt.Errorf("migration: %w", errors.ErrInvalidInput)
	}

	m, err := migrate.New("file://"+migratePath, dbDSN)
	if err != nil {
		log.Println("[ERROR] Failed to initialise migrations:", err)
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.Println("[WARN] Failed to close migrator:", srcErr, dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			log.Println("[INFO] Database schema is up to date")
			return nil
		}
		log.Println("[ERROR] Failed to apply migrations:", err)
		return err
	}
	log.Println("[SUCCESS] Migrations applied")
	return nil
}
