// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ahlab/ahlab/internal/config"
	"github.com/ahlab/ahlab/internal/database"
)

// InitializeDatabases opens the results database and applies the schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{Config: cfg}

	// Discovered strategies are the product of long runs
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath,
		Profile: database.ProfileDurable,
		Name:    "ahlab",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	container.DB = db

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
	}

	log.Info().Str("path", db.Path()).Msg("Database initialized and schema applied")

	return container, nil
}
