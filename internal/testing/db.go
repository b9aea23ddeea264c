// Package testing provides test helpers and fixtures for the ahlab packages.
package testing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ahlab/ahlab/internal/database"
)

// NewTestDB creates a migrated sqlite database in a temporary directory.
// Returns the database and a cleanup function that closes it.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	path := filepath.Join(t.TempDir(), name+".db")
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileScratch,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	}
}

// WriteFile writes content under a fresh temp dir and returns its path
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}
