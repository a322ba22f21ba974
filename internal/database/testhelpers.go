package database

import (
	"fmt"

	"tiendatec/internal/config"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InMemoryDSN returns a DSN for a private, shared-cache SQLite memory database
// with foreign keys enforced. Each call yields a distinct database.
func InMemoryDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.New().String())
}

// OpenInMemory opens and migrates a fresh in-memory SQLite database. It backs
// repository and HTTP tests.
func OpenInMemory() (*gorm.DB, error) {
	return Open(&config.Config{DatabaseDriver: "sqlite", DatabaseDSN: InMemoryDSN()})
}
