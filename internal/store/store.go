package store

import (
	"gorm.io/gorm"
)

// Store is the GORM-backed persistence layer shared by the dispatcher, the
// emitter, and the HTTP handlers. Consumers declare their own narrow
// interfaces over it so tests can substitute in-memory fakes.
type Store struct {
	db *gorm.DB
}

// New creates a store backed by the given database handle
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}
