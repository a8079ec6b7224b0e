// file: internal/database/store.go
// version: 1.3.0
// guid: 3f2a1b0c-9d8e-4f7a-b6c5-d4e3f2a1b0c9

package database

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a mutation targets a book that does not exist.
// Reads report absence as a nil result instead; deletes treat absence as success.
var ErrNotFound = errors.New("book not found")

// Store defines the interface for our database operations
// This abstraction allows us to support both PebbleDB (default) and SQLite3 (opt-in)
type Store interface {
	// Lifecycle
	Close() error

	// Books and their raw PDF payloads. The two collections share the same
	// ULID identifier space and are always written and deleted together.
	PutBookAndFile(book *Book, data []byte) error
	ListBooks() ([]Book, error)
	GetBook(id string) (*Book, error)
	GetFile(id string) ([]byte, error)
	UpdateBook(id string, mutate func(*Book) error) (*Book, error)
	DeleteBookAndFile(id string) error
	CountBooks() (int, error)
	ListFileIDs() ([]string, error)

	// Settings (streak scalars, display preferences, schema version)
	GetSetting(key string) (*Setting, error)
	SetSetting(key, value, typ string) error
	GetAllSettings() ([]Setting, error)
	DeleteSetting(key string) error
}

// Book represents one uploaded PDF document and the reader's progress through it
type Book struct {
	ID          string `json:"id"` // ULID format
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	TotalPages  int    `json:"total_pages"`  // 0 = not yet known
	CurrentPage int    `json:"current_page"` // 1-based
	IsRead      bool   `json:"is_read"`
	LastReadAt  int64  `json:"last_read_at"` // epoch millis
	AddedAt     int64  `json:"added_at"`     // epoch millis
	CoverColor  string `json:"cover_color"`
	Bookmarks   []int  `json:"bookmarks,omitempty"` // sorted ascending, unique
}

// Global store instance
var GlobalStore Store

// InitializeStore initializes the database store based on configuration
func InitializeStore(dbType, path string, enableSQLite bool) error {
	var err error

	switch dbType {
	case "sqlite", "sqlite3":
		if !enableSQLite {
			return fmt.Errorf("SQLite3 is not enabled. To use SQLite3, you must explicitly enable it with --enable-sqlite3-i-know-the-risks or set 'enable_sqlite3_i_know_the_risks: true' in your config file. PebbleDB is the recommended database for production use")
		}
		GlobalStore, err = NewSQLiteStore(path)
		if err != nil {
			return fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
	case "pebble", "":
		// PebbleDB is the default
		GlobalStore, err = NewPebbleStore(path)
		if err != nil {
			return fmt.Errorf("failed to initialize PebbleDB store: %w", err)
		}
	default:
		return fmt.Errorf("unsupported database type: %s (supported: pebble, sqlite)", dbType)
	}

	// Run migrations to ensure schema is up to date
	if err := RunMigrations(GlobalStore); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CloseStore closes the global store
func CloseStore() error {
	if GlobalStore != nil {
		return GlobalStore.Close()
	}
	return nil
}
