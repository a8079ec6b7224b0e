// file: internal/database/migrations.go
// version: 1.1.0
// guid: 2e1f0a9b-8c7d-4e5f-a6b7-c8d9e0f1a2b3

package database

import (
	"fmt"
	"log"
	"sort"
	"strconv"
)

// MigrationFunc represents a migration operation
type MigrationFunc func(store Store) error

// Migration represents a single store migration
type Migration struct {
	Version     int
	Description string
	Up          MigrationFunc
}

// migrations is the ordered list of all migrations. Every migration must be
// idempotent and non-destructive to existing data.
var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema with books, files and settings collections",
		Up:          migration001Up,
	},
	{
		Version:     2,
		Description: "Normalize bookmark sets (sorted, duplicate-free)",
		Up:          migration002Up,
	},
}

// RunMigrations applies all pending migrations
func RunMigrations(store Store) error {
	currentVersion := getCurrentVersion(store)

	log.Printf("Current store version: %d", currentVersion)

	pendingMigrations := []Migration{}
	for _, m := range migrations {
		if m.Version > currentVersion {
			pendingMigrations = append(pendingMigrations, m)
		}
	}

	if len(pendingMigrations) == 0 {
		log.Printf("Store is up to date (version %d)", currentVersion)
		return nil
	}

	log.Printf("Applying %d migrations...", len(pendingMigrations))

	for _, m := range pendingMigrations {
		log.Printf("Applying migration %d: %s", m.Version, m.Description)

		if err := m.Up(store); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}

		if err := store.SetSetting(SettingStoreVersion, strconv.Itoa(m.Version), "int"); err != nil {
			return fmt.Errorf("failed to update version to %d: %w", m.Version, err)
		}

		log.Printf("Migration %d completed successfully", m.Version)
	}

	return nil
}

// getCurrentVersion retrieves the current schema version, 0 for a fresh store
func getCurrentVersion(store Store) int {
	return GetIntSetting(store, SettingStoreVersion, 0)
}

// Migration implementations

// migration001Up initializes the basic schema
func migration001Up(store Store) error {
	// The books, files and settings collections are created by store
	// initialization; this migration only marks the baseline version.
	log.Println("  - Validating basic schema (books, files, settings)")
	return nil
}

// migration002Up rewrites any bookmark list that is unsorted or contains
// duplicates. Records written by older builds stored bookmarks in toggle order.
func migration002Up(store Store) error {
	books, err := store.ListBooks()
	if err != nil {
		return err
	}

	fixed := 0
	for _, book := range books {
		normalized := normalizeBookmarks(book.Bookmarks)
		if intSliceEqual(normalized, book.Bookmarks) {
			continue
		}
		if _, err := store.UpdateBook(book.ID, func(b *Book) error {
			b.Bookmarks = normalized
			return nil
		}); err != nil {
			return err
		}
		fixed++
	}

	if fixed > 0 {
		log.Printf("  - Normalized bookmarks on %d books", fixed)
	}
	return nil
}

func normalizeBookmarks(bookmarks []int) []int {
	if len(bookmarks) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(bookmarks))
	var out []int
	for _, page := range bookmarks {
		if !seen[page] {
			seen[page] = true
			out = append(out, page)
		}
	}
	sort.Ints(out)
	return out
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
