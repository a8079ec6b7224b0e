// file: internal/database/pebble_store_test.go
// version: 1.0.2
// guid: 4d5e6f7a-8b9c-0d1e-2f3a-4b5c6d7e8f9a

package database

import (
	"bytes"
	"errors"
	"os"
	"testing"

	ulid "github.com/oklog/ulid/v2"
)

// setupPebbleTestDB creates a temporary PebbleDB database for testing
// Returns the store and a cleanup function
func setupPebbleTestDB(t *testing.T) (Store, func()) {
	tmpdir := "/tmp/test_pebble_" + ulid.Make().String()

	store, err := NewPebbleStore(tmpdir)
	if err != nil {
		t.Fatalf("Failed to create test Pebble database: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpdir)
	}

	return store, cleanup
}

func testBook(id, title string, lastReadAt int64) *Book {
	return &Book{
		ID:          id,
		Title:       title,
		TotalPages:  10,
		CurrentPage: 1,
		LastReadAt:  lastReadAt,
		AddedAt:     lastReadAt,
		CoverColor:  "#FFDE59",
	}
}

// TestNewPebbleStore tests Pebble store creation
func TestNewPebbleStore(t *testing.T) {
	store, cleanup := setupPebbleTestDB(t)
	defer cleanup()

	if store == nil {
		t.Fatal("Expected non-nil store")
	}
}

// TestPebblePutBookAndFile verifies the record and blob are written together
// and round trip byte for byte.
func TestPebblePutBookAndFile(t *testing.T) {
	store, cleanup := setupPebbleTestDB(t)
	defer cleanup()

	id := ulid.Make().String()
	data := []byte("%PDF-1.4 test payload")

	if err := store.PutBookAndFile(testBook(id, "Test Book", 100), data); err != nil {
		t.Fatalf("Failed to put book and file: %v", err)
	}

	book, err := store.GetBook(id)
	if err != nil {
		t.Fatalf("Failed to get book: %v", err)
	}
	if book == nil {
		t.Fatal("Expected book after put")
	}
	if book.Title != "Test Book" {
		t.Errorf("Expected title 'Test Book', got '%s'", book.Title)
	}

	file, err := store.GetFile(id)
	if err != nil {
		t.Fatalf("Failed to get file: %v", err)
	}
	if !bytes.Equal(file, data) {
		t.Error("Expected file bytes to round trip unchanged")
	}
}

// TestPebbleGetAbsent asserts that absence is reported as nil, not an error
func TestPebbleGetAbsent(t *testing.T) {
	store, cleanup := setupPebbleTestDB(t)
	defer cleanup()

	book, err := store.GetBook("nonexistent")
	if err != nil {
		t.Fatalf("Unexpected error for missing book: %v", err)
	}
	if book != nil {
		t.Error("Expected nil book for missing id")
	}

	file, err := store.GetFile("nonexistent")
	if err != nil {
		t.Fatalf("Unexpected error for missing file: %v", err)
	}
	if file != nil {
		t.Error("Expected nil file for missing id")
	}
}

// TestPebbleListBooksOrdering verifies most-recently-read-first ordering
func TestPebbleListBooksOrdering(t *testing.T) {
	store, cleanup := setupPebbleTestDB(t)
	defer cleanup()

	for _, ts := range []int64{100, 300, 200} {
		id := ulid.Make().String()
		if err := store.PutBookAndFile(testBook(id, "Book", ts), []byte("pdf")); err != nil {
			t.Fatalf("Failed to put book: %v", err)
		}
	}

	books, err := store.ListBooks()
	if err != nil {
		t.Fatalf("Failed to list books: %v", err)
	}

	want := []int64{300, 200, 100}
	if len(books) != len(want) {
		t.Fatalf("Expected %d books, got %d", len(want), len(books))
	}
	for i, ts := range want {
		if books[i].LastReadAt != ts {
			t.Errorf("Position %d: expected lastReadAt %d, got %d", i, ts, books[i].LastReadAt)
		}
	}
}

// TestPebbleListBooksEmpty verifies an empty store lists cleanly
func TestPebbleListBooksEmpty(t *testing.T) {
	store, cleanup := setupPebbleTestDB(t)
	defer cleanup()

	books, err := store.ListBooks()
	if err != nil {
		t.Fatalf("Failed to list books: %v", err)
	}
	if len(books) != 0 {
		t.Errorf("Expected empty list, got %d books", len(books))
	}
}

// TestPebbleUpdateBook tests the read-modify-write path
func TestPebbleUpdateBook(t *testing.T) {
	store, cleanup := setupPebbleTestDB(t)
	defer cleanup()

	id := ulid.Make().String()
	if err := store.PutBookAndFile(testBook(id, "Book", 100), []byte("pdf")); err != nil {
		t.Fatalf("Failed to put book: %v", err)
	}

	updated, err := store.UpdateBook(id, func(b *Book) error {
		b.CurrentPage = 5
		b.LastReadAt = 500
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to update book: %v", err)
	}
	if updated.CurrentPage != 5 {
		t.Errorf("Expected currentPage 5, got %d", updated.CurrentPage)
	}

	reread, err := store.GetBook(id)
	if err != nil {
		t.Fatalf("Failed to get book: %v", err)
	}
	if reread.CurrentPage != 5 || reread.LastReadAt != 500 {
		t.Error("Update was not durable")
	}
}

// TestPebbleUpdateBookNotFound verifies ErrNotFound for a missing target
func TestPebbleUpdateBookNotFound(t *testing.T) {
	store, cleanup := setupPebbleTestDB(t)
	defer cleanup()

	_, err := store.UpdateBook("missing", func(b *Book) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestPebbleUpdateBookMutatorError verifies a failing mutator aborts the write
func TestPebbleUpdateBookMutatorError(t *testing.T) {
	store, cleanup := setupPebbleTestDB(t)
	defer cleanup()

	id := ulid.Make().String()
	if err := store.PutBookAndFile(testBook(id, "Book", 100), []byte("pdf")); err != nil {
		t.Fatalf("Failed to put book: %v", err)
	}

	wantErr := errors.New("mutator failure")
	_, err := store.UpdateBook(id, func(b *Book) error {
		b.CurrentPage = 99
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected mutator error, got %v", err)
	}

	book, err := store.GetBook(id)
	if err != nil {
		t.Fatalf("Failed to get book: %v", err)
	}
	if book.CurrentPage != 1 {
		t.Errorf("Expected write to be aborted, got currentPage %d", book.CurrentPage)
	}
}

// TestPebbleDeleteBookAndFile tests dual deletion and idempotence
func TestPebbleDeleteBookAndFile(t *testing.T) {
	store, cleanup := setupPebbleTestDB(t)
	defer cleanup()

	id := ulid.Make().String()
	if err := store.PutBookAndFile(testBook(id, "Book to Delete", 100), []byte("pdf")); err != nil {
		t.Fatalf("Failed to put book: %v", err)
	}

	if err := store.DeleteBookAndFile(id); err != nil {
		t.Fatalf("Failed to delete book: %v", err)
	}

	book, err := store.GetBook(id)
	if err != nil {
		t.Fatalf("Unexpected error when getting deleted book: %v", err)
	}
	if book != nil {
		t.Error("Expected book to be nil after deletion")
	}

	file, err := store.GetFile(id)
	if err != nil {
		t.Fatalf("Unexpected error when getting deleted file: %v", err)
	}
	if file != nil {
		t.Error("Expected file to be nil after deletion")
	}

	// Second delete is a no-op, not an error.
	if err := store.DeleteBookAndFile(id); err != nil {
		t.Errorf("Expected idempotent delete, got %v", err)
	}
}

func TestPebbleListFileIDs(t *testing.T) {
	store, cleanup := setupPebbleTestDB(t)
	defer cleanup()

	ids, err := store.ListFileIDs()
	if err != nil {
		t.Fatalf("Failed to list file ids: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected no file ids in empty store, got %v", ids)
	}

	idA := ulid.Make().String()
	idB := ulid.Make().String()
	if err := store.PutBookAndFile(testBook(idA, "A", 100), []byte("a")); err != nil {
		t.Fatalf("Failed to put book: %v", err)
	}
	if err := store.PutBookAndFile(testBook(idB, "B", 200), []byte("b")); err != nil {
		t.Fatalf("Failed to put book: %v", err)
	}

	ids, err = store.ListFileIDs()
	if err != nil {
		t.Fatalf("Failed to list file ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("Expected 2 file ids, got %d", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[idA] || !seen[idB] {
		t.Errorf("Expected ids %s and %s, got %v", idA, idB, ids)
	}
}

// TestPebbleCountBooks tests the book counter
func TestPebbleCountBooks(t *testing.T) {
	store, cleanup := setupPebbleTestDB(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		id := ulid.Make().String()
		if err := store.PutBookAndFile(testBook(id, "Book", int64(i)), []byte("pdf")); err != nil {
			t.Fatalf("Failed to put book: %v", err)
		}
	}

	count, err := store.CountBooks()
	if err != nil {
		t.Fatalf("Failed to count books: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 books, got %d", count)
	}
}

// TestPebbleSettings tests settings round trip and deletion
func TestPebbleSettings(t *testing.T) {
	store, cleanup := setupPebbleTestDB(t)
	defer cleanup()

	if _, err := store.GetSetting("missing"); err == nil {
		t.Error("Expected error for missing setting")
	}

	if err := store.SetSetting(SettingDarkMode, "true", "bool"); err != nil {
		t.Fatalf("Failed to set setting: %v", err)
	}

	setting, err := store.GetSetting(SettingDarkMode)
	if err != nil {
		t.Fatalf("Failed to get setting: %v", err)
	}
	if setting.Value != "true" || setting.Type != "bool" {
		t.Errorf("Unexpected setting %+v", setting)
	}

	if !GetBoolSetting(store, SettingDarkMode, false) {
		t.Error("Expected GetBoolSetting true")
	}

	if err := SetIntSetting(store, SettingStreakCount, 7); err != nil {
		t.Fatalf("Failed to set int setting: %v", err)
	}
	if got := GetIntSetting(store, SettingStreakCount, 0); got != 7 {
		t.Errorf("Expected 7, got %d", got)
	}

	if err := store.DeleteSetting(SettingDarkMode); err != nil {
		t.Fatalf("Failed to delete setting: %v", err)
	}
	if _, err := store.GetSetting(SettingDarkMode); err == nil {
		t.Error("Expected error after deleting setting")
	}
}

// TestRunMigrations verifies migrations apply once and record the version
func TestRunMigrations(t *testing.T) {
	store, cleanup := setupPebbleTestDB(t)
	defer cleanup()

	if err := RunMigrations(store); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	version := GetIntSetting(store, SettingStoreVersion, 0)
	if version != migrations[len(migrations)-1].Version {
		t.Errorf("Expected version %d, got %d", migrations[len(migrations)-1].Version, version)
	}

	// Running again must be a no-op.
	if err := RunMigrations(store); err != nil {
		t.Fatalf("Failed to re-run migrations: %v", err)
	}
}

// TestMigrationNormalizesBookmarks verifies migration 2 fixes legacy bookmark order
func TestMigrationNormalizesBookmarks(t *testing.T) {
	store, cleanup := setupPebbleTestDB(t)
	defer cleanup()

	id := ulid.Make().String()
	book := testBook(id, "Book", 100)
	book.Bookmarks = []int{9, 2, 9, 4}
	if err := store.PutBookAndFile(book, []byte("pdf")); err != nil {
		t.Fatalf("Failed to put book: %v", err)
	}

	if err := RunMigrations(store); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	fixed, err := store.GetBook(id)
	if err != nil {
		t.Fatalf("Failed to get book: %v", err)
	}
	want := []int{2, 4, 9}
	if !intSliceEqual(fixed.Bookmarks, want) {
		t.Errorf("Expected bookmarks %v, got %v", want, fixed.Bookmarks)
	}
}
