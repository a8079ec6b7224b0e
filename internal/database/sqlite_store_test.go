// file: internal/database/sqlite_store_test.go
// version: 1.0.1
// guid: 6e7f8a9b-0c1d-2e3f-4a5b-6c7d8e9f0a1b

package database

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	ulid "github.com/oklog/ulid/v2"
)

// setupSQLiteTestDB creates a temporary SQLite database for testing
func setupSQLiteTestDB(t *testing.T) Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("Failed to create test SQLite database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

// TestSQLitePutGetDelete mirrors the Pebble atomicity and symmetry checks
func TestSQLitePutGetDelete(t *testing.T) {
	store := setupSQLiteTestDB(t)

	id := ulid.Make().String()
	data := []byte("%PDF-1.4 sqlite payload")
	book := testBook(id, "SQLite Book", 100)
	book.Bookmarks = []int{2, 5}

	if err := store.PutBookAndFile(book, data); err != nil {
		t.Fatalf("Failed to put book and file: %v", err)
	}

	got, err := store.GetBook(id)
	if err != nil {
		t.Fatalf("Failed to get book: %v", err)
	}
	if got == nil || got.Title != "SQLite Book" {
		t.Fatalf("Unexpected book %+v", got)
	}
	if !intSliceEqual(got.Bookmarks, []int{2, 5}) {
		t.Errorf("Expected bookmarks [2 5], got %v", got.Bookmarks)
	}

	file, err := store.GetFile(id)
	if err != nil {
		t.Fatalf("Failed to get file: %v", err)
	}
	if !bytes.Equal(file, data) {
		t.Error("Expected file bytes to round trip unchanged")
	}

	if err := store.DeleteBookAndFile(id); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	got, err = store.GetBook(id)
	if err != nil || got != nil {
		t.Errorf("Expected nil book after delete, got %+v err %v", got, err)
	}
	file, err = store.GetFile(id)
	if err != nil || file != nil {
		t.Errorf("Expected nil file after delete, got %d bytes err %v", len(file), err)
	}

	// Idempotent delete
	if err := store.DeleteBookAndFile(id); err != nil {
		t.Errorf("Expected idempotent delete, got %v", err)
	}
}

// TestSQLiteListOrdering verifies most-recently-read-first ordering
func TestSQLiteListOrdering(t *testing.T) {
	store := setupSQLiteTestDB(t)

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

// TestSQLiteUpdateBook tests the transactional read-modify-write path
func TestSQLiteUpdateBook(t *testing.T) {
	store := setupSQLiteTestDB(t)

	id := ulid.Make().String()
	if err := store.PutBookAndFile(testBook(id, "Book", 100), []byte("pdf")); err != nil {
		t.Fatalf("Failed to put book: %v", err)
	}

	updated, err := store.UpdateBook(id, func(b *Book) error {
		b.CurrentPage = 10
		b.IsRead = true
		b.Bookmarks = []int{3}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to update book: %v", err)
	}
	if !updated.IsRead || updated.CurrentPage != 10 {
		t.Errorf("Unexpected updated book %+v", updated)
	}

	reread, err := store.GetBook(id)
	if err != nil {
		t.Fatalf("Failed to get book: %v", err)
	}
	if !reread.IsRead || !intSliceEqual(reread.Bookmarks, []int{3}) {
		t.Error("Update was not durable")
	}

	_, err = store.UpdateBook("missing", func(b *Book) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestSQLiteMutatorErrorAborts verifies a failing mutator rolls back
func TestSQLiteMutatorErrorAborts(t *testing.T) {
	store := setupSQLiteTestDB(t)

	id := ulid.Make().String()
	if err := store.PutBookAndFile(testBook(id, "Book", 100), []byte("pdf")); err != nil {
		t.Fatalf("Failed to put book: %v", err)
	}

	wantErr := errors.New("mutator failure")
	_, err := store.UpdateBook(id, func(b *Book) error {
		b.CurrentPage = 42
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
		t.Errorf("Expected rollback, got currentPage %d", book.CurrentPage)
	}
}

// TestSQLiteSettings tests the settings table round trip
func TestSQLiteListFileIDs(t *testing.T) {
	store := setupSQLiteTestDB(t)

	ids, err := store.ListFileIDs()
	if err != nil {
		t.Fatalf("Failed to list file ids: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected no file ids in empty store, got %v", ids)
	}

	id := ulid.Make().String()
	if err := store.PutBookAndFile(testBook(id, "Blob Owner", 100), []byte("pdf")); err != nil {
		t.Fatalf("Failed to put book: %v", err)
	}

	ids, err = store.ListFileIDs()
	if err != nil {
		t.Fatalf("Failed to list file ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Errorf("Expected [%s], got %v", id, ids)
	}
}

func TestSQLiteSettings(t *testing.T) {
	store := setupSQLiteTestDB(t)

	if err := store.SetSetting(SettingStreakCount, "4", "int"); err != nil {
		t.Fatalf("Failed to set setting: %v", err)
	}
	if got := GetIntSetting(store, SettingStreakCount, 0); got != 4 {
		t.Errorf("Expected 4, got %d", got)
	}

	// Upsert path
	if err := store.SetSetting(SettingStreakCount, "5", "int"); err != nil {
		t.Fatalf("Failed to update setting: %v", err)
	}
	if got := GetIntSetting(store, SettingStreakCount, 0); got != 5 {
		t.Errorf("Expected 5 after upsert, got %d", got)
	}

	settings, err := store.GetAllSettings()
	if err != nil {
		t.Fatalf("Failed to list settings: %v", err)
	}
	if len(settings) != 1 {
		t.Errorf("Expected 1 setting, got %d", len(settings))
	}
}
