// file: internal/database/sqlite_store.go
// version: 1.2.0
// guid: 8b9c0d1e-2f3a-4b5c-6d7e-8f9a0b1c2d3e

package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const bookSelectColumns = `
	id, title, author, total_pages, current_page,
	is_read, last_read_at, added_at, cover_color, bookmarks
`

func scanBook(scanner rowScanner, book *Book) error {
	var isRead int
	var bookmarksJSON sql.NullString

	err := scanner.Scan(
		&book.ID, &book.Title, &book.Author, &book.TotalPages,
		&book.CurrentPage, &isRead, &book.LastReadAt, &book.AddedAt,
		&book.CoverColor, &bookmarksJSON,
	)
	if err != nil {
		return err
	}

	book.IsRead = isRead == 1
	book.Bookmarks = nil
	if bookmarksJSON.Valid && bookmarksJSON.String != "" {
		if err := json.Unmarshal([]byte(bookmarksJSON.String), &book.Bookmarks); err != nil {
			return fmt.Errorf("failed to decode bookmarks for %s: %w", book.ID, err)
		}
	}
	return nil
}

// SQLiteStore implements the Store interface using SQLite3
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

// createTables creates all required tables
func (s *SQLiteStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		total_pages INTEGER NOT NULL DEFAULT 0,
		current_page INTEGER NOT NULL DEFAULT 1,
		is_read INTEGER NOT NULL DEFAULT 0,
		last_read_at INTEGER NOT NULL,
		added_at INTEGER NOT NULL,
		cover_color TEXT NOT NULL DEFAULT '',
		bookmarks TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_books_last_read_at ON books(last_read_at);

	CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		FOREIGN KEY (id) REFERENCES books(id)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'string',
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeBookmarks(bookmarks []int) (interface{}, error) {
	if len(bookmarks) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(bookmarks)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Book operations

func (s *SQLiteStore) PutBookAndFile(book *Book, data []byte) error {
	bookmarks, err := encodeBookmarks(book.Bookmarks)
	if err != nil {
		return fmt.Errorf("failed to encode bookmarks for %s: %w", book.ID, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO books (id, title, author, total_pages, current_page, is_read, last_read_at, added_at, cover_color, bookmarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			total_pages = excluded.total_pages,
			current_page = excluded.current_page,
			is_read = excluded.is_read,
			last_read_at = excluded.last_read_at,
			added_at = excluded.added_at,
			cover_color = excluded.cover_color,
			bookmarks = excluded.bookmarks
	`, book.ID, book.Title, book.Author, book.TotalPages, book.CurrentPage,
		boolToInt(book.IsRead), book.LastReadAt, book.AddedAt, book.CoverColor, bookmarks)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO files (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`, book.ID, data)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListBooks() ([]Book, error) {
	rows, err := s.db.Query(`
		SELECT ` + bookSelectColumns + `
		FROM books
		ORDER BY last_read_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		var book Book
		if err := scanBook(rows, &book); err != nil {
			return nil, err
		}
		books = append(books, book)
	}

	return books, rows.Err()
}

func (s *SQLiteStore) GetBook(id string) (*Book, error) {
	var book Book
	err := scanBook(s.db.QueryRow(`
		SELECT `+bookSelectColumns+`
		FROM books
		WHERE id = ?
	`, id), &book)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (s *SQLiteStore) GetFile(id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM files WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *SQLiteStore) UpdateBook(id string, mutate func(*Book) error) (*Book, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var book Book
	err = scanBook(tx.QueryRow(`
		SELECT `+bookSelectColumns+`
		FROM books
		WHERE id = ?
	`, id), &book)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("update book %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := mutate(&book); err != nil {
		return nil, err
	}

	bookmarks, err := encodeBookmarks(book.Bookmarks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bookmarks for %s: %w", id, err)
	}

	_, err = tx.Exec(`
		UPDATE books
		SET title = ?, author = ?, total_pages = ?, current_page = ?,
			is_read = ?, last_read_at = ?, added_at = ?, cover_color = ?, bookmarks = ?
		WHERE id = ?
	`, book.Title, book.Author, book.TotalPages, book.CurrentPage,
		boolToInt(book.IsRead), book.LastReadAt, book.AddedAt, book.CoverColor, bookmarks, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &book, nil
}

func (s *SQLiteStore) DeleteBookAndFile(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Deleting a nonexistent id is a no-op, not an error.
	if _, err := tx.Exec(`DELETE FROM files WHERE id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM books WHERE id = ?`, id); err != nil {
		return err
	}

	return tx.Commit()
}

// ListFileIDs returns the id of every stored document blob
func (s *SQLiteStore) ListFileIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM files ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) CountBooks() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM books`).Scan(&count)
	return count, err
}
