// file: internal/database/pebble_store.go
// version: 1.1.0
// guid: 7c6d5e4f-3a2b-4c1d-8e9f-0a1b2c3d4e5f

package database

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble/v2"
)

// PebbleStore implements the Store interface using PebbleDB (LSM key-value store)
//
// Key Schema:
// - book:<id>      -> Book JSON
// - file:<id>      -> raw PDF bytes
// - setting:<key>  -> Setting JSON
//
// book:<id> and file:<id> share the same ULID identifier space and are always
// written and deleted in a single batch so neither can outlive the other.

type PebbleStore struct {
	db *pebble.DB
}

// NewPebbleStore creates a new PebbleDB store
func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open PebbleDB: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Close closes the database
func (p *PebbleStore) Close() error {
	return p.db.Close()
}

func bookKey(id string) []byte {
	return []byte("book:" + id)
}

func fileKey(id string) []byte {
	return []byte("file:" + id)
}

// Book operations

func (p *PebbleStore) PutBookAndFile(book *Book, data []byte) error {
	encoded, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("failed to encode book %s: %w", book.ID, err)
	}

	batch := p.db.NewBatch()
	if err := batch.Set(bookKey(book.ID), encoded, nil); err != nil {
		batch.Close()
		return err
	}
	if err := batch.Set(fileKey(book.ID), data, nil); err != nil {
		batch.Close()
		return err
	}

	return batch.Commit(pebble.Sync)
}

func (p *PebbleStore) ListBooks() ([]Book, error) {
	var books []Book
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("book:"),
		UpperBound: []byte("book:\xff"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var book Book
		if err := json.Unmarshal(iter.Value(), &book); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	sortBooksByLastRead(books)
	return books, nil
}

// sortBooksByLastRead orders most recently read first. Ties break by ID
// descending so the ordering stays deterministic.
func sortBooksByLastRead(books []Book) {
	sort.Slice(books, func(i, j int) bool {
		if books[i].LastReadAt != books[j].LastReadAt {
			return books[i].LastReadAt > books[j].LastReadAt
		}
		return books[i].ID > books[j].ID
	})
}

func (p *PebbleStore) GetBook(id string) (*Book, error) {
	value, closer, err := p.db.Get(bookKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var book Book
	if err := json.Unmarshal(value, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (p *PebbleStore) GetFile(id string) ([]byte, error) {
	value, closer, err := p.db.Get(fileKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// The value is only valid until the closer is released, so copy it out.
	data := make([]byte, len(value))
	copy(data, value)
	return data, nil
}

func (p *PebbleStore) UpdateBook(id string, mutate func(*Book) error) (*Book, error) {
	book, err := p.GetBook(id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, fmt.Errorf("update book %s: %w", id, ErrNotFound)
	}

	if err := mutate(book); err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(book)
	if err != nil {
		return nil, fmt.Errorf("failed to encode book %s: %w", id, err)
	}
	if err := p.db.Set(bookKey(id), encoded, pebble.Sync); err != nil {
		return nil, err
	}

	return book, nil
}

func (p *PebbleStore) DeleteBookAndFile(id string) error {
	// Missing entries are a no-op; pebble deletes do not error on absence.
	batch := p.db.NewBatch()
	if err := batch.Delete(bookKey(id), nil); err != nil {
		batch.Close()
		return err
	}
	if err := batch.Delete(fileKey(id), nil); err != nil {
		batch.Close()
		return err
	}
	return batch.Commit(pebble.Sync)
}

// ListFileIDs returns the id of every stored document blob. Used by the
// diagnostics tooling to find blobs that lost their book record.
func (p *PebbleStore) ListFileIDs() ([]string, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("file:"),
		UpperBound: []byte("file:\xff"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var ids []string
	for iter.First(); iter.Valid(); iter.Next() {
		ids = append(ids, string(iter.Key()[len("file:"):]))
	}
	return ids, iter.Error()
}

func (p *PebbleStore) CountBooks() (int, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("book:"),
		UpperBound: []byte("book:\xff"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	count := 0
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	return count, iter.Error()
}
