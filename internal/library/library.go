// file: internal/library/library.go
// version: 1.3.0
// guid: 7c8d9e0f-1a2b-3c4d-5e6f-7a8b9c0d1e2f

// Package library is the session layer between the UI surface and the
// persistent store. It keeps the in-memory book list consistent with the
// store after every mutation and serializes mutations per book id.
package library

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/lumina-reads/lumina/internal/database"
	"github.com/lumina-reads/lumina/internal/progress"
	"github.com/lumina-reads/lumina/internal/streak"
	ulid "github.com/oklog/ulid/v2"
)

// PageCounter is the rendering capability the session consumes: given raw
// document bytes it reports the total page count. Errors are non-fatal; the
// count stays unknown and is retried on the next open.
type PageCounter interface {
	PageCount(data []byte) (int, error)
}

// coverPalette is the set of cover colors assigned at upload
var coverPalette = []string{"#FFDE59", "#5CE1E6", "#FF66C4", "#8E44AD", "#FF5757"}

// Session orchestrates store, progress engine and streak tracker for the UI
type Session struct {
	store   database.Store
	pages   PageCounter
	tracker *streak.Tracker
	clock   streak.Clock

	mu    sync.RWMutex
	books []database.Book

	// Per-id locks serialize mutations to the same book; operations on
	// different books stay independent.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewSession creates a Session. Call Refresh (or Start) before reading Books.
func NewSession(store database.Store, pages PageCounter, tracker *streak.Tracker, clock streak.Clock) *Session {
	if clock == nil {
		clock = streak.SystemClock()
	}
	return &Session{
		store:   store,
		pages:   pages,
		tracker: tracker,
		clock:   clock,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Session) lockFor(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// Refresh reloads the in-memory list from the store
func (s *Session) Refresh() error {
	books, err := s.store.ListBooks()
	if err != nil {
		return fmt.Errorf("failed to list books: %w", err)
	}

	s.mu.Lock()
	s.books = books
	s.mu.Unlock()
	return nil
}

// Books returns a copy of the in-memory list, most recently read first
func (s *Session) Books() []database.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books := make([]database.Book, len(s.books))
	copy(books, s.books)
	return books
}

// Search returns the books whose titles fuzzy-match query, preserving the
// list order. An empty query returns everything.
func (s *Session) Search(query string) []database.Book {
	books := s.Books()
	if query == "" {
		return books
	}

	var matched []database.Book
	for _, book := range books {
		if fuzzy.MatchNormalizedFold(query, book.Title) {
			matched = append(matched, book)
		}
	}
	return matched
}

// Get returns the in-memory record for id, nil when unknown
func (s *Session) Get(id string) *database.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.books {
		if s.books[i].ID == id {
			book := s.books[i]
			return &book
		}
	}
	return nil
}

// HasTitle reports whether a book with the given title is already in the
// library. Used by the import path to skip files that were already ingested.
func (s *Session) HasTitle(title string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.books {
		if strings.EqualFold(s.books[i].Title, title) {
			return true
		}
	}
	return false
}

// TitleFromFilename derives the display title from an uploaded filename
func TitleFromFilename(filename string) string {
	base := filepath.Base(filename)
	if strings.EqualFold(filepath.Ext(base), ".pdf") {
		base = base[:len(base)-len(filepath.Ext(base))]
	}
	return base
}

// Upload ingests a new document: page count is computed best-effort, the
// record and blob are written in one transaction, and the list is reloaded.
func (s *Session) Upload(filename string, data []byte) (*database.Book, error) {
	totalPages := 0
	if count, err := s.pages.PageCount(data); err != nil {
		log.Printf("[WARN] could not determine page count for %s: %v", filename, err)
	} else {
		totalPages = count
	}

	now := s.clock.Now().UnixMilli()
	book := &database.Book{
		ID:          ulid.Make().String(),
		Title:       TitleFromFilename(filename),
		TotalPages:  totalPages,
		CurrentPage: 1,
		IsRead:      false,
		LastReadAt:  now,
		AddedAt:     now,
		CoverColor:  coverPalette[rand.Intn(len(coverPalette))],
	}

	if err := s.store.PutBookAndFile(book, data); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", filename, err)
	}

	if err := s.Refresh(); err != nil {
		return nil, err
	}

	log.Printf("[INFO] uploaded %q (%d pages, %d bytes)", book.Title, totalPages, len(data))
	return book, nil
}

// ImportFile uploads a PDF from disk, skipping files whose derived title is
// already in the library. Returns the new book, or nil when skipped.
func (s *Session) ImportFile(path string) (*database.Book, error) {
	title := TitleFromFilename(path)
	if s.HasTitle(title) {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return s.Upload(filepath.Base(path), data)
}

// Open records a read event on the book, advances the streak, and returns
// the refreshed record.
func (s *Session) Open(id string) (*database.Book, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	updated, err := s.store.UpdateBook(id, func(b *database.Book) error {
		// An unknown page count is retried on every open.
		if b.TotalPages == 0 {
			if data, ferr := s.store.GetFile(id); ferr == nil && data != nil {
				if count, cerr := s.pages.PageCount(data); cerr == nil {
					b.TotalPages = count
					b.IsRead = count > 0 && b.CurrentPage >= count
				}
			}
		}
		*b = progress.RecordOpen(*b, s.clock.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.touchStreak()
	s.patch(*updated)
	return updated, nil
}

// File returns the raw document bytes for id, nil when absent
func (s *Session) File(id string) ([]byte, error) {
	return s.store.GetFile(id)
}

// ChangePage moves the reading position. totalPages is the rendering
// engine's latest report, 0 when unknown.
func (s *Session) ChangePage(id string, page, totalPages int) (*database.Book, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	updated, err := s.store.UpdateBook(id, func(b *database.Book) error {
		next, err := progress.RecordPageChange(*b, page, totalPages, s.clock.Now())
		if err != nil {
			return err
		}
		*b = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.touchStreak()
	s.patch(*updated)
	return updated, nil
}

// ToggleBookmark flips page membership in the book's bookmark set and
// returns the resulting set for immediate UI feedback.
func (s *Session) ToggleBookmark(id string, page int) ([]int, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	var bookmarks []int
	updated, err := s.store.UpdateBook(id, func(b *database.Book) error {
		next, set := progress.ToggleBookmark(*b, page)
		*b = next
		bookmarks = set
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.touchStreak()
	s.patch(*updated)
	return bookmarks, nil
}

// Delete removes the book and its document atomically
func (s *Session) Delete(id string) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.DeleteBookAndFile(id); err != nil {
		return fmt.Errorf("failed to delete book %s: %w", id, err)
	}

	s.locksMu.Lock()
	delete(s.locks, id)
	s.locksMu.Unlock()

	return s.Refresh()
}

// Streak returns the current streak count
func (s *Session) Streak() int {
	if s.tracker == nil {
		return 0
	}
	return s.tracker.Count()
}

func (s *Session) touchStreak() {
	if s.tracker == nil {
		return
	}
	if _, err := s.tracker.Touch(); err != nil {
		log.Printf("[WARN] %v", err)
	}
}

// patch replaces the in-memory record matching book.ID and re-sorts, so a
// single mutation does not force a full reload.
func (s *Session) patch(book database.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.books {
		if s.books[i].ID == book.ID {
			s.books[i] = book
			sortByLastRead(s.books)
			return
		}
	}
	// Unknown to the in-memory list; fall back to rebuilding it lazily.
	s.books = append(s.books, book)
	sortByLastRead(s.books)
}

func sortByLastRead(books []database.Book) {
	// Insertion sort; the list is nearly sorted after a single patch.
	for i := 1; i < len(books); i++ {
		for j := i; j > 0 && less(books[j], books[j-1]); j-- {
			books[j], books[j-1] = books[j-1], books[j]
		}
	}
}

func less(a, b database.Book) bool {
	if a.LastReadAt != b.LastReadAt {
		return a.LastReadAt > b.LastReadAt
	}
	return a.ID > b.ID
}
