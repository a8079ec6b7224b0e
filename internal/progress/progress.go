// file: internal/progress/progress.go
// version: 1.2.0
// guid: 9a8b7c6d-5e4f-4d3c-9b2a-1f0e9d8c7b6a

// Package progress holds the pure transformations over a book record:
// reading position, completion flag, bookmark set and revision timestamp.
// Functions take a record and a wall-clock instant and return the updated
// record; persistence is the caller's concern.
package progress

import (
	"errors"
	"sort"
	"time"

	"github.com/lumina-reads/lumina/internal/database"
)

// ErrPageCountMismatch is returned when the rendering engine reports a total
// page count that conflicts with a previously stored positive value. The
// stored value is kept; repeated differing reports indicate a corrupted or
// replaced document and are surfaced rather than silently resolved.
var ErrPageCountMismatch = errors.New("reported page count conflicts with stored value")

// RecordOpen refreshes the last-read timestamp. The reading position is left
// untouched.
func RecordOpen(book database.Book, now time.Time) database.Book {
	book.LastReadAt = now.UnixMilli()
	return book
}

// RecordPageChange moves the reading position to newPage. totalPages carries
// the rendering engine's latest report, 0 when unknown.
//
// Out-of-bounds requests (newPage < 1, or past a known total) return the
// input unchanged. A positive stored total is never overwritten by a
// different report; that case returns the input unchanged along with
// ErrPageCountMismatch.
func RecordPageChange(book database.Book, newPage, totalPages int, now time.Time) (database.Book, error) {
	if totalPages > 0 && book.TotalPages > 0 && totalPages != book.TotalPages {
		return book, ErrPageCountMismatch
	}

	total := book.TotalPages
	if totalPages > 0 {
		total = totalPages
	}

	if newPage < 1 {
		return book, nil
	}
	if total > 0 && newPage > total {
		return book, nil
	}

	book.CurrentPage = newPage
	book.TotalPages = total
	book.IsRead = total > 0 && newPage >= total
	book.LastReadAt = now.UnixMilli()
	return book, nil
}

// ToggleBookmark flips page membership in the bookmark set and returns the
// updated record together with the resulting set. The set stays sorted
// ascending with no duplicates; toggling twice restores the original set.
func ToggleBookmark(book database.Book, page int) (database.Book, []int) {
	var bookmarks []int
	removed := false
	for _, p := range book.Bookmarks {
		if p == page {
			removed = true
			continue
		}
		bookmarks = append(bookmarks, p)
	}
	if !removed {
		bookmarks = append(bookmarks, page)
		sort.Ints(bookmarks)
	}

	book.Bookmarks = bookmarks
	return book, bookmarks
}
