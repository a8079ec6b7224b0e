// file: internal/watcher/watcher_test.go
// version: 1.0.1
// guid: a1b2c3d4-e5f6-4890-abcd-ef1234567890

package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestIsPDFFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"book.pdf", true},
		{"book.PDF", true},
		{"book.Pdf", true},
		{".pdf", true},
		{"book.txt", false},
		{"book.epub", false},
		{"book", false},
		{"book.pdf.part", false},
	}
	for _, tt := range tests {
		if got := IsPDFFile(tt.name); got != tt.want {
			t.Errorf("IsPDFFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDebounceSingleEvent(t *testing.T) {
	dir := t.TempDir()

	var calls atomic.Int32
	w := New(func(importDir string) {
		calls.Add(1)
	}, 100*time.Millisecond)

	if err := w.Start(dir); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	f := filepath.Join(dir, "dropped.pdf")
	if err := os.WriteFile(f, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatal(err)
	}

	// Wait for debounce + buffer.
	time.Sleep(300 * time.Millisecond)

	if c := calls.Load(); c != 1 {
		t.Errorf("expected 1 callback, got %d", c)
	}
}

func TestDebounceCoalescesBurst(t *testing.T) {
	dir := t.TempDir()

	var calls atomic.Int32
	w := New(func(importDir string) {
		calls.Add(1)
	}, 200*time.Millisecond)

	if err := w.Start(dir); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		f := filepath.Join(dir, "burst"+string(rune('a'+i))+".pdf")
		if err := os.WriteFile(f, []byte("%PDF-1.4"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(500 * time.Millisecond)

	if c := calls.Load(); c != 1 {
		t.Errorf("expected burst to coalesce into 1 callback, got %d", c)
	}
}

func TestIgnoresNonPDFFiles(t *testing.T) {
	dir := t.TempDir()

	var calls atomic.Int32
	w := New(func(importDir string) {
		calls.Add(1)
	}, 100*time.Millisecond)

	if err := w.Start(dir); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	f := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(f, []byte("not a pdf"), 0644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)

	if c := calls.Load(); c != 0 {
		t.Errorf("expected no callbacks for non-PDF files, got %d", c)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	w := New(func(string) {}, 100*time.Millisecond)
	if err := w.Start(dir); err != nil {
		t.Fatal(err)
	}

	w.Stop()
	w.Stop()
}
