// file: internal/pdfinfo/pdfinfo.go
// version: 1.0.0
// guid: 3e4f5a6b-7c8d-9e0f-1a2b-3c4d5e6f7a8b

// Package pdfinfo reports document properties from raw PDF bytes. Rendering
// itself happens client side; the server only needs the page count.
package pdfinfo

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Counter implements page counting over in-memory PDF data
type Counter struct{}

// PageCount parses data and returns the number of pages. Failures are
// reported to the caller, who treats the count as unknown rather than fatal.
func (Counter) PageCount(data []byte) (count int, err error) {
	// The underlying parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			count = 0
			err = fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse PDF: %w", err)
	}

	return reader.NumPage(), nil
}
