// file: internal/metrics/metrics_test.go
// version: 1.0.0
// guid: 0f1a2b3c-4d5e-6f7a-8b9c-0d1e2f3a4b5c

package metrics

import "testing"

func TestRegisterIdempotent(t *testing.T) {
	Register()
	Register()
}

func TestCounters(t *testing.T) {
	Register()
	IncUpload()
	IncOpen()
	IncPageTurn()
	IncDelete()
	IncSuggestion("ok")
	IncSuggestion("fallback")
}

func TestGauges(t *testing.T) {
	Register()
	SetBooks(42)
	SetStreak(7)
}
