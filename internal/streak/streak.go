// file: internal/streak/streak.go
// version: 1.1.0
// guid: 1c2d3e4f-5a6b-7c8d-9e0f-1a2b3c4d5e6f

// Package streak tracks consecutive calendar days with reading activity.
// The state is two persisted scalars: the streak count and the timestamp of
// the last activity. Day comparisons use local calendar dates, not elapsed
// hours, so sessions spanning midnight roll over correctly.
package streak

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lumina-reads/lumina/internal/database"
)

// SettingsStore is the slice of the database store the tracker needs. The
// tracker is handed its store and clock explicitly so the state machine is
// testable without a real backend.
type SettingsStore interface {
	GetSetting(key string) (*database.Setting, error)
	SetSetting(key, value, typ string) error
}

// Clock abstracts wall-clock time for testing
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now
func SystemClock() Clock { return systemClock{} }

// Tracker owns the process-wide streak state
type Tracker struct {
	store SettingsStore
	clock Clock

	count      int
	lastActive time.Time // zero value = no activity recorded yet
}

// New creates a Tracker. Call Load before reading the count.
func New(store SettingsStore, clock Clock) *Tracker {
	if clock == nil {
		clock = systemClock{}
	}
	return &Tracker{store: store, clock: clock}
}

// Count returns the in-memory streak count
func (t *Tracker) Count() int {
	return t.count
}

// Load reads the persisted state and applies the display recomputation: if
// more than one full day has passed since the last activity the streak has
// lapsed, so it is zeroed both in memory and in the store before any new
// activity happens today. This keeps the persisted value in line with what
// is shown.
func (t *Tracker) Load() (int, error) {
	t.count = t.readCount()
	t.lastActive = t.readLastActive()

	if t.lastActive.IsZero() {
		return t.count, nil
	}

	now := t.clock.Now()
	if !sameDay(t.lastActive, now) && !sameDay(t.lastActive, now.AddDate(0, 0, -1)) {
		if t.count != 0 {
			t.count = 0
			if err := t.persist(now, false); err != nil {
				return 0, fmt.Errorf("failed to zero lapsed streak: %w", err)
			}
		}
	}

	return t.count, nil
}

// Touch records reading activity at the current instant and advances the
// state machine: first ever activity starts the streak at 1, repeat activity
// the same day is a no-op, activity the day after the last extends the
// streak, and anything later restarts it at 1.
func (t *Tracker) Touch() (int, error) {
	now := t.clock.Now()

	switch {
	case t.lastActive.IsZero():
		t.count = 1
	case sameDay(t.lastActive, now):
		// Multiple sessions the same day never inflate the count.
	case sameDay(t.lastActive, now.AddDate(0, 0, -1)):
		t.count++
	default:
		t.count = 1
	}

	if err := t.persist(now, true); err != nil {
		return t.count, fmt.Errorf("failed to persist streak: %w", err)
	}
	t.lastActive = now
	return t.count, nil
}

func (t *Tracker) persist(now time.Time, touched bool) error {
	if err := t.store.SetSetting(database.SettingStreakCount, strconv.Itoa(t.count), "int"); err != nil {
		return err
	}
	if touched {
		millis := strconv.FormatInt(now.UnixMilli(), 10)
		return t.store.SetSetting(database.SettingStreakLastActive, millis, "int")
	}
	return nil
}

func (t *Tracker) readCount() int {
	setting, err := t.store.GetSetting(database.SettingStreakCount)
	if err != nil {
		return 0
	}
	count, err := strconv.Atoi(setting.Value)
	if err != nil || count < 0 {
		return 0
	}
	return count
}

func (t *Tracker) readLastActive() time.Time {
	setting, err := t.store.GetSetting(database.SettingStreakLastActive)
	if err != nil {
		return time.Time{}
	}
	millis, err := strconv.ParseInt(setting.Value, 10, 64)
	if err != nil || millis <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}

// sameDay reports whether a and b fall on the same local calendar date
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
