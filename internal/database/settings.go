// file: internal/database/settings.go
// version: 1.1.0
// guid: 5d4c3b2a-1e0f-4a9b-8c7d-6e5f4a3b2c1d

package database

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cockroachdb/pebble/v2"
)

// Setting represents a stored configuration setting
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Type  string `json:"type"` // "string", "int", "bool"
}

// Well-known setting keys.
const (
	SettingStreakCount      = "streak_count"
	SettingStreakLastActive = "streak_last_active" // epoch millis of last reading activity
	SettingDarkMode         = "dark_mode"
	SettingStoreVersion     = "store_version"
)

// PebbleDB implementation

func (p *PebbleStore) GetSetting(key string) (*Setting, error) {
	data, closer, err := p.db.Get([]byte("setting:" + key))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, fmt.Errorf("setting not found: %s", key)
		}
		return nil, err
	}
	defer closer.Close()

	var setting Setting
	if err := json.Unmarshal(data, &setting); err != nil {
		return nil, err
	}

	return &setting, nil
}

func (p *PebbleStore) SetSetting(key, value, typ string) error {
	setting := Setting{Key: key, Value: value, Type: typ}

	data, err := json.Marshal(setting)
	if err != nil {
		return err
	}

	return p.db.Set([]byte("setting:"+key), data, pebble.Sync)
}

func (p *PebbleStore) GetAllSettings() ([]Setting, error) {
	var settings []Setting

	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("setting:"),
		UpperBound: []byte("setting:\xff"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var setting Setting
		if err := json.Unmarshal(iter.Value(), &setting); err != nil {
			continue
		}
		settings = append(settings, setting)
	}

	return settings, iter.Error()
}

func (p *PebbleStore) DeleteSetting(key string) error {
	return p.db.Delete([]byte("setting:"+key), nil)
}

// SQLite implementation

func (s *SQLiteStore) GetSetting(key string) (*Setting, error) {
	var setting Setting
	err := s.db.QueryRow(`
		SELECT key, value, type
		FROM settings
		WHERE key = ?
	`, key).Scan(&setting.Key, &setting.Value, &setting.Type)
	if err != nil {
		return nil, fmt.Errorf("setting not found: %s", key)
	}
	return &setting, nil
}

func (s *SQLiteStore) SetSetting(key, value, typ string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, type, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			type = excluded.type,
			updated_at = excluded.updated_at
	`, key, value, typ)
	return err
}

func (s *SQLiteStore) GetAllSettings() ([]Setting, error) {
	rows, err := s.db.Query(`
		SELECT key, value, type
		FROM settings
		ORDER BY key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var setting Setting
		if err := rows.Scan(&setting.Key, &setting.Value, &setting.Type); err != nil {
			continue
		}
		settings = append(settings, setting)
	}

	return settings, rows.Err()
}

func (s *SQLiteStore) DeleteSetting(key string) error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	return err
}

// Typed helpers shared by both store implementations.

// GetIntSetting returns the integer value for key, or fallback when the
// setting is missing or malformed.
func GetIntSetting(store Store, key string, fallback int) int {
	setting, err := store.GetSetting(key)
	if err != nil {
		return fallback
	}
	value, err := strconv.Atoi(setting.Value)
	if err != nil {
		return fallback
	}
	return value
}

// SetIntSetting stores an integer value under key.
func SetIntSetting(store Store, key string, value int) error {
	return store.SetSetting(key, strconv.Itoa(value), "int")
}

// GetBoolSetting returns the boolean value for key, or fallback when missing.
func GetBoolSetting(store Store, key string, fallback bool) bool {
	setting, err := store.GetSetting(key)
	if err != nil {
		return fallback
	}
	return setting.Value == "true"
}

// SetBoolSetting stores a boolean value under key.
func SetBoolSetting(store Store, key string, value bool) error {
	return store.SetSetting(key, strconv.FormatBool(value), "bool")
}
