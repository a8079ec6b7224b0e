// file: internal/config/config.go
// version: 1.1.0
// guid: 7b8c9d0e-1f2a-4b4c-5d6e-7f8a9b0c1d2e

package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	DataDir      string
	DatabasePath string
	DatabaseType string // "pebble" (default) or "sqlite"
	EnableSQLite bool   // Must be true to use SQLite (safety flag)
	ListenAddr   string
	ImportDir    string // optional; watched for dropped PDFs when set

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	SuggestionsRPM int // per-IP rate limit on the suggestion endpoint
}

var AppConfig Config

// InitConfig initializes the application configuration
func InitConfig() {
	// Set defaults
	viper.SetDefault("database_type", "pebble")
	viper.SetDefault("enable_sqlite3_i_know_the_risks", false)
	viper.SetDefault("listen_addr", "127.0.0.1:8585")
	viper.SetDefault("openai_model", "gpt-4o-mini")
	viper.SetDefault("suggestions_rpm", 10)

	AppConfig = Config{
		DataDir:        viper.GetString("data_dir"),
		DatabasePath:   viper.GetString("database_path"),
		DatabaseType:   viper.GetString("database_type"),
		EnableSQLite:   viper.GetBool("enable_sqlite3_i_know_the_risks"),
		ListenAddr:     viper.GetString("listen_addr"),
		ImportDir:      viper.GetString("import_dir"),
		OpenAIAPIKey:   viper.GetString("openai_api_key"),
		OpenAIBaseURL:  viper.GetString("openai_base_url"),
		OpenAIModel:    viper.GetString("openai_model"),
		SuggestionsRPM: viper.GetInt("suggestions_rpm"),
	}

	// Normalize database type
	if AppConfig.DatabaseType == "sqlite3" {
		AppConfig.DatabaseType = "sqlite"
	}
	if AppConfig.DatabaseType == "" {
		AppConfig.DatabaseType = "pebble"
	}

	if AppConfig.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		AppConfig.DataDir = filepath.Join(home, ".lumina")
	}
	if AppConfig.DatabasePath == "" {
		name := "library.pebble"
		if AppConfig.DatabaseType == "sqlite" {
			name = "library.db"
		}
		AppConfig.DatabasePath = filepath.Join(AppConfig.DataDir, name)
	}
}
