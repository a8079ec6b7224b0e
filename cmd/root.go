// file: cmd/root.go
// version: 1.2.0
// guid: 2d4c6e8a-0b1f-4a3c-9d5e-7f8a9b0c1d2e

package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lumina-reads/lumina/internal/config"
	"github.com/lumina-reads/lumina/internal/database"
	"github.com/lumina-reads/lumina/internal/library"
	"github.com/lumina-reads/lumina/internal/pdfinfo"
	"github.com/lumina-reads/lumina/internal/server"
	"github.com/lumina-reads/lumina/internal/streak"
	"github.com/lumina-reads/lumina/internal/suggest"
	"github.com/lumina-reads/lumina/internal/watcher"
)

var cfgFile string
var dataDir string
var databasePath string
var databaseType string
var enableSQLite bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lumina",
	Short: "A personal PDF library with reading progress and streaks",
	Long: `Lumina keeps your PDF library in one place: upload documents, track
your reading position and bookmarks per book, and keep a daily reading
streak going.

It also answers reading questions through an AI librarian grounded in
the titles on your shelf.`,
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long:  `Start the web server that exposes the library API and shelf UI.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := openLibrary()
		if err != nil {
			return err
		}
		defer cleanup()

		librarian := suggest.NewLibrarian(
			config.AppConfig.OpenAIAPIKey,
			config.AppConfig.OpenAIBaseURL,
			config.AppConfig.OpenAIModel,
		)
		if !librarian.IsEnabled() {
			fmt.Println("No API key configured; AI suggestions disabled")
		}

		// Watch the import directory for dropped PDFs when configured
		if dir := config.AppConfig.ImportDir; dir != "" {
			w := watcher.New(func(importDir string) {
				if err := importDirectory(session, importDir, false); err != nil {
					fmt.Printf("Warning: import from %s failed: %v\n", importDir, err)
				}
			}, 2*time.Second)
			if err := w.Start(dir); err != nil {
				fmt.Printf("Warning: could not watch %s: %v\n", dir, err)
			} else {
				defer w.Stop()
				fmt.Printf("Watching %s for new PDFs\n", dir)
			}
		}

		srv := server.NewServer(database.GlobalStore, session, librarian, config.AppConfig.SuggestionsRPM)

		cfg := server.ServerConfig{
			Addr:         config.AppConfig.ListenAddr,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		if listen := cmd.Flag("listen").Value.String(); listen != "" {
			cfg.Addr = listen
		}
		if rt := cmd.Flag("read-timeout").Value.String(); rt != "" {
			if d, err := time.ParseDuration(rt); err == nil {
				cfg.ReadTimeout = d
			}
		}
		if wt := cmd.Flag("write-timeout").Value.String(); wt != "" {
			if d, err := time.ParseDuration(wt); err == nil {
				cfg.WriteTimeout = d
			}
		}
		if it := cmd.Flag("idle-timeout").Value.String(); it != "" {
			if d, err := time.ParseDuration(it); err == nil {
				cfg.IdleTimeout = d
			}
		}

		return srv.Start(cfg)
	},
}

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Import PDFs from a directory",
	Long: `Walk a directory tree and add every PDF to the library. Files whose
title is already on the shelf are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := openLibrary()
		if err != nil {
			return err
		}
		defer cleanup()

		return importDirectory(session, args[0], true)
	},
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the books on the shelf",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := openLibrary()
		if err != nil {
			return err
		}
		defer cleanup()

		books := session.Books()
		if len(books) == 0 {
			fmt.Println("The shelf is empty. Run 'lumina import <dir>' or upload via the web UI.")
			return nil
		}

		fmt.Printf("%d books, reading streak: %d days\n\n", len(books), session.Streak())
		for i, book := range books {
			status := fmt.Sprintf("page %d", book.CurrentPage)
			if book.TotalPages > 0 {
				status = fmt.Sprintf("page %d of %d", book.CurrentPage, book.TotalPages)
			}
			if book.IsRead {
				status = "finished"
			}
			fmt.Printf("%2d. %s (%s)\n", i+1, book.Title, status)
			if len(book.Bookmarks) > 0 {
				fmt.Printf("    bookmarks: %v\n", book.Bookmarks)
			}
		}
		return nil
	},
}

// openLibrary initializes the store and builds a ready-to-use session.
// The returned cleanup closes the store.
func openLibrary() (*library.Session, func(), error) {
	if err := database.InitializeStore(
		config.AppConfig.DatabaseType,
		config.AppConfig.DatabasePath,
		config.AppConfig.EnableSQLite,
	); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	fmt.Printf("Using database: %s (%s)\n", config.AppConfig.DatabasePath, config.AppConfig.DatabaseType)

	tracker := streak.New(database.GlobalStore, nil)
	if _, err := tracker.Load(); err != nil {
		database.CloseStore()
		return nil, nil, fmt.Errorf("failed to load streak state: %w", err)
	}

	session := library.NewSession(database.GlobalStore, pdfinfo.Counter{}, tracker, nil)
	if err := session.Refresh(); err != nil {
		database.CloseStore()
		return nil, nil, err
	}

	cleanup := func() {
		database.CloseStore()
	}
	return session, cleanup, nil
}

// importDirectory walks dir and imports every PDF it finds. A progress bar
// is shown when interactive is true.
func importDirectory(session *library.Session, dir string, interactive bool) error {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && watcher.IsPDFFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	if len(paths) == 0 {
		if interactive {
			fmt.Printf("No PDFs found under %s\n", dir)
		}
		return nil
	}

	var bar *progressbar.ProgressBar
	if interactive {
		bar = progressbar.Default(int64(len(paths)))
	}

	imported := 0
	for _, path := range paths {
		book, err := session.ImportFile(path)
		if err != nil {
			fmt.Printf("Failed to import %s: %v\n", path, err)
		} else if book != nil {
			imported++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if interactive {
		fmt.Printf("Imported %d of %d PDFs (%d skipped as duplicates or failed)\n",
			imported, len(paths), len(paths)-imported)
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.lumina/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for library data (default: $HOME/.lumina)")
	rootCmd.PersistentFlags().StringVar(&databasePath, "db", "", "path to database (default: <data-dir>/library.pebble)")
	rootCmd.PersistentFlags().StringVar(&databaseType, "db-type", "pebble", "database type: pebble (default) or sqlite")
	rootCmd.PersistentFlags().BoolVar(&enableSQLite, "enable-sqlite3-i-know-the-risks", false, "enable SQLite3 database (WARNING: cross-compilation issues, PebbleDB recommended)")

	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("database_path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("database_type", rootCmd.PersistentFlags().Lookup("db-type"))
	viper.BindPFlag("enable_sqlite3_i_know_the_risks", rootCmd.PersistentFlags().Lookup("enable-sqlite3-i-know-the-risks"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)

	// Add serve command specific flags
	serveCmd.Flags().String("listen", "", "address to bind the web server to (default 127.0.0.1:8585)")
	serveCmd.Flags().String("import-dir", "", "directory to watch for dropped PDFs")
	serveCmd.Flags().String("read-timeout", "15s", "read timeout (e.g. 15s, 1m)")
	serveCmd.Flags().String("write-timeout", "60s", "write timeout (e.g. 60s, 2m)")
	serveCmd.Flags().String("idle-timeout", "60s", "idle timeout (e.g. 60s, 2m)")

	viper.BindPFlag("listen_addr", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("import_dir", serveCmd.Flags().Lookup("import-dir"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(filepath.Join(home, ".lumina"))
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("LUMINA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}

	config.InitConfig()

	// Ensure the data and database directories exist
	if config.AppConfig.DataDir != "" {
		if err := os.MkdirAll(config.AppConfig.DataDir, 0755); err != nil {
			fmt.Printf("Error creating data directory: %v\n", err)
		}
	}
	if config.AppConfig.DatabasePath != "" {
		dbDir := filepath.Dir(config.AppConfig.DatabasePath)
		if dbDir != "." {
			if err := os.MkdirAll(dbDir, 0755); err != nil {
				fmt.Printf("Error creating database directory: %v\n", err)
			}
		}
	}
}
