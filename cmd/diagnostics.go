// file: cmd/diagnostics.go
// version: 1.1.0
// guid: 5b9e3d17-64af-4c02-8b7d-f31a8c25d946

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/pebble/v2"
	"github.com/spf13/cobra"

	"github.com/lumina-reads/lumina/internal/config"
	"github.com/lumina-reads/lumina/internal/database"
)

var (
	diagnosticsCmd = &cobra.Command{
		Use:   "diagnostics",
		Short: "Debugging and cleanup helpers",
		Long:  "Diagnostic utilities for inspecting and repairing the library database.",
	}

	orphansCmd = &cobra.Command{
		Use:   "cleanup-orphans",
		Short: "Remove document blobs without a book record",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("yes")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return runCleanupOrphanFiles(force, dryRun)
		},
	}

	queryCmd = &cobra.Command{
		Use:   "query",
		Short: "Inspect stored book records",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			prefix, _ := cmd.Flags().GetString("prefix")
			raw, _ := cmd.Flags().GetBool("raw")
			return runDiagnosticsQuery(limit, prefix, raw)
		},
	}
)

func init() {
	orphansCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	orphansCmd.Flags().Bool("dry-run", false, "List orphaned blobs without deleting")

	queryCmd.Flags().Int("limit", 5, "Number of records to display")
	queryCmd.Flags().String("prefix", "book:", "Key prefix to inspect when --raw is set")
	queryCmd.Flags().Bool("raw", false, "Show raw Pebble key/value data (Pebble only)")

	diagnosticsCmd.AddCommand(orphansCmd)
	diagnosticsCmd.AddCommand(queryCmd)

	rootCmd.AddCommand(diagnosticsCmd)
}

func ensureDiagnosticsStore() (func(), error) {
	if err := database.InitializeStore(
		config.AppConfig.DatabaseType,
		config.AppConfig.DatabasePath,
		config.AppConfig.EnableSQLite,
	); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cleanup := func() {
		database.CloseStore()
	}
	return cleanup, nil
}

func runCleanupOrphanFiles(force, dryRun bool) error {
	closer, err := ensureDiagnosticsStore()
	if err != nil {
		return err
	}
	defer closer()

	fmt.Printf("Inspecting documents in %s (%s)\n", config.AppConfig.DatabasePath, config.AppConfig.DatabaseType)

	books, err := database.GlobalStore.ListBooks()
	if err != nil {
		return fmt.Errorf("failed to list books: %w", err)
	}

	known := make(map[string]struct{}, len(books))
	orphans := make([]string, 0)
	for _, book := range books {
		known[book.ID] = struct{}{}
	}
	for _, book := range books {
		// A book record without a blob is also worth flagging.
		data, err := database.GlobalStore.GetFile(book.ID)
		if err != nil {
			return fmt.Errorf("failed to read document for %s: %w", book.ID, err)
		}
		if data == nil {
			fmt.Printf("Warning: book %q (%s) has no stored document\n", book.Title, book.ID)
		}
	}

	fileIDs, err := database.GlobalStore.ListFileIDs()
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	for _, id := range fileIDs {
		if _, ok := known[id]; !ok {
			orphans = append(orphans, id)
		}
	}

	if len(orphans) == 0 {
		fmt.Println("No orphaned documents detected.")
		return nil
	}

	fmt.Printf("Found %d orphaned documents:\n", len(orphans))
	for i, id := range orphans {
		fmt.Printf("%2d. %s\n", i+1, id)
	}

	if dryRun {
		fmt.Println("Dry run enabled; no deletions were performed.")
		return nil
	}

	if !force {
		confirmed, err := promptYesNo(fmt.Sprintf("Delete %d orphaned documents", len(orphans)))
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Aborted. Nothing deleted.")
			return nil
		}
	}

	deleted := 0
	for _, id := range orphans {
		if err := database.GlobalStore.DeleteBookAndFile(id); err != nil {
			fmt.Printf("Failed to delete %s: %v\n", id, err)
			continue
		}
		deleted++
	}

	fmt.Printf("Deleted %d orphaned documents.\n", deleted)
	return nil
}

func runDiagnosticsQuery(limit int, prefix string, raw bool) error {
	if limit <= 0 {
		return errors.New("limit must be positive")
	}

	if raw {
		if config.AppConfig.DatabaseType != "pebble" {
			return fmt.Errorf("raw inspection is only available for Pebble databases")
		}
		return runRawPebbleQuery(limit, prefix)
	}

	closer, err := ensureDiagnosticsStore()
	if err != nil {
		return err
	}
	defer closer()

	books, err := database.GlobalStore.ListBooks()
	if err != nil {
		return fmt.Errorf("failed to fetch books: %w", err)
	}
	if len(books) == 0 {
		fmt.Println("No books found.")
		return nil
	}
	if len(books) > limit {
		books = books[:limit]
	}

	for i, book := range books {
		fmt.Printf("%2d. ID: %s\n", i+1, book.ID)
		fmt.Printf("    Title: %s\n", book.Title)
		fmt.Printf("    Pages: %d/%d (read=%v)\n", book.CurrentPage, book.TotalPages, book.IsRead)
		if len(book.Bookmarks) > 0 {
			fmt.Printf("    Bookmarks: %v\n", book.Bookmarks)
		}
		fmt.Println("---")
	}

	return nil
}

func runRawPebbleQuery(limit int, prefix string) error {
	db, err := pebble.Open(config.AppConfig.DatabasePath, &pebble.Options{
		FormatMajorVersion: pebble.FormatNewest,
		ReadOnly:           true,
	})
	if err != nil {
		return fmt.Errorf("failed to open Pebble database: %w", err)
	}
	defer db.Close()

	iterOpts := &pebble.IterOptions{}
	if prefix != "" {
		iterOpts.LowerBound = []byte(prefix)
		iterOpts.UpperBound = append([]byte(prefix), 0xFF)
	}

	iter, err := db.NewIter(iterOpts)
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	count := 0
	for ok := iter.First(); ok && iter.Valid(); ok = iter.Next() {
		fmt.Printf("Key: %s\n", string(iter.Key()))
		val := iter.Value()
		fmt.Printf("Value length: %d bytes\n", len(val))
		preview := truncateString(string(val), 500)
		fmt.Printf("Value preview: %s\n", preview)
		fmt.Println("---")

		count++
		if count >= limit {
			break
		}
	}

	if err := iter.Error(); err != nil {
		return fmt.Errorf("iterator error: %w", err)
	}

	if count == 0 {
		fmt.Println("No keys matched the requested prefix.")
	}

	return nil
}

func promptYesNo(action string) (bool, error) {
	fmt.Printf("%s? Type 'yes' to confirm: ", action)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "yes", nil
}

func truncateString(in string, max int) string {
	if len(in) <= max {
		return in
	}
	return in[:max] + "..."
}
