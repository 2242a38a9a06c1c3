package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/storylinehq/storyline/internal/config"
	"github.com/storylinehq/storyline/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a storyline tracker in the current directory",
	Long: `Initialize a storyline tracker by creating a .storyline/ directory.

This creates:
  - .storyline/ directory
  - .storyline/storyline.db (SQLite database)
  - .storyline/config.yaml (default configuration)

Example:
  cd ~/myproject
  storyline init`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fatal("failed to get current directory: %v", err)
		}

		cfg := config.DefaultConfig()
		if err := cfg.Save(cwd); err != nil {
			fatal("%v", err)
		}

		path := cfg.Database.Path
		if dbPath != "" {
			path = dbPath
		}
		store, err := storage.NewStorage(context.Background(), &storage.Config{Path: path})
		if err != nil {
			fatal("failed to initialize database: %v", err)
		}
		_ = store.Close()

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("\n%s Initialized storyline tracker\n\n", green("✓"))
		fmt.Printf("  Database: %s\n", cyan(path))
		fmt.Printf("  Config:   %s\n", cyan(".storyline/config.yaml"))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
