package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Lhcfl/whatdidwesaybot/internal/config"
	"github.com/Lhcfl/whatdidwesaybot/internal/store/sqlite"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the archive database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := dbPathFromConfig()
			if err != nil {
				return err
			}
			if err := ensureParentDir(path); err != nil {
				return err
			}
			db, err := sqlite.OpenRaw(path)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := sqlite.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			version, _, err := sqlite.SchemaVersion(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is at schema version %d\n", path, version)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := dbPathFromConfig()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("database %s: %w", path, err)
			}
			db, err := sqlite.OpenRaw(path)
			if err != nil {
				return err
			}
			defer db.Close()

			version, dirty, err := sqlite.SchemaVersion(db)
			if err != nil {
				return err
			}
			if dirty {
				fmt.Fprintf(cmd.OutOrStdout(), "%d (dirty)\n", version)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	})
	return cmd
}

func dbPathFromConfig() (string, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.DBPath(), nil
}

func ensureParentDir(path string) error {
	if path == ":memory:" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	return nil
}
