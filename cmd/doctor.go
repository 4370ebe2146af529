package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Lhcfl/whatdidwesaybot/internal/config"
	"github.com/Lhcfl/whatdidwesaybot/internal/store/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment, configuration and database health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("whatdidwesay doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := config.ExpandHome(resolveConfigPath())
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Telegram:")
	if cfg.Telegram.Token != "" {
		fmt.Printf("    %-12s %s\n", "Token:", maskSecret(cfg.Telegram.Token))
	} else {
		fmt.Printf("    %-12s (not configured)\n", "Token:")
	}
	fmt.Printf("    %-12s %s\n", "Link base:", cfg.Telegram.LinkBase)

	fmt.Println()
	fmt.Println("  Archive:")
	fmt.Printf("    %-12s %s\n", "On failure:", cfg.Archive.OnFailure)
	fmt.Printf("    %-12s %t\n", "Channels:", cfg.Archive.ChannelPosts)
	fmt.Printf("    %-12s %t\n", "Default on:", cfg.Archive.DefaultAllow)

	fmt.Println()
	dbPath := cfg.DBPath()
	fmt.Printf("  Database: %s", dbPath)
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Println(" (NOT FOUND, created on first run)")
	} else {
		checkDatabase(dbPath)
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkDatabase(path string) {
	db, err := sqlite.OpenRaw(path)
	if err != nil {
		fmt.Printf(" (ERROR: %s)\n", err)
		return
	}
	defer db.Close()

	version, dirty, err := sqlite.SchemaVersion(db)
	if err != nil {
		fmt.Printf(" (ERROR: %s)\n", err)
		return
	}
	state := "OK"
	if dirty {
		state = "DIRTY"
	}
	fmt.Printf(" (%s, schema v%d)\n", state, version)

	var chats, global, users int
	_ = db.Get(&chats, `SELECT COUNT(*) FROM messages`)
	_ = db.Get(&global, `SELECT COUNT(*) FROM global_messages`)
	_ = db.Get(&users, `SELECT COUNT(*) FROM users`)
	fmt.Printf("    %-12s %d\n", "Messages:", chats)
	fmt.Printf("    %-12s %d\n", "Channel:", global)
	fmt.Printf("    %-12s %d\n", "Users:", users)
}
