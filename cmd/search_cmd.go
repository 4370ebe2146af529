package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/Lhcfl/whatdidwesaybot/internal/archive"
	"github.com/Lhcfl/whatdidwesaybot/internal/config"
	"github.com/Lhcfl/whatdidwesaybot/internal/segment"
	"github.com/Lhcfl/whatdidwesaybot/internal/store"
)

func searchCmd() *cobra.Command {
	var (
		chatID     int64
		global     bool
		limit      int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "search (--chat <chat-id> | --global) <query>",
		Short: "Search the archive from the command line",
		Example: "  whatdidwesay search --chat -1001234567890 喵\n" +
			"  whatdidwesay search --global --json release notes",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := store.ChatScope(chatID)
			if global {
				scope = store.GlobalScope
			}
			query := strings.Join(args, " ")

			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			setupLogging(cmd.ErrOrStderr(), config.LogConfig{Level: "warn", Format: cfg.Log.Format})

			tok, err := segment.New()
			if err != nil {
				return err
			}
			stores, err := openStores(cfg, tok)
			if err != nil {
				return err
			}
			defer stores.Close()

			svc := archive.NewService(stores.Archive, stores.Consents, stores.Users, archive.Config{
				LinkBase: cfg.Telegram.LinkBase,
			})
			if limit <= 0 {
				limit = cfg.Search.Limit
			}
			hits, err := svc.Search(cmd.Context(), scope, query, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				data, err := json.MarshalIndent(hits, "", "  ")
				if err != nil {
					return fmt.Errorf("encode results: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			if len(hits) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			fmt.Fprintln(out, renderTable(hitRows(archive.Formatter{LinkBase: cfg.Telegram.LinkBase}, hits)))
			return nil
		},
	}
	// Chat ids of groups are negative, so they are taken as a flag value
	// rather than a positional argument that the flag parser would reject.
	cmd.Flags().Int64VarP(&chatID, "chat", "c", 0, "chat id to search in")
	cmd.Flags().BoolVarP(&global, "global", "g", false, "search the channel-post archive")
	cmd.MarkFlagsMutuallyExclusive("chat", "global")
	cmd.MarkFlagsOneRequired("chat", "global")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results (default: search.limit)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func hitRows(f archive.Formatter, hits []store.Hit) [][]string {
	rows := [][]string{{"SCORE", "USER", "TEXT", "LINK"}}
	for _, h := range hits {
		link, _ := f.Permalink(h.Record)
		rows = append(rows, []string{
			fmt.Sprintf("%.2f", h.Score),
			strconv.FormatUint(h.Record.AuthorID, 10),
			runewidth.Truncate(f.Excerpt(h.Record), 40, "…"),
			link,
		})
	}
	return rows
}
