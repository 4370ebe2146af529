package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Lhcfl/whatdidwesaybot/internal/archive"
	"github.com/Lhcfl/whatdidwesaybot/internal/config"
	"github.com/Lhcfl/whatdidwesaybot/internal/segment"
	"github.com/Lhcfl/whatdidwesaybot/internal/store"
	"github.com/Lhcfl/whatdidwesaybot/internal/store/sqlite"
	"github.com/Lhcfl/whatdidwesaybot/internal/telegram"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(os.Stderr, cfg.Log)

	policy, err := archive.ParseFailurePolicy(cfg.Archive.OnFailure)
	if err != nil {
		return err
	}

	slog.Info("loading tokenizer dictionary")
	tok, err := segment.New()
	if err != nil {
		return err
	}

	stores, err := openStores(cfg, tok)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(); err != nil {
			slog.Error("close database", "error", err)
		}
	}()

	svc := archive.NewService(stores.Archive, stores.Consents, stores.Users, archive.Config{
		LinkBase: cfg.Telegram.LinkBase,
		Policy:   policy,
	})

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch, err := telegram.New(ctx, cfg.Telegram.Token, svc, channelOptions(cfg))
	if err != nil {
		return err
	}
	slog.Info("bot initialized", "username", ch.Username(), "policy", policy, "db", cfg.DBPath())

	watcher := config.NewWatcher(cfgPath)
	watcher.OnChange(func(next *config.Config) {
		applyLogLevel(next.Log.Level)
		ch.SetSearchLimit(next.Search.Limit)
		if p, err := archive.ParseFailurePolicy(next.Archive.OnFailure); err == nil {
			svc.SetPolicy(p)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := os.Stat(config.ExpandHome(cfgPath)); err != nil {
			slog.Debug("config file absent, hot reload off", "path", cfgPath)
			return nil
		}
		return watcher.Run(gctx)
	})
	g.Go(func() error {
		err := ch.Run(gctx)
		// Stop the watcher once the bot is done for any reason.
		stop()
		return err
	})

	err = g.Wait()
	if telegram.IsHalted(err) {
		slog.Error("archiving halted, shutting down", "error", err)
	}
	return err
}

func openStores(cfg *config.Config, tok store.Tokenizer) (*sqlite.Stores, error) {
	path := cfg.DBPath()
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	return sqlite.NewStores(store.StoreConfig{
		Path:          path,
		DefaultAllow:  cfg.Archive.DefaultAllow,
		UserCacheSize: cfg.Database.UserCacheSize,
	}, tok)
}

func channelOptions(cfg *config.Config) telegram.Options {
	return telegram.Options{
		PollTimeout:    time.Duration(cfg.Telegram.PollTimeout) * time.Second,
		SearchLimit:    cfg.Search.Limit,
		RatePerMinute:  cfg.Search.RatePerMinute,
		Burst:          cfg.Search.Burst,
		DedupeTTL:      cfg.DedupeTTL(),
		ChannelPosts:   cfg.Archive.ChannelPosts,
		InlineCacheTTL: time.Duration(cfg.Search.InlineCacheTTL) * time.Second,
	}
}
