// Package telegram connects the archive core to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mymmrac/telego"
	"golang.org/x/sync/errgroup"

	"github.com/Lhcfl/whatdidwesaybot/internal/archive"
	"github.com/Lhcfl/whatdidwesaybot/internal/store/sqlite"
)

// botAPI is the subset of *telego.Bot the handlers call.
type botAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	AnswerInlineQuery(ctx context.Context, params *telego.AnswerInlineQueryParams) error
	SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error
	DeleteMyCommands(ctx context.Context, params *telego.DeleteMyCommandsParams) error
}

// Options configures a Channel.
type Options struct {
	PollTimeout    time.Duration
	SearchLimit    int
	RatePerMinute  int
	Burst          int
	DedupeTTL      time.Duration
	ChannelPosts   bool
	InlineCacheTTL time.Duration
}

// Channel polls Telegram and dispatches updates to the archive service one
// at a time.
type Channel struct {
	bot      botAPI
	poller   *telego.Bot
	username string
	svc      *archive.Service
	opts     Options

	searchLimit atomic.Int32
	limiter     *chatLimiter
	dedupe      *dedupeCache[messageKey]
}

// New creates a Channel for the bot token. It calls getMe to learn the bot
// username used for command suffixes.
func New(ctx context.Context, token string, svc *archive.Service, opts Options) (*Channel, error) {
	if token == "" {
		return nil, errors.New("telegram token is required (set TELEGRAM_BOT_TOKEN or telegram.token)")
	}
	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	me, err := bot.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("telegram getMe: %w", err)
	}

	c := newChannel(bot, me.Username, svc, opts)
	c.poller = bot
	return c, nil
}

func newChannel(bot botAPI, username string, svc *archive.Service, opts Options) *Channel {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	c := &Channel{
		bot:      bot,
		username: username,
		svc:      svc,
		opts:     opts,
		limiter:  newChatLimiter(opts.RatePerMinute, opts.Burst),
		dedupe:   newDedupeCache[messageKey](opts.DedupeTTL, dedupeMaxSize),
	}
	c.SetSearchLimit(opts.SearchLimit)
	return c
}

// SetSearchLimit changes the number of /q results. Non-positive values
// restore the default.
func (c *Channel) SetSearchLimit(n int) {
	if n <= 0 {
		n = sqlite.DefaultSearchLimit
	}
	c.searchLimit.Store(int32(n))
}

func (c *Channel) Username() string { return c.username }

// Run registers the command menu, then polls and dispatches updates until
// ctx is done or an update handler returns a fatal error.
func (c *Channel) Run(ctx context.Context) error {
	if c.poller == nil {
		return errors.New("telegram channel has no poller")
	}
	if err := c.SyncMenuCommands(ctx, DefaultMenuCommands()); err != nil {
		return fmt.Errorf("register bot commands: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := c.poller.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        int(c.opts.PollTimeout / time.Second),
		AllowedUpdates: allowedUpdates,
	})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}
	slog.Info("telegram polling started", "username", c.username)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.limiter.run(gctx) })
	g.Go(func() error {
		defer cancel()
		return c.dispatch(gctx, updates)
	})
	err = g.Wait()
	slog.Info("telegram polling stopped")
	return err
}

var allowedUpdates = []string{"message", "channel_post", "my_chat_member", "inline_query"}

func (c *Channel) dispatch(ctx context.Context, updates <-chan telego.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			// The update in flight finishes even when shutdown starts.
			hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handlerTimeout)
			err := c.HandleUpdate(hctx, upd)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
