package telegram

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/Lhcfl/whatdidwesaybot/internal/store"
)

// isCommand reports whether text is addressed to a bot. Such messages are
// never archived, whether or not the command is known.
func isCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

// parseCommand splits "/cmd@bot args" into the lower-cased command and its
// trimmed arguments. ok is false when the command is addressed to a
// different bot.
func parseCommand(text, botUsername string) (cmd, args string, ok bool) {
	if !isCommand(text) {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text, " ")
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		rest = head[i+1:] + " " + rest
		head = head[:i]
	}
	head, target, addressed := strings.Cut(head, "@")
	if addressed && botUsername != "" && !strings.EqualFold(target, botUsername) {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

func (c *Channel) handleCommand(ctx context.Context, msg *telego.Message) {
	cmd, args, ok := parseCommand(msg.Text, c.username)
	if !ok {
		return
	}

	switch cmd {
	case "/q":
		c.handleQuery(ctx, msg, args)
	case "/toggle_my_searchability":
		c.handleToggle(ctx, msg)
	case "/help", "/start":
		c.reply(ctx, msg, textHelp, false)
	}
}

func (c *Channel) handleQuery(ctx context.Context, msg *telego.Message, query string) {
	if query == "" {
		c.reply(ctx, msg, textQueryUsage, false)
		return
	}
	if !c.limiter.allow(msg.Chat.ID) {
		c.reply(ctx, msg, textRateLimited, false)
		return
	}

	hits, err := c.svc.Search(ctx, store.ChatScope(msg.Chat.ID), query, int(c.searchLimit.Load()))
	if err != nil {
		slog.Error("search failed", "chat_id", msg.Chat.ID, "error", err)
		c.reply(ctx, msg, textSearchFailed, false)
		return
	}
	if len(hits) == 0 {
		c.reply(ctx, msg, textNoResults, false)
		return
	}

	lines := make([]string, 0, len(hits))
	size := 0
	for _, hit := range hits {
		line := c.svc.FormatSummary(hit)
		if size+len(line)+1 > telegramMaxMessageLen {
			break
		}
		lines = append(lines, line)
		size += len(line) + 1
	}
	c.reply(ctx, msg, strings.Join(lines, "\n"), true)
}

func (c *Channel) handleToggle(ctx context.Context, msg *telego.Message) {
	allow, err := c.svc.ToggleConsent(ctx, msg.Chat.ID, uint64(msg.From.ID))
	if err != nil {
		slog.Error("failed to toggle searchability",
			"chat_id", msg.Chat.ID, "user_id", msg.From.ID, "error", err)
		c.reply(ctx, msg, textToggleFailed, false)
		return
	}
	slog.Info("searchability toggled", "chat_id", msg.Chat.ID, "user_id", msg.From.ID, "allow", allow)
	if allow {
		c.reply(ctx, msg, textToggleEnabled, false)
	} else {
		c.reply(ctx, msg, textToggleDisabled, false)
	}
}

// SyncMenuCommands registers bot commands with Telegram via setMyCommands.
func (c *Channel) SyncMenuCommands(ctx context.Context, commands []telego.BotCommand) error {
	if err := c.bot.DeleteMyCommands(ctx, nil); err != nil {
		slog.Debug("deleteMyCommands failed (may not exist)", "error", err)
	}
	if len(commands) == 0 {
		return nil
	}
	if len(commands) > 100 {
		commands = commands[:100]
	}
	return c.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: commands,
	})
}

// DefaultMenuCommands returns the bot menu commands.
func DefaultMenuCommands() []telego.BotCommand {
	return []telego.BotCommand{
		{Command: "q", Description: "搜索消息"},
		{Command: "toggle_my_searchability", Description: "切换我的消息是否可被搜索"},
		{Command: "help", Description: "显示帮助"},
	}
}
