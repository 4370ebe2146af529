package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/Lhcfl/whatdidwesaybot/internal/archive"
	"github.com/Lhcfl/whatdidwesaybot/internal/store"
)

// Member statuses that mean the bot is no longer in the chat.
const (
	memberStatusLeft   = "left"
	memberStatusKicked = "kicked"
)

// HandleUpdate processes one update. It returns a non-nil error only when
// the failure policy asks the update loop to stop.
func (c *Channel) HandleUpdate(ctx context.Context, upd telego.Update) error {
	switch {
	case upd.Message != nil:
		return c.handleMessage(ctx, upd.Message)
	case upd.ChannelPost != nil:
		return c.handleChannelPost(ctx, upd.ChannelPost)
	case upd.MyChatMember != nil:
		c.handleMyChatMember(ctx, upd.MyChatMember)
	case upd.InlineQuery != nil:
		c.handleInlineQuery(ctx, upd.InlineQuery)
	}
	return nil
}

func (c *Channel) handleMessage(ctx context.Context, msg *telego.Message) error {
	if msg.Chat.Type == telego.ChatTypePrivate {
		return nil
	}
	if msg.From == nil || msg.Text == "" {
		return nil
	}
	if c.dedupe.seen(messageKey{chatID: msg.Chat.ID, messageID: msg.MessageID}) {
		slog.Debug("duplicate message skipped", "chat_id", msg.Chat.ID, "message_id", msg.MessageID)
		return nil
	}

	if isCommand(msg.Text) {
		c.svc.RecordAuthor(ctx, profileOf(msg.From))
		c.handleCommand(ctx, msg)
		return nil
	}

	scope := store.ChatScope(msg.Chat.ID)
	out, err := c.svc.Archive(ctx, archive.Inbound{
		Scope:     scope,
		Author:    profileOf(msg.From),
		OrdinalID: int32(msg.MessageID),
		Text:      msg.Text,
	})
	if err != nil {
		c.reply(ctx, msg, textArchiveFailed, false)
		return c.svc.HandleFailure(scope, err)
	}
	slog.Debug("message handled", "chat_id", msg.Chat.ID, "message_id", msg.MessageID, "outcome", out)
	return nil
}

func (c *Channel) handleChannelPost(ctx context.Context, post *telego.Message) error {
	if !c.opts.ChannelPosts || post.Text == "" {
		return nil
	}
	if c.dedupe.seen(messageKey{chatID: post.Chat.ID, messageID: post.MessageID}) {
		return nil
	}

	var author store.UserProfile
	if post.From != nil {
		author = profileOf(post.From)
	}
	_, err := c.svc.Archive(ctx, archive.Inbound{
		Scope:     store.GlobalScope,
		Author:    author,
		OrdinalID: int32(post.MessageID),
		Text:      post.Text,
	})
	if err != nil {
		return c.svc.HandleFailure(store.GlobalScope, err)
	}
	return nil
}

func (c *Channel) handleMyChatMember(ctx context.Context, upd *telego.ChatMemberUpdated) {
	if upd.Chat.Type == telego.ChatTypePrivate || upd.NewChatMember == nil {
		return
	}
	switch upd.NewChatMember.MemberStatus() {
	case memberStatusLeft, memberStatusKicked:
		slog.Info("bot removed from chat", "chat_id", upd.Chat.ID)
		return
	}
	if old := upd.OldChatMember; old != nil {
		if s := old.MemberStatus(); s != memberStatusLeft && s != memberStatusKicked {
			// Permission change while already a member.
			return
		}
	}

	slog.Info("bot added to chat", "chat_id", upd.Chat.ID, "title", upd.Chat.Title)
	msg := tu.Message(tu.ID(upd.Chat.ID), textWelcome)
	msg.ParseMode = telego.ModeHTML
	c.send(ctx, msg)
}

func (c *Channel) handleInlineQuery(ctx context.Context, q *telego.InlineQuery) {
	results := []telego.InlineQueryResult{}

	hits, err := c.svc.Search(ctx, store.GlobalScope, q.Query, inlineMaxResults)
	if err != nil {
		slog.Error("inline search failed", "query_id", q.ID, "error", err)
	}
	for i, hit := range hits {
		results = append(results, &telego.InlineQueryResultArticle{
			Type:        telego.ResultTypeArticle,
			ID:          strconv.FormatInt(hit.Record.ID, 10) + "-" + strconv.Itoa(i),
			Title:       c.svc.Excerpt(hit),
			Description: fmt.Sprintf("%.2f", hit.Score),
			InputMessageContent: &telego.InputTextMessageContent{
				MessageText: hit.Record.Text,
			},
		})
	}

	err = c.bot.AnswerInlineQuery(ctx, &telego.AnswerInlineQueryParams{
		InlineQueryID: q.ID,
		Results:       results,
		CacheTime:     int(c.opts.InlineCacheTTL.Seconds()),
	})
	if err != nil {
		slog.Warn("failed to answer inline query", "query_id", q.ID, "error", err)
	}
}

// reply sends text to the chat of msg. Delivery failures are logged only.
func (c *Channel) reply(ctx context.Context, msg *telego.Message, text string, html bool) {
	out := tu.Message(tu.ID(msg.Chat.ID), text)
	if html {
		out.ParseMode = telego.ModeHTML
		out.LinkPreviewOptions = &telego.LinkPreviewOptions{IsDisabled: true}
	}
	if msg.MessageThreadID > 0 && msg.IsTopicMessage {
		out.MessageThreadID = msg.MessageThreadID
	}
	c.send(ctx, out)
}

func (c *Channel) send(ctx context.Context, msg *telego.SendMessageParams) {
	if _, err := c.bot.SendMessage(ctx, msg); err != nil {
		slog.Warn("failed to send message", "chat_id", msg.ChatID.ID, "error", err)
	}
}

func profileOf(u *telego.User) store.UserProfile {
	return store.UserProfile{
		ID:        uint64(u.ID),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
}

// IsHalted reports whether err stopped the update loop on purpose.
func IsHalted(err error) bool {
	return errors.Is(err, archive.ErrHalted)
}
