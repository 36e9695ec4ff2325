// Package telegram adapts the Bot API to the dispatcher: it turns updates into
// events, resolves admin rights, and carries out the returned responses.
package telegram

import (
	"context"
	"strings"
	"time"

	"github.com/groupkeeper-tgbot-go/internal/config"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/groupkeeper-tgbot-go/internal/services/cache"
	"github.com/groupkeeper-tgbot-go/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// API is the part of *tgbotapi.BotAPI the adapter uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Handler processes one event; handlers.Dispatcher implements it.
type Handler interface {
	Handle(ctx context.Context, ev models.Event) (models.Response, error)
}

// EffectRecorder counts executed side effects; middleware.Metrics implements it.
type EffectRecorder interface {
	RecordSideEffect(kind, status string)
}

type noopRecorder struct{}

func (noopRecorder) RecordSideEffect(string, string) {}

// Bot glues the Bot API to a Handler.
type Bot struct {
	api      API
	handler  Handler
	admins   *cache.AdminCache
	adminIDs map[int64]struct{}
	recorder EffectRecorder
	logger   *logrus.Logger
	now      func() time.Time
}

// NewBot creates the adapter.
func NewBot(api API, handler Handler, cfg *config.BotConfig, log *logrus.Logger) *Bot {
	ids := make(map[int64]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		ids[id] = struct{}{}
	}
	return &Bot{
		api:      api,
		handler:  handler,
		admins:   cache.NewAdminCache(cfg.AdminCacheTTL, log),
		adminIDs: ids,
		recorder: noopRecorder{},
		logger:   log,
		now:      time.Now,
	}
}

// SetRecorder installs a metrics sink.
func (b *Bot) SetRecorder(r EffectRecorder) {
	if r == nil {
		r = noopRecorder{}
	}
	b.recorder = r
}

// HandleUpdate processes one update end to end. Errors are logged; the
// dispatcher already turned them into user-facing replies.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.ChatMember != nil {
		b.admins.InvalidateChat(update.ChatMember.Chat.ID)
	}

	for _, ev := range EventsFromUpdate(update) {
		if ev.Kind != models.EventMemberJoined && ev.Kind != models.EventMemberLeft {
			ev.IsPrivileged = b.isPrivileged(update, ev)
		}
		resp, err := b.handler.Handle(ctx, ev)
		if err != nil {
			logger.WithEvent(b.logger, ev).WithError(err).Warn("Event handled with error")
		}
		b.execute(update, ev, resp)
	}
}

// EventsFromUpdate converts an update into dispatcher events. A message
// announcing several new members yields one event per member.
func EventsFromUpdate(update tgbotapi.Update) []models.Event {
	if cq := update.CallbackQuery; cq != nil {
		if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
			return nil
		}
		ev := models.Event{
			Kind:        models.EventCallback,
			ChatID:      cq.Message.Chat.ID,
			ChatTitle:   cq.Message.Chat.Title,
			UserID:      cq.From.ID,
			Username:    cq.From.UserName,
			DisplayName: fullName(cq.From),
			MessageID:   cq.Message.MessageID,
			Callback:    cq.Data,
		}
		return []models.Event{ev}
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}
	base := models.Event{
		ChatID:    msg.Chat.ID,
		ChatTitle: msg.Chat.Title,
		MessageID: msg.MessageID,
		Time:      time.Unix(int64(msg.Date), 0),
	}

	if len(msg.NewChatMembers) > 0 {
		var events []models.Event
		for i := range msg.NewChatMembers {
			member := &msg.NewChatMembers[i]
			if member.IsBot {
				continue
			}
			ev := base
			ev.Kind = models.EventMemberJoined
			setUser(&ev, member)
			events = append(events, ev)
		}
		return events
	}
	if msg.LeftChatMember != nil {
		if msg.LeftChatMember.IsBot {
			return nil
		}
		ev := base
		ev.Kind = models.EventMemberLeft
		setUser(&ev, msg.LeftChatMember)
		return []models.Event{ev}
	}

	if msg.From == nil {
		return nil
	}
	ev := base
	setUser(&ev, msg.From)
	if reply := msg.ReplyToMessage; reply != nil && reply.From != nil {
		ev.ReplyToUserID = reply.From.ID
		ev.ReplyToDisplayName = fullName(reply.From)
	}

	if msg.IsCommand() {
		ev.Kind = models.EventCommand
		ev.Command = msg.Command()
		ev.Text = msg.CommandArguments()
		ev.Args = strings.Fields(ev.Text)
		return []models.Event{ev}
	}

	ev.Kind = models.EventMessage
	ev.Text = msg.Text
	if ev.Text == "" {
		ev.Text = msg.Caption
	}
	if ev.Text == "" {
		return nil
	}
	return []models.Event{ev}
}

func setUser(ev *models.Event, u *tgbotapi.User) {
	ev.UserID = u.ID
	ev.Username = u.UserName
	ev.DisplayName = fullName(u)
}

func fullName(u *tgbotapi.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// isPrivileged reports whether the sender may run admin commands: configured
// bot admins, anyone in a private chat, and chat administrators.
func (b *Bot) isPrivileged(update tgbotapi.Update, ev models.Event) bool {
	if _, ok := b.adminIDs[ev.UserID]; ok {
		return true
	}
	if chat := chatOf(update); chat != nil && chat.IsPrivate() {
		return true
	}
	if admin, ok := b.admins.Get(ev.ChatID, ev.UserID); ok {
		return admin
	}

	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: ev.ChatID, UserID: ev.UserID},
	})
	if err != nil {
		logger.WithChat(b.logger, ev.ChatID, ev.UserID).WithError(err).Warn("Failed to resolve chat member")
		return false
	}
	admin := member.IsAdministrator() || member.IsCreator()
	b.admins.Set(ev.ChatID, ev.UserID, admin)
	return admin
}

func chatOf(update tgbotapi.Update) *tgbotapi.Chat {
	if update.Message != nil {
		return update.Message.Chat
	}
	if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
		return update.CallbackQuery.Message.Chat
	}
	return nil
}
