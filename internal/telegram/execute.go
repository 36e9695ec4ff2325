package telegram

import (
	"time"

	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/groupkeeper-tgbot-go/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram treats restrictions shorter than this as permanent.
const minRestriction = 30 * time.Second

// execute carries out a response: side effects first, then messages, then
// the callback answer. Each failure is logged and the rest still runs.
func (b *Bot) execute(update tgbotapi.Update, ev models.Event, resp models.Response) {
	log := logger.WithEvent(b.logger, ev)

	for _, effect := range resp.Effects {
		var err error
		switch effect.Kind {
		case models.EffectDeleteMessage:
			_, err = b.api.Request(tgbotapi.NewDeleteMessage(ev.ChatID, effect.MessageID))
		case models.EffectMute:
			_, err = b.api.Request(MuteConfig(ev.ChatID, effect.UserID, effect.Duration, b.now()))
		default:
			log.WithField("effect", effect.Kind).Warn("Unknown side effect")
			continue
		}
		status := "success"
		if err != nil {
			status = "error"
			log.WithError(err).WithField("effect", effect.Kind).Error("Failed to apply side effect")
		}
		b.recorder.RecordSideEffect(string(effect.Kind), status)
	}

	for _, out := range resp.Messages {
		var err error
		if out.Edit && update.CallbackQuery != nil {
			_, err = b.api.Request(EditConfig(ev.ChatID, ev.MessageID, out))
		} else {
			_, err = b.api.Send(MessageConfig(ev.ChatID, out))
		}
		if err != nil {
			log.WithError(err).Error("Failed to send message")
		}
	}

	if update.CallbackQuery != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, resp.AnswerCallback)); err != nil {
			log.WithError(err).Warn("Failed to answer callback query")
		}
	}
}

// Keyboard converts button rows into an inline keyboard. Nil means none.
func Keyboard(rows [][]models.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	markup := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		markup = append(markup, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(markup...)
	return &kb
}

// MessageConfig builds a sendMessage request.
func MessageConfig(chatID int64, out models.OutgoingMessage) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, out.Text)
	if out.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if out.ReplyTo != 0 {
		msg.ReplyToMessageID = out.ReplyTo
	}
	if kb := Keyboard(out.Keyboard); kb != nil {
		msg.ReplyMarkup = *kb
	}
	return msg
}

// EditConfig builds an editMessageText request for the message a callback came from.
func EditConfig(chatID int64, messageID int, out models.OutgoingMessage) tgbotapi.EditMessageTextConfig {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, out.Text)
	if out.HTML {
		edit.ParseMode = tgbotapi.ModeHTML
	}
	edit.ReplyMarkup = Keyboard(out.Keyboard)
	return edit
}

// MuteConfig revokes the member's right to send messages until now+d.
func MuteConfig(chatID, userID int64, d time.Duration, now time.Time) tgbotapi.RestrictChatMemberConfig {
	if d < minRestriction {
		d = minRestriction
	}
	return tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		UntilDate:        now.Add(d).Unix(),
		Permissions:      &tgbotapi.ChatPermissions{},
	}
}
