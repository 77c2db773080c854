package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Spok95/timetable-substitutes/internal/metrics"
	"github.com/Spok95/timetable-substitutes/internal/models"
	"github.com/Spok95/timetable-substitutes/internal/observability"
)

// Sender is the part of *tgbotapi.BotAPI used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends notifications to the chat stored on the user.
type Telegram struct {
	bot Sender
	log *zap.Logger
}

func NewTelegram(bot Sender, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{bot: bot, log: log}
}

// Dial connects to the Bot API with token.
func Dial(token string, log *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return NewTelegram(bot, log), nil
}

func (t *Telegram) Notify(ctx context.Context, to models.User, subject, body string) error {
	if to.TelegramChatID == nil || *to.TelegramChatID == 0 {
		return fmt.Errorf("user %d: %w", to.ID, ErrNoAddress)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(*to.TelegramChatID, "<b>"+escapeHTML(subject)+"</b>\n"+escapeHTML(body))
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := t.bot.Send(msg); err != nil {
		metrics.HandlerErrors.Inc()
		if isSystemErr(err) {
			observability.CaptureErr(err)
		}
		t.log.Warn("telegram send failed", zap.Int64("user_id", to.ID), zap.Error(err))
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// isSystemErr: 5xx, 429 and timeouts are ours to look at; 400s such as
// "chat not found" are bad addresses, not outages.
func isSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") ||
		strings.Contains(s, "500") ||
		strings.Contains(s, "502") ||
		strings.Contains(s, "503") ||
		strings.Contains(s, "timeout")
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string { return htmlEscaper.Replace(s) }
