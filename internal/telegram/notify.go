package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/stravasync/stravasync/internal/models"
)

// Notifier sends one-off sync status messages to a Telegram chat.
// A zero or misconfigured Notifier silently does nothing.
type Notifier struct {
	Token  string
	ChatID int64
}

// NotifySyncResult sends a short summary after a completed sync run.
func (n *Notifier) NotifySyncResult(result *models.SyncResult) {
	if result == nil {
		return
	}
	text := fmt.Sprintf("✅ *Strava sync complete*\nActivities: %d\nKudos: %d",
		result.ActivitiesProcessed, result.KudosProcessed)
	if !result.Watermark.IsZero() {
		text += fmt.Sprintf("\nWatermark: `%s`", result.Watermark.UTC().Format("2006-01-02T15:04:05Z"))
	}
	n.send(text)
}

// NotifySyncFailure sends a failure message with the error text.
func (n *Notifier) NotifySyncFailure(err error) {
	if err == nil {
		return
	}
	n.send(fmt.Sprintf("❌ *Strava sync failed*\n%s", err.Error()))
}

func (n *Notifier) send(text string) {
	token := strings.TrimSpace(n.Token)
	if token == "" || n.ChatID == 0 || strings.TrimSpace(text) == "" {
		return
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return
	}
	msg := tgbotapi.NewMessage(n.ChatID, text)
	msg.ParseMode = "Markdown"
	_, _ = bot.Send(msg)
}
