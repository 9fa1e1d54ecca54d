package telegram

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func EscapeMessage(message string) string {
	r := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return r.Replace(message)
}

// Alert posts an operational message to the admin chat. Used for quota
// exhaustion and permanent render failures; delivery is best effort and
// never blocks the caller's flow.
func Alert(message string) {
	token := os.Getenv("TG_TOKEN")
	chat := os.Getenv("TG_ALERT_CHAT")
	if token == "" || chat == "" {
		fmt.Println("[TG Alert] not configured, skipping:", message)
		return
	}
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		fmt.Println("[TG Alert] invalid TG_ALERT_CHAT:", chat)
		return
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		fmt.Println("[TG Alert] bot init failed:", err)
		return
	}

	msg := tgbotapi.NewMessage(chatID, EscapeMessage(message))
	msg.ParseMode = "markdown"
	if _, err := bot.Send(msg); err != nil {
		fmt.Println("[TG Alert] send failed:", err)
	}
}
