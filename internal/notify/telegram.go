package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskflow/internal/models"
)

// BotAPI is the part of *tgbotapi.BotAPI the sender uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramSender struct {
	bot BotAPI
}

// NewTelegramSender connects to the Bot API with token.
func NewTelegramSender(token string) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot}, nil
}

func NewTelegramSenderWithBot(bot BotAPI) *TelegramSender {
	return &TelegramSender{bot: bot}
}

func (s *TelegramSender) Name() string { return "telegram" }

func (s *TelegramSender) CanReach(u *models.User) bool {
	return u.TelegramChatID != 0 && u.NotifyTelegram
}

func (s *TelegramSender) Send(_ context.Context, u *models.User, msg Message) error {
	return s.SendText(u.TelegramChatID, msg.Text)
}

// SendText posts an HTML message to a chat.
func (s *TelegramSender) SendText(chatID int64, text string) error {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeHTML
	m.DisableWebPagePreview = true
	if _, err := s.bot.Send(m); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}
