package services

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"taskflow/internal/models"
	"taskflow/internal/repositories"
	"taskflow/internal/utils"
)

// ChatReplier answers a Telegram chat.
type ChatReplier interface {
	SendText(chatID int64, text string) error
}

// LinkCode is handed to the user, who sends "/start <code>" to the bot.
type LinkCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type TelegramLinkService interface {
	CreateCode(ctx context.Context, userID int64) (*LinkCode, error)
	// Confirm binds chatID to the owner of code and enables Telegram notifications.
	Confirm(ctx context.Context, code string, chatID int64) (*models.User, error)
	Unlink(ctx context.Context, userID int64) error
	// HandleUpdate processes one webhook update from the bot.
	HandleUpdate(ctx context.Context, upd tgbotapi.Update) error
}

type telegramLinkService struct {
	store  repositories.Store
	reply  ChatReplier
	ttl    time.Duration
	clock  Clock
	logger *zap.Logger
}

func NewTelegramLinkService(store repositories.Store, reply ChatReplier, ttl time.Duration, clock Clock, logger *zap.Logger) TelegramLinkService {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &telegramLinkService{store: store, reply: reply, ttl: ttl, clock: clock, logger: logger}
}

func (s *telegramLinkService) CreateCode(ctx context.Context, userID int64) (*LinkCode, error) {
	if _, err := loadActiveUser(ctx, s.store.Users(), userID); err != nil {
		return nil, err
	}
	code, err := utils.NewLinkCode(4)
	if err != nil {
		return nil, models.StorageError("generate link code", err)
	}
	link, err := s.store.TelegramLinks().Create(ctx, userID, code, s.clock().Add(s.ttl))
	if err != nil {
		return nil, err
	}
	s.logger.Info("[tg][link][code]", zap.Int64("user_id", userID))
	return &LinkCode{Code: link.Code, ExpiresAt: link.ExpiresAt}, nil
}

func (s *telegramLinkService) Confirm(ctx context.Context, code string, chatID int64) (*models.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, models.ValidationError("code", "code is required")
	}
	if chatID == 0 {
		return nil, models.ValidationError("chatId", "chat id is required")
	}
	var out *models.User
	err := s.store.WithTx(ctx, func(tx repositories.Store) error {
		link, err := tx.TelegramLinks().Consume(ctx, code, s.clock())
		if err != nil {
			return err
		}
		if err := tx.Users().UpdateTelegramLink(ctx, link.UserID, chatID, true); err != nil {
			return err
		}
		out, err = tx.Users().FindByID(ctx, link.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("[tg][link][ok]", zap.Int64("user_id", out.ID), zap.Int64("chat_id", chatID))
	return out, nil
}

func (s *telegramLinkService) Unlink(ctx context.Context, userID int64) error {
	if err := s.store.Users().UpdateTelegramLink(ctx, userID, 0, false); err != nil {
		return err
	}
	s.logger.Info("[tg][unlink][ok]", zap.Int64("user_id", userID))
	return nil
}

func (s *telegramLinkService) HandleUpdate(ctx context.Context, upd tgbotapi.Update) error {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return nil
	}
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "link":
		arg := strings.TrimSpace(msg.CommandArguments())
		if arg == "" {
			return s.send(chatID, "Send <b>/start CODE</b> with the code from your profile page to receive task notifications.")
		}
		user, err := s.Confirm(ctx, arg, chatID)
		if err != nil {
			if models.IsKind(err, models.KindNotFound) || models.IsKind(err, models.KindValidation) {
				return s.send(chatID, "This code is invalid or has expired.")
			}
			if models.IsKind(err, models.KindConflict) {
				return s.send(chatID, "This chat is already linked to another account.")
			}
			return err
		}
		return s.send(chatID, "Linked to <b>"+escape(user.Username)+"</b>. Task notifications will arrive here.")
	case "stop":
		user, err := s.store.Users().FindByChatID(ctx, chatID)
		if err != nil {
			if models.IsKind(err, models.KindNotFound) {
				return s.send(chatID, "This chat is not linked.")
			}
			return err
		}
		if err := s.Unlink(ctx, user.ID); err != nil {
			return err
		}
		return s.send(chatID, "Notifications disabled for this chat.")
	}
	return nil
}

func (s *telegramLinkService) send(chatID int64, text string) error {
	if s.reply == nil {
		return nil
	}
	if err := s.reply.SendText(chatID, text); err != nil {
		s.logger.Warn("[tg][reply][err]", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return nil
}

var escape = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace
