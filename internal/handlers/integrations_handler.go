package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"taskflow/internal/services"
)

// telegramSecretHeader carries the secret_token registered with setWebhook.
const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type IntegrationsHandler struct {
	links  services.TelegramLinkService
	secret string
	log    *zap.Logger
}

func NewIntegrationsHandler(links services.TelegramLinkService, secret string, log *zap.Logger) *IntegrationsHandler {
	return &IntegrationsHandler{links: links, secret: secret, log: log}
}

// @Summary  Telegram bot webhook
// @Tags     Integrations
// @Accept   json
// @Success  200
// @Router   /integrations/telegram/webhook [post]
func (h *IntegrationsHandler) TelegramWebhook(c *gin.Context) {
	if h.secret != "" {
		got := c.GetHeader(telegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bad secret"})
			return
		}
	}

	var upd tgbotapi.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		bindError(c, err)
		return
	}
	if err := h.links.HandleUpdate(c.Request.Context(), upd); err != nil {
		h.log.Warn("[tg][webhook][err]", zap.Int("update_id", upd.UpdateID), zap.Error(err))
	}
	// Telegram retries on non-2xx, so processing errors still answer 200.
	c.Status(http.StatusOK)
}
