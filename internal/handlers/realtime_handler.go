package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskflow/internal/realtime"
)

type RealtimeHandler struct {
	hub *realtime.Hub
	log *zap.Logger
}

func NewRealtimeHandler(hub *realtime.Hub, log *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, log: log}
}

// @Summary      Live task events
// @Description  WebSocket stream of lifecycle events; admins get all, other users the events they triggered
// @Tags         Events
// @Success      101
// @Router       /ws/events [get]
func (h *RealtimeHandler) Events(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	// the upgrader writes its own error response
	if err := h.hub.Serve(c.Writer, c.Request, userID, isAdmin(c)); err != nil {
		h.log.Debug("[ws][upgrade][err]", zap.Int64("user_id", userID), zap.Error(err))
	}
}
