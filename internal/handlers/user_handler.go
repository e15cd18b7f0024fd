package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskflow/internal/models"
	"taskflow/internal/services"
)

type UserHandler struct {
	service services.UserService
	links   services.TelegramLinkService
	log     *zap.Logger
}

func NewUserHandler(service services.UserService, links services.TelegramLinkService, log *zap.Logger) *UserHandler {
	return &UserHandler{service: service, links: links, log: log}
}

// @Summary      Create a user
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        user  body      services.CreateUserInput  true  "User"
// @Success      201   {object}  models.User
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /users/ [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req services.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	user, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, "[user][create]", err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// @Summary  List users
// @Tags     Users
// @Produce  json
// @Param    limit   query    int  false  "Page size"
// @Param    offset  query    int  false  "Offset"
// @Success  200     {array}  models.User
// @Router   /users/ [get]
func (h *UserHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	users, err := h.service.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, h.log, "[user][list]", err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	c.JSON(http.StatusOK, users)
}

// @Summary  Get a user
// @Tags     Users
// @Produce  json
// @Param    id   path      int  true  "User ID"
// @Success  200  {object}  models.User
// @Failure  404  {object}  map[string]string
// @Router   /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	h.respondUser(c, id)
}

// @Summary  Current user
// @Tags     Users
// @Produce  json
// @Success  200  {object}  models.User
// @Router   /users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	h.respondUser(c, userID)
}

func (h *UserHandler) respondUser(c *gin.Context, id int64) {
	user, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, "[user][get]", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary  Update a user
// @Tags     Users
// @Accept   json
// @Produce  json
// @Param    id    path      int                       true  "User ID"
// @Param    user  body      services.UpdateUserInput  true  "Changed fields"
// @Success  200   {object}  models.User
// @Router   /users/{id} [patch]
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	user, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, h.log, "[user][update]", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary  Delete a user
// @Tags     Users
// @Param    id  path  int  true  "User ID"
// @Success  204
// @Router   /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actorID, _ := getUserAndRole(c)
	if err := h.service.Delete(c.Request.Context(), actorID, id); err != nil {
		writeError(c, h.log, "[user][delete]", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Telegram link code
// @Description  Returns a one-time code to send to the bot as "/start CODE"
// @Tags         Users
// @Produce      json
// @Success      201  {object}  services.LinkCode
// @Router       /users/me/telegram-link [post]
func (h *UserHandler) TelegramLink(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	code, err := h.links.CreateCode(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, "[user][tg-link]", err)
		return
	}
	c.JSON(http.StatusCreated, code)
}

// @Summary  Unlink Telegram
// @Tags     Users
// @Success  204
// @Router   /users/me/telegram-link [delete]
func (h *UserHandler) TelegramUnlink(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	if err := h.links.Unlink(c.Request.Context(), userID); err != nil {
		writeError(c, h.log, "[user][tg-unlink]", err)
		return
	}
	c.Status(http.StatusNoContent)
}
