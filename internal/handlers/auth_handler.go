package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskflow/internal/middleware"
	"taskflow/internal/models"
	"taskflow/internal/services"
)

// CookieConfig controls the session cookie set at login.
type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	userService services.UserService
	authService services.AuthService
	cookie      CookieConfig
	log         *zap.Logger
}

func NewAuthHandler(userService services.UserService, authService services.AuthService, cookie CookieConfig, log *zap.Logger) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "token"
	}
	return &AuthHandler{userService: userService, authService: authService, cookie: cookie, log: log}
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// @Summary      Log in
// @Description  Checks credentials, sets the session cookie and returns the token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Credentials"
// @Success      200    {object}  loginResponse
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      403    {object}  map[string]string
// @Router       /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.log.Info("[auth][login][denied]", zap.String("username", req.Username))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}
		writeError(c, h.log, "[auth][login]", err)
		return
	}

	token, exp, err := h.authService.IssueToken(user)
	if err != nil {
		writeError(c, h.log, "[auth][login]", err)
		return
	}
	h.setCookie(c, token, int(time.Until(exp).Seconds()))
	h.log.Info("[auth][login][ok]", zap.Int64("user_id", user.ID), zap.String("role", user.Role))
	c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, User: user})
}

// @Summary  Log out
// @Tags     Auth
// @Success  200  {object}  map[string]string
// @Router   /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// @Summary  Session check
// @Tags     Auth
// @Produce  json
// @Success  200  {object}  map[string]interface{}
// @Router   /auth/check [get]
func (h *AuthHandler) Check(c *gin.Context) {
	token := middleware.TokenFromRequest(c, h.cookie.Name)
	if token == "" {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	claims, err := h.authService.ParseToken(token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"userId":        claims.UserID,
		"username":      claims.Username,
		"role":          claims.Role,
	})
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Secure, true)
}
