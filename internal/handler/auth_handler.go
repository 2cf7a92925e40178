package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"habittracker/internal/service/auth"
)

type AuthHandler struct {
	authService *auth.Service
	logger      *zap.Logger
}

func NewAuthHandler(authService *auth.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

// Register handles POST /users/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	u, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, "Register", err)
		return
	}

	c.JSON(http.StatusCreated, u)
}

// Login handles POST /users/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, "Login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Me handles GET /users/me
func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.authService.Me(c.Request.Context(), ActorFrom(c))
	if err != nil {
		writeError(c, h.logger, "Me", err)
		return
	}
	c.JSON(http.StatusOK, u)
}
