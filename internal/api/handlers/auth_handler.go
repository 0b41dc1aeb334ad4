package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexuscomply/backend/internal/api/middleware"
	"github.com/nexuscomply/backend/internal/services"
	"github.com/nexuscomply/backend/internal/util"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		middleware.GetRequestLogger(c).WithField("email", util.SanitizeForLog(req.Email)).Info("login rejected")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// Me returns the identity carried by the caller's token.
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":   actor.UserID,
		"role":      actor.Role,
		"outlet_id": actor.OutletID,
	})
}
