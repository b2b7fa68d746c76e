package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"shelfy/internal/vitesy"

	"github.com/gin-gonic/gin"
)

// TokenManager exposes the session token set
type TokenManager interface {
	Tokens() vitesy.Tokens
	ForceRefresh(ctx context.Context) error
}

// AdminHandler handles administrative operations on the vendor session
type AdminHandler struct {
	tokens TokenManager
	logger *slog.Logger
	now    func() time.Time
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(tokens TokenManager, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// GetTokenStatus returns the status of the vendor tokens
// GET /admin/token-status
func (h *AdminHandler) GetTokenStatus(c *gin.Context) {
	tokens := h.tokens.Tokens()

	if tokens.AccessToken == "" && tokens.RefreshToken == "" {
		c.JSON(http.StatusOK, gin.H{
			"configured": false,
			"message":    "Not logged in. Run `shelfy login` first.",
		})
		return
	}

	now := h.now()
	var accessTokenStatus string
	var accessTokenExpiresIn *int

	if tokens.AccessToken == "" {
		accessTokenStatus = "not_cached"
	} else if tokens.Expired(now) {
		accessTokenStatus = "expired"
	} else {
		accessTokenStatus = "valid"
		expiresIn := int(tokens.ExpiresAt.Sub(now).Seconds())
		accessTokenExpiresIn = &expiresIn
	}

	response := gin.H{
		"configured":          true,
		"updated_at":          tokens.UpdatedAt,
		"access_token_status": accessTokenStatus,
		"has_refresh_token":   tokens.RefreshToken != "",
		"has_api_key":         tokens.APIKey != "",
	}

	if accessTokenExpiresIn != nil {
		response["access_token_expires_in_seconds"] = *accessTokenExpiresIn
	}

	// Cognito access tokens are JWTs; anything else is reported without claims
	if claims, err := vitesy.ParseClaims(tokens.AccessToken); err == nil {
		response["subject"] = claims.Subject
		if claims.Username != "" {
			response["username"] = claims.Username
		}
		if claims.Email != "" {
			response["email"] = claims.Email
		}
	}

	c.JSON(http.StatusOK, response)
}

// RefreshToken forces a refresh of the access token
// POST /admin/refresh-token
func (h *AdminHandler) RefreshToken(c *gin.Context) {
	if err := h.tokens.ForceRefresh(c.Request.Context()); err != nil {
		h.logger.Error("Failed to refresh access token",
			"component", "api.admin",
			"error", err,
		)

		status := http.StatusBadGateway
		code := "UPSTREAM_ERROR"
		if errors.Is(err, vitesy.ErrNoRefreshToken) {
			status = http.StatusConflict
			code = "LOGIN_REQUIRED"
		}
		c.JSON(status, gin.H{
			"error": "Failed to refresh access token",
			"code":  code,
		})
		return
	}

	h.logger.Info("Access token refreshed on request",
		"component", "api.admin",
	)

	tokens := h.tokens.Tokens()
	c.JSON(http.StatusOK, gin.H{
		"message":    "Access token refreshed successfully",
		"expires_at": tokens.ExpiresAt,
	})
}
