package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, logger *slog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		logger:      logger,
	}
}

// GeneratePayload issues a new TonProof challenge
func (h *AuthHandlers) GeneratePayload(c *gin.Context) {
	issued, err := h.authService.CreateChallenge(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to create challenge", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, issued)
}

// CheckProof verifies a TonProof and returns an access token when it is valid
func (h *AuthHandlers) CheckProof(c *gin.Context) {
	var req CheckProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, CheckProofResponse{Error: "Invalid request"})
		return
	}

	check, err := h.authService.CheckProof(c.Request.Context(), req.ProofCheckRequest())
	resp := CheckProofResponse{
		Valid:  err == nil && check.Result.Valid(),
		Token:  check.Token,
		Checks: check.Result,
	}
	if err != nil {
		switch {
		case errors.Is(err, core.ErrMalformedProof):
			resp.Error = check.Result.Describe()
			c.JSON(http.StatusBadRequest, resp)
		case errors.Is(err, core.ErrConfiguration):
			h.logger.Error("proof check misconfigured", "err", err)
			c.JSON(http.StatusInternalServerError, CheckProofResponse{Error: "Server misconfigured"})
		default:
			h.logger.Error("proof check failed", "err", err)
			c.JSON(http.StatusInternalServerError, CheckProofResponse{Error: "Verification failed"})
		}
		return
	}

	if !resp.Valid {
		resp.Error = check.Result.Describe()
	}
	c.JSON(http.StatusOK, resp)
}

// CheckSignData verifies a sign-data signature
func (h *AuthHandlers) CheckSignData(c *gin.Context) {
	var req CheckSignDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, service.SignDataCheck{Message: "Invalid request"})
		return
	}

	check, err := h.authService.CheckSignData(c.Request.Context(), req.SignDataCheckRequest())
	if err != nil {
		if errors.Is(err, core.ErrMalformedProof) {
			c.JSON(http.StatusBadRequest, check)
			return
		}
		h.logger.Error("sign-data check failed", "err", err)
		c.JSON(http.StatusInternalServerError, service.SignDataCheck{Message: "Verification failed"})
		return
	}

	c.JSON(http.StatusOK, check)
}

// AccountInfo returns the session behind the bearer token
func (h *AuthHandlers) AccountInfo(c *gin.Context) {
	// Session is set by the auth middleware
	value, exists := c.Get(sessionKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}
	session := value.(*core.AuthSession)

	c.JSON(http.StatusOK, AccountInfoResponse{
		Address:   session.Address,
		Network:   session.Network,
		IssuedAt:  session.IssuedAt,
		ExpiresAt: session.AccessExpiry,
	})
}

// Logout revokes the bearer token
func (h *AuthHandlers) Logout(c *gin.Context) {
	err := h.authService.Logout(c.Request.Context(), c.GetString(tokenKey))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrTokenExpired), errors.Is(err, core.ErrTokenInvalidated):
			// Nothing left to revoke
			c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
		default:
			h.logger.Error("logout failed", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Health reports liveness
func (h *AuthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
