package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"accounts-api/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints de /auth.
type AuthHandler struct {
	logger   *zap.Logger
	accounts *service.AccountService
	jwtServ  *service.JWTService
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, accounts *service.AccountService, jwtServ *service.JWTService) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		accounts: accounts,
		jwtServ:  jwtServ,
	}
}

type registerRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email" binding:"required,email"`
	Password         string `json:"password" binding:"required"`
	Role             string `json:"role"`
	ReferralCodeUsed string `json:"referralCodeUsed"`
}

// Liveness maneja GET /auth.
func (h *AuthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "auth api reachable"})
}

// Register maneja POST /auth/register y POST /users/referral/test.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		Name:             req.Name,
		Email:            req.Email,
		Password:         req.Password,
		Role:             req.Role,
		ReferralCodeUsed: req.ReferralCodeUsed,
	})
	if err != nil {
		respondServiceError(c, h.logger, "register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "user registered", "user": account})
}

// Login maneja POST /auth/login: valida credenciales, envía el código por
// email y devuelve el challenge token que exige /auth/verify-2fa.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}

	account, err := h.accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(c, h.logger, "login", err)
		return
	}

	challenge, err := h.jwtServ.IssueChallenge(account.ID)
	if err != nil {
		h.logger.Error("challenge issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "could not issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "verification code sent", "challenge_token": challenge})
}

// VerifyTwoFactor maneja POST /auth/verify-2fa.
func (h *AuthHandler) VerifyTwoFactor(c *gin.Context) {
	var req struct {
		ChallengeToken string `json:"challenge_token" binding:"required"`
		Code           string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid verify-2fa request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}

	claims, err := h.jwtServ.VerifyChallenge(req.ChallengeToken)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"message": "invalid token"})
		return
	}

	account, err := h.accounts.VerifyTwoFactor(c.Request.Context(), claims.SubjectID, req.Code)
	if err != nil {
		respondServiceError(c, h.logger, "verify 2fa", err)
		return
	}

	token, err := h.jwtServ.Issue(account.ID, account.Role)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "could not issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "login successful",
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int64(h.jwtServ.AccessTTL().Seconds()),
		"user":       account,
	})
}

// Me maneja GET /auth/me, /auth/profile y /auth/provider-profile; la policy
// de cada ruta decide quién llega hasta aquí.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "missing token"})
		return
	}

	account, err := h.accounts.GetAccount(c.Request.Context(), claims.SubjectID)
	if err != nil {
		respondServiceError(c, h.logger, "get profile", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "profile", "user": account})
}
