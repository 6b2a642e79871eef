package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"accounts-api/internal/service"
)

// AccountHandler expone el directorio de cuentas bajo /users. Las rutas
// /users/:id y /users/admin/users/:id comparten handler y solo difieren en
// la policy.
type AccountHandler struct {
	logger   *zap.Logger
	accounts *service.AccountService
}

func NewAccountHandler(logger *zap.Logger, accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{logger: logger, accounts: accounts}
}

// Liveness maneja GET /users/test.
func (h *AccountHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "users api reachable"})
}

// Get maneja GET /users/:id.
func (h *AccountHandler) Get(c *gin.Context) {
	account, err := h.accounts.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, h.logger, "get user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user", "user": account})
}

// List maneja GET /users/all-users y GET /users/admin/users.
func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.accounts.ListAccounts(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.logger, "list users", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "users", "users": accounts})
}

// Update maneja PUT /users/:id y PUT /users/admin/users/:id.
func (h *AccountHandler) Update(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update user request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "name and email are required"})
		return
	}

	account, err := h.accounts.UpdateAccount(c.Request.Context(), c.Param("id"), req.Name, req.Email)
	if err != nil {
		respondServiceError(c, h.logger, "update user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user updated", "user": account})
}

// Delete maneja DELETE /users/:id y DELETE /users/admin/users/:id.
func (h *AccountHandler) Delete(c *gin.Context) {
	if err := h.accounts.DeleteAccount(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, h.logger, "delete user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

// Referrals maneja GET /users/:id/referrals.
func (h *AccountHandler) Referrals(c *gin.Context) {
	summary, err := h.accounts.ReferralSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, h.logger, "referral summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// AddFavoriteProvider maneja POST /users/:id/favorite-provider.
func (h *AccountHandler) AddFavoriteProvider(c *gin.Context) {
	var req struct {
		ProviderID string `json:"providerId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid favorite provider request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "providerId is required"})
		return
	}

	favorites, err := h.accounts.AddFavoriteProvider(c.Request.Context(), c.Param("id"), req.ProviderID)
	if err != nil {
		respondServiceError(c, h.logger, "add favorite provider", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "favorite provider added", "favoriteProviders": favorites})
}
