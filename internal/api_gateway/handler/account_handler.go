package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hydrogen-credit-ledger/internal/api_gateway/middleware"
	"github.com/hydrogen-credit-ledger/internal/api_gateway/service"
	"github.com/hydrogen-credit-ledger/internal/domain/account"
)

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// Create registers an account; producers receive a generated factory id
func (h *AccountHandler) Create(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	role, err := account.ParseRole(req.Role)
	if err != nil {
		RespondError(c, err)
		return
	}

	acc, err := h.accountService.Register(c.Request.Context(), service.RegisterRequest{
		Username:    req.Username,
		Email:       req.Email,
		Role:        role,
		FactoryName: req.FactoryName,
		Wallet:      req.WalletAddress,
	})
	if err != nil {
		h.logger.Warn("Failed to register account", "username", req.Username, "error", err)
		RespondError(c, err)
		return
	}

	RespondCreated(c, mapAccountToResponse(acc))
}

// AssignWallet sets the wallet of the account in the path
func (h *AccountHandler) AssignWallet(c *gin.Context) {
	var req AssignWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	accountID := c.Param("id")
	if !account.IsValidID(accountID) {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	acc, err := h.accountService.AssignWallet(c.Request.Context(), middleware.GetAccountID(c), accountID, req.WalletAddress)
	if err != nil {
		h.logger.Warn("Failed to assign wallet", "account_id", accountID, "error", err)
		RespondError(c, err)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// Me returns the authenticated account
func (h *AccountHandler) Me(c *gin.Context) {
	acc, err := h.accountService.Me(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		RespondError(c, err)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}
