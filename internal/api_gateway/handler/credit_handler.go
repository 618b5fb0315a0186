package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hydrogen-credit-ledger/internal/api_gateway/middleware"
	"github.com/hydrogen-credit-ledger/internal/api_gateway/service"
	"github.com/hydrogen-credit-ledger/internal/dispatcher"
	"github.com/hydrogen-credit-ledger/internal/readmodel"
)

// CreditHandler serves credit commands and views for the authenticated caller
type CreditHandler struct {
	credits service.CreditService
	logger  *slog.Logger
}

// NewCreditHandler creates a new credit handler
func NewCreditHandler(logger *slog.Logger, credits service.CreditService) *CreditHandler {
	return &CreditHandler{
		credits: credits,
		logger:  logger,
	}
}

// requestContext carries the correlation id down to the journal
func requestContext(c *gin.Context) context.Context {
	return dispatcher.WithCorrelationID(c.Request.Context(), middleware.GetCorrelationID(c))
}

// tokenIDParam parses the :id path segment, writing a 400 on failure
func tokenIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		RespondBadRequest(c, "Invalid token ID")
		return 0, false
	}
	return id, true
}

// Mint runs a mint batch and answers 201 Created whenever the batch ran, even with
// failed attempts; each attempt reports its own outcome.
func (h *CreditHandler) Mint(c *gin.Context) {
	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	batch, err := h.credits.Mint(requestContext(c), middleware.GetAccountID(c), req.FactoryID, req.Quantity)
	if err != nil {
		h.logger.Warn("Mint rejected", "factory_id", req.FactoryID, "quantity", req.Quantity, "error", err)
		RespondError(c, err)
		return
	}

	RespondCreated(c, batch)
}

// Transfer sends a token to a wallet address
func (h *CreditHandler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.credits.Transfer(requestContext(c), middleware.GetAccountID(c), req.TokenID, req.To)
	if err != nil {
		h.logger.Warn("Transfer failed", "token_id", req.TokenID, "error", err)
		RespondError(c, err)
		return
	}

	RespondOK(c, result)
}

// TransferByIdentifier sends a token to the account matching the identifier
func (h *CreditHandler) TransferByIdentifier(c *gin.Context) {
	var req TransferByIdentifierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.credits.TransferByIdentifier(requestContext(c), middleware.GetAccountID(c), req.TokenID, req.RecipientIdentifier)
	if err != nil {
		h.logger.Warn("Transfer by identifier failed",
			"token_id", req.TokenID,
			"recipient", req.RecipientIdentifier,
			"error", err)
		RespondError(c, err)
		return
	}

	RespondOK(c, result)
}

// Retire retires a token
func (h *CreditHandler) Retire(c *gin.Context) {
	var req RetireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.credits.Retire(requestContext(c), middleware.GetAccountID(c), req.TokenID)
	if err != nil {
		h.logger.Warn("Retire failed", "token_id", req.TokenID, "error", err)
		RespondError(c, err)
		return
	}

	RespondOK(c, result)
}

// List returns the role-shaped credit dashboard
func (h *CreditHandler) List(c *gin.Context) {
	var params ListCreditsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	dashboard, err := h.credits.ListTokens(requestContext(c), middleware.GetAccountID(c), readmodel.ListQuery{
		Page:      params.Page,
		Limit:     params.Limit,
		Search:    params.Search,
		FactoryID: params.FactoryID,
		Owner:     params.Owner,
		Status:    params.Status,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	RespondOK(c, dashboard)
}

func (h *CreditHandler) Owned(c *gin.Context) {
	credits, err := h.credits.OwnedTokens(requestContext(c), middleware.GetAccountID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, credits)
}

func (h *CreditHandler) Details(c *gin.Context) {
	id, ok := tokenIDParam(c)
	if !ok {
		return
	}
	credit, err := h.credits.TokenDetails(requestContext(c), middleware.GetAccountID(c), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, credit)
}

// History returns the ownership chain of a token, oldest first
func (h *CreditHandler) History(c *gin.Context) {
	id, ok := tokenIDParam(c)
	if !ok {
		return
	}
	history, err := h.credits.TokenHistory(requestContext(c), middleware.GetAccountID(c), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, history)
}

func (h *CreditHandler) Stats(c *gin.Context) {
	stats, err := h.credits.Stats(requestContext(c), middleware.GetAccountID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, stats)
}

// Search runs the advanced credit search
func (h *CreditHandler) Search(c *gin.Context) {
	var params SearchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	result, err := h.credits.Search(requestContext(c), middleware.GetAccountID(c), readmodel.SearchQuery{
		FactoryID: params.FactoryID,
		Owner:     params.Owner,
		Status:    params.Status,
		Text:      params.Text,
		From:      params.From,
		To:        params.To,
		Offset:    params.Offset,
		Limit:     params.Limit,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *CreditHandler) Factories(c *gin.Context) {
	factories, err := h.credits.Factories(requestContext(c), middleware.GetAccountID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, factories)
}

// ResolveRecipient previews the account a transfer by identifier would reach
func (h *CreditHandler) ResolveRecipient(c *gin.Context) {
	recipient, err := h.credits.ResolveRecipient(requestContext(c), middleware.GetAccountID(c), c.Param("identifier"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, mapRecipientToResponse(recipient))
}

// Transactions pages through the caller's journal records
func (h *CreditHandler) Transactions(c *gin.Context) {
	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	page, err := h.credits.Transactions(requestContext(c), middleware.GetAccountID(c), params.Page, params.PerPage)
	if err != nil {
		RespondError(c, err)
		return
	}

	RespondWithPaginatedData(c, http.StatusOK, page.Records, page.Page, page.PerPage, int(page.Total))
}
