package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hydrogen-credit-ledger/internal/api_gateway/middleware"
	"github.com/hydrogen-credit-ledger/internal/dispatcher"
	"github.com/hydrogen-credit-ledger/internal/domain/account"
	"github.com/hydrogen-credit-ledger/internal/domain/token"
	"github.com/hydrogen-credit-ledger/internal/ledger"
	"github.com/hydrogen-credit-ledger/internal/readmodel"
)

// Response represents a standard API response
type Response struct {
	Success       bool        `json:"success"`
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo represents error information in a response
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo represents metadata in a response
type MetaInfo struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
	TotalItems int `json:"total_items,omitempty"`
}

// Error codes returned in ErrorInfo.Code
const (
	CodeBadRequest     = "BAD_REQUEST"
	CodeValidation     = "VALIDATION_ERROR"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeMissingWallet  = "MISSING_WALLET"
	CodeNotInitialized = "NOT_INITIALIZED"
	CodeLedgerError    = "LEDGER_ERROR"
	CodeTimeout        = "TIMEOUT"
	CodeUnavailable    = "SERVICE_UNAVAILABLE"
	CodeInternal       = "INTERNAL_SERVER_ERROR"
)

// NewResponse creates a new response with data
func NewResponse(data interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates a new error response
func NewErrorResponse(code, message string) *Response {
	return &Response{
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// NewPaginatedResponse creates a new paginated response
func NewPaginatedResponse(data interface{}, page, perPage, totalItems int) *Response {
	totalPages := 0
	if perPage > 0 {
		totalPages = totalItems / perPage
		if totalItems%perPage > 0 {
			totalPages++
		}
	}

	return &Response{
		Success: true,
		Data:    data,
		Meta: &MetaInfo{
			Page:       page,
			PerPage:    perPage,
			TotalPages: totalPages,
			TotalItems: totalItems,
		},
	}
}

// RespondWithData sends a JSON response with data
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	response := NewResponse(data)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondWithError sends a JSON response with an error
func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	response := NewErrorResponse(code, message)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondWithPaginatedData sends a JSON response with paginated data
func RespondWithPaginatedData(c *gin.Context, statusCode int, data interface{}, page, perPage, totalItems int) {
	response := NewPaginatedResponse(data, page, perPage, totalItems)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondOK sends a 200 OK response with data
func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondCreated sends a 201 Created response with data
func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

// RespondBadRequest sends a 400 Bad Request response with an error
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, CodeBadRequest, message)
}

// RespondInternalError sends a 500 Internal Server Error response with an error
func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, CodeInternal, "An internal server error occurred")
}

// RespondError maps a domain or ledger error to its status and stable code
func RespondError(c *gin.Context, err error) {
	status, code, message := classifyError(err)
	RespondWithError(c, status, code, message)
}

var validationErrors = []error{
	dispatcher.ErrInvalidQuantity,
	dispatcher.ErrInvalidAddress,
	dispatcher.ErrFactoryMismatch,
	dispatcher.ErrNoRecipient,
	token.ErrInvalidStatus,
	account.ErrEmptyUsername,
	account.ErrInvalidEmail,
	account.ErrInvalidRole,
	account.ErrFactoryNameRequired,
	account.ErrFactoryNotAllowed,
	account.ErrInvalidWallet,
}

func classifyError(err error) (int, string, string) {
	if errors.Is(err, ledger.ErrNotInitialized) || errors.Is(err, ledger.ErrReadOnly) {
		return http.StatusServiceUnavailable, CodeNotInitialized, err.Error()
	}
	if errors.Is(err, dispatcher.ErrUnauthorized) || errors.Is(err, readmodel.ErrUnknownRole) {
		return http.StatusForbidden, CodeUnauthorized, err.Error()
	}
	if errors.Is(err, account.ErrAccountNotFound{}) || errors.Is(err, token.ErrTokenNotFound{}) {
		return http.StatusNotFound, CodeNotFound, err.Error()
	}
	if errors.Is(err, account.ErrMissingWallet{}) {
		return http.StatusUnprocessableEntity, CodeMissingWallet, err.Error()
	}

	var duplicate account.ErrDuplicateAccount
	if errors.As(err, &duplicate) {
		return http.StatusConflict, CodeConflict, duplicate.Error()
	}
	var exhausted account.ErrFactoryIDExhausted
	if errors.As(err, &exhausted) {
		return http.StatusServiceUnavailable, CodeUnavailable, exhausted.Error()
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, CodeValidation, err.Error()
		}
	}

	if kind, ok := ledger.KindOf(err); ok {
		switch kind {
		case ledger.KindNotFound:
			return http.StatusNotFound, CodeNotFound, ledger.Message(err)
		case ledger.KindTimeout:
			return http.StatusGatewayTimeout, CodeTimeout, ledger.Message(err)
		case ledger.KindLedger, ledger.KindMintUnresolved:
			return http.StatusBadGateway, CodeLedgerError, ledger.Message(err)
		}
	}

	return http.StatusInternalServerError, CodeInternal, "An internal server error occurred"
}
