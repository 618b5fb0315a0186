package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hydrogen-credit-ledger/internal/dispatcher"
	"github.com/hydrogen-credit-ledger/internal/domain/account"
	"github.com/hydrogen-credit-ledger/internal/domain/journal"
	"github.com/hydrogen-credit-ledger/internal/domain/token"
	"github.com/hydrogen-credit-ledger/internal/journaling"
	"github.com/hydrogen-credit-ledger/internal/ledger"
	"github.com/hydrogen-credit-ledger/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCreditService struct {
	mock.Mock
}

func (m *MockCreditService) Mint(ctx context.Context, callerID, factoryID string, quantity int) (*dispatcher.MintBatch, error) {
	args := m.Called(ctx, callerID, factoryID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispatcher.MintBatch), args.Error(1)
}

func (m *MockCreditService) Transfer(ctx context.Context, callerID string, tokenID uint64, to string) (*dispatcher.TransferResult, error) {
	args := m.Called(ctx, callerID, tokenID, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispatcher.TransferResult), args.Error(1)
}

func (m *MockCreditService) TransferByIdentifier(ctx context.Context, callerID string, tokenID uint64, identifier string) (*dispatcher.TransferResult, error) {
	args := m.Called(ctx, callerID, tokenID, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispatcher.TransferResult), args.Error(1)
}

func (m *MockCreditService) Retire(ctx context.Context, callerID string, tokenID uint64) (*ledger.TxResult, error) {
	args := m.Called(ctx, callerID, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.TxResult), args.Error(1)
}

func (m *MockCreditService) ListTokens(ctx context.Context, callerID string, q readmodel.ListQuery) (*readmodel.Dashboard, error) {
	args := m.Called(ctx, callerID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*readmodel.Dashboard), args.Error(1)
}

func (m *MockCreditService) OwnedTokens(ctx context.Context, callerID string) ([]readmodel.Credit, error) {
	args := m.Called(ctx, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]readmodel.Credit), args.Error(1)
}

func (m *MockCreditService) TokenDetails(ctx context.Context, callerID string, tokenID uint64) (*readmodel.Credit, error) {
	args := m.Called(ctx, callerID, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*readmodel.Credit), args.Error(1)
}

func (m *MockCreditService) TokenHistory(ctx context.Context, callerID string, tokenID uint64) ([]token.OwnershipEntry, error) {
	args := m.Called(ctx, callerID, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]token.OwnershipEntry), args.Error(1)
}

func (m *MockCreditService) Stats(ctx context.Context, callerID string) (*readmodel.Stats, error) {
	args := m.Called(ctx, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*readmodel.Stats), args.Error(1)
}

func (m *MockCreditService) Search(ctx context.Context, callerID string, q readmodel.SearchQuery) (*readmodel.SearchResult, error) {
	args := m.Called(ctx, callerID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*readmodel.SearchResult), args.Error(1)
}

func (m *MockCreditService) Factories(ctx context.Context, callerID string) ([]readmodel.Factory, error) {
	args := m.Called(ctx, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]readmodel.Factory), args.Error(1)
}

func (m *MockCreditService) ResolveRecipient(ctx context.Context, callerID, identifier string) (*account.Account, error) {
	args := m.Called(ctx, callerID, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockCreditService) Transactions(ctx context.Context, callerID string, page, perPage int) (*journaling.Page, error) {
	args := m.Called(ctx, callerID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*journaling.Page), args.Error(1)
}

func TestCreditHandler_Mint(t *testing.T) {
	t.Run("Partial batch is still a success", func(t *testing.T) {
		svc := new(MockCreditService)
		h := NewCreditHandler(newTestLogger(), svc)
		batch := &dispatcher.MintBatch{
			FactoryID: "HYDR8628QLA5",
			Outcomes: []dispatcher.MintOutcome{
				{Attempt: 1, Success: true, TokenID: 1, TransactionHash: "0x01"},
				{Attempt: 2, ErrorKind: "LEDGER_ERROR", Error: "execution reverted"},
			},
		}
		svc.On("Mint", mock.Anything, testCallerID, "HYDR8628QLA5", 2).Return(batch, nil)

		router := setupTestRouter(testCallerID)
		router.POST("/credits/mint", h.Mint)

		rr := doJSON(router, http.MethodPost, "/credits/mint", MintRequest{FactoryID: "HYDR8628QLA5", Quantity: 2})

		assert.Equal(t, http.StatusCreated, rr.Code)
		var got dispatcher.MintBatch
		resp := decodeResponse(t, rr, &got)
		assert.True(t, resp.Success)
		require.Len(t, got.Outcomes, 2)
		assert.False(t, got.Outcomes[1].Success)
		svc.AssertExpectations(t)
	})

	t.Run("Quantity out of range", func(t *testing.T) {
		svc := new(MockCreditService)
		h := NewCreditHandler(newTestLogger(), svc)
		svc.On("Mint", mock.Anything, testCallerID, "", 11).Return(nil, dispatcher.ErrInvalidQuantity)

		router := setupTestRouter(testCallerID)
		router.POST("/credits/mint", h.Mint)

		rr := doJSON(router, http.MethodPost, "/credits/mint", MintRequest{Quantity: 11})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeResponse(t, rr, nil)
		assert.Equal(t, CodeValidation, resp.Error.Code)
	})

	t.Run("Wrong role", func(t *testing.T) {
		svc := new(MockCreditService)
		h := NewCreditHandler(newTestLogger(), svc)
		svc.On("Mint", mock.Anything, testCallerID, "", 1).Return(nil, dispatcher.ErrUnauthorized)

		router := setupTestRouter(testCallerID)
		router.POST("/credits/mint", h.Mint)

		rr := doJSON(router, http.MethodPost, "/credits/mint", MintRequest{Quantity: 1})

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("Ledger not ready", func(t *testing.T) {
		svc := new(MockCreditService)
		h := NewCreditHandler(newTestLogger(), svc)
		svc.On("Mint", mock.Anything, testCallerID, "", 1).Return(nil, ledger.ErrNotInitialized)

		router := setupTestRouter(testCallerID)
		router.POST("/credits/mint", h.Mint)

		rr := doJSON(router, http.MethodPost, "/credits/mint", MintRequest{Quantity: 1})

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestCreditHandler_Transfer(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockCreditService)
		h := NewCreditHandler(newTestLogger(), svc)
		result := &dispatcher.TransferResult{
			TxResult: ledger.TxResult{TransactionHash: "0xabc", GasUsed: 52000, BlockNumber: 9},
			TokenID:  3,
			From:     testWallet,
			To:       "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		}
		svc.On("Transfer", mock.Anything, testCallerID, uint64(3), "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359").Return(result, nil)

		router := setupTestRouter(testCallerID)
		router.POST("/credits/transfer", h.Transfer)

		rr := doJSON(router, http.MethodPost, "/credits/transfer", TransferRequest{TokenID: 3, To: "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"})

		assert.Equal(t, http.StatusOK, rr.Code)
		var got map[string]interface{}
		decodeResponse(t, rr, &got)
		assert.Equal(t, "0xabc", got["transaction_hash"])
		assert.EqualValues(t, 3, got["token_id"])
	})

	t.Run("Missing token id", func(t *testing.T) {
		svc := new(MockCreditService)
		h := NewCreditHandler(newTestLogger(), svc)

		router := setupTestRouter(testCallerID)
		router.POST("/credits/transfer", h.Transfer)

		rr := doJSON(router, http.MethodPost, "/credits/transfer", `{"to":"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Ledger revert", func(t *testing.T) {
		svc := new(MockCreditService)
		h := NewCreditHandler(newTestLogger(), svc)
		svc.On("Transfer", mock.Anything, testCallerID, uint64(3), mock.Anything).
			Return(nil, &ledger.Error{Kind: ledger.KindLedger, Op: "transfer", Err: errors.New("execution reverted: token retired")})

		router := setupTestRouter(testCallerID)
		router.POST("/credits/transfer", h.Transfer)

		rr := doJSON(router, http.MethodPost, "/credits/transfer", TransferRequest{TokenID: 3, To: testWallet})

		assert.Equal(t, http.StatusBadGateway, rr.Code)
		resp := decodeResponse(t, rr, nil)
		assert.Equal(t, "execution reverted: token retired", resp.Error.Message)
	})
}

func TestCreditHandler_TransferByIdentifier(t *testing.T) {
	t.Run("Recipient without wallet", func(t *testing.T) {
		svc := new(MockCreditService)
		h := NewCreditHandler(newTestLogger(), svc)
		svc.On("TransferByIdentifier", mock.Anything, testCallerID, uint64(5), "buyer").
			Return(nil, account.ErrMissingWallet{AccountID: testOtherID})

		router := setupTestRouter(testCallerID)
		router.POST("/credits/transfer-by-identifier", h.TransferByIdentifier)

		rr := doJSON(router, http.MethodPost, "/credits/transfer-by-identifier", TransferByIdentifierRequest{TokenID: 5, RecipientIdentifier: "buyer"})

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		resp := decodeResponse(t, rr, nil)
		assert.Equal(t, CodeMissingWallet, resp.Error.Code)
	})

	t.Run("Success carries recipient account", func(t *testing.T) {
		svc := new(MockCreditService)
		h := NewCreditHandler(newTestLogger(), svc)
		svc.On("TransferByIdentifier", mock.Anything, testCallerID, uint64(5), "HYDR0000OTHR").
			Return(&dispatcher.TransferResult{TokenID: 5, RecipientAccountID: testOtherID}, nil)

		router := setupTestRouter(testCallerID)
		router.POST("/credits/transfer-by-identifier", h.TransferByIdentifier)

		rr := doJSON(router, http.MethodPost, "/credits/transfer-by-identifier", TransferByIdentifierRequest{TokenID: 5, RecipientIdentifier: "HYDR0000OTHR"})

		assert.Equal(t, http.StatusOK, rr.Code)
		var got map[string]interface{}
		decodeResponse(t, rr, &got)
		assert.Equal(t, testOtherID, got["recipient_account_id"])
	})
}

func TestCreditHandler_Retire(t *testing.T) {
	svc := new(MockCreditService)
	h := NewCreditHandler(newTestLogger(), svc)
	svc.On("Retire", mock.Anything, testCallerID, uint64(7)).Return(&ledger.TxResult{TransactionHash: "0xdef"}, nil)

	router := setupTestRouter(testCallerID)
	router.POST("/credits/retire", h.Retire)

	rr := doJSON(router, http.MethodPost, "/credits/retire", RetireRequest{TokenID: 7})

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestCreditHandler_List(t *testing.T) {
	svc := new(MockCreditService)
	h := NewCreditHandler(newTestLogger(), svc)
	want := readmodel.ListQuery{Page: 2, Limit: 5, FactoryID: "HYDR8628QLA5", Status: "active"}
	svc.On("ListTokens", mock.Anything, testCallerID, want).Return(&readmodel.Dashboard{Role: account.RoleRegulator, Total: 6, Page: 2, Limit: 5}, nil)

	router := setupTestRouter(testCallerID)
	router.GET("/credits", h.List)

	rr := doJSON(router, http.MethodGet, "/credits?page=2&limit=5&factoryId=HYDR8628QLA5&status=active", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var got readmodel.Dashboard
	decodeResponse(t, rr, &got)
	assert.Equal(t, int64(6), got.Total)
	svc.AssertExpectations(t)
}

func TestCreditHandler_List_InvalidStatus(t *testing.T) {
	svc := new(MockCreditService)
	h := NewCreditHandler(newTestLogger(), svc)
	svc.On("ListTokens", mock.Anything, testCallerID, mock.Anything).Return(nil, token.ErrInvalidStatus)

	router := setupTestRouter(testCallerID)
	router.GET("/credits", h.List)

	rr := doJSON(router, http.MethodGet, "/credits?status=burned", nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreditHandler_DetailsAndHistory(t *testing.T) {
	t.Run("Invalid token id", func(t *testing.T) {
		svc := new(MockCreditService)
		h := NewCreditHandler(newTestLogger(), svc)

		router := setupTestRouter(testCallerID)
		router.GET("/credits/:id", h.Details)

		rr := doJSON(router, http.MethodGet, "/credits/abc", nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "TokenDetails", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Not found", func(t *testing.T) {
		svc := new(MockCreditService)
		h := NewCreditHandler(newTestLogger(), svc)
		svc.On("TokenDetails", mock.Anything, testCallerID, uint64(99)).
			Return(nil, &ledger.Error{Kind: ledger.KindNotFound, Op: "getTokenDetails", Err: token.ErrTokenNotFound{TokenID: 99}})

		router := setupTestRouter(testCallerID)
		router.GET("/credits/:id", h.Details)

		rr := doJSON(router, http.MethodGet, "/credits/99", nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("History", func(t *testing.T) {
		svc := new(MockCreditService)
		h := NewCreditHandler(newTestLogger(), svc)
		history := []token.OwnershipEntry{
			{Owner: testWallet, Timestamp: time.Unix(1700000000, 0).UTC()},
			{Owner: "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", Timestamp: time.Unix(1700000600, 0).UTC()},
		}
		svc.On("TokenHistory", mock.Anything, testCallerID, uint64(4)).Return(history, nil)

		router := setupTestRouter(testCallerID)
		router.GET("/credits/:id/history", h.History)

		rr := doJSON(router, http.MethodGet, "/credits/4/history", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var got []token.OwnershipEntry
		decodeResponse(t, rr, &got)
		assert.Equal(t, history, got)
	})
}

func TestCreditHandler_Search(t *testing.T) {
	svc := new(MockCreditService)
	h := NewCreditHandler(newTestLogger(), svc)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.On("Search", mock.Anything, testCallerID, mock.MatchedBy(func(q readmodel.SearchQuery) bool {
		return q.Text == "green" && q.From != nil && q.From.Equal(from) && q.To == nil && q.Offset == 10 && q.Limit == 5
	})).Return(&readmodel.SearchResult{TotalCount: 12, Offset: 10, Limit: 5}, nil)

	router := setupTestRouter(testCallerID)
	router.GET("/search", h.Search)

	rr := doJSON(router, http.MethodGet, "/search?text=green&from=2024-01-01T00:00:00Z&offset=10&limit=5", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestCreditHandler_StatsForbidden(t *testing.T) {
	svc := new(MockCreditService)
	h := NewCreditHandler(newTestLogger(), svc)
	svc.On("Stats", mock.Anything, testCallerID).Return(nil, dispatcher.ErrUnauthorized)

	router := setupTestRouter(testCallerID)
	router.GET("/stats", h.Stats)

	rr := doJSON(router, http.MethodGet, "/stats", nil)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCreditHandler_ResolveRecipient(t *testing.T) {
	svc := new(MockCreditService)
	h := NewCreditHandler(newTestLogger(), svc)
	svc.On("ResolveRecipient", mock.Anything, testCallerID, "greenworks").Return(testProducer(), nil)

	router := setupTestRouter(testCallerID)
	router.GET("/resolve-recipient/:identifier", h.ResolveRecipient)

	rr := doJSON(router, http.MethodGet, "/resolve-recipient/greenworks", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var got RecipientResponse
	decodeResponse(t, rr, &got)
	assert.Equal(t, testWallet, got.WalletAddress)
	assert.Equal(t, "HYDR8628QLA5", got.FactoryID)
}

func TestCreditHandler_Transactions(t *testing.T) {
	svc := new(MockCreditService)
	h := NewCreditHandler(newTestLogger(), svc)
	page := &journaling.Page{
		Records: []*journal.Record{{TransactionHash: "0x01"}, {TransactionHash: "0x02"}},
		Total:   45,
		Page:    2,
		PerPage: 20,
	}
	svc.On("Transactions", mock.Anything, testCallerID, 2, 20).Return(page, nil)

	router := setupTestRouter(testCallerID)
	router.GET("/transactions", h.Transactions)

	rr := doJSON(router, http.MethodGet, "/transactions?page=2", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeResponse(t, rr, nil)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	assert.Equal(t, 45, resp.Meta.TotalItems)
}
