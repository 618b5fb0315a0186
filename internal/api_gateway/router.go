package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hydrogen-credit-ledger/internal/api_gateway/handler"
	"github.com/hydrogen-credit-ledger/internal/api_gateway/middleware"
	"github.com/hydrogen-credit-ledger/internal/config"
)

// LedgerStatus reports whether the ledger client finished initialization
type LedgerStatus interface {
	Ready() bool
}

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	authCfg config.AuthConfig,
	ledgerStatus LedgerStatus,
	accountHandler *handler.AccountHandler,
	creditHandler *handler.CreditHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	v1 := r.Group("/api/v1")

	// Registration is open; every other route needs a bearer token
	v1.POST("/accounts", accountHandler.Create)

	authed := v1.Group("", middleware.Auth(authCfg))
	{
		accounts := authed.Group("/accounts")
		{
			accounts.GET("/me", accountHandler.Me)
			accounts.PUT("/:id/wallet", accountHandler.AssignWallet)
		}

		credits := authed.Group("/credits")
		{
			credits.POST("/mint", creditHandler.Mint)
			credits.POST("/transfer", creditHandler.Transfer)
			credits.POST("/transfer-by-identifier", creditHandler.TransferByIdentifier)
			credits.POST("/retire", creditHandler.Retire)
			credits.GET("", creditHandler.List)
			credits.GET("/owned", creditHandler.Owned)
			credits.GET("/:id", creditHandler.Details)
			credits.GET("/:id/history", creditHandler.History)
		}

		authed.GET("/stats", creditHandler.Stats)
		authed.GET("/search", creditHandler.Search)
		authed.GET("/factories", creditHandler.Factories)
		authed.GET("/resolve-recipient/:identifier", creditHandler.ResolveRecipient)
		authed.GET("/transactions", creditHandler.Transactions)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"ledger":    ledgerStatus.Ready(),
			"timestamp": time.Now().UTC(),
		})
	})
}
