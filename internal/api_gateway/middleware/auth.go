package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hydrogen-credit-ledger/internal/config"
)

const (
	// AccountIDKey holds the authenticated account id (the token subject)
	AccountIDKey = "account_id"

	// TokenRoleKey holds the role claim. Authorization uses the stored role, this is for logs only.
	TokenRoleKey = "token_role"
)

var errMissingSubject = errors.New("token has no subject")

// Claims are the bearer token claims issued by the identity provider
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth verifies an HS256 bearer token and stores its subject on the context
func Auth(cfg config.AuthConfig) gin.HandlerFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)
	secret := []byte(cfg.JWTSecret)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abortUnauthorized(c, "Missing bearer token")
			return
		}

		claims := &Claims{}
		_, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err == nil && claims.Subject == "" {
			err = errMissingSubject
		}
		if err != nil {
			abortUnauthorized(c, "Invalid bearer token")
			return
		}

		c.Set(AccountIDKey, claims.Subject)
		c.Set(TokenRoleKey, claims.Role)
		c.Next()
	}
}

// GetAccountID returns the authenticated account id, empty outside the Auth middleware
func GetAccountID(c *gin.Context) string {
	return c.GetString(AccountIDKey)
}

func abortUnauthorized(c *gin.Context, message string) {
	response := gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, response)
}
