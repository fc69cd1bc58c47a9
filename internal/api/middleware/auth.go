// internal/api/middleware/auth.go
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	authorizationHeader = "Authorization"
	walletCtx           = "walletAddress" // Key to store the authenticated wallet in context
)

// WalletAuthMiddleware authenticates a bearer token whose subject is a wallet address.
func WalletAuthMiddleware(jwtSecret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(authorizationHeader)
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authorization header required"})
			return
		}

		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid Authorization header format"})
			return
		}

		token, err := jwt.ParseWithClaims(headerParts[1], &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			logger.Debug("Rejected bearer token", zap.Error(err))
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Token has expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token"})
			}
			return
		}

		claims, ok := token.Claims.(*jwt.RegisteredClaims)
		if !ok || !token.Valid || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token"})
			return
		}

		c.Set(walletCtx, claims.Subject)
		c.Next()
	}
}

// GetWalletFromContext returns the authenticated wallet, if any.
func GetWalletFromContext(c *gin.Context) (string, bool) {
	v, exists := c.Get(walletCtx)
	if !exists {
		return "", false
	}
	wallet, ok := v.(string)
	return wallet, ok && wallet != ""
}
