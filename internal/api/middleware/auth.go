package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Conceptual-Machines/melody-bridge/internal/config"
)

const (
	bearerPrefix = "Bearer"
	tokenIssuer  = "melody-bridge"
)

// Claims identify the caller of a mutating bridge route.
type Claims struct {
	jwt.RegisteredClaims
}

// Auth picks the middleware for the configured auth mode.
func Auth(cfg *config.Config) gin.HandlerFunc {
	if cfg.IsTokenAuth() {
		return TokenAuth(cfg.JWTSecret)
	}
	return NoAuth()
}

// TokenAuth validates an HMAC-signed bearer token and sets its subject on the context.
func TokenAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == bearerPrefix {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		}, jwt.WithIssuer(tokenIssuer))

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("subject", claims.Subject)
		c.Next()
	}
}

// IssueToken signs a token for subject that TokenAuth accepts. A zero ttl
// issues a token without expiry.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   tokenIssuer,
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
