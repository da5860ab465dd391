package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ctxKeyAccountID = "account_id"
	ctxKeyEmail     = "email"
	ctxKeyRole      = "role"
)

// AuthRequired rejects requests without a valid bearer token and stashes
// the claims in the gin context for the handlers.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, secret)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// AuthOptional stashes claims when a valid token is present and lets the
// request through either way. Registration endpoints use it so guests and
// logged-in members share one route.
func AuthOptional(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := bearerClaims(c, secret); ok {
			setClaims(c, claims)
		}
		c.Next()
	}
}

// RequireRole gates a route group on account role. AuthRequired must run
// first.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		current := c.GetString(ctxKeyRole)
		for _, r := range roles {
			if current == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	}
}

func bearerClaims(c *gin.Context, secret string) (*Claims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, false
	}
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return nil, false
	}
	claims, err := parseToken(secret, tokenString)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func setClaims(c *gin.Context, claims *Claims) {
	c.Set(ctxKeyAccountID, claims.AccountID)
	c.Set(ctxKeyEmail, claims.Email)
	c.Set(ctxKeyRole, claims.Role)
}

// accountID returns the authenticated account id, zero when the request is
// anonymous.
func accountID(c *gin.Context) int64 {
	v, ok := c.Get(ctxKeyAccountID)
	if !ok {
		return 0
	}
	id, _ := v.(int64)
	return id
}

func accountEmail(c *gin.Context) string {
	return c.GetString(ctxKeyEmail)
}
