package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"prayerlog/internal/model"
)

// Require enforces bearer JWT tokens signed with HS256 and, when roles
// are given, restricts access to those roles.
func Require(signingKey, issuer string, roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if len(roles) > 0 && !roleAllowed(claims.Role, roles) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Set("claims", claims)
		c.Next()
	}
}

func roleAllowed(role model.Role, allowed []model.Role) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

// FromContext returns the claims set by Require.
func FromContext(c *gin.Context) Claims {
	claimsAny, _ := c.Get("claims")
	claims, _ := claimsAny.(Claims)
	return claims
}
