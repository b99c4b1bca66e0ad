package api

import (
	"net/http"
	"strings"

	"kanzey-backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

// AuthRequired validates the Bearer token and stores the caller's
// identity in the request context.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or malformed authorization header",
			})
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(identityKey, identityFromClaims(claims))
		c.Next()
	}
}

// RoleRequired restricts a route to the given roles. Must run after
// AuthRequired.
func RoleRequired(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := CallerIdentity(c)
		for _, role := range roles {
			if identity.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "Insufficient permissions",
		})
	}
}

// CallerIdentity returns the authenticated caller set by AuthRequired.
func CallerIdentity(c *gin.Context) models.Identity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(models.Identity); ok {
			return identity
		}
	}
	return models.Identity{}
}

func identityFromClaims(claims jwt.MapClaims) models.Identity {
	identity := models.Identity{
		Email:     claimString(claims, "email"),
		Phone:     claimString(claims, "phone"),
		FirstName: claimString(claims, "first_name"),
		LastName:  claimString(claims, "last_name"),
		Role:      claimString(claims, "role"),
	}
	if identity.Role == "" {
		identity.Role = models.RoleCustomer
	}
	if sub, ok := claims["user_id"].(float64); ok {
		identity.UserID = int64(sub)
	}
	return identity
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
