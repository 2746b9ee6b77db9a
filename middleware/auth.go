package middleware

import (
	"net/http"
	"strings"

	"access-approval-api/config"
	"access-approval-api/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// ActorKey is the gin context key holding the *services.Actor of the caller.
const ActorKey = "actor"

// AuthMiddleware validates the JWT and loads the caller with its roles.
// Tokens are issued by the external identity service.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get token from header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header is required")
			return
		}

		// Check Bearer prefix
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}

		// Parse token
		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			return config.JWTSecret(), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		// Get claims
		claims, ok := token.Claims.(*Claims)
		if !ok || claims.UserID <= 0 {
			abortUnauthorized(c, "Invalid token claims")
			return
		}

		// Check if user still exists
		actor, err := services.LoadActor(c.Request.Context(), config.DB, claims.UserID)
		if err != nil {
			if services.KindOf(err) == services.KindNotFound {
				abortUnauthorized(c, "User not found")
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success":    false,
				"error_kind": services.KindInternal,
				"error":      "Failed to load user",
			})
			return
		}

		// Set user info in context
		c.Set("userID", claims.UserID)
		c.Set("email", claims.Email)
		c.Set(ActorKey, actor)

		c.Next()
	}
}

// RequireRole lets the request through when the caller holds any of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success":    false,
				"error_kind": services.KindAuthorization,
				"error":      "Role not found",
			})
			return
		}

		for _, role := range roles {
			if actor.Roles.Has(role) {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success":    false,
			"error_kind": services.KindAuthorization,
			"error":      "Insufficient permissions",
		})
	}
}

// CurrentActor returns the actor stored by AuthMiddleware.
func CurrentActor(c *gin.Context) (*services.Actor, bool) {
	v, exists := c.Get(ActorKey)
	if !exists {
		return nil, false
	}
	actor, ok := v.(*services.Actor)
	return actor, ok && actor != nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success":    false,
		"error_kind": "unauthenticated",
		"error":      message,
	})
}
