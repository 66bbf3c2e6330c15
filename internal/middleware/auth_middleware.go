package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/verdemarket/engage-backend/internal/errors"
	"github.com/verdemarket/engage-backend/pkg/util"
)

// Context keys for operator information
const (
	OperatorIDKey    = "operator_id"
	OperatorEmailKey = "operator_email"
	OperatorRoleKey  = "operator_role"
)

type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// Authenticate validates the bearer token (required)
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		var token string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				log.Warn("Invalid authorization header format", map[string]interface{}{
					"path": c.Request.URL.Path,
				})
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "Malformed authorization header")
				c.Abort()
				return
			}
			token = parts[1]
		} else {
			// websocket clients cannot set headers; allow a query token
			token = c.Query("token")
			if token == "" {
				log.Warn("Missing authorization header", map[string]interface{}{
					"path": c.Request.URL.Path,
				})
				errors.Unauthorized(c, "Authentication required")
				c.Abort()
				return
			}
		}

		claims, err := util.ValidateToken(token, m.jwtSecret)
		if err != nil {
			log.Warn("Token validation failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})

			if err == util.ErrExpiredToken {
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenExpired, "Session has expired")
			} else {
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "Invalid authentication token")
			}
			c.Abort()
			return
		}

		c.Set(OperatorIDKey, claims.Subject)
		c.Set(OperatorEmailKey, claims.Email)
		c.Set(OperatorRoleKey, claims.Role)

		c.Next()
	}
}

// RequireRole checks if the authenticated operator has one of the roles
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		operatorRole, exists := c.Get(OperatorRoleKey)
		if !exists {
			errors.RespondWithError(c, http.StatusForbidden, errors.AuthzForbidden, "Role information not found")
			c.Abort()
			return
		}

		role := operatorRole.(string)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}

		log.Warn("Insufficient permissions", map[string]interface{}{
			"operator_role":  role,
			"required_roles": roles,
			"path":           c.Request.URL.Path,
		})
		errors.Forbidden(c, "Access denied")
		c.Abort()
	}
}

// GetOperatorID extracts the operator id from context
func GetOperatorID(c *gin.Context) (string, bool) {
	id, exists := c.Get(OperatorIDKey)
	if !exists {
		return "", false
	}
	return id.(string), true
}
