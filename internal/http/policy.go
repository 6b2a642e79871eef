package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"accounts-api/internal/domain"
	"accounts-api/internal/service"
)

// Policy decide si los claims autenticados pueden acceder a la ruta.
type Policy func(c *gin.Context, claims service.Claims) bool

// AnyAuthenticated admite cualquier token válido.
func AnyAuthenticated() Policy {
	return func(*gin.Context, service.Claims) bool { return true }
}

// OwnerOrAdmin admite al dueño del recurso indicado por el parámetro de ruta
// param, o a un admin.
func OwnerOrAdmin(param string) Policy {
	return func(c *gin.Context, claims service.Claims) bool {
		return claims.Role == domain.RoleAdmin || claims.SubjectID == c.Param(param)
	}
}

// RoleEquals admite solo el rol indicado.
func RoleEquals(role string) Policy {
	return func(_ *gin.Context, claims service.Claims) bool {
		return claims.Role == role
	}
}

// Require aplica policy antes del handler. Debe ir después de
// JWTAuthMiddleware.
func Require(policy Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing token"})
			return
		}
		if !policy(c, claims) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "access denied"})
			return
		}
		c.Next()
	}
}
