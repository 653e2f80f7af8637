package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jomat-backend/internal/repository"
	"jomat-backend/internal/service"
)

const principalKey = "auth_principal"

// Principal es la identidad mínima adjunta a un request autenticado.
type Principal struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// AccessGuard protege rutas: valida el bearer token contra el secreto de
// acceso, resuelve el usuario y adjunta el principal al contexto. Un token de
// refresco nunca pasa este guard porque está firmado con el otro secreto.
func AccessGuard(tokens *service.TokenService, users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil || users == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "auth not configured"})
			c.Abort()
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, no token"})
			c.Abort()
			return
		}

		claims, err := tokens.ParseAccessToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, token failed", "error": err.Error()})
			c.Abort()
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			// Cubre también tokens válidos de usuarios ya eliminados.
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, user not found"})
			c.Abort()
			return
		}

		c.Set(principalKey, Principal{ID: user.ID, Email: user.Email})
		c.Next()
	}
}

// GetPrincipal obtiene la identidad autenticada desde el contexto.
func GetPrincipal(c *gin.Context) (Principal, bool) {
	val, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	principal, ok := val.(Principal)
	return principal, ok
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	if token == "" {
		return "", false
	}
	return token, true
}
