package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
	"github.com/atrkk2024-beep/inskate/pkg/res"
	"github.com/google/uuid"
)

const actorContextKey = "actor"

// RequireAuth проверяет Bearer-токен и кладет инициатора запроса в контекст.
// Токен несет идентификатор пользователя в sub и роль в role.
func RequireAuth(secret string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			res.Err(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			log.Debugw("Invalid JWT", "error", err)
			res.Err(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			res.Err(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token claims")
			c.Abort()
			return
		}

		sub, err := claims.GetSubject()
		if err != nil {
			res.Err(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token subject")
			c.Abort()
			return
		}
		userID, err := uuid.Parse(sub)
		if err != nil {
			res.Err(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token subject")
			c.Abort()
			return
		}

		role := domain.RoleUser
		if raw, ok := claims["role"].(string); ok && raw != "" {
			role = domain.Role(raw)
		}

		c.Set(actorContextKey, domain.Actor{UserID: userID, Role: role})
		c.Next()
	}
}

// RequireAdmin пропускает только администраторов. Вешается после RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok || actor.Role != domain.RoleAdmin {
			res.Err(c, http.StatusForbidden, "FORBIDDEN", "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ActorFromContext возвращает инициатора запроса, положенного RequireAuth.
func ActorFromContext(c *gin.Context) (domain.Actor, bool) {
	value, exists := c.Get(actorContextKey)
	if !exists {
		return domain.Actor{}, false
	}
	actor, ok := value.(domain.Actor)
	return actor, ok
}
