package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"relay/internal/domain"
	"relay/internal/service"
	"relay/pkg/logger"
)

const userContextKey = "user"

// AuthMiddleware is the trust boundary of the realtime endpoint: nothing
// downstream runs without a resolved user.
type AuthMiddleware struct {
	authService  service.AuthService
	auditService service.AuditService
	cookieName   string
	log          logger.Logger
}

func NewAuthMiddleware(authService service.AuthService, auditService service.AuditService, cookieName string, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService:  authService,
		auditService: auditService,
		cookieName:   cookieName,
		log:          log,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.credential(c)

		user, err := m.authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			m.log.Warn("Rejected realtime connection", "error", err, "ip", c.ClientIP())
			_ = m.auditService.LogEvent(c.Request.Context(), "", "", domain.EventTypeConnectionRejected, map[string]interface{}{
				"reason":     err.Error(),
				"ip":         c.ClientIP(),
				"user_agent": c.Request.UserAgent(),
			})
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// credential looks at the session cookie first, then a bearer header, then
// the token query parameter (browsers cannot set headers on websocket requests).
func (m *AuthMiddleware) credential(c *gin.Context) string {
	if cookie, err := c.Cookie(m.cookieName); err == nil && cookie != "" {
		return cookie
	}

	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	return c.Query("token")
}

// UserFromContext returns the user resolved by RequireAuth.
func UserFromContext(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok && user != nil
}
