package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"taskboard/internal/authz"
	"taskboard/pkg/jwtutil"
	"taskboard/pkg/logger"
	"taskboard/prometheus"
)

// identityKey is where the resolved identity lives in the echo context
const identityKey = "identity"

// Auth returns a middleware that validates the bearer session token and
// stores the resolved identity in the request context
func Auth(jwt *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			// Get the Authorization header
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Error("Missing Authorization header")
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false,
					"message": "missing authorization token",
				})
			}

			// Check if it's a Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Error("Invalid Authorization header format")
				prometheus.RecordAuthError("invalid_auth_format")
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false,
					"message": "invalid authorization format, expected Bearer token",
				})
			}

			// Validate the token
			claims, err := jwt.ValidateToken(parts[1])
			if err != nil {
				log.Error("Invalid JWT token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false,
					"message": "invalid or expired token",
				})
			}

			role, err := authz.ParseRole(claims.Role)
			if err != nil {
				log.Error("Token carries unknown role", zap.String("role", claims.Role))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false,
					"message": "invalid or expired token",
				})
			}

			identity := authz.Identity{
				UserID:   claims.UserID,
				TenantID: claims.TenantID,
				Email:    claims.Email,
				Role:     role,
			}
			SetIdentity(c, identity)

			log.Debug("Request authenticated",
				zap.String("user_id", identity.UserID.String()),
				zap.String("role", string(identity.Role)))

			return next(c)
		}
	}
}

// SetIdentity stores a resolved identity in the request context
func SetIdentity(c echo.Context, identity authz.Identity) {
	c.Set(identityKey, identity)
}

// IdentityFrom retrieves the identity stored by Auth
func IdentityFrom(c echo.Context) (authz.Identity, bool) {
	identity, ok := c.Get(identityKey).(authz.Identity)
	return identity, ok
}
