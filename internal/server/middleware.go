package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"nifty-paper/internal/auth"
)

const (
	contextUserID = "user_id"
	contextClaims = "claims"
)

// AuthMiddleware validates the JWT bearer token and sets the user context.
// The token is read from the Authorization header, falling back to the
// "token" cookie for browser sessions.
func AuthMiddleware(authService *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := bearerToken(c)
			if tokenString == "" {
				return UnauthorizedResponse(c, "missing authentication token")
			}

			claims, err := authService.VerifyToken(tokenString)
			if err != nil {
				return DomainErrorResponse(c, err)
			}

			c.Set(contextUserID, claims.UserID)
			c.Set(contextClaims, claims)
			return next(c)
		}
	}
}

// AdminMiddleware requires an authenticated admin user. Must run after
// AuthMiddleware.
func AdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := c.Get(contextClaims).(*auth.Claims)
		if !ok {
			return UnauthorizedResponse(c, "missing authentication token")
		}
		if !claims.IsAdmin {
			return ErrorResponse(c, http.StatusForbidden, "admin access required")
		}
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if header == "" {
		cookie, err := c.Cookie("token")
		if err != nil {
			return ""
		}
		return cookie.Value
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// GetUserID extracts the authenticated user ID from the request context.
func GetUserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(contextUserID).(uuid.UUID)
	return id, ok
}

// GetClaims extracts the verified token claims from the request context.
func GetClaims(c echo.Context) (*auth.Claims, bool) {
	claims, ok := c.Get(contextClaims).(*auth.Claims)
	return claims, ok
}
