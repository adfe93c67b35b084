package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/englishadventure/user-service/internal/auth"
)

// Context keys set by Auth.
const (
	ContextKeyAccountID = "account_id"
	ContextKeyUsername  = "username"
)

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Auth validates the bearer JWT and injects the account id and username into context.
func Auth(tokens TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := tokens.Parse(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			accountID, err := claims.AccountID()
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(ContextKeyAccountID, accountID)
			c.Set(ContextKeyUsername, claims.Username)

			return next(c)
		}
	}
}
