package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/englishadventure/user-service/internal/api/middleware"
)

// ctxAccountID returns the account id injected by the Auth middleware.
func ctxAccountID(c echo.Context) (int64, error) {
	id, ok := c.Get(middleware.ContextKeyAccountID).(int64)
	if !ok || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return id, nil
}

// pathAccountID parses the :id path parameter.
func pathAccountID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid account id")
	}
	return id, nil
}

// queryAmount parses a required integer query parameter.
func queryAmount(c echo.Context, name string) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" query parameter is required")
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer")
	}
	return n, nil
}
