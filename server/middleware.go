package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/existflow/goalpost/internal/api"
)

// ownerMiddleware requires the owner header. The server trusts it; authentication
// happens in front of the server.
func (s *Server) ownerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner := strings.TrimSpace(c.Request().Header.Get(api.OwnerHeader))
		if owner == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "owner header required"})
		}

		c.Set("owner_id", owner)
		return next(c)
	}
}

// sameOwnerMiddleware rejects requests for another member's collection
func (s *Server) sameOwnerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Param("owner") != ownerID(c) {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "not your goals"})
		}
		return next(c)
	}
}

func ownerID(c echo.Context) string {
	owner, _ := c.Get("owner_id").(string)
	return owner
}
