package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "Unauthorized"})
}

// AuthMiddleware accepts the static API key or a JWT signed by a key of the
// configured JWKS. Without either configured every request passes.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ac := c.(*AppContext)
		app := ac.App
		if app.APIKey == "" && app.Key == nil {
			return next(c)
		}

		authHeader := c.Request().Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			return unauthorized(c)
		}

		if app.APIKey != "" && token == app.APIKey {
			ac.User = &AppUser{Subject: "api-key", Service: true}
			return next(c)
		}
		if app.Key == nil {
			return unauthorized(c)
		}

		parsed, err := jwt.Parse(token, app.Key.Keyfunc)
		if err != nil || !parsed.Valid {
			return unauthorized(c)
		}
		sub, err := parsed.Claims.GetSubject()
		if err != nil {
			return unauthorized(c)
		}

		ac.User = &AppUser{Subject: sub}
		return next(c)
	}
}
