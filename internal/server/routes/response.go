package routes

import (
	"errors"
	"net/http"

	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/logger"

	"github.com/labstack/echo/v4"
)

// fail writes the {success:false, error} body with the status derived
// from err.
func fail(c echo.Context, err error) error {
	status := common.StatusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error("[API] request failed", "path", c.Path(), "err", err)
	}
	return c.JSON(status, map[string]any{"success": false, "error": err.Error()})
}

// bind decodes and validates the request body into req. Decoding errors
// become bad requests.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return &common.BadRequestError{Reason: "Invalid request body"}
		}
		return &common.BadRequestError{Reason: err.Error()}
	}
	if err := c.Validate(req); err != nil {
		return &common.BadRequestError{Reason: err.Error()}
	}
	return nil
}
