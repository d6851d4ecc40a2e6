package routes

import (
	"net/http"

	"github.com/minitru/bunnyAI/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

func SearchEntitiesHandler(c echo.Context) error {
	type searchRequest struct {
		Query  string `json:"query" validate:"required"`
		BookID string `json:"book_id"`
		Limit  int    `json:"limit" validate:"min=0,max=100"`
	}

	var req searchRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	app := c.(*middleware.AppContext).App
	matches, err := app.Graph.SearchEntities(c.Request().Context(), req.Query, req.BookID, req.Limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":  true,
		"query":    req.Query,
		"entities": matches,
		"count":    len(matches),
	})
}

func GetEntityRelationshipsHandler(c echo.Context) error {
	bookID, err := bookParam(c, "book")
	if err != nil {
		return fail(c, err)
	}
	entityID, err := bookParam(c, "entity")
	if err != nil {
		return fail(c, err)
	}

	app := c.(*middleware.AppContext).App
	rels, err := app.Graph.EntityRelationships(c.Request().Context(), entityID, bookID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":       true,
		"book_id":       bookID,
		"entity_id":     entityID,
		"relationships": rels,
	})
}
