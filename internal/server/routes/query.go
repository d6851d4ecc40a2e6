package routes

import (
	"net/http"
	"strings"

	"github.com/minitru/bunnyAI/internal/server/middleware"
	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/query"

	"github.com/labstack/echo/v4"
)

func QueryHandler(c echo.Context) error {
	type queryRequest struct {
		Question         string `json:"question"`
		Book             string `json:"book"`
		ContextChunks    int    `json:"context_chunks" validate:"min=0,max=500"`
		UseBookKnowledge *bool  `json:"use_book_knowledge"`
	}

	type queryResponse struct {
		Success bool `json:"success"`
		query.Response
	}

	var req queryRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	if strings.TrimSpace(req.Question) == "" {
		return fail(c, &common.BadRequestError{Reason: "Question is required"})
	}

	useKnowledge := true
	if req.UseBookKnowledge != nil {
		useKnowledge = *req.UseBookKnowledge
	}

	app := c.(*middleware.AppContext).App
	res, err := app.Pipeline.Query(c.Request().Context(), query.Request{
		Question:         req.Question,
		BookID:           req.Book,
		ContextChunks:    req.ContextChunks,
		UseBookKnowledge: useKnowledge,
	})
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, queryResponse{Success: true, Response: res})
}
