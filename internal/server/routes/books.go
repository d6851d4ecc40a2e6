package routes

import (
	"net/http"

	"github.com/minitru/bunnyAI/internal/server/middleware"
	"github.com/minitru/bunnyAI/pkg/common"

	"github.com/labstack/echo/v4"
)

func GetBooksHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	books, err := app.Store.ListBooks(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	if books == nil {
		books = []common.Book{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"books":   books,
	})
}

func GetStatusHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	status, err := app.Pipeline.Status(c.Request().Context())
	if err != nil {
		return c.JSON(common.StatusOf(err), map[string]any{
			"success":      false,
			"error":        err.Error(),
			"system_ready": false,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":                     true,
		"books_loaded":                status.BooksLoaded,
		"total_chunks":                status.TotalChunks,
		"system_ready":                status.SystemReady,
		"available_books":             status.AvailableBooks,
		"conversation_history_length": status.ConversationHistoryLength,
		"ai_metrics":                  status.AIMetrics,
	})
}

func ClearMemoryHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	app.Pipeline.ClearHistory()
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Conversation history cleared",
	})
}
