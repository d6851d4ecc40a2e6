package routes

import (
	"net/http"
	"strings"

	"github.com/minitru/bunnyAI/internal/queue"
	"github.com/minitru/bunnyAI/internal/server/middleware"
	"github.com/minitru/bunnyAI/pkg/cache"
	"github.com/minitru/bunnyAI/pkg/common"

	"github.com/labstack/echo/v4"
)

func bookParam(c echo.Context, name string) (string, error) {
	id := strings.TrimSpace(c.Param(name))
	if id == "" {
		return "", &common.BadRequestError{Reason: name + " is required"}
	}
	return id, nil
}

func GetKnowledgeGraphHandler(c echo.Context) error {
	bookID, err := bookParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	g, err := app.Graph.ValidateAndClean(ctx, bookID)
	if err != nil {
		return fail(c, err)
	}
	// an empty graph is only an answer for a book that exists
	if len(g.Entities) == 0 {
		chunks, err := app.Store.GetByBook(ctx, bookID)
		if err != nil {
			return fail(c, err)
		}
		if len(chunks) == 0 {
			return fail(c, &common.NotFoundError{Kind: "book", ID: bookID})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":         true,
		"book_id":         bookID,
		"knowledge_graph": g,
	})
}

// RefreshKnowledgeGraphHandler regenerates the graph of a book. With a queue
// configured the work is handed to the worker and 202 is returned.
func RefreshKnowledgeGraphHandler(c echo.Context) error {
	return refresh(c, cache.KindKnowledgeGraph)
}

func RefreshAnalysisHandler(c echo.Context) error {
	return refresh(c, cache.KindAnalysis)
}

func refresh(c echo.Context, kind string) error {
	bookID, err := bookParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	if app.Queue != nil {
		msg, err := queue.NewRefreshMessage(kind, bookID)
		if err != nil {
			return fail(c, err)
		}
		if err := queue.PublishRefresh(ctx, app.Queue, msg); err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusAccepted, map[string]any{
			"success": true,
			"job_id":  msg.JobID,
			"book_id": bookID,
			"message": "Refresh queued",
		})
	}

	switch kind {
	case cache.KindAnalysis:
		a, err := app.Refresher.RefreshAnalysis(ctx, bookID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"success":  true,
			"book_id":  bookID,
			"analysis": a,
		})
	default:
		g, err := app.Refresher.Refresh(ctx, bookID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"success":         true,
			"book_id":         bookID,
			"knowledge_graph": g,
			"message":         "Knowledge graph refreshed",
		})
	}
}

func GetForceGraphHandler(c echo.Context) error {
	bookID, err := bookParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	app := c.(*middleware.AppContext).App
	view, err := app.Graph.ToForceGraph(c.Request().Context(), bookID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":     true,
		"force_graph": view,
	})
}

func GetCombinedForceGraphHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	view, err := app.Graph.CombinedForceGraph(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":     true,
		"force_graph": view,
	})
}
