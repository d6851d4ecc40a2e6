package server

import (
	"net/http"

	"github.com/minitru/bunnyAI/internal/server/middleware"
	"github.com/minitru/bunnyAI/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)
	apiRoutes.GET("", apiInfoHandler)

	// Library and question answering
	apiRoutes.GET("/books", routes.GetBooksHandler)
	apiRoutes.POST("/query", routes.QueryHandler)
	apiRoutes.GET("/status", routes.GetStatusHandler)
	apiRoutes.POST("/clear-memory", routes.ClearMemoryHandler)

	// Knowledge graph routes
	apiRoutes.GET("/knowledge-graph/:id", routes.GetKnowledgeGraphHandler)
	apiRoutes.POST("/knowledge-graph/:id/refresh", routes.RefreshKnowledgeGraphHandler)
	apiRoutes.POST("/analysis/:id/refresh", routes.RefreshAnalysisHandler)
	apiRoutes.GET("/force-graph/combined", routes.GetCombinedForceGraphHandler)
	apiRoutes.GET("/force-graph/:id", routes.GetForceGraphHandler)

	// Entity routes
	apiRoutes.POST("/entities/search", routes.SearchEntitiesHandler)
	apiRoutes.GET("/entities/:book/:entity/relationships", routes.GetEntityRelationshipsHandler)
}

func apiInfoHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"name":        "bunnyAI book RAG API",
		"description": "Question answering and knowledge graphs over a library of books",
		"endpoints": map[string]string{
			"GET /api/books":                                "Available books",
			"POST /api/query":                               "Ask a question about one or all books",
			"GET /api/status":                               "System status",
			"POST /api/clear-memory":                        "Clear conversation history",
			"GET /api/knowledge-graph/:id":                  "Cleaned knowledge graph of a book",
			"POST /api/knowledge-graph/:id/refresh":         "Regenerate the knowledge graph of a book",
			"POST /api/analysis/:id/refresh":                "Regenerate the analysis of a book",
			"GET /api/force-graph/:id":                      "Force graph view of a book",
			"GET /api/force-graph/combined":                 "Force graph view of every book",
			"POST /api/entities/search":                     "Semantic entity search",
			"GET /api/entities/:book/:entity/relationships": "Relationships of an entity",
		},
	})
}
