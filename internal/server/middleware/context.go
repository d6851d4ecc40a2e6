package middleware

import (
	"github.com/minitru/bunnyAI/internal/queue"
	"github.com/minitru/bunnyAI/pkg/graph"
	"github.com/minitru/bunnyAI/pkg/query"
	"github.com/minitru/bunnyAI/pkg/store"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	Subject string
	// true when authenticated with the static API key
	Service bool
}

type App struct {
	Pipeline  *query.Pipeline
	Store     store.ChunkStore
	Graph     *graph.Extractor
	Refresher *graph.Refresher

	// Queue is set when refreshes are handed to the worker.
	Queue queue.Publisher

	Key    keyfunc.Keyfunc
	APIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
