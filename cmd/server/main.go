package main

import (
	"github.com/minitru/bunnyAI/internal/config"
	"github.com/minitru/bunnyAI/internal/server"
	"github.com/minitru/bunnyAI/internal/util"
	"github.com/minitru/bunnyAI/pkg/logger"
	"github.com/minitru/bunnyAI/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	cfg := config.Load()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: cfg.Debug,
		JSON:  cfg.JSONLogs(),
	})
	logger.Init(consoleLogger)

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	server.Init(cfg)
}
