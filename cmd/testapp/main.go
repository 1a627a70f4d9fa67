package main

import (
	"context"
	"log"
	"os"

	"gemstone-testapp/internal/agent"
	"gemstone-testapp/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := agent.BuildLogger(cfg)
	a, err := agent.New(cfg, logger)
	if err != nil {
		logger.Error("agent initialization failed", "error", err)
		os.Exit(1)
	}

	os.Exit(a.Run(context.Background()).Code())
}
