package main

import (
	"context"
	"log/slog"
	"os"

	"coaproxy/internal/app"
	"coaproxy/internal/config"
	"coaproxy/internal/handlers"
	"coaproxy/internal/logger"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	slog.SetDefault(log)

	// Nothing scrapes a function; counters stay local to the instance.
	a, err := app.Build(ctx, cfg, prometheus.NewRegistry(), log)
	if err != nil {
		log.Error("failed to build service", logger.Err(err))
		os.Exit(1)
	}

	lambda.Start(handlers.LambdaHandler(a.Router))
}
