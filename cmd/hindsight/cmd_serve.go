// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/hindsightlabs/hindsight/pkg/logging"
	"github.com/hindsightlabs/hindsight/pkg/telemetry"
	"github.com/hindsightlabs/hindsight/pkg/ux"
	"github.com/hindsightlabs/hindsight/services/validator"
	"github.com/hindsightlabs/hindsight/services/validator/ledger"
	"github.com/hindsightlabs/hindsight/services/validator/rules"
)

func runServe(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	level := logging.LevelInfo
	if serveDebug {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{Level: level, Service: "validator"})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Set Gin mode
	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.ServiceVersion = validator.ServiceVersion
	shutdownTelemetry, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	svc, err := buildService(0)
	if err != nil {
		slog.Error("Failed to configure service", "error", err)
		os.Exit(1)
	}

	// Live rule config reload while serving
	var watcher *rules.ConfigWatcher
	if rulesConfigPath != "" {
		watcher, err = rules.NewConfigWatcher(rulesConfigPath, svc.Engine())
		if err != nil {
			slog.Error("Failed to create config watcher", "error", err)
			os.Exit(1)
		}
		if err := watcher.Start(ctx); err != nil {
			slog.Error("Failed to start config watcher", "error", err)
			os.Exit(1)
		}
		slog.Info("Watching rule config", "path", rulesConfigPath)
	}

	handlers := validator.NewHandlers(svc)

	// Opt-in run ledger
	var led *ledger.Ledger
	if serveLedgerPath != "" {
		ledgerCfg := ledger.DefaultConfig()
		ledgerCfg.Path = serveLedgerPath
		ledgerCfg.Logger = slog.Default()
		led, err = ledger.Open(ledgerCfg)
		if err != nil {
			slog.Error("Failed to open run ledger", "error", err, "path", serveLedgerPath)
			os.Exit(1)
		}
		handlers = handlers.WithLedger(led)
		slog.Info("Run ledger enabled", "path", serveLedgerPath)
	}

	router := validator.NewRouter(handlers, validator.RouterConfig{
		RequestLogging: serveDebug,
		RateLimit:      rate.Limit(serveRateLimit),
		RateBurst:      serveRateBurst,
		Metrics:        !serveNoMetrics,
	})

	printServeBanner(led != nil)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down validator server")
		if watcher != nil {
			watcher.Stop()
		}
		if led != nil {
			if err := led.Close(); err != nil {
				slog.Error("Failed to close ledger", "error", err)
			}
		}
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Error("Failed to flush telemetry", "error", err)
		}
		os.Exit(0)
	}()

	slog.Info("Starting validator server", slog.String("address", serveAddr))
	if err := router.Run(serveAddr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printServeBanner(ledgerEnabled bool) {
	if ux.GetPersonality().Level == ux.PersonalityMachine {
		return
	}

	banner := `
╔══════════════════════════════════════════════════════════╗
║                   HINDSIGHT  VALIDATOR                   ║
╚══════════════════════════════════════════════════════════╝
`
	fmt.Print(banner)
	fmt.Printf("  address:  %s\n", serveAddr)
	if rulesConfigPath != "" {
		fmt.Printf("  config:   %s (watched)\n", rulesConfigPath)
	} else {
		fmt.Println("  config:   built-in defaults")
	}
	if ledgerEnabled {
		fmt.Printf("  ledger:   %s\n", serveLedgerPath)
	} else {
		fmt.Println("  ledger:   disabled")
	}
	if serveNoMetrics {
		fmt.Println("  metrics:  disabled")
	} else {
		fmt.Println("  metrics:  /metrics")
	}
	fmt.Println()
	fmt.Println("  POST /v1/validate/code      analyze a source unit")
	fmt.Println("  POST /v1/validate/fix       rewrite fixable findings")
	fmt.Println("  POST /v1/validate/metrics   judge a backtest record")
	fmt.Println("  POST /v1/validate/run       full pipeline")
	if ledgerEnabled {
		fmt.Println("  GET  /v1/runs               recorded reports")
	}
	fmt.Println("  GET  /v1/health             health check")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()
}
