// ====================================
// File: cmd/sender/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-fanout/internal/bot"
	"github.com/rovshanmuradov/solana-fanout/internal/config"
	"github.com/rovshanmuradov/solana-fanout/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "configs/config.json", "path to the configuration file")
	envPath := flag.String("env", ".env", "path to an optional .env file")
	tasksPath := flag.String("tasks", "", "override tasks_file from the configuration")
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load env: %v\n", err)
		return 1
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	if *tasksPath != "" {
		cfg.TasksFile = *tasksPath
	}

	log, err := logger.New(&logger.Config{
		LogFile:     cfg.LogFile,
		Development: cfg.DebugLogging,
		Pretty:      true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer log.Close()

	log.Info("Starting sender",
		zap.Int("channels", len(cfg.Channels)),
		zap.Strings("rpc", cfg.MaskedRPCList()))

	// SIGINT/SIGTERM прерывает пакет; уже отправленные сделки дожидаются исходов
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := bot.NewRunner(cfg, log.Logger)
	code := 0
	if err := runner.Initialize(ctx); err != nil {
		log.Error("Failed to initialize sender", zap.Error(err))
		code = 1
	} else {
		done := log.TrackPerformance("batch")
		if err := runner.Run(ctx); err != nil {
			log.Error("Sender execution error", zap.Error(err))
			code = 1
		}
		done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := runner.Shutdown(shutdownCtx); err != nil {
		log.Warn("Shutdown finished with errors", zap.Error(err))
	}
	return code
}
