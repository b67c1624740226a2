package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kjannette/stockagg/internal/api"
	"github.com/kjannette/stockagg/internal/app"
	"github.com/kjannette/stockagg/internal/config"
)

const banner = `
╔══════════════════════════════════════╗
║   Stock Price Aggregator v0.3        ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startupCtx, cancelStartup := context.WithTimeout(ctx, 30*time.Second)
	a, err := app.Build(startupCtx, cfg)
	cancelStartup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[APP] Startup failed: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	// 1. API server
	srv := api.NewServer(a.Stocks, api.Options{
		Port:                      cfg.Port,
		APIKey:                    cfg.APIKey,
		CORSOrigin:                cfg.CORSAllowOrigin,
		DefaultCorrelationMinutes: cfg.DefaultCorrelationMinutes,
		Checks:                    a.HealthChecks(),
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "[API] Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	// 2. Maintenance jobs
	sched := a.Scheduler()
	if err := sched.Register(); err != nil {
		fmt.Fprintf(os.Stderr, "[SCHEDULER] %v\n", err)
		os.Exit(1)
	}
	sched.Start()

	fmt.Println("\nAll services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sched.Stop(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
	}
	fmt.Println("[API] Server closed")
	fmt.Println("Shutdown complete")
}
