package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sumal/internal/backend"
	"sumal/internal/cli"
	apphttp "sumal/internal/http"
	"sumal/internal/ledger"
	"sumal/internal/rates"
	"sumal/internal/session"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}()
	}

	table := rates.DefaultTable()

	// A rate provider is optional. Failed refreshes keep the seeded
	// table; conversions never stall on the network.
	var provider *rates.Provider
	if cfg.RateProviderURL != "" {
		provider = rates.NewProvider(cfg.RateProviderURL, cfg.RateHTTPTimeout)
		if err := rates.Refresh(context.Background(), table, provider); err != nil {
			logger.Warn("Initial rate refresh failed, using seeded rates", "error", err)
		}
	}

	svc := ledger.NewService(result.Ledger, table, result.Publisher)
	sessions := session.NewManager(cfg.JWTSecret, cfg.SessionTTL)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:      svc,
		Accounts:    result.Accounts,
		Sessions:    sessions,
		Table:       table,
		Provider:    provider,
		AuthEnabled: cfg.AuthEnabled,
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if provider != nil {
		go func() {
			ticker := time.NewTicker(cfg.RateRefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := rates.Refresh(ctx, table, provider); err != nil {
						logger.Warn("Periodic rate refresh failed", "error", err)
					}
				}
			}
		}()
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting sumal server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"auth_enabled", cfg.AuthEnabled)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
