package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/kitewire/consentflow"
	"github.com/kitewire/consentflow/internal/config"
	"github.com/kitewire/consentflow/internal/logging"
	"github.com/kitewire/consentflow/internal/sandbox"
	"github.com/kitewire/consentflow/pkg/adapters/aahttp"
	"github.com/kitewire/consentflow/pkg/adapters/httpapi"
	redisadapter "github.com/kitewire/consentflow/pkg/adapters/redis"
	"github.com/kitewire/consentflow/pkg/observability"
	"github.com/kitewire/consentflow/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the journey API server",
	Long:  `Starts the consent journey orchestrator, exposing the journey intents as a JSON API over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		sandboxMode, _ := cmd.Flags().GetBool("sandbox")
		addr, _ := cmd.Flags().GetString("addr")

		cfg := config.Default()
		if configPath != "" {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				fmt.Printf("Error loading config: %v\n", err)
				os.Exit(1)
			}
		}
		if addr != "" {
			cfg.Listen = addr
		}

		logger := logging.New(logLevel(cfg.LogLevel))

		var client ports.AAClient
		if sandboxMode {
			logger.Info("running against the built-in sandbox gateway", "otp", sandbox.OTP)
			client = sandbox.NewClient()
		} else {
			if cfg.Gateway.BaseURL == "" {
				fmt.Println("Error: gateway.base_url is required (or pass --sandbox)")
				os.Exit(1)
			}
			client = aahttp.NewClient(cfg.Gateway.BaseURL,
				aahttp.WithTimeout(cfg.Gateway.Timeout.Duration),
				aahttp.WithLogger(logger),
			)
		}

		registry := prometheus.NewRegistry()
		metrics := observability.NewMetrics(registry)

		opts := []consentflow.Option{
			consentflow.WithLogger(logger),
			consentflow.WithMetrics(metrics),
			consentflow.WithResendCooldown(cfg.OTP.ResendCooldown.Duration),
		}

		if cfg.Redis.Addr != "" {
			rdb := goredis.NewClient(&goredis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			storeOpts := []redisadapter.Option{redisadapter.WithTTL(cfg.Session.TTL.Duration)}
			if cfg.Redis.EncryptionKey != "" {
				key, err := hex.DecodeString(cfg.Redis.EncryptionKey)
				if err != nil {
					fmt.Printf("Error decoding redis encryption key: %v\n", err)
					os.Exit(1)
				}
				cipher, err := redisadapter.NewCipher(key)
				if err != nil {
					fmt.Printf("Error building session cipher: %v\n", err)
					os.Exit(1)
				}
				storeOpts = append(storeOpts, redisadapter.WithCipher(cipher))
			}
			store := redisadapter.NewFromClient(rdb, storeOpts...)
			opts = append(opts,
				consentflow.WithStore(store),
				consentflow.WithLocker(redisadapter.NewLocker(rdb, "consentflow:lock:")),
			)
			logger.Info("using redis session store", "addr", cfg.Redis.Addr, "ttl", cfg.Session.TTL.Duration)
		}

		ctrl, err := consentflow.New(client, opts...)
		if err != nil {
			fmt.Printf("Error initializing controller: %v\n", err)
			os.Exit(1)
		}

		handler := httpapi.NewHandler(ctrl,
			httpapi.WithLogger(logger),
			httpapi.WithMetricsRegistry(registry),
		)

		srv := &http.Server{
			Addr:    cfg.Listen,
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting Consentflow Server on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Consentflow Server stopped gracefully")
		}
	},
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
	serveCmd.Flags().Bool("sandbox", false, "Run against the built-in sandbox gateway")
}
