package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aadithya-v/bifrost"
	"github.com/aadithya-v/bifrost/internal/logging"
	"github.com/aadithya-v/bifrost/internal/telemetry"
	"github.com/aadithya-v/bifrost/store"
)

var (
	addr          string
	targetURL     string
	mode          string
	eventStore    string
	redisAddr     string
	redisPassword string
	redisDB       int
	sentryDSN     string
	environment   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the issuer, validator and proxy server",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer memguard.Purge()

		log := logging.New("bifrost", logLevel, logFormat)

		cfg, err := bifrost.ConfigFromEnv()
		if err != nil {
			return err
		}
		cfg.Logger = log
		if cmd.Flags().Changed("target-url") {
			cfg.TargetURL = targetURL
		}
		if cmd.Flags().Changed("mode") {
			if cfg.Mode, err = bifrost.ParseBindingMode(mode); err != nil {
				return err
			}
		}

		if redisAddr != "" {
			rs, err := store.NewRedisRateStoreFromConfig(store.RedisConfig{
				Addr:     redisAddr,
				Password: redisPassword,
				DB:       redisDB,
			})
			if err != nil {
				return fmt.Errorf("failed to open rate store: %w", err)
			}
			cfg.RateStore = rs
		}

		events, err := store.OpenEventStore(eventStore)
		if err != nil {
			return fmt.Errorf("failed to open event store: %w", err)
		}
		if events != nil {
			cfg.EventStore = events
		}

		if err := telemetry.InitSentry(sentryDSN, environment, version); err != nil {
			log.WithError(err).Warn("sentry disabled")
		}
		defer telemetry.Flush()

		b, err := bifrost.New(cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(logging.RequestLogger(log))
		r.Use(telemetry.Recoverer(log))
		r.Use(bifrost.InstrumentHTTP)
		r.Use(middleware.SetHeader("X-Content-Type-Options", "nosniff"))
		r.Use(middleware.SetHeader("X-Frame-Options", "DENY"))
		r.Use(middleware.SetHeader("Referrer-Policy", "no-referrer"))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Handle("/metrics", bifrost.MetricsHandler())
		r.Mount("/", b.Router())

		server := &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Proxied bodies stream through, so writes get more room.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		log.WithFields(logrus.Fields{
			"addr": addr,
			"mode": b.Mode().String(),
		}).Info("bifrost listening")

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			log.WithField("signal", sig.String()).Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", envOr("LISTEN_ADDR", ":8080"), "Address to listen on")
	serveCmd.Flags().StringVar(&targetURL, "target-url", "", "Redirect target (overrides TARGET_URL)")
	serveCmd.Flags().StringVar(&mode, "mode", "", "Binding mode: ip-identity or key-only (overrides BINDING_MODE)")
	serveCmd.Flags().StringVar(&eventStore, "events", os.Getenv("EVENT_STORE"), "Audit event store as driver:dsn (sqlite, mysql, postgres)")
	serveCmd.Flags().StringVar(&redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for shared rate limiting")
	serveCmd.Flags().StringVar(&redisPassword, "redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	serveCmd.Flags().IntVar(&redisDB, "redis-db", 0, "Redis database number")
	serveCmd.Flags().StringVar(&sentryDSN, "sentry-dsn", os.Getenv("SENTRY_DSN"), "Sentry DSN for panic reporting")
	serveCmd.Flags().StringVar(&environment, "environment", envOr("ENVIRONMENT", "production"), "Deployment environment reported to Sentry")
}
