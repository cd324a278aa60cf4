package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clinica-medicos/handlers"
	"clinica-medicos/models"
	"clinica-medicos/monitoring"
	"clinica-medicos/utils"
)

var withConsumer bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&withConsumer, "with-consumer", false,
		"also run the medico event consumer in this process")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SentryDSN != "" {
		flush, err := utils.InitSentry(utils.SentryOptions{
			DSN:         cfg.SentryDSN,
			Environment: cfg.AppEnv,
			Version:     cfg.AppVersion,
		})
		if err != nil {
			logger.Printf("Sentry disabled: %v", err)
		} else {
			defer flush()
		}
	}
	monitoring.Init()

	store, err := models.NewRepository(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Printf("Error closing database: %v", err)
		}
	}()
	if err := store.Migrate(); err != nil {
		return err
	}

	var (
		repo  models.Repository = store
		cache utils.RedisClient
	)
	if cfg.RedisHost != "" {
		cache, err = connectRedis()
		if err != nil {
			return err
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Printf("Error closing Redis connection: %v", err)
			}
		}()
		repo = models.NewCachedRepository(store, cache, cfg.ListCacheTTL, logger)
	}

	var producer utils.KafkaProducer
	if cfg.KafkaBroker != "" {
		producer, err = utils.NewKafkaProducer(ctx, cfg.KafkaBroker, cfg.KafkaTopic)
		if err != nil {
			// Events feed only the search projection; the API works without them.
			logger.Printf("Kafka unavailable, change events disabled: %v", err)
			producer = nil
		} else {
			defer producer.Close()
		}
	}

	if withConsumer {
		c, cleanup, err := buildConsumer()
		if err != nil {
			return err
		}
		defer cleanup()
		c.Start(ctx)
		defer c.Stop()
	}

	medicoHandler := handlers.NewMedicoHandler(repo, producer, logger)
	healthHandler := handlers.NewHealthHandler(store, cache)
	router := handlers.NewRouter(medicoHandler, healthHandler, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("Server is running on port %s (%s store)", cfg.Port, cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
