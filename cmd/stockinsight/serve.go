package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/krxlab/stock-insight/internal/api"
	"github.com/krxlab/stock-insight/internal/kafka"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the price bar consumer",
	Long: `Serves the REST API and consumes price bar events from Kafka into
the database until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := newApp(cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.db.RunMigrations(migrationsDir); err != nil {
		return err
	}

	handler := api.NewHandler(app.db, app.analyzer, cfg.Analysis.Indicators, logger)
	router := api.SetupRoutes(handler, logger)

	srv := &http.Server{
		Addr:        cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// analyze requests call the collectors synchronously
		WriteTimeout: 60 * time.Second,
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.PriceTopic, cfg.Kafka.GroupID, app.db, logger)

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := consumer.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
