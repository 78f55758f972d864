package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cicd-demo/internal/api"
	"cicd-demo/pkg/task"
)

func (a *app) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd)
		},
	}
}

func (a *app) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tasks table or document if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := a.setup()
			if err != nil {
				return err
			}
			defer closeLog()

			_, closeStore, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			closeStore()
			fmt.Fprintf(cmd.OutOrStdout(), "%s store ready\n", cfg.Store.Driver)
			return nil
		},
	}
}

func (a *app) serve(cmd *cobra.Command) error {
	cfg, logger, closeLog, err := a.setup()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := task.NewService(store, logger)
	if err != nil {
		return err
	}
	info := api.Info{
		Name:        cfg.App.Name,
		Version:     cfg.App.Version,
		Description: cfg.App.Description,
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.New(svc, info, cfg.Server.CORSAllowedOrigins, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "store", cfg.Store.Driver, "version", cfg.App.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
