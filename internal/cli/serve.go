package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/kosched/internal/config"
	"github.com/me/kosched/internal/server"
	"github.com/me/kosched/internal/store"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configFile string
	var addr string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recorded runs over the inspection API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}

			st, err := store.NewSQLiteStore(cfg.DBPath, logger)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer st.Close()

			if err := st.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			logger.Info("database ready", "path", cfg.DBPath)

			srv := server.New(cfg, st, logger)
			httpServer := &http.Server{
				Addr:    cfg.Addr,
				Handler: srv,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server starting", "addr", cfg.Addr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to YAML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default :8080)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Database path")

	return cmd
}
