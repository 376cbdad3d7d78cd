package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaminalder/tic-tac-toe-history/internal/app"
	"github.com/jaminalder/tic-tac-toe-history/internal/config"
	"github.com/jaminalder/tic-tac-toe-history/internal/store"
	"github.com/jaminalder/tic-tac-toe-history/internal/store/memory"
	redisstore "github.com/jaminalder/tic-tac-toe-history/internal/store/redis"
	"github.com/jaminalder/tic-tac-toe-history/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file (env: TTT_* variables override)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides config")
	return cmd
}

// openStore builds the configured game store and a func to release it.
func openStore(cfg *config.Config) (store.Store, func() error, error) {
	if cfg.Storage.Type != config.StorageRedis {
		return memory.New(), func() error { return nil }, nil
	}
	rc := redisstore.DefaultConfig()
	rc.URL = cfg.Storage.Redis.URL
	rc.PoolSize = cfg.Storage.Redis.PoolSize
	rc.MinIdleConns = cfg.Storage.Redis.MinIdleConns
	rc.GameTTL = cfg.Storage.Redis.GameTTL
	st, err := redisstore.New(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("open redis store: %w", err)
	}
	return st, st.Close, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close store", slog.String("error", err.Error()))
		}
	}()

	svc := app.NewService(st, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.NewServer(svc, web.Options{Logger: logger, Heartbeat: cfg.Heartbeat}),
		ReadHeaderTimeout: 10 * time.Second,
		// event streams end when ctx is cancelled
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("server started", slog.String("addr", cfg.Addr), slog.String("storage", cfg.Storage.Type))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	logger.Info("server stopped")
	return nil
}
