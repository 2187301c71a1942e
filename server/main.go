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

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"choretrack/internal/config"
	"choretrack/internal/logger"
	"choretrack/internal/seed"
	"choretrack/internal/store"
)

var (
	flagDriver string
	flagDSN    string
)

var rootCmd = &cobra.Command{
	Use:           "choretrack",
	Short:         "Household chore tracker",
	Long:          `Tracks the chores a family picks, finishes and moves each day.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDriver, "driver", "", "database driver, sqlite or pgx (overrides DB_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&flagDSN, "dsn", "", "database DSN or sqlite path (overrides DATABASE_URL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(clearTasksCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads config, builds the logger and opens the migrated store.
func bootstrap(ctx context.Context) (config.Config, *zap.Logger, *store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("config: %w", err)
	}
	if flagDriver != "" {
		cfg.DBDriver = flagDriver
	}
	if flagDSN != "" {
		cfg.DatabaseURL = flagDSN
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("logger: %w", err)
	}
	st, err := store.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		_ = log.Sync()
		return cfg, nil, nil, fmt.Errorf("open store: %w", err)
	}
	return cfg, log, st, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, st, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer st.Close()

	if cfg.SeedOnStart {
		fam, err := seed.Default()
		if err != nil {
			return err
		}
		seeded, err := seed.Apply(ctx, st, fam)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		if seeded {
			log.Info("seeded default family", zap.Int("users", len(fam.Users)))
		}
	}

	a, err := newAPI(cfg, st, log)
	if err != nil {
		return err
	}
	srv := newHTTPServer(cfg.Addr, a, cfg.WebDir)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("db", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		purgeSessions(gctx, st, log, time.Hour)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		ctxSh, cancelSh := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelSh()
		return srv.Shutdown(ctxSh)
	})
	return g.Wait()
}

// newHTTPServer wires the API, optional static files and request logging into a server
// whose shutdown also closes the event streams.
func newHTTPServer(addr string, a *api, webDir string) *http.Server {
	mux := http.NewServeMux()
	a.routes(mux)
	if fi, err := os.Stat(webDir); webDir != "" && err == nil && fi.IsDir() {
		mux.Handle("GET /", http.FileServer(http.Dir(webDir)))
	}

	srv := &http.Server{Addr: addr, Handler: withLogging(a.log, mux),
		ReadTimeout: 15 * time.Second, ReadHeaderTimeout: 10 * time.Second,
		// no write timeout: /api/events streams stay open
		WriteTimeout: 0, IdleTimeout: 120 * time.Second}
	srv.RegisterOnShutdown(a.bus.Close)
	return srv
}

func purgeSessions(ctx context.Context, st *store.Store, log *zap.Logger, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := st.PurgeExpiredSessions(ctx)
			if err != nil {
				log.Warn("purge sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("purged sessions", zap.Int64("count", n))
			}
		}
	}
}
