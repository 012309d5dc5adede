package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	apperrors "github.com/Aman-CERP/assetcache/internal/errors"
	"github.com/Aman-CERP/assetcache/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		metricsAddr string
		noTUI       bool
	)

	cmd := &cobra.Command{
		Use:   "serve [dir...]",
		Short: "Import, watch and sweep roots until interrupted",
		Long: `Import every configured root (plus any given as arguments), follow
filesystem changes, and run the reconciliation sweep on its interval.

With --metrics-addr (or server.metrics_addr) health, status and Prometheus
metrics are served over HTTP.`,
		Example: `  # Serve the roots from the configuration
  assetcache serve

  # Serve an extra directory with metrics on :9090
  assetcache serve /srv/media --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts, args, metricsAddr, noTUI)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve health, status and metrics on this address")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Print plain progress lines for the initial imports")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *rootOptions, args []string, metricsAddr string, noTUI bool) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	dirs := append(append([]string{}, cfg.Roots...), args...)
	if len(dirs) == 0 {
		return apperrors.ConfigError("no roots to serve", nil).
			WithSuggestion("pass a directory or set roots in " + cfgHint(opts))
	}
	if metricsAddr == "" {
		metricsAddr = cfg.Server.MetricsAddr
	}

	repo, err := openRepository(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			slog.Warn("failed to close repository", slog.String("error", err.Error()))
		}
	}()

	var srv *server.Server
	if metricsAddr != "" {
		srv = server.New(metricsAddr, repo)
		srv.Start()
	}

	rootIDs := make([]uuid.UUID, 0, len(dirs))
	for _, dir := range dirs {
		rootID, err := repo.ImportRoot(ctx, dir)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "importing %s (%s)\n", dir, rootID)
		rootIDs = append(rootIDs, rootID)
	}

	// A failed root keeps the others serving.
	for _, rootID := range rootIDs {
		if ctx.Err() != nil {
			break
		}
		if err := followImport(ctx, cmd.OutOrStdout(), opts, noTUI, repo, rootID); err != nil && ctx.Err() == nil {
			slog.Warn("initial import failed", slog.String("root", rootID.String()), apperrors.LogAttr(err))
		}
	}

	<-ctx.Done()
	slog.Info("shutdown initiated")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown error", slog.String("error", err.Error()))
		}
	}
	return nil
}

func cfgHint(opts *rootOptions) string {
	if opts.configPath != "" {
		return opts.configPath
	}
	return "the user config (assetcache config path)"
}
