// Package cmd provides the CLI commands for assetcache.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/assetcache/internal/config"
	apperrors "github.com/Aman-CERP/assetcache/internal/errors"
	"github.com/Aman-CERP/assetcache/internal/logging"
	"github.com/Aman-CERP/assetcache/internal/profiling"
	"github.com/Aman-CERP/assetcache/pkg/version"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	debug      bool
	configPath string
	noColor    bool

	profileCPU   string
	profileMem   string
	profileTrace string

	profiles       *profiling.Session
	loggingCleanup func()
}

// NewRootCmd creates the root command for the assetcache CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "assetcache",
		Short: "Live metadata index for binary files",
		Long: `assetcache indexes the binary files under one or more directories.

For every file it records a content digest, size and media type once and
persists them, so restarts never recompute unchanged data. Filesystem
changes are followed live and a periodic sweep evicts records of files
that no longer exist.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("assetcache version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.assetcache/logs/")
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file (overrides the user config)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&opts.profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&opts.profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = opts.start
	cmd.PersistentPostRunE = opts.stop

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newScanCmd(opts))
	cmd.AddCommand(newSweepCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// start enables logging and any requested profiles.
func (o *rootOptions) start(_ *cobra.Command, _ []string) error {
	if err := o.startLogging(); err != nil {
		return err
	}
	profiles, err := profiling.Start(profiling.Paths{
		CPU:   o.profileCPU,
		Heap:  o.profileMem,
		Trace: o.profileTrace,
	})
	if err != nil {
		return err
	}
	o.profiles = profiles
	return nil
}

// stop ends profiling and closes the log file.
func (o *rootOptions) stop(_ *cobra.Command, _ []string) error {
	err := o.profiles.Stop()
	o.profiles = nil
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
	return err
}

// startLogging installs the slog default. The level comes from the
// configuration when it loads; load errors surface later from the command.
func (o *rootOptions) startLogging() error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = "warn"
	if cfg, err := config.Load(o.configPath); err == nil {
		logCfg.Level = cfg.Server.LogLevel
	}
	if o.debug {
		logCfg = logging.DebugConfig()
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.loggingCleanup = cleanup

	if o.debug {
		slog.Info("debug logging enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Version))
	}
	return nil
}

// loadConfig loads the effective configuration for a command.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.configPath)
}

// Execute runs the root command and prints failures. Commands run with
// --json report errors as a JSON object on stderr.
func Execute() error {
	root := NewRootCmd()
	cmd, err := root.ExecuteC()
	if err == nil {
		return nil
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if data, jerr := apperrors.FormatJSON(err); jerr == nil {
			_, _ = fmt.Fprintln(root.ErrOrStderr(), string(data))
			return err
		}
	}
	_, _ = fmt.Fprint(root.ErrOrStderr(), apperrors.FormatForCLI(err))
	return err
}
