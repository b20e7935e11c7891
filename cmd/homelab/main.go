package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/snadboy/homelab-scripts/internal/config"
	"github.com/snadboy/homelab-scripts/internal/httpclient"
	"github.com/snadboy/homelab-scripts/internal/monitor"
)

const defaultConfigFile = "config.yaml"

var (
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
)

type rootOptions struct {
	configPath string
	envFile    string
	verbose    bool
}

// app is what every subcommand needs after startup.
type app struct {
	cfg  *config.Config
	http httpclient.Options
}

// load reads the YAML config, then the .env file, then the service endpoints from the
// environment. The config file is only required when --config was given explicitly.
func (o *rootOptions) load(cmd *cobra.Command) (*app, error) {
	required := cmd.Flags().Changed("config")
	cfg, err := config.LoadConfig(o.configPath, required)
	if err != nil {
		return nil, err
	}

	envFiles := cfg.EnvFiles
	if o.envFile != "" {
		envFiles = []string{o.envFile}
	}
	if _, err := config.LoadEnvFile(envFiles); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	return &app{
		cfg:  cfg,
		http: httpclient.Options{Timeout: cfg.RequestTimeout, Insecure: cfg.Insecure},
	}, nil
}

func setupLogging(cmd *cobra.Command, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := tint.NewHandler(cmd.ErrOrStderr(), &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler).With("run_id", uuid.NewString(), "cmd", cmd.Name()))
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "homelab",
		Short:         "Operational jobs for the homelab media stack",
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd, opts.verbose)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigFile, "Path to the configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load this .env file instead of the configured list")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newArrHealthCmd(opts),
		newPortainerBackupCmd(opts),
		newGDriveAuthCmd(opts),
		newPlexLastPlayedCmd(opts),
		newTestNotificationCmd(opts),
		newJokeCmd(),
		newSysinfoCmd(),
		newMetricsDemoCmd(),
		newSelftestCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		// the health report already lists the issues
		if !errors.Is(err, monitor.ErrUnhealthy) {
			fmt.Fprintln(os.Stderr, red("Error:"), err)
		}
		stop()
		os.Exit(1)
	}
}
