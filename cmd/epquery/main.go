// Command epquery serves the query compiler and meta facet engine over HTTP
// and exposes maintenance commands for the facet cache.
//
// Logging:
//   - The base logger is built from the loaded config and passed down
//   - HTTP handlers read a per-request logger from the context
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alaa-alshamy/ElasticPress/internal/app"
	"github.com/alaa-alshamy/ElasticPress/internal/config"
	logpkg "github.com/alaa-alshamy/ElasticPress/internal/logger"
	"github.com/alaa-alshamy/ElasticPress/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "epquery",
		Short:        "Content query compiler and meta facet service",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("env", config.GetEnv(), "environment: local, dev, docker, prod or test")
	rootCmd.PersistentFlags().String("config", "", "config file (default: config/<env>.yaml)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		compileCmd(),
		valuesCmd(),
		invalidateCmd(),
		indexVersionCmd(),
		versionCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// session carries the loaded config and logger of one command run.
type session struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
}

func loadSession(cmd *cobra.Command) (*session, error) {
	env, _ := cmd.Flags().GetString("env")
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return &session{env: env, cfg: cfg, logger: logger}, nil
}

// withApp loads the session, builds the app and runs fn until it returns or
// the process is signalled.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, rt *session, a *app.App) error) error {
	rt, err := loadSession(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.logger.Sync() }()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer a.Close()

	return fn(ctx, rt, a)
}
