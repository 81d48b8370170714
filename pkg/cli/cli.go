// Package cli runs an application as a real process: a cobra root command
// with serve and check subcommands, signal-driven shutdown, and logger
// setup. Tests use pkg/harness instead; this package is the production
// entrypoint.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fixturelabs/appharness/internal/logger"
	"github.com/fixturelabs/appharness/pkg/app"
	"github.com/fixturelabs/appharness/pkg/command"
	"github.com/fixturelabs/appharness/pkg/config"
	"github.com/fixturelabs/appharness/pkg/server"
)

// LoggingConfigured is the optional capability of configurations that carry
// logger settings. When the resolved configuration implements it, the
// global logger is reconfigured before the application runs.
type LoggingConfigured interface {
	LoggingConfig() logger.Config
}

// Execute runs the application's command line and exits the process on
// error.
func Execute[C any](name, description string, factory func() (app.Application[C], error)) {
	if err := Run(factory, name, description, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Run builds and executes the root command with the given arguments.
func Run[C any](factory func() (app.Application[C], error), name, description string, args []string) error {
	root, err := newRootCommand(factory, name, description)
	if err != nil {
		return err
	}
	root.SetArgs(args)
	return root.Execute()
}

func newRootCommand[C any](factory func() (app.Application[C], error), name, description string) (*cobra.Command, error) {
	if factory == nil {
		return nil, fmt.Errorf("application factory is nil")
	}

	var configPath string

	root := &cobra.Command{
		Use:           name,
		Short:         description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")

	root.AddCommand(newServeCommand(factory, &configPath))
	root.AddCommand(newCheckCommand(factory, &configPath))
	root.AddCommand(newConfigCommand[C](&configPath))

	return root, nil
}

func newConfigCommand[C any](configPath *string) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a configuration template to the --config path",
		RunE: func(*cobra.Command, []string) error {
			if *configPath == "" {
				return fmt.Errorf("--config path is required")
			}
			var template C
			if err := config.Save(template, *configPath); err != nil {
				return err
			}
			logger.Info("configuration template written", "path", *configPath)
			return nil
		},
	})
	return cfgCmd
}

func newServeCommand[C any](factory func() (app.Application[C], error), configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the application server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := factory()
			if err != nil {
				return fmt.Errorf("failed to build application: %w", err)
			}

			bootstrap := app.NewBootstrap(application)

			// Hold the server handle so we can block until it drains.
			serverCh := make(chan *server.Server, 1)
			bootstrap.AddServerListener(func(s *server.Server) {
				serverCh <- s
			})

			application.Initialize(bootstrap)

			serve := command.NewServerCommand[C]()
			if err := serve.Run(ctx, bootstrap, &command.Namespace{ConfigPath: *configPath}); err != nil {
				return err
			}
			configureLogger(serve)

			srv := <-serverCh
			<-ctx.Done()
			logger.Info("shutdown signal received")

			// The server shuts itself down on context cancellation; Stop here
			// just waits for that to complete and surfaces any error.
			shutdownCtx := context.Background()
			return srv.Stop(shutdownCtx)
		},
	}
}

func newCheckCommand[C any](factory func() (app.Application[C], error), configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := factory()
			if err != nil {
				return fmt.Errorf("failed to build application: %w", err)
			}

			bootstrap := app.NewBootstrap(application)
			application.Initialize(bootstrap)

			check := command.NewCheckCommand[C]()
			if err := check.Run(cmd.Context(), bootstrap, &command.Namespace{ConfigPath: *configPath}); err != nil {
				return err
			}
			configureLogger(check)
			return nil
		},
	}
}

func configureLogger[C any](cmd command.Configured[C]) {
	cfg, ok := cmd.Configuration()
	if !ok {
		return
	}
	if lc, ok := any(cfg).(LoggingConfigured); ok {
		if err := logger.Init(lc.LoggingConfig()); err != nil {
			logger.Warn("failed to configure logger", "error", err)
		}
	}
}
