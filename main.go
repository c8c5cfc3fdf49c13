package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zerbitx/gnockfs/config"
	"github.com/zerbitx/gnockfs/gnocker"
)

// set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %s\n", err)
		os.Exit(1)
	}

	if err := rootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd(cfg *config.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gnockfs [fixtures]",
		Short:         "Serve mock HTTP responses from a directory of YAML fixtures",
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.FixtureRoot = args[0]
			}

			return serve(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Host, "host", "n", cfg.Host, "interface to listen on")
	flags.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	flags.StringVarP(&cfg.LogLevel, "log-level", "l", cfg.LogLevel, "log level")
	flags.StringVarP(&cfg.FixtureRoot, "fixtures", "f", cfg.FixtureRoot, "fixture directory")
	flags.BoolVar(&cfg.Watch, "watch", cfg.Watch, "reload fixtures as they change")
	flags.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "root" {
			name = "fixtures"
		}
		return pflag.NormalizedName(name)
	})

	return cmd
}

func serve(cfg *config.Env) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetLevel(level)

	g, err := gnocker.New(
		gnocker.WithLogger(logger),
		gnocker.WithHost(cfg.Host),
		gnocker.WithPort(cfg.Port),
		gnocker.WithFixtureRoot(cfg.FixtureRoot),
		gnocker.WithConfigBasePath(cfg.ConfigBasePath),
		gnocker.WithWatch(cfg.Watch),
		gnocker.WithVersion(version),
	)
	if err != nil {
		return err
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigc
		logger.WithField("signal", sig.String()).Info("shutting down")

		if err := g.Shutdown(); err != nil {
			logger.WithError(err).Error("shutdown")
		}
	}()

	return g.Start()
}
