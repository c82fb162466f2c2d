package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/ecgstudio/client"
	"github.com/YuminosukeSato/ecgstudio/config"
	"github.com/YuminosukeSato/ecgstudio/pkg/log"
	"github.com/YuminosukeSato/ecgstudio/workspace"
)

// app carries the settings shared by every subcommand.
type app struct {
	configPath string
	baseURL    string
	logLevel   string
	logFormat  string

	cfg    config.Config
	logger log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ecgctl",
		Short:         "train ECG heartbeat classifiers and analyse recordings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default $"+config.PathEnv+" or "+config.DefaultPath+")")
	flags.StringVar(&a.baseURL, "base-url", "", "modelling service url, overrides server.base_url")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", "", "console or json")

	root.AddCommand(
		algorithmsCmd(a),
		trainCmd(a),
		analyzeCmd(a),
		runCmd(a),
		configCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.LoadFile(a.configPath)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.Server.BaseURL = a.baseURL
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SetupLogger(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = log.GetLoggerWithName("ecgctl")
	return nil
}

// newClient returns a client whose CSRF cookie has been fetched. A failed
// prime is logged; the configured token is used instead.
func (a *app) newClient(ctx context.Context) (*client.Client, error) {
	c, err := a.cfg.NewClient()
	if err != nil {
		return nil, err
	}
	if err := c.Prime(ctx); err != nil {
		a.logger.Warn("CSRF priming failed", log.ErrAttrKey, err)
	}
	return c, nil
}

func (a *app) newWorkspace(ctx context.Context) (*workspace.Workspace, error) {
	c, err := a.newClient(ctx)
	if err != nil {
		return nil, err
	}
	opts := a.cfg.WorkspaceOptions()
	opts.Logger = a.logger
	return workspace.New(c, opts), nil
}

func configCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Write(a.cfg, cmd.OutOrStdout())
		},
	}
}
