package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/shhac/nrpc/internal/app"
	apperrors "github.com/shhac/nrpc/internal/errors"
)

// rootOptions holds the persistent flags and the configuration they resolve
// to before any subcommand runs.
type rootOptions struct {
	configFile string
	debug      bool
	logFile    string

	config *app.Config
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "nrpcgen",
		Short: "Generate and call nrpc services",
		Long: `nrpcgen turns .proto service definitions into Go bindings for the nrpc
runtime without protoc, and calls methods of running servers using JSON.

Configuration is read from nrpc.toml in the working directory, or the file
named by --config or NRPC_CONFIG. Flags override the file.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.ValidationError{Field: "flags", Message: err.Error()}
	})

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "configuration file (default: ./"+app.DefaultConfigFile+" if present)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "debug logging")
	root.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "also write JSON logs to this file")

	root.AddCommand(
		newGenerateCmd(opts),
		newDescribeCmd(opts),
		newCallCmd(opts),
	)
	return root, opts
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := app.ConfigFromEnv()
	if err != nil {
		return err
	}

	path := o.configFile
	if path == "" && os.Getenv("NRPC_CONFIG") == "" {
		if _, err := os.Stat(app.DefaultConfigFile); err == nil {
			path = app.DefaultConfigFile
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Debug = o.debug
	}
	if flags.Changed("log-file") {
		cfg.LogFile = o.logFile
	}
	o.debug = cfg.Debug
	o.config = cfg
	return nil
}

// newApp builds the app for a subcommand, logging to its stderr.
func (o *rootOptions) newApp(cmd *cobra.Command) (*app.App, error) {
	return app.New(o.config, cmd.ErrOrStderr())
}
