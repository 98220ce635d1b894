// Package dflow implements the dflow command line.
package dflow

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/l7mp/dflow/internal/buildinfo"
	"github.com/l7mp/dflow/internal/config"
)

type rootOptions struct {
	configFile string
	workers    int
	zapOpts    zap.Options
	logger     logr.Logger
}

// NewCommand creates the root command.
func NewCommand(info buildinfo.BuildInfo) *cobra.Command {
	o := &rootOptions{
		zapOpts: zap.Options{
			Development:     true,
			DestWriter:      os.Stderr,
			StacktraceLevel: zapcore.Level(3),
			TimeEncoder:     zapcore.RFC3339NanoTimeEncoder,
		},
	}

	cmd := &cobra.Command{
		Use:           "dflow",
		Short:         "Incrementally maintained materialized views over a dataflow graph",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			o.logger = zap.New(zap.UseFlagOptions(&o.zapOpts)).WithName("dflow")
		},
	}

	fs := flag.NewFlagSet("zap", flag.ContinueOnError)
	o.zapOpts.BindFlags(fs)
	cmd.PersistentFlags().AddGoFlagSet(fs)
	cmd.PersistentFlags().StringVarP(&o.configFile, "config", "c", "", "engine config file (TOML)")
	cmd.PersistentFlags().IntVar(&o.workers, "workers", 0, "number of propagation workers, overrides the config file")

	cmd.AddCommand(newRunCommand(o, info), newDumpCommand(o), newVersionCommand(info))
	return cmd
}

// loadConfig reads the config file, if any, and applies the flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if o.configFile != "" {
		var err error
		if cfg, err = config.Load(o.configFile); err != nil {
			return nil, err
		}
	}
	if o.workers > 0 {
		cfg.Workers = o.workers
	}
	return cfg, cfg.Validate()
}

func newVersionCommand(info buildinfo.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dflow %s\n", info.String())
		},
	}
}
