package dflow

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"
	"sigs.k8s.io/yaml"

	"github.com/l7mp/dflow/internal/buildinfo"
	"github.com/l7mp/dflow/pkg/engine"
	"github.com/l7mp/dflow/pkg/metrics"
	"github.com/l7mp/dflow/pkg/recipe"
)

type runOptions struct {
	recipeFile string
	dataFile   string
	serve      bool
}

func newRunCommand(ro *rootOptions, info buildinfo.BuildInfo) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a graph from a recipe, apply a workload and print the lookups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, ro, info)
		},
	}
	cmd.Flags().StringVarP(&o.recipeFile, "recipe", "r", "", "graph recipe (YAML)")
	cmd.Flags().StringVarP(&o.dataFile, "data", "d", "", "workload of writes and lookups (YAML)")
	cmd.Flags().BoolVar(&o.serve, "serve", false, "keep running until interrupted, serving metrics if enabled")
	_ = cmd.MarkFlagRequired("recipe")
	return cmd
}

func (o *runOptions) run(cmd *cobra.Command, ro *rootOptions, info buildinfo.BuildInfo) error {
	log := ro.logger.WithName("run")
	log.Info(fmt.Sprintf("starting dflow %s", info.String()))

	cfg, err := ro.loadConfig()
	if err != nil {
		return err
	}
	opts, err := cfg.EngineOptions(ro.logger)
	if err != nil {
		return err
	}

	e := engine.New(opts)
	defer func() {
		if err := e.Close(); err != nil {
			log.Error(err, "failed to close engine")
		}
	}()

	r, err := recipe.Load(o.recipeFile)
	if err != nil {
		return err
	}
	if _, err := r.Apply(e); err != nil {
		return err
	}

	ctx := cmd.Context()
	if o.serve {
		ctx = signals.SetupSignalHandler()
	}

	n, err := e.Recover(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info("recovered writes from the log", "records", n, "seq", e.Sequence())
	}

	if o.dataFile != "" {
		w, err := recipe.LoadWorkload(o.dataFile)
		if err != nil {
			return err
		}
		results, err := w.Run(ctx, e)
		if err != nil {
			return err
		}
		if len(results) > 0 {
			out, err := yaml.Marshal(results)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
		}
	}

	if !o.serve {
		return nil
	}

	if cfg.Metrics.Enabled {
		return metrics.Serve(ctx, cfg.Metrics.Address, ro.logger)
	}
	<-ctx.Done()
	return nil
}
