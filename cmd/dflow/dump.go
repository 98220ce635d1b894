package dflow

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l7mp/dflow/pkg/engine"
	"github.com/l7mp/dflow/pkg/recipe"
	"github.com/l7mp/dflow/pkg/visualize"
)

func newDumpCommand(ro *rootOptions) *cobra.Command {
	var recipeFile, format string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the graph of a recipe as a diagram",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gen, err := visualize.NewGenerator(format)
			if err != nil {
				return err
			}
			r, err := recipe.Load(recipeFile)
			if err != nil {
				return err
			}

			e := engine.New(engine.Options{Workers: 1, Logger: ro.logger})
			defer e.Close()
			if _, err := r.Apply(e); err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), gen.Generate(visualize.BuildGraph(recipeFile, e.Graph().Arena())))
			return nil
		},
	}
	cmd.Flags().StringVarP(&recipeFile, "recipe", "r", "", "graph recipe (YAML)")
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot or mermaid")
	_ = cmd.MarkFlagRequired("recipe")
	return cmd
}
