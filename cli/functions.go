package cli

import (
	"fmt"

	"github.com/byuoitav/functions"
	"github.com/byuoitav/functions/api"
	"github.com/byuoitav/functions/guard"
	"github.com/byuoitav/functions/plot"
	"github.com/spf13/cobra"
)

func newFunctionsCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "functions",
		Aliases: []string{"fn"},
		Short:   "List and edit your functions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:         "list",
		Short:       "List your functions",
		Args:        cobra.NoArgs,
		Annotations: annotate(guard.Functions),
		RunE: func(cmd *cobra.Command, args []string) error {
			fns, err := r.app.Functions.List(cmd.Context())
			if err != nil {
				return failure(err)
			}

			r.app.printFunctions(fns)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "show <id>",
		Short:       "Show a function and its points",
		Args:        cobra.ExactArgs(1),
		Annotations: annotate(guard.FunctionEdit),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return failure(err)
			}

			f, err := r.app.Functions.Get(cmd.Context(), id)
			if err != nil {
				return failure(err)
			}

			r.app.printFunction(f)
			return nil
		},
	})

	cmd.AddCommand(newCreateCmd(r))
	cmd.AddCommand(newRenameCmd(r))

	cmd.AddCommand(&cobra.Command{
		Use:         "delete <id>",
		Short:       "Delete a function",
		Args:        cobra.ExactArgs(1),
		Annotations: annotate(guard.Functions),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return failure(err)
			}

			if err := r.app.Functions.Delete(cmd.Context(), id); err != nil {
				return failure(err)
			}

			r.app.success("deleted " + id.String())
			return nil
		},
	})

	return cmd
}

func newCreateCmd(r *root) *cobra.Command {
	var nf api.NewFunction
	var points string

	cmd := &cobra.Command{
		Use:         "create",
		Short:       "Create a function",
		Long:        `Create a function. Points are given as "x1,y1; x2,y2; ...".`,
		Args:        cobra.NoArgs,
		Annotations: annotate(guard.FunctionNew),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			nf.Points, err = functions.ParsePoints(points)
			if err != nil {
				return err
			}

			f, err := r.app.Functions.Create(cmd.Context(), nf)
			if err != nil {
				return failure(err)
			}

			r.app.success(fmt.Sprintf("created %s %s", f.Name, f.ID))
			return nil
		},
	}

	cmd.Flags().StringVarP(&nf.Name, "name", "n", "", "Name of the function")
	cmd.Flags().StringVarP(&nf.Type, "type", "t", functions.TypeArray, fmt.Sprintf("Function type, one of %v", functions.Types))
	cmd.Flags().StringVar(&points, "points", "", `Initial points, "x1,y1; x2,y2"`)
	return cmd
}

func newRenameCmd(r *root) *cobra.Command {
	var typ string

	cmd := &cobra.Command{
		Use:         "rename <id> <name>",
		Short:       "Rename a function, optionally changing its type",
		Args:        cobra.ExactArgs(2),
		Annotations: annotate(guard.FunctionEdit),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return failure(err)
			}

			f, err := r.app.Functions.Update(cmd.Context(), id, args[1], typ)
			if err != nil {
				return failure(err)
			}

			r.app.success(fmt.Sprintf("renamed %s to %s", f.ID, f.Name))
			return nil
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", "", "New function type, unchanged when empty")
	return cmd
}

func newPointsCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Add and delete points of a function",
	}

	cmd.AddCommand(&cobra.Command{
		Use:         "add <id> <x> <y>",
		Short:       "Add a point",
		Args:        cobra.ExactArgs(3),
		Annotations: annotate(guard.FunctionEdit),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return failure(err)
			}

			x, y, err := parseCoordinates(args[1], args[2])
			if err != nil {
				return failure(err)
			}

			if _, err := r.app.Functions.AddPoint(cmd.Context(), id, x, y); err != nil {
				return failure(err)
			}

			r.app.success(fmt.Sprintf("added (%s, %s)", formatFloat(x), formatFloat(y)))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id> <point>",
		Short: "Delete a point",
		Long: `Delete a point, given either as its position in 'functions show' or as its
point id.`,
		Args:        cobra.ExactArgs(2),
		Annotations: annotate(guard.FunctionEdit),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return failure(err)
			}

			// positions only mean something inside a snapshot, so take a fresh one
			f, err := r.app.Functions.Get(cmd.Context(), id)
			if err != nil {
				return failure(err)
			}

			ref, err := pointRef(f, args[1])
			if err != nil {
				return failure(err)
			}

			if err := r.app.Functions.DeletePoint(cmd.Context(), id, ref); err != nil {
				return failure(err)
			}

			r.app.success("deleted point " + args[1])
			return nil
		},
	})

	return cmd
}

func newPlotCmd(r *root) *cobra.Command {
	var opts plot.Options

	cmd := &cobra.Command{
		Use:         "plot <id>",
		Short:       "Draw a function as a line chart",
		Args:        cobra.ExactArgs(1),
		Annotations: annotate(guard.FunctionPlot),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return failure(err)
			}

			f, err := r.app.Functions.Get(cmd.Context(), id)
			if err != nil {
				return failure(err)
			}

			return r.app.plotFunction(f, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Width, "width", plot.DefaultWidth, "Chart width in characters")
	cmd.Flags().IntVar(&opts.Height, "height", plot.DefaultHeight, "Chart height in characters")
	return cmd
}
