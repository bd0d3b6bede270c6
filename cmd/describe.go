package cmd

import (
	"github.com/giantswarm/microerror"
	"github.com/spf13/cobra"

	"github.com/giantswarm/autoscaling-scenario/display"
)

func newDescribeCommand(f *rootFlags) *cobra.Command {
	command := &cobra.Command{
		Use:   "describe",
		Short: "Print an existing group, its instances and scaling activities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := f.environment(ctx, cmd)
			if err != nil {
				return microerror.Mask(err)
			}
			defer e.stopMetrics()

			s, err := e.scaling(cmd.OutOrStdout(), "")
			if err != nil {
				return microerror.Mask(err)
			}

			d, err := s.Describe(ctx)
			if err != nil {
				return microerror.Mask(err)
			}

			out := cmd.OutOrStdout()
			err = display.Group(out, d.Group)
			if err != nil {
				return microerror.Mask(err)
			}
			err = display.Instances(out, d.Group.Instances)
			if err != nil {
				return microerror.Mask(err)
			}
			err = display.Activities(out, d.Activities)
			if err != nil {
				return microerror.Mask(err)
			}

			return nil
		},
	}

	return command
}
