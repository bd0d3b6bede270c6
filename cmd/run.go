package cmd

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/giantswarm/microerror"
	"github.com/spf13/cobra"
)

func newRunCommand(f *rootFlags) *cobra.Command {
	command := &cobra.Command{
		Use:   "run",
		Short: "Run the whole scenario against a new group",
		Long: heredoc.Doc(`
			Creates the launch template and a group of one instance, raises the
			group to its desired capacity, terminates an instance and waits for its
			replacement, prints the collected group metrics, scales the group to
			zero and deletes the group and the launch template.

			When a step fails the group and the launch template are still removed.
		`),
		Args: cobra.NoArgs,
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

			err = s.Test(ctx)
			if err != nil {
				return microerror.Mask(err)
			}

			return nil
		},
	}

	return command
}
