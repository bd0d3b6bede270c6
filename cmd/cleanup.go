package cmd

import (
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/giantswarm/microerror"
	"github.com/spf13/cobra"
)

func newCleanupCommand(f *rootFlags) *cobra.Command {
	var templateID string

	command := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete a group left behind by an interrupted run",
		Long: heredoc.Doc(`
			Scales the group to zero, waits for its instances to be gone and deletes
			the group and its launch template. The launch template is looked up from
			the group unless --template-id is given.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := f.environment(ctx, cmd)
			if err != nil {
				return microerror.Mask(err)
			}
			defer e.stopMetrics()

			s, err := e.scaling(cmd.OutOrStdout(), templateID)
			if err != nil {
				return microerror.Mask(err)
			}

			err = s.LoadLaunchTemplateID(ctx)
			if err != nil {
				return microerror.Mask(err)
			}

			err = s.ScaleToZero(ctx)
			if err != nil {
				return microerror.Mask(err)
			}

			err = s.Clean(ctx)
			if err != nil {
				return microerror.Mask(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted group %s and launch template %s\n", s.GroupName(), s.LaunchTemplateID())

			return nil
		},
	}

	command.Flags().StringVar(&templateID, "template-id", "", "ID of the launch template to delete, looked up from the group when empty")

	return command
}
