package cmd

import (
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/giantswarm/microerror"
	"github.com/spf13/cobra"

	"github.com/giantswarm/autoscaling-scenario/update"
	"github.com/giantswarm/autoscaling-scenario/update/provider"
)

func newUpdateCommand(f *rootFlags) *cobra.Command {
	var instanceType string

	command := &cobra.Command{
		Use:   "update",
		Short: "Roll an existing group to a new launch template version",
		Long: heredoc.Doc(`
			Creates a new version of the group's launch template with the given
			instance type, points the group at it and waits for an instance refresh
			to replace every instance.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if instanceType == "" {
				return microerror.Maskf(invalidFlagError, "--instance-type must not be empty")
			}

			ctx := cmd.Context()

			e, err := f.environment(ctx, cmd)
			if err != nil {
				return microerror.Mask(err)
			}
			defer e.stopMetrics()

			var p *provider.AWS
			{
				p, err = provider.NewAWS(provider.AWSConfig{
					AutoScaling: e.autoScaling,
					EC2:         e.ec2,
					Logger:      e.logger,
					Metrics:     e.metrics,

					GroupName:    e.config.Group.Name,
					InstanceType: instanceType,
					MaxWait:      e.config.Wait.MaxWait,
					PollInterval: e.config.Wait.Interval,
				})
				if err != nil {
					return microerror.Mask(err)
				}
			}

			var u *update.Update
			{
				u, err = update.New(update.Config{
					Logger:   e.logger,
					Provider: p,
				})
				if err != nil {
					return microerror.Mask(err)
				}
			}

			version, err := u.Test(ctx)
			if err != nil {
				return microerror.Mask(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Group %s runs launch template version %s\n", e.config.Group.Name, version)

			return nil
		},
	}

	command.Flags().StringVar(&instanceType, "instance-type", "", "Instance type of the new launch template version, e.g. t2.micro")

	return command
}
