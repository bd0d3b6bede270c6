package cmd

import (
	"io"

	"github.com/giantswarm/microerror"

	"github.com/giantswarm/autoscaling-scenario/scaling"
	"github.com/giantswarm/autoscaling-scenario/scaling/provider"
)

func (e *environment) scaling(out io.Writer, launchTemplateID string) (*scaling.Scaling, error) {
	var err error

	var p *provider.AWS
	{
		p, err = provider.NewAWS(provider.AWSConfig{
			AutoScaling: e.autoScaling,
			CloudWatch:  e.cloudWatch,
			EC2:         e.ec2,
			Logger:      e.logger,
			Metrics:     e.metrics,
		})
		if err != nil {
			return nil, microerror.Mask(err)
		}
	}

	var s *scaling.Scaling
	{
		s, err = scaling.New(scaling.Config{
			Logger:   e.logger,
			Metrics:  e.metrics,
			Output:   out,
			Provider: p,

			DesiredCapacity: e.config.Group.DesiredCapacity,
			EnabledMetrics:  e.config.Group.EnabledMetrics,
			GroupName:       e.config.Group.Name,
			LaunchTemplate: provider.LaunchTemplateConfig{
				Name:         e.config.LaunchTemplate.Name,
				ImageID:      e.config.LaunchTemplate.ImageID,
				InstanceType: e.config.LaunchTemplate.InstanceType,
			},
			LaunchTemplateID: launchTemplateID,
			MaxSize:          e.config.Group.MaxSize,
			MaxWait:          e.config.Wait.MaxWait,
			MetricsWindow:    e.config.Metrics.Window,
			PollInterval:     e.config.Wait.Interval,
			Zones:            e.config.Group.Zones,
		})
		if err != nil {
			return nil, microerror.Mask(err)
		}
	}

	return s, nil
}
