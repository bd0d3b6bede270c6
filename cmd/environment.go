package cmd

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/giantswarm/autoscaling-scenario/config"
	"github.com/giantswarm/autoscaling-scenario/metrics"
)

// environment holds what every subcommand needs before it talks to AWS.
type environment struct {
	config  config.Config
	logger  micrologger.Logger
	metrics *metrics.Recorder

	autoScaling *autoscaling.Client
	cloudWatch  *cloudwatch.Client
	ec2         *ec2.Client

	stopMetrics func()
}

// loadConfig reads the config file and applies the flag overrides.
func (f *rootFlags) loadConfig() (config.Config, error) {
	c, err := config.Load(f.fs, f.config)
	if err != nil {
		return config.Config{}, microerror.Mask(err)
	}

	if f.groupName != "" {
		c.Group.Name = f.groupName
	}
	if f.metricsAddress != "" {
		c.Metrics.Address = f.metricsAddress
	}
	if f.profile != "" {
		c.AWS.Profile = f.profile
	}
	if f.region != "" {
		c.AWS.Region = f.region
	}
	if f.templateName != "" {
		c.LaunchTemplate.Name = f.templateName
	}

	err = c.Validate()
	if err != nil {
		return config.Config{}, microerror.Mask(err)
	}

	return c, nil
}

func (f *rootFlags) environment(ctx context.Context, cmd *cobra.Command) (*environment, error) {
	c, err := f.loadConfig()
	if err != nil {
		return nil, microerror.Mask(err)
	}

	var logger micrologger.Logger
	{
		logger, err = micrologger.New(micrologger.Config{
			IOWriter: cmd.ErrOrStderr(),
		})
		if err != nil {
			return nil, microerror.Mask(err)
		}
	}

	registry := prometheus.NewRegistry()

	var recorder *metrics.Recorder
	{
		recorder, err = metrics.New(metrics.Config{
			Registerer: registry,
		})
		if err != nil {
			return nil, microerror.Mask(err)
		}
	}

	var awsConfig aws.Config
	{
		var opts []func(*awsconfig.LoadOptions) error
		if c.AWS.Region != "" {
			opts = append(opts, awsconfig.WithRegion(c.AWS.Region))
		}
		if c.AWS.Profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(c.AWS.Profile))
		}

		awsConfig, err = awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, microerror.Mask(err)
		}
	}

	e := &environment{
		config:  c,
		logger:  logger,
		metrics: recorder,

		autoScaling: autoscaling.NewFromConfig(awsConfig),
		cloudWatch:  cloudwatch.NewFromConfig(awsConfig),
		ec2:         ec2.NewFromConfig(awsConfig),

		stopMetrics: func() {},
	}

	if c.Metrics.Address != "" {
		server, err := metrics.NewServer(metrics.ServerConfig{
			Gatherer: registry,
			Logger:   logger,

			Address: c.Metrics.Address,
		})
		if err != nil {
			return nil, microerror.Mask(err)
		}

		serveCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)

			err := server.Serve(serveCtx)
			if err != nil {
				logger.LogCtx(ctx, "level", "error", "message", fmt.Sprintf("serving metrics on %#q failed", c.Metrics.Address), "stack", fmt.Sprintf("%#v", err))
			}
		}()

		e.stopMetrics = func() {
			cancel()
			<-done
		}
	}

	return e, nil
}
