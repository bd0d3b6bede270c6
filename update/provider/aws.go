package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	autoscalingtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/giantswarm/backoff"
	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	defaultVersion = "$Default"
	latestVersion  = "$Latest"
)

// CallRecorder observes remote calls. It is implemented by
// *metrics.Recorder.
type CallRecorder interface {
	ObserveCall(operation string, start time.Time, err error)
}

type AWSConfig struct {
	AutoScaling AutoScalingAPI
	EC2         EC2API
	Logger      micrologger.Logger
	Metrics     CallRecorder

	GroupName string
	// InstanceType is set on every launch template version created by
	// NextVersion.
	InstanceType string
	MaxWait      time.Duration
	PollInterval time.Duration
}

type AWS struct {
	autoScaling AutoScalingAPI
	ec2         EC2API
	logger      micrologger.Logger
	metrics     CallRecorder

	groupName    string
	instanceType string
	maxWait      time.Duration
	pollInterval time.Duration
}

func NewAWS(config AWSConfig) (*AWS, error) {
	if config.AutoScaling == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.AutoScaling must not be empty", config)
	}
	if config.EC2 == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.EC2 must not be empty", config)
	}
	if config.Logger == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Logger must not be empty", config)
	}
	if config.Metrics == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Metrics must not be empty", config)
	}

	if config.GroupName == "" {
		return nil, microerror.Maskf(invalidConfigError, "%T.GroupName must not be empty", config)
	}
	if config.InstanceType == "" {
		return nil, microerror.Maskf(invalidConfigError, "%T.InstanceType must not be empty", config)
	}
	if config.MaxWait <= 0 {
		return nil, microerror.Maskf(invalidConfigError, "%T.MaxWait must be positive", config)
	}
	if config.PollInterval <= 0 {
		return nil, microerror.Maskf(invalidConfigError, "%T.PollInterval must be positive", config)
	}

	a := &AWS{
		autoScaling: config.AutoScaling,
		ec2:         config.EC2,
		logger:      config.Logger,
		metrics:     config.Metrics,

		groupName:    config.GroupName,
		instanceType: config.InstanceType,
		maxWait:      config.MaxWait,
		pollInterval: config.PollInterval,
	}

	return a, nil
}

func (a *AWS) CurrentVersion(ctx context.Context) (string, error) {
	group, err := a.group(ctx)
	if err != nil {
		return "", microerror.Mask(err)
	}

	id, version, err := launchTemplate(group)
	if err != nil {
		return "", microerror.Mask(err)
	}

	if !strings.HasPrefix(version, "$") {
		return version, nil
	}

	start := time.Now()
	out, err := a.ec2.DescribeLaunchTemplates(ctx, &ec2.DescribeLaunchTemplatesInput{
		LaunchTemplateIds: []string{id},
	})
	a.metrics.ObserveCall("DescribeLaunchTemplates", start, err)
	if err != nil {
		return "", maskAPIError(err, "describing launch template %#q", id)
	}
	if len(out.LaunchTemplates) == 0 {
		return "", microerror.Maskf(notFoundError, "launch template %#q", id)
	}

	t := out.LaunchTemplates[0]
	switch version {
	case latestVersion:
		return strconv.FormatInt(aws.ToInt64(t.LatestVersionNumber), 10), nil
	case defaultVersion:
		return strconv.FormatInt(aws.ToInt64(t.DefaultVersionNumber), 10), nil
	}

	return "", microerror.Maskf(versionNotFoundError, "launch template %#q has no version %#q", id, version)
}

func (a *AWS) NextVersion(ctx context.Context) (string, error) {
	current, err := a.CurrentVersion(ctx)
	if err != nil {
		return "", microerror.Mask(err)
	}

	group, err := a.group(ctx)
	if err != nil {
		return "", microerror.Mask(err)
	}
	id, _, err := launchTemplate(group)
	if err != nil {
		return "", microerror.Mask(err)
	}

	in := &ec2.CreateLaunchTemplateVersionInput{
		ClientToken:      aws.String(uuid.New().String()),
		LaunchTemplateId: aws.String(id),
		SourceVersion:    aws.String(current),
		LaunchTemplateData: &ec2types.RequestLaunchTemplateData{
			InstanceType: ec2types.InstanceType(a.instanceType),
		},
	}

	start := time.Now()
	out, err := a.ec2.CreateLaunchTemplateVersion(ctx, in)
	a.metrics.ObserveCall("CreateLaunchTemplateVersion", start, err)
	if err != nil {
		return "", maskAPIError(err, "creating version of launch template %#q", id)
	}
	if out.LaunchTemplateVersion == nil || out.LaunchTemplateVersion.VersionNumber == nil {
		return "", microerror.Maskf(versionNotFoundError, "creating version of launch template %#q: no version returned", id)
	}

	return strconv.FormatInt(aws.ToInt64(out.LaunchTemplateVersion.VersionNumber), 10), nil
}

// UpdateVersion points the group at nextVersion and starts an instance
// refresh so running instances get replaced by ones launched from it.
func (a *AWS) UpdateVersion(ctx context.Context, nextVersion string) error {
	group, err := a.group(ctx)
	if err != nil {
		return microerror.Mask(err)
	}
	id, _, err := launchTemplate(group)
	if err != nil {
		return microerror.Mask(err)
	}

	{
		start := time.Now()
		_, err := a.autoScaling.UpdateAutoScalingGroup(ctx, &autoscaling.UpdateAutoScalingGroupInput{
			AutoScalingGroupName: aws.String(a.groupName),
			LaunchTemplate: &autoscalingtypes.LaunchTemplateSpecification{
				LaunchTemplateId: aws.String(id),
				Version:          aws.String(nextVersion),
			},
		})
		a.metrics.ObserveCall("UpdateAutoScalingGroup", start, err)
		if err != nil {
			return maskAPIError(err, "updating group %#q to launch template version %#q", a.groupName, nextVersion)
		}
	}

	if len(group.Instances) == 0 {
		a.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("group %#q has no instances to refresh", a.groupName))
		return nil
	}

	{
		start := time.Now()
		_, err := a.autoScaling.StartInstanceRefresh(ctx, &autoscaling.StartInstanceRefreshInput{
			AutoScalingGroupName: aws.String(a.groupName),
			Strategy:             autoscalingtypes.RefreshStrategyRolling,
		})
		a.metrics.ObserveCall("StartInstanceRefresh", start, err)
		if err != nil {
			return maskAPIError(err, "starting instance refresh of group %#q", a.groupName)
		}
	}

	return nil
}

// WaitForUpdate waits until every instance of the group was launched from
// nextVersion. An empty group is considered updated.
func (a *AWS) WaitForUpdate(ctx context.Context, nextVersion string) error {
	o := func() error {
		err := ctx.Err()
		if err != nil {
			return backoff.Permanent(microerror.Mask(err))
		}

		group, err := a.group(ctx)
		if err != nil {
			return backoff.Permanent(microerror.Mask(err))
		}

		outdated := lo.Filter(group.Instances, func(i autoscalingtypes.Instance, _ int) bool {
			return i.LaunchTemplate == nil || aws.ToString(i.LaunchTemplate.Version) != nextVersion
		})
		if len(outdated) != 0 {
			return microerror.Maskf(waitError, "%d of %d instances not at version %#q", len(outdated), len(group.Instances), nextVersion)
		}

		return nil
	}

	b := backoff.NewConstant(a.maxWait, a.pollInterval)
	n := func(err error, delay time.Duration) {
		a.logger.LogCtx(ctx, "level", "debug", "message", err.Error())
	}

	err := backoff.RetryNotify(o, b, n)
	if err != nil {
		return microerror.Mask(err)
	}

	return nil
}

func (a *AWS) group(ctx context.Context) (autoscalingtypes.AutoScalingGroup, error) {
	start := time.Now()
	out, err := a.autoScaling.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{a.groupName},
	})
	a.metrics.ObserveCall("DescribeAutoScalingGroups", start, err)
	if err != nil {
		return autoscalingtypes.AutoScalingGroup{}, maskAPIError(err, "describing group %#q", a.groupName)
	}
	if len(out.AutoScalingGroups) == 0 {
		return autoscalingtypes.AutoScalingGroup{}, microerror.Maskf(notFoundError, "group %#q", a.groupName)
	}

	return out.AutoScalingGroups[0], nil
}

func launchTemplate(group autoscalingtypes.AutoScalingGroup) (string, string, error) {
	if group.LaunchTemplate == nil || aws.ToString(group.LaunchTemplate.LaunchTemplateId) == "" {
		return "", "", microerror.Maskf(notFoundError, "group %#q has no launch template", aws.ToString(group.AutoScalingGroupName))
	}

	version := aws.ToString(group.LaunchTemplate.Version)
	if version == "" {
		version = defaultVersion
	}

	return aws.ToString(group.LaunchTemplate.LaunchTemplateId), version, nil
}
