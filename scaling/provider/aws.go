package provider

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	autoscalingtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cloudwatchtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	// LatestVersion makes a group launch instances from the most recent
	// version of its launch template.
	LatestVersion = "$Latest"

	metricsGranularity = "1Minute"
	metricsNamespace   = "AWS/AutoScaling"
	metricsPeriod      = 60
	groupDimension     = "AutoScalingGroupName"
)

// CallRecorder observes remote calls. It is implemented by
// *metrics.Recorder.
type CallRecorder interface {
	ObserveCall(operation string, start time.Time, err error)
}

type AWSConfig struct {
	AutoScaling AutoScalingAPI
	CloudWatch  CloudWatchAPI
	EC2         EC2API
	Logger      micrologger.Logger
	Metrics     CallRecorder
}

type AWS struct {
	autoScaling AutoScalingAPI
	cloudWatch  CloudWatchAPI
	ec2         EC2API
	logger      micrologger.Logger
	metrics     CallRecorder
}

func NewAWS(config AWSConfig) (*AWS, error) {
	if config.AutoScaling == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.AutoScaling must not be empty", config)
	}
	if config.CloudWatch == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.CloudWatch must not be empty", config)
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

	a := &AWS{
		autoScaling: config.AutoScaling,
		cloudWatch:  config.CloudWatch,
		ec2:         config.EC2,
		logger:      config.Logger,
		metrics:     config.Metrics,
	}

	return a, nil
}

func (a *AWS) AvailabilityZones(ctx context.Context, limit int) ([]string, error) {
	start := time.Now()
	out, err := a.ec2.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{})
	a.metrics.ObserveCall("DescribeAvailabilityZones", start, err)
	if err != nil {
		return nil, maskAPIError(err, "describing availability zones")
	}

	zones := lo.Map(out.AvailabilityZones, func(z ec2types.AvailabilityZone, _ int) string {
		return aws.ToString(z.ZoneName)
	})
	if len(zones) == 0 {
		return nil, microerror.Maskf(notFoundError, "no availability zones found")
	}
	if limit > 0 && len(zones) > limit {
		zones = zones[:limit]
	}

	return zones, nil
}

func (a *AWS) CreateLaunchTemplate(ctx context.Context, config LaunchTemplateConfig) (string, error) {
	in := &ec2.CreateLaunchTemplateInput{
		ClientToken:        aws.String(uuid.New().String()),
		LaunchTemplateName: aws.String(config.Name),
		LaunchTemplateData: &ec2types.RequestLaunchTemplateData{
			ImageId:      aws.String(config.ImageID),
			InstanceType: ec2types.InstanceType(config.InstanceType),
		},
	}

	start := time.Now()
	out, err := a.ec2.CreateLaunchTemplate(ctx, in)
	a.metrics.ObserveCall("CreateLaunchTemplate", start, err)
	if err != nil {
		return "", maskAPIError(err, "creating launch template %#q", config.Name)
	}
	if out.LaunchTemplate == nil || aws.ToString(out.LaunchTemplate.LaunchTemplateId) == "" {
		return "", microerror.Maskf(executionFailedError, "creating launch template %#q: no launch template returned", config.Name)
	}

	return aws.ToString(out.LaunchTemplate.LaunchTemplateId), nil
}

func (a *AWS) DeleteLaunchTemplate(ctx context.Context, id string) error {
	start := time.Now()
	_, err := a.ec2.DeleteLaunchTemplate(ctx, &ec2.DeleteLaunchTemplateInput{
		LaunchTemplateId: aws.String(id),
	})
	a.metrics.ObserveCall("DeleteLaunchTemplate", start, err)
	if err != nil {
		return maskAPIError(err, "deleting launch template %#q", id)
	}

	return nil
}

func (a *AWS) CreateGroup(ctx context.Context, config GroupConfig) error {
	in := &autoscaling.CreateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(config.Name),
		AvailabilityZones:    config.AvailabilityZones,
		LaunchTemplate: &autoscalingtypes.LaunchTemplateSpecification{
			LaunchTemplateId: aws.String(config.LaunchTemplateID),
			Version:          aws.String(LatestVersion),
		},
		MaxSize: aws.Int32(config.MaxSize),
		MinSize: aws.Int32(config.MinSize),
	}

	start := time.Now()
	_, err := a.autoScaling.CreateAutoScalingGroup(ctx, in)
	a.metrics.ObserveCall("CreateAutoScalingGroup", start, err)
	if err != nil {
		return maskAPIError(err, "creating auto scaling group %#q", config.Name)
	}

	return nil
}

func (a *AWS) DeleteGroup(ctx context.Context, name string) error {
	start := time.Now()
	_, err := a.autoScaling.DeleteAutoScalingGroup(ctx, &autoscaling.DeleteAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(name),
	})
	a.metrics.ObserveCall("DeleteAutoScalingGroup", start, err)
	if err != nil {
		return maskAPIError(err, "deleting auto scaling group %#q", name)
	}

	return nil
}

func (a *AWS) Group(ctx context.Context, name string) (Group, error) {
	start := time.Now()
	out, err := a.autoScaling.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{name},
	})
	a.metrics.ObserveCall("DescribeAutoScalingGroups", start, err)
	if err != nil {
		return Group{}, maskAPIError(err, "getting status of auto scaling group %#q", name)
	}
	if len(out.AutoScalingGroups) == 0 {
		return Group{}, microerror.Maskf(notFoundError, "auto scaling group %#q", name)
	}

	return toGroup(out.AutoScalingGroups[0]), nil
}

func (a *AWS) UpdateGroup(ctx context.Context, name string, c Capacity) error {
	in := &autoscaling.UpdateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(name),
		DesiredCapacity:      c.DesiredCapacity,
		MaxSize:              c.MaxSize,
		MinSize:              c.MinSize,
	}

	start := time.Now()
	_, err := a.autoScaling.UpdateAutoScalingGroup(ctx, in)
	a.metrics.ObserveCall("UpdateAutoScalingGroup", start, err)
	if err != nil {
		return maskAPIError(err, "updating auto scaling group %#q to %s", name, c)
	}

	return nil
}

func (a *AWS) TerminateInstance(ctx context.Context, id string) error {
	a.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("terminating instance %#q", id))

	start := time.Now()
	_, err := a.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{id},
	})
	a.metrics.ObserveCall("TerminateInstances", start, err)
	if err != nil {
		return maskAPIError(err, "terminating instance %#q", id)
	}

	return nil
}

func (a *AWS) EnableMetricsCollection(ctx context.Context, name string, metrics []string) error {
	start := time.Now()
	_, err := a.autoScaling.EnableMetricsCollection(ctx, &autoscaling.EnableMetricsCollectionInput{
		AutoScalingGroupName: aws.String(name),
		Granularity:          aws.String(metricsGranularity),
		Metrics:              metrics,
	})
	a.metrics.ObserveCall("EnableMetricsCollection", start, err)
	if err != nil {
		return maskAPIError(err, "enabling metrics collection for auto scaling group %#q", name)
	}

	return nil
}

func (a *AWS) DisableMetricsCollection(ctx context.Context, name string) error {
	start := time.Now()
	_, err := a.autoScaling.DisableMetricsCollection(ctx, &autoscaling.DisableMetricsCollectionInput{
		AutoScalingGroupName: aws.String(name),
	})
	a.metrics.ObserveCall("DisableMetricsCollection", start, err)
	if err != nil {
		return maskAPIError(err, "disabling metrics collection for auto scaling group %#q", name)
	}

	return nil
}

func (a *AWS) Activities(ctx context.Context, name string) ([]Activity, error) {
	var activities []Activity

	paginator := autoscaling.NewDescribeScalingActivitiesPaginator(a.autoScaling, &autoscaling.DescribeScalingActivitiesInput{
		AutoScalingGroupName: aws.String(name),
	})
	for paginator.HasMorePages() {
		start := time.Now()
		out, err := paginator.NextPage(ctx)
		a.metrics.ObserveCall("DescribeScalingActivities", start, err)
		if err != nil {
			return nil, maskAPIError(err, "describing scaling activities of auto scaling group %#q", name)
		}

		activities = append(activities, lo.Map(out.Activities, func(v autoscalingtypes.Activity, _ int) Activity {
			return Activity{
				ID:          aws.ToString(v.ActivityId),
				StatusCode:  string(v.StatusCode),
				Description: aws.ToString(v.Description),
				Cause:       aws.ToString(v.Cause),
				StartTime:   aws.ToTime(v.StartTime),
				EndTime:     aws.ToTime(v.EndTime),
			}
		})...)
	}

	return activities, nil
}

func (a *AWS) GroupMetrics(ctx context.Context, name string, start, end time.Time) ([]MetricSummary, error) {
	var names []string
	{
		in := &cloudwatch.ListMetricsInput{
			Namespace: aws.String(metricsNamespace),
			Dimensions: []cloudwatchtypes.DimensionFilter{
				{
					Name:  aws.String(groupDimension),
					Value: aws.String(name),
				},
			},
		}

		for {
			callStart := time.Now()
			out, err := a.cloudWatch.ListMetrics(ctx, in)
			a.metrics.ObserveCall("ListMetrics", callStart, err)
			if err != nil {
				return nil, maskAPIError(err, "listing metrics of auto scaling group %#q", name)
			}

			for _, m := range out.Metrics {
				names = append(names, aws.ToString(m.MetricName))
			}

			if aws.ToString(out.NextToken) == "" {
				break
			}
			in.NextToken = out.NextToken
		}
	}

	var summaries []MetricSummary
	for _, metricName := range lo.Uniq(names) {
		in := &cloudwatch.GetMetricStatisticsInput{
			Namespace:  aws.String(metricsNamespace),
			MetricName: aws.String(metricName),
			Dimensions: []cloudwatchtypes.Dimension{
				{
					Name:  aws.String(groupDimension),
					Value: aws.String(name),
				},
			},
			StartTime:  aws.Time(start.UTC()),
			EndTime:    aws.Time(end.UTC()),
			Period:     aws.Int32(metricsPeriod),
			Statistics: []cloudwatchtypes.Statistic{cloudwatchtypes.StatisticSum},
		}

		callStart := time.Now()
		out, err := a.cloudWatch.GetMetricStatistics(ctx, in)
		a.metrics.ObserveCall("GetMetricStatistics", callStart, err)
		if err != nil {
			return nil, maskAPIError(err, "getting statistics of metric %#q", metricName)
		}

		s := MetricSummary{Name: metricName}
		for _, d := range out.Datapoints {
			s.Sum += aws.ToFloat64(d.Sum)
		}
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})

	return summaries, nil
}

func toGroup(g autoscalingtypes.AutoScalingGroup) Group {
	group := Group{
		Name:              aws.ToString(g.AutoScalingGroupName),
		ARN:               aws.ToString(g.AutoScalingGroupARN),
		MinSize:           aws.ToInt32(g.MinSize),
		MaxSize:           aws.ToInt32(g.MaxSize),
		DesiredCapacity:   aws.ToInt32(g.DesiredCapacity),
		AvailabilityZones: g.AvailabilityZones,
		EnabledMetrics: lo.Map(g.EnabledMetrics, func(m autoscalingtypes.EnabledMetric, _ int) string {
			return aws.ToString(m.Metric)
		}),
	}

	if g.LaunchTemplate != nil {
		group.LaunchTemplateID = aws.ToString(g.LaunchTemplate.LaunchTemplateId)
		group.LaunchTemplateVersion = aws.ToString(g.LaunchTemplate.Version)
	}

	for _, i := range g.Instances {
		instance := Instance{
			ID:               aws.ToString(i.InstanceId),
			AvailabilityZone: aws.ToString(i.AvailabilityZone),
			LifecycleState:   string(i.LifecycleState),
			HealthStatus:     aws.ToString(i.HealthStatus),
		}
		if i.LaunchTemplate != nil {
			instance.LaunchTemplateVersion = aws.ToString(i.LaunchTemplate.Version)
		}
		group.Instances = append(group.Instances, instance)
	}

	return group
}
