package provider

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	autoscalingtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cloudwatchtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/giantswarm/micrologger/microloggertest"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/giantswarm/autoscaling-scenario/metrics"
)

type fakeAutoScaling struct {
	AutoScalingAPI

	createInput *autoscaling.CreateAutoScalingGroupInput
	updateInput *autoscaling.UpdateAutoScalingGroupInput
	enableInput *autoscaling.EnableMetricsCollectionInput
	groups      []autoscalingtypes.AutoScalingGroup
	activities  []autoscalingtypes.Activity

	// activityPages, when set, is served page by page instead of activities.
	activityPages [][]autoscalingtypes.Activity
	err           error
}

func (f *fakeAutoScaling) CreateAutoScalingGroup(ctx context.Context, params *autoscaling.CreateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.CreateAutoScalingGroupOutput, error) {
	f.createInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &autoscaling.CreateAutoScalingGroupOutput{}, nil
}

func (f *fakeAutoScaling) DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &autoscaling.DescribeAutoScalingGroupsOutput{AutoScalingGroups: f.groups}, nil
}

func (f *fakeAutoScaling) DescribeScalingActivities(ctx context.Context, params *autoscaling.DescribeScalingActivitiesInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeScalingActivitiesOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.activityPages == nil {
		return &autoscaling.DescribeScalingActivitiesOutput{Activities: f.activities}, nil
	}

	page := 0
	if params.NextToken != nil {
		page, _ = strconv.Atoi(*params.NextToken)
	}
	out := &autoscaling.DescribeScalingActivitiesOutput{Activities: f.activityPages[page]}
	if page+1 < len(f.activityPages) {
		out.NextToken = aws.String(strconv.Itoa(page + 1))
	}
	return out, nil
}

func (f *fakeAutoScaling) EnableMetricsCollection(ctx context.Context, params *autoscaling.EnableMetricsCollectionInput, optFns ...func(*autoscaling.Options)) (*autoscaling.EnableMetricsCollectionOutput, error) {
	f.enableInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &autoscaling.EnableMetricsCollectionOutput{}, nil
}

func (f *fakeAutoScaling) UpdateAutoScalingGroup(ctx context.Context, params *autoscaling.UpdateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error) {
	f.updateInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &autoscaling.UpdateAutoScalingGroupOutput{}, nil
}

type fakeEC2 struct {
	EC2API

	createInput    *ec2.CreateLaunchTemplateInput
	terminateInput *ec2.TerminateInstancesInput
	zones          []string
	err            error
}

func (f *fakeEC2) CreateLaunchTemplate(ctx context.Context, params *ec2.CreateLaunchTemplateInput, optFns ...func(*ec2.Options)) (*ec2.CreateLaunchTemplateOutput, error) {
	f.createInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &ec2.CreateLaunchTemplateOutput{
		LaunchTemplate: &ec2types.LaunchTemplate{
			LaunchTemplateId:   aws.String("lt-0123456789abcdef0"),
			LaunchTemplateName: params.LaunchTemplateName,
		},
	}, nil
}

func (f *fakeEC2) DescribeAvailabilityZones(ctx context.Context, params *ec2.DescribeAvailabilityZonesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeAvailabilityZonesOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := &ec2.DescribeAvailabilityZonesOutput{}
	for _, z := range f.zones {
		out.AvailabilityZones = append(out.AvailabilityZones, ec2types.AvailabilityZone{ZoneName: aws.String(z)})
	}
	return out, nil
}

func (f *fakeEC2) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.terminateInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &ec2.TerminateInstancesOutput{}, nil
}

type fakeCloudWatch struct {
	CloudWatchAPI

	pages      [][]string
	datapoints map[string][]float64
	listCalls  int
}

func (f *fakeCloudWatch) ListMetrics(ctx context.Context, params *cloudwatch.ListMetricsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.ListMetricsOutput, error) {
	page := f.pages[f.listCalls]
	f.listCalls++

	out := &cloudwatch.ListMetricsOutput{}
	for _, name := range page {
		out.Metrics = append(out.Metrics, cloudwatchtypes.Metric{MetricName: aws.String(name)})
	}
	if f.listCalls < len(f.pages) {
		out.NextToken = aws.String("next")
	}

	return out, nil
}

func (f *fakeCloudWatch) GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	out := &cloudwatch.GetMetricStatisticsOutput{}
	for _, v := range f.datapoints[aws.ToString(params.MetricName)] {
		out.Datapoints = append(out.Datapoints, cloudwatchtypes.Datapoint{Sum: aws.Float64(v)})
	}
	return out, nil
}

func newTestAWS(t *testing.T, a AutoScalingAPI, e EC2API, c CloudWatchAPI) *AWS {
	t.Helper()

	recorder, err := metrics.New(metrics.Config{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("error == %#v, want nil", err)
	}

	p, err := NewAWS(AWSConfig{
		AutoScaling: a,
		CloudWatch:  c,
		EC2:         e,
		Logger:      microloggertest.New(),
		Metrics:     recorder,
	})
	if err != nil {
		t.Fatalf("error == %#v, want nil", err)
	}

	return p
}

func Test_Provider_NewAWS(t *testing.T) {
	recorder, err := metrics.New(metrics.Config{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("error == %#v, want nil", err)
	}

	testCases := []struct {
		name         string
		config       AWSConfig
		errorMatcher func(error) bool
	}{
		{
			name:         "case 0: empty config",
			config:       AWSConfig{},
			errorMatcher: IsInvalidConfig,
		},
		{
			name: "case 1: missing metrics",
			config: AWSConfig{
				AutoScaling: &fakeAutoScaling{},
				CloudWatch:  &fakeCloudWatch{},
				EC2:         &fakeEC2{},
				Logger:      microloggertest.New(),
			},
			errorMatcher: IsInvalidConfig,
		},
		{
			name: "case 2: valid config",
			config: AWSConfig{
				AutoScaling: &fakeAutoScaling{},
				CloudWatch:  &fakeCloudWatch{},
				EC2:         &fakeEC2{},
				Logger:      microloggertest.New(),
				Metrics:     recorder,
			},
			errorMatcher: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewAWS(tc.config)

			switch {
			case err != nil && tc.errorMatcher == nil:
				t.Fatalf("error == %#v, want nil", err)
			case err == nil && tc.errorMatcher != nil:
				t.Fatalf("error == nil, want non-nil")
			case err != nil && !tc.errorMatcher(err):
				t.Fatalf("error == %#v, want matching", err)
			}
		})
	}
}

func Test_Provider_AvailabilityZones(t *testing.T) {
	testCases := []struct {
		name          string
		zones         []string
		limit         int
		expectedZones []string
		errorMatcher  func(error) bool
	}{
		{
			name:          "case 0: limit applied",
			zones:         []string{"eu-west-1a", "eu-west-1b", "eu-west-1c", "eu-west-1d"},
			limit:         3,
			expectedZones: []string{"eu-west-1a", "eu-west-1b", "eu-west-1c"},
		},
		{
			name:          "case 1: fewer zones than limit",
			zones:         []string{"eu-west-1a"},
			limit:         3,
			expectedZones: []string{"eu-west-1a"},
		},
		{
			name:          "case 2: no limit",
			zones:         []string{"eu-west-1a", "eu-west-1b"},
			limit:         0,
			expectedZones: []string{"eu-west-1a", "eu-west-1b"},
		},
		{
			name:         "case 3: no zones",
			zones:        nil,
			limit:        3,
			errorMatcher: IsNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestAWS(t, &fakeAutoScaling{}, &fakeEC2{zones: tc.zones}, &fakeCloudWatch{})

			zones, err := p.AvailabilityZones(context.Background(), tc.limit)

			switch {
			case err != nil && tc.errorMatcher == nil:
				t.Fatalf("error == %#v, want nil", err)
			case err == nil && tc.errorMatcher != nil:
				t.Fatalf("error == nil, want non-nil")
			case err != nil && !tc.errorMatcher(err):
				t.Fatalf("error == %#v, want matching", err)
			}

			if !cmp.Equal(zones, tc.expectedZones, cmpopts.EquateEmpty()) {
				t.Fatalf("\n\n%s\n", cmp.Diff(tc.expectedZones, zones, cmpopts.EquateEmpty()))
			}
		})
	}
}

func Test_Provider_CreateLaunchTemplate(t *testing.T) {
	testCases := []struct {
		name         string
		err          error
		expectedID   string
		errorMatcher func(error) bool
	}{
		{
			name:       "case 0: created",
			expectedID: "lt-0123456789abcdef0",
		},
		{
			name: "case 1: name already taken",
			err: &smithy.GenericAPIError{
				Code:    "InvalidLaunchTemplateName.AlreadyExistsException",
				Message: "Launch template name already in use.",
			},
			errorMatcher: IsAlreadyExists,
		},
		{
			name:         "case 2: unexpected failure",
			err:          errors.New("connection reset"),
			errorMatcher: IsExecutionFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := &fakeEC2{err: tc.err}
			p := newTestAWS(t, &fakeAutoScaling{}, e, &fakeCloudWatch{})

			id, err := p.CreateLaunchTemplate(context.Background(), LaunchTemplateConfig{
				Name:         "template",
				ImageID:      "ami-0ca285d4c2cda3300",
				InstanceType: "t1.micro",
			})

			switch {
			case err != nil && tc.errorMatcher == nil:
				t.Fatalf("error == %#v, want nil", err)
			case err == nil && tc.errorMatcher != nil:
				t.Fatalf("error == nil, want non-nil")
			case err != nil && !tc.errorMatcher(err):
				t.Fatalf("error == %#v, want matching", err)
			}

			if id != tc.expectedID {
				t.Fatalf("id == %#q, want %#q", id, tc.expectedID)
			}
			if aws.ToString(e.createInput.ClientToken) == "" {
				t.Fatalf("client token must not be empty")
			}
			if e.createInput.LaunchTemplateData.InstanceType != ec2types.InstanceTypeT1Micro {
				t.Fatalf("instance type == %#q, want %#q", e.createInput.LaunchTemplateData.InstanceType, ec2types.InstanceTypeT1Micro)
			}
		})
	}
}

func Test_Provider_CreateGroup(t *testing.T) {
	a := &fakeAutoScaling{}
	p := newTestAWS(t, a, &fakeEC2{}, &fakeCloudWatch{})

	err := p.CreateGroup(context.Background(), GroupConfig{
		Name:              "group",
		LaunchTemplateID:  "lt-0123456789abcdef0",
		AvailabilityZones: []string{"eu-west-1a", "eu-west-1b"},
		MinSize:           1,
		MaxSize:           1,
	})
	if err != nil {
		t.Fatalf("error == %#v, want nil", err)
	}

	if aws.ToString(a.createInput.LaunchTemplate.Version) != LatestVersion {
		t.Fatalf("version == %#q, want %#q", aws.ToString(a.createInput.LaunchTemplate.Version), LatestVersion)
	}
	if aws.ToInt32(a.createInput.MinSize) != 1 || aws.ToInt32(a.createInput.MaxSize) != 1 {
		t.Fatalf("bounds == [%d, %d], want [1, 1]", aws.ToInt32(a.createInput.MinSize), aws.ToInt32(a.createInput.MaxSize))
	}
}

func Test_Provider_Group(t *testing.T) {
	testCases := []struct {
		name          string
		groups        []autoscalingtypes.AutoScalingGroup
		err           error
		expectedGroup Group
		errorMatcher  func(error) bool
	}{
		{
			name: "case 0: group with instances",
			groups: []autoscalingtypes.AutoScalingGroup{
				{
					AutoScalingGroupName: aws.String("group"),
					AutoScalingGroupARN:  aws.String("arn"),
					MinSize:              aws.Int32(1),
					MaxSize:              aws.Int32(3),
					DesiredCapacity:      aws.Int32(2),
					AvailabilityZones:    []string{"eu-west-1a"},
					LaunchTemplate: &autoscalingtypes.LaunchTemplateSpecification{
						LaunchTemplateId: aws.String("lt-1"),
						Version:          aws.String("$Latest"),
					},
					Instances: []autoscalingtypes.Instance{
						{
							InstanceId:       aws.String("i-1"),
							AvailabilityZone: aws.String("eu-west-1a"),
							LifecycleState:   autoscalingtypes.LifecycleStateInService,
							HealthStatus:     aws.String("Healthy"),
							LaunchTemplate: &autoscalingtypes.LaunchTemplateSpecification{
								Version: aws.String("1"),
							},
						},
					},
					EnabledMetrics: []autoscalingtypes.EnabledMetric{
						{Metric: aws.String("GroupMinSize")},
					},
				},
			},
			expectedGroup: Group{
				Name:                  "group",
				ARN:                   "arn",
				MinSize:               1,
				MaxSize:               3,
				DesiredCapacity:       2,
				AvailabilityZones:     []string{"eu-west-1a"},
				LaunchTemplateID:      "lt-1",
				LaunchTemplateVersion: "$Latest",
				Instances: []Instance{
					{
						ID:                    "i-1",
						AvailabilityZone:      "eu-west-1a",
						LifecycleState:        "InService",
						HealthStatus:          "Healthy",
						LaunchTemplateVersion: "1",
					},
				},
				EnabledMetrics: []string{"GroupMinSize"},
			},
		},
		{
			name:         "case 1: group missing",
			groups:       nil,
			errorMatcher: IsNotFound,
		},
		{
			name: "case 2: describe failure",
			err: &smithy.GenericAPIError{
				Code:    "Throttling",
				Message: "Rate exceeded",
			},
			errorMatcher: IsExecutionFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestAWS(t, &fakeAutoScaling{groups: tc.groups, err: tc.err}, &fakeEC2{}, &fakeCloudWatch{})

			group, err := p.Group(context.Background(), "group")

			switch {
			case err != nil && tc.errorMatcher == nil:
				t.Fatalf("error == %#v, want nil", err)
			case err == nil && tc.errorMatcher != nil:
				t.Fatalf("error == nil, want non-nil")
			case err != nil && !tc.errorMatcher(err):
				t.Fatalf("error == %#v, want matching", err)
			}

			if !cmp.Equal(group, tc.expectedGroup, cmpopts.EquateEmpty()) {
				t.Fatalf("\n\n%s\n", cmp.Diff(tc.expectedGroup, group, cmpopts.EquateEmpty()))
			}
		})
	}
}

func Test_Provider_UpdateGroup(t *testing.T) {
	a := &fakeAutoScaling{}
	p := newTestAWS(t, a, &fakeEC2{}, &fakeCloudWatch{})

	err := p.UpdateGroup(context.Background(), "group", Capacity{DesiredCapacity: Int32(2)})
	if err != nil {
		t.Fatalf("error == %#v, want nil", err)
	}

	if a.updateInput.MinSize != nil || a.updateInput.MaxSize != nil {
		t.Fatalf("bounds must be left untouched")
	}
	if aws.ToInt32(a.updateInput.DesiredCapacity) != 2 {
		t.Fatalf("desired capacity == %d, want 2", aws.ToInt32(a.updateInput.DesiredCapacity))
	}

	a.err = &smithy.GenericAPIError{
		Code:    "ValidationError",
		Message: "AutoScalingGroup name not found - null",
	}
	err = p.UpdateGroup(context.Background(), "group", Capacity{MinSize: Int32(0)})
	if !IsNotFound(err) {
		t.Fatalf("error == %#v, want matching", err)
	}
}

func Test_Provider_EnableMetricsCollection(t *testing.T) {
	a := &fakeAutoScaling{}
	p := newTestAWS(t, a, &fakeEC2{}, &fakeCloudWatch{})

	err := p.EnableMetricsCollection(context.Background(), "group", []string{"GroupMinSize", "GroupMaxSize"})
	if err != nil {
		t.Fatalf("error == %#v, want nil", err)
	}

	if aws.ToString(a.enableInput.Granularity) != "1Minute" {
		t.Fatalf("granularity == %#q, want %#q", aws.ToString(a.enableInput.Granularity), "1Minute")
	}
	if diff := cmp.Diff([]string{"GroupMinSize", "GroupMaxSize"}, a.enableInput.Metrics); diff != "" {
		t.Fatalf("\n\n%s\n", diff)
	}
}

func Test_Provider_Activities(t *testing.T) {
	started := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	a := &fakeAutoScaling{
		activities: []autoscalingtypes.Activity{
			{
				ActivityId:  aws.String("a-1"),
				StatusCode:  autoscalingtypes.ScalingActivityStatusCodeSuccessful,
				Description: aws.String("Launching a new EC2 instance: i-1"),
				Cause:       aws.String("capacity change"),
				StartTime:   aws.Time(started),
			},
		},
	}
	p := newTestAWS(t, a, &fakeEC2{}, &fakeCloudWatch{})

	activities, err := p.Activities(context.Background(), "group")
	if err != nil {
		t.Fatalf("error == %#v, want nil", err)
	}

	expected := []Activity{
		{
			ID:          "a-1",
			StatusCode:  "Successful",
			Description: "Launching a new EC2 instance: i-1",
			Cause:       "capacity change",
			StartTime:   started,
		},
	}
	if diff := cmp.Diff(expected, activities); diff != "" {
		t.Fatalf("\n\n%s\n", diff)
	}
}

func Test_Provider_Activities_Pages(t *testing.T) {
	a := &fakeAutoScaling{
		activityPages: [][]autoscalingtypes.Activity{
			{{ActivityId: aws.String("a-3")}, {ActivityId: aws.String("a-2")}},
			{{ActivityId: aws.String("a-1")}},
		},
	}
	p := newTestAWS(t, a, &fakeEC2{}, &fakeCloudWatch{})

	activities, err := p.Activities(context.Background(), "group")
	if err != nil {
		t.Fatalf("error == %#v, want nil", err)
	}

	ids := make([]string, 0, len(activities))
	for _, v := range activities {
		ids = append(ids, v.ID)
	}
	if diff := cmp.Diff([]string{"a-3", "a-2", "a-1"}, ids); diff != "" {
		t.Fatalf("\n\n%s\n", diff)
	}
}

func Test_Provider_GroupMetrics(t *testing.T) {
	c := &fakeCloudWatch{
		pages: [][]string{
			{"GroupMinSize", "GroupTotalInstances"},
			{"GroupDesiredCapacity", "GroupMinSize"},
		},
		datapoints: map[string][]float64{
			"GroupTotalInstances":  {1, 2, 2},
			"GroupDesiredCapacity": {2},
		},
	}
	p := newTestAWS(t, &fakeAutoScaling{}, &fakeEC2{}, c)

	end := time.Now()
	summaries, err := p.GroupMetrics(context.Background(), "group", end.Add(-time.Hour), end)
	if err != nil {
		t.Fatalf("error == %#v, want nil", err)
	}

	expected := []MetricSummary{
		{Name: "GroupDesiredCapacity", Sum: 2},
		{Name: "GroupMinSize", Sum: 0},
		{Name: "GroupTotalInstances", Sum: 5},
	}
	if diff := cmp.Diff(expected, summaries); diff != "" {
		t.Fatalf("\n\n%s\n", diff)
	}
	if c.listCalls != 2 {
		t.Fatalf("list calls == %d, want 2", c.listCalls)
	}
}

func Test_Provider_TerminateInstance(t *testing.T) {
	e := &fakeEC2{}
	p := newTestAWS(t, &fakeAutoScaling{}, e, &fakeCloudWatch{})

	err := p.TerminateInstance(context.Background(), "i-1")
	if err != nil {
		t.Fatalf("error == %#v, want nil", err)
	}

	if diff := cmp.Diff([]string{"i-1"}, e.terminateInput.InstanceIds); diff != "" {
		t.Fatalf("\n\n%s\n", diff)
	}
}
