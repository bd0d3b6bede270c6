package scaling

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/giantswarm/backoff"
	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/autoscaling-scenario/display"
	"github.com/giantswarm/autoscaling-scenario/scaling/provider"
)

// PollRecorder counts the group fetches issued while waiting. It is
// implemented by *metrics.Recorder.
type PollRecorder interface {
	PollAttempt()
}

type Config struct {
	Logger   micrologger.Logger
	Metrics  PollRecorder
	Output   io.Writer
	Provider provider.Interface

	DesiredCapacity int32
	EnabledMetrics  []string
	GroupName       string
	LaunchTemplate  provider.LaunchTemplateConfig
	// LaunchTemplateID refers to the launch template of a group created by an
	// earlier run. It is set by Prepare otherwise.
	LaunchTemplateID string
	MaxSize          int32
	MaxWait          time.Duration
	MetricsWindow    time.Duration
	PollInterval     time.Duration
	Zones            int
}

type Scaling struct {
	logger   micrologger.Logger
	metrics  PollRecorder
	output   io.Writer
	provider provider.Interface

	desiredCapacity  int32
	enabledMetrics   []string
	groupName        string
	launchTemplate   provider.LaunchTemplateConfig
	launchTemplateID string
	maxSize          int32
	maxWait          time.Duration
	metricsWindow    time.Duration
	pollInterval     time.Duration
	zones            int
}

func New(config Config) (*Scaling, error) {
	if config.Logger == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Logger must not be empty", config)
	}
	if config.Metrics == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Metrics must not be empty", config)
	}
	if config.Output == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Output must not be empty", config)
	}
	if config.Provider == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Provider must not be empty", config)
	}

	if config.GroupName == "" {
		return nil, microerror.Maskf(invalidConfigError, "%T.GroupName must not be empty", config)
	}
	if config.LaunchTemplate.Name == "" {
		return nil, microerror.Maskf(invalidConfigError, "%T.LaunchTemplate.Name must not be empty", config)
	}
	if config.LaunchTemplate.ImageID == "" {
		return nil, microerror.Maskf(invalidConfigError, "%T.LaunchTemplate.ImageID must not be empty", config)
	}
	if config.LaunchTemplate.InstanceType == "" {
		return nil, microerror.Maskf(invalidConfigError, "%T.LaunchTemplate.InstanceType must not be empty", config)
	}
	if config.MaxSize < 1 {
		return nil, microerror.Maskf(invalidConfigError, "%T.MaxSize must be at least 1", config)
	}
	if config.DesiredCapacity < 1 || config.DesiredCapacity > config.MaxSize {
		return nil, microerror.Maskf(invalidConfigError, "%T.DesiredCapacity must be between 1 and %T.MaxSize", config, config)
	}
	if config.MaxWait <= 0 {
		return nil, microerror.Maskf(invalidConfigError, "%T.MaxWait must be positive", config)
	}
	if config.MetricsWindow <= 0 {
		return nil, microerror.Maskf(invalidConfigError, "%T.MetricsWindow must be positive", config)
	}
	if config.PollInterval <= 0 {
		return nil, microerror.Maskf(invalidConfigError, "%T.PollInterval must be positive", config)
	}
	if config.Zones < 1 {
		return nil, microerror.Maskf(invalidConfigError, "%T.Zones must be at least 1", config)
	}

	s := &Scaling{
		logger:   config.Logger,
		metrics:  config.Metrics,
		output:   config.Output,
		provider: config.Provider,

		desiredCapacity:  config.DesiredCapacity,
		enabledMetrics:   config.EnabledMetrics,
		groupName:        config.GroupName,
		launchTemplate:   config.LaunchTemplate,
		launchTemplateID: config.LaunchTemplateID,
		maxSize:          config.MaxSize,
		maxWait:          config.MaxWait,
		metricsWindow:    config.MetricsWindow,
		pollInterval:     config.PollInterval,
		zones:            config.Zones,
	}

	return s, nil
}

func (s *Scaling) String() string {
	return fmt.Sprintf("\tLaunch Template ID: %s\n\tScaling Group Name: %s\n", s.launchTemplateID, s.groupName)
}

func (s *Scaling) GroupName() string {
	return s.groupName
}

func (s *Scaling) LaunchTemplateID() string {
	return s.launchTemplateID
}

func (s *Scaling) Test(ctx context.Context) error {
	{
		s.logger.LogCtx(ctx, "level", "debug", "message", "preparing scenario")

		err := s.Prepare(ctx)
		if err != nil {
			return microerror.Mask(err)
		}

		s.logger.LogCtx(ctx, "level", "debug", "message", "prepared scenario")

		fmt.Fprint(s.output, s)
	}

	err := s.run(ctx)
	if err != nil {
		s.recover(context.WithoutCancel(ctx))
		return microerror.Mask(err)
	}

	{
		s.logger.LogCtx(ctx, "level", "debug", "message", "cleaning up scenario")

		err := s.Clean(ctx)
		if err != nil {
			return microerror.Mask(err)
		}

		s.logger.LogCtx(ctx, "level", "debug", "message", "cleaned up scenario")
	}

	return nil
}

// Prepare creates the launch template and a group of exactly one instance
// using it. When the group cannot be created the launch template is deleted
// again.
func (s *Scaling) Prepare(ctx context.Context) error {
	zones, err := s.provider.AvailabilityZones(ctx, s.zones)
	if err != nil {
		return microerror.Mask(err)
	}

	id, err := s.provider.CreateLaunchTemplate(ctx, s.launchTemplate)
	if err != nil {
		return microerror.Mask(err)
	}

	c := provider.GroupConfig{
		Name:              s.groupName,
		LaunchTemplateID:  id,
		AvailabilityZones: zones,
		MinSize:           1,
		MaxSize:           1,
	}
	err = s.provider.CreateGroup(ctx, c)
	if err != nil {
		// The launch template must not outlive a cancelled run.
		cleanupErr := s.provider.DeleteLaunchTemplate(context.WithoutCancel(ctx), id)
		if cleanupErr != nil {
			return microerror.Maskf(executionFailedError, "creating auto scaling group %#q: %s; cleaning up launch template %#q: %s", s.groupName, err, id, cleanupErr)
		}

		return microerror.Maskf(executionFailedError, "creating auto scaling group %#q: %s", s.groupName, err)
	}

	s.launchTemplateID = id

	return nil
}

// LoadLaunchTemplateID looks up the launch template of an existing group when
// it was not configured, so a group created by an earlier run can be cleaned
// up.
func (s *Scaling) LoadLaunchTemplateID(ctx context.Context) error {
	if s.launchTemplateID != "" {
		return nil
	}

	group, err := s.provider.Group(ctx, s.groupName)
	if err != nil {
		return microerror.Mask(err)
	}
	if group.LaunchTemplateID == "" {
		return microerror.Maskf(notPreparedError, "auto scaling group %#q has no launch template", s.groupName)
	}

	s.launchTemplateID = group.LaunchTemplateID

	return nil
}

// Clean deletes the group and the launch template. Both deletions are
// attempted even if the first one fails.
func (s *Scaling) Clean(ctx context.Context) error {
	groupErr := s.provider.DeleteGroup(ctx, s.groupName)

	var templateErr error
	if s.launchTemplateID == "" {
		templateErr = microerror.Maskf(notPreparedError, "launch template ID unknown")
	} else {
		templateErr = s.provider.DeleteLaunchTemplate(ctx, s.launchTemplateID)
	}

	if groupErr != nil || templateErr != nil {
		return microerror.Maskf(executionFailedError, "cleaning up scenario: scaling group %#q: %s; launch template %#q: %s", s.groupName, outcome(groupErr), s.launchTemplateID, outcome(templateErr))
	}

	return nil
}

// Describe fetches the group and its scaling activities.
func (s *Scaling) Describe(ctx context.Context) (Description, error) {
	var d Description

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		group, err := s.provider.Group(gctx, s.groupName)
		if err != nil {
			return microerror.Mask(err)
		}
		d.Group = group
		return nil
	})
	g.Go(func() error {
		activities, err := s.provider.Activities(gctx, s.groupName)
		if err != nil {
			return microerror.Mask(err)
		}
		d.Activities = activities
		return nil
	})

	err := g.Wait()
	if err != nil {
		return Description{}, microerror.Mask(err)
	}

	return d, nil
}

func (s *Scaling) Instances(ctx context.Context) ([]provider.Instance, error) {
	group, err := s.provider.Group(ctx, s.groupName)
	if err != nil {
		return nil, microerror.Mask(err)
	}

	return group.Instances, nil
}

// WaitForStable polls the group at a fixed interval until it holds exactly
// size instances.
func (s *Scaling) WaitForStable(ctx context.Context, size int) error {
	s.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("waiting for %d instances in group %#q", size, s.groupName))

	err := s.waitFor(ctx, func(group provider.Group) error {
		if len(group.Instances) != size {
			return microerror.Maskf(waitError, "want %d instances found %d", size, len(group.Instances))
		}

		return nil
	})
	if err != nil {
		return microerror.Mask(err)
	}

	s.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("found %d instances in group %#q", size, s.groupName))

	return nil
}

// WaitForReplacement polls the group until instance id left it and the group
// holds exactly size instances again.
func (s *Scaling) WaitForReplacement(ctx context.Context, id string, size int) error {
	s.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("waiting for instance %#q to be replaced", id))

	err := s.waitFor(ctx, func(group provider.Group) error {
		ids := lo.Map(group.Instances, func(i provider.Instance, _ int) string { return i.ID })
		if lo.Contains(ids, id) {
			return microerror.Maskf(waitError, "instance %#q still in group", id)
		}
		if len(ids) != size {
			return microerror.Maskf(waitError, "want %d instances found %d", size, len(ids))
		}

		return nil
	})
	if err != nil {
		return microerror.Mask(err)
	}

	s.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("instance %#q replaced", id))

	return nil
}

func (s *Scaling) ScaleMinSize(ctx context.Context, size int32) error {
	err := s.provider.UpdateGroup(ctx, s.groupName, provider.Capacity{MinSize: provider.Int32(size)})
	if err != nil {
		return microerror.Mask(err)
	}

	return nil
}

func (s *Scaling) ScaleMaxSize(ctx context.Context, size int32) error {
	err := s.provider.UpdateGroup(ctx, s.groupName, provider.Capacity{MaxSize: provider.Int32(size)})
	if err != nil {
		return microerror.Mask(err)
	}

	return nil
}

func (s *Scaling) ScaleDesiredCapacity(ctx context.Context, capacity int32) error {
	err := s.provider.UpdateGroup(ctx, s.groupName, provider.Capacity{DesiredCapacity: provider.Int32(capacity)})
	if err != nil {
		return microerror.Mask(err)
	}

	return nil
}

// ScaleToZero drops the group's min size and desired capacity to zero and
// waits for every instance to be gone, which is required before the group
// can be deleted.
func (s *Scaling) ScaleToZero(ctx context.Context) error {
	c := provider.Capacity{
		MinSize:         provider.Int32(0),
		DesiredCapacity: provider.Int32(0),
	}
	err := s.provider.UpdateGroup(ctx, s.groupName, c)
	if err != nil {
		return microerror.Maskf(executionFailedError, "updating group for scaling down: %s", err)
	}

	err = s.WaitForStable(ctx, 0)
	if err != nil {
		return microerror.Maskf(executionFailedError, "waiting for group to be stable on scale down: %s", err)
	}

	return nil
}

// TerminateSomeInstance terminates the first instance of the group and returns
// its ID.
func (s *Scaling) TerminateSomeInstance(ctx context.Context) (string, error) {
	instances, err := s.Instances(ctx)
	if err != nil {
		return "", microerror.Maskf(executionFailedError, "getting auto scaling group instances: %s", err)
	}
	if len(instances) == 0 {
		return "", microerror.Maskf(noInstancesError, "there was no instance to terminate")
	}

	id := instances[0].ID
	err = s.provider.TerminateInstance(ctx, id)
	if err != nil {
		return "", microerror.Mask(err)
	}

	return id, nil
}

func (s *Scaling) EnableMetrics(ctx context.Context) error {
	err := s.provider.EnableMetricsCollection(ctx, s.groupName, s.enabledMetrics)
	if err != nil {
		return microerror.Mask(err)
	}

	return nil
}

func (s *Scaling) DisableMetrics(ctx context.Context) error {
	err := s.provider.DisableMetricsCollection(ctx, s.groupName)
	if err != nil {
		return microerror.Mask(err)
	}

	return nil
}

// Metrics sums the group metrics collected over the configured window.
func (s *Scaling) Metrics(ctx context.Context) ([]provider.MetricSummary, error) {
	end := time.Now()

	summaries, err := s.provider.GroupMetrics(ctx, s.groupName, end.Add(-s.metricsWindow), end)
	if err != nil {
		return nil, microerror.Mask(err)
	}

	return summaries, nil
}

func (s *Scaling) run(ctx context.Context) error {
	{
		s.logger.LogCtx(ctx, "level", "debug", "message", "enabling metrics collection")

		err := s.EnableMetrics(ctx)
		if err != nil {
			return microerror.Mask(err)
		}

		s.logger.LogCtx(ctx, "level", "debug", "message", "enabled metrics collection")
	}

	{
		err := s.WaitForStable(ctx, 1)
		if err != nil {
			return microerror.Mask(err)
		}

		err = s.describe(ctx)
		if err != nil {
			return microerror.Mask(err)
		}
	}

	{
		s.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("raising max size to %d", s.maxSize))

		err := s.ScaleMaxSize(ctx, s.maxSize)
		if err != nil {
			return microerror.Mask(err)
		}

		s.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("raised max size to %d", s.maxSize))
	}

	{
		s.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("raising desired capacity to %d", s.desiredCapacity))

		err := s.ScaleDesiredCapacity(ctx, s.desiredCapacity)
		if err != nil {
			return microerror.Mask(err)
		}

		err = s.WaitForStable(ctx, int(s.desiredCapacity))
		if err != nil {
			return microerror.Mask(err)
		}

		s.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("raised desired capacity to %d", s.desiredCapacity))

		err = s.describe(ctx)
		if err != nil {
			return microerror.Mask(err)
		}
	}

	{
		s.logger.LogCtx(ctx, "level", "debug", "message", "terminating an instance")

		id, err := s.TerminateSomeInstance(ctx)
		if err != nil {
			return microerror.Mask(err)
		}

		err = s.WaitForReplacement(ctx, id, int(s.desiredCapacity))
		if err != nil {
			return microerror.Mask(err)
		}

		s.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("terminated instance %#q", id))

		err = s.describe(ctx)
		if err != nil {
			return microerror.Mask(err)
		}
	}

	{
		summaries, err := s.Metrics(ctx)
		if err != nil {
			return microerror.Mask(err)
		}

		err = display.Metrics(s.output, summaries)
		if err != nil {
			return microerror.Mask(err)
		}
	}

	{
		s.logger.LogCtx(ctx, "level", "debug", "message", "disabling metrics collection")

		err := s.DisableMetrics(ctx)
		if err != nil {
			return microerror.Mask(err)
		}

		s.logger.LogCtx(ctx, "level", "debug", "message", "disabled metrics collection")
	}

	{
		s.logger.LogCtx(ctx, "level", "debug", "message", "scaling group to zero")

		err := s.ScaleToZero(ctx)
		if err != nil {
			return microerror.Mask(err)
		}

		s.logger.LogCtx(ctx, "level", "debug", "message", "scaled group to zero")
	}

	return nil
}

func (s *Scaling) describe(ctx context.Context) error {
	d, err := s.Describe(ctx)
	if err != nil {
		return microerror.Mask(err)
	}

	err = display.Group(s.output, d.Group)
	if err != nil {
		return microerror.Mask(err)
	}
	fmt.Fprint(s.output, d)
	err = display.Activities(s.output, d.Activities)
	if err != nil {
		return microerror.Mask(err)
	}

	return nil
}

// recover tears down whatever a failed run left behind. Failures are logged
// only, the run's own error is what the caller gets.
func (s *Scaling) recover(ctx context.Context) {
	s.logger.LogCtx(ctx, "level", "debug", "message", "cleaning up after failed scenario")

	err := s.ScaleToZero(ctx)
	if err != nil {
		s.logger.LogCtx(ctx, "level", "error", "message", fmt.Sprintf("scaling group %#q to zero failed", s.groupName), "stack", fmt.Sprintf("%#v", err))
	}

	err = s.Clean(ctx)
	if err != nil {
		s.logger.LogCtx(ctx, "level", "error", "message", "cleaning up scenario failed", "stack", fmt.Sprintf("%#v", err))
		return
	}

	s.logger.LogCtx(ctx, "level", "debug", "message", "cleaned up after failed scenario")
}

func (s *Scaling) waitFor(ctx context.Context, condition func(provider.Group) error) error {
	o := func() error {
		err := ctx.Err()
		if err != nil {
			return backoff.Permanent(microerror.Mask(err))
		}

		s.metrics.PollAttempt()

		group, err := s.provider.Group(ctx, s.groupName)
		if err != nil {
			return backoff.Permanent(microerror.Mask(err))
		}

		return condition(group)
	}

	b := backoff.NewConstant(s.maxWait, s.pollInterval)
	n := func(err error, delay time.Duration) {
		s.logger.LogCtx(ctx, "level", "debug", "message", err.Error())
	}

	err := backoff.RetryNotify(o, b, n)
	if err != nil {
		return microerror.Mask(err)
	}

	return nil
}

func outcome(err error) string {
	if err != nil {
		return err.Error()
	}

	return "deleted"
}
