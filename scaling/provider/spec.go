package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Interface interface {
	// AvailabilityZones returns the names of at most limit availability zones
	// of the configured region.
	AvailabilityZones(ctx context.Context, limit int) ([]string, error)
	// CreateLaunchTemplate creates a launch template and returns its ID.
	CreateLaunchTemplate(ctx context.Context, config LaunchTemplateConfig) (string, error)
	DeleteLaunchTemplate(ctx context.Context, id string) error

	// CreateGroup creates an auto scaling group using the latest version of
	// the given launch template.
	CreateGroup(ctx context.Context, config GroupConfig) error
	DeleteGroup(ctx context.Context, name string) error
	// Group returns the current state of the named group. A notFoundError is
	// returned when the group does not exist.
	Group(ctx context.Context, name string) (Group, error)
	// UpdateGroup applies the non nil bounds of c to the named group.
	UpdateGroup(ctx context.Context, name string, c Capacity) error

	TerminateInstance(ctx context.Context, id string) error

	EnableMetricsCollection(ctx context.Context, name string, metrics []string) error
	DisableMetricsCollection(ctx context.Context, name string) error
	// Activities returns the scaling activities of the named group, most
	// recent first.
	Activities(ctx context.Context, name string) ([]Activity, error)
	// GroupMetrics returns the sum of every metric collected for the named
	// group between start and end.
	GroupMetrics(ctx context.Context, name string, start, end time.Time) ([]MetricSummary, error)
}

type LaunchTemplateConfig struct {
	Name         string
	ImageID      string
	InstanceType string
}

type GroupConfig struct {
	Name              string
	LaunchTemplateID  string
	AvailabilityZones []string
	MinSize           int32
	MaxSize           int32
}

// Capacity describes a change of group bounds. Nil fields are left untouched.
type Capacity struct {
	MinSize         *int32
	MaxSize         *int32
	DesiredCapacity *int32
}

func (c Capacity) String() string {
	var parts []string
	if c.MinSize != nil {
		parts = append(parts, fmt.Sprintf("min size (%d)", *c.MinSize))
	}
	if c.MaxSize != nil {
		parts = append(parts, fmt.Sprintf("max size (%d)", *c.MaxSize))
	}
	if c.DesiredCapacity != nil {
		parts = append(parts, fmt.Sprintf("desired capacity (%d)", *c.DesiredCapacity))
	}

	if len(parts) == 0 {
		return "unchanged capacity"
	}

	return strings.Join(parts, ", ")
}

type Group struct {
	Name                  string
	ARN                   string
	MinSize               int32
	MaxSize               int32
	DesiredCapacity       int32
	AvailabilityZones     []string
	LaunchTemplateID      string
	LaunchTemplateVersion string
	Instances             []Instance
	EnabledMetrics        []string
}

type Instance struct {
	ID                    string
	AvailabilityZone      string
	LifecycleState        string
	HealthStatus          string
	LaunchTemplateVersion string
}

type Activity struct {
	ID          string
	StatusCode  string
	Description string
	Cause       string
	StartTime   time.Time
	EndTime     time.Time
}

type MetricSummary struct {
	Name string
	Sum  float64
}

// Int32 returns a pointer to v, for use in Capacity.
func Int32(v int32) *int32 {
	return &v
}
