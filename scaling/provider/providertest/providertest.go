// Package providertest provides an in-memory implementation of
// provider.Interface. Groups converge towards their desired capacity by one
// instance each time they are fetched, which lets callers exercise their wait
// loops without a cloud account.
package providertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/giantswarm/microerror"

	"github.com/giantswarm/autoscaling-scenario/scaling/provider"
)

const (
	lifecycleInService   = "InService"
	lifecycleTerminating = "Terminating"
)

var _ provider.Interface = (*Provider)(nil)

type Config struct {
	// Errors maps operation names, e.g. "CreateGroup", to the error the
	// operation returns.
	Errors map[string]error
	// Metrics is returned by GroupMetrics.
	Metrics []provider.MetricSummary
	// Zones defaults to four zones of us-east-1.
	Zones []string
}

type Provider struct {
	mu sync.Mutex

	errors  map[string]error
	metrics []provider.MetricSummary
	zones   []string

	calls      []string
	groups     map[string]*provider.Group
	activities map[string][]provider.Activity
	templates  map[string]provider.LaunchTemplateConfig
	nextID     int
}

func New(config Config) *Provider {
	zones := config.Zones
	if zones == nil {
		zones = []string{"us-east-1a", "us-east-1b", "us-east-1c", "us-east-1d"}
	}

	p := &Provider{
		errors:  config.Errors,
		metrics: config.Metrics,
		zones:   zones,

		groups:     map[string]*provider.Group{},
		activities: map[string][]provider.Activity{},
		templates:  map[string]provider.LaunchTemplateConfig{},
	}

	return p
}

// Calls returns the names of the operations invoked so far, in order.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.calls...)
}

// HasGroup reports whether the named group exists.
func (p *Provider) HasGroup(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.groups[name]
	return ok
}

// HasLaunchTemplate reports whether a launch template with the given ID
// exists.
func (p *Provider) HasLaunchTemplate(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.templates[id]
	return ok
}

// LaunchTemplateCount returns the number of existing launch templates.
func (p *Provider) LaunchTemplateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.templates)
}

// SetError makes operation return err from now on. A nil err clears it.
func (p *Provider) SetError(operation string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.errors == nil {
		p.errors = map[string]error{}
	}
	if err == nil {
		delete(p.errors, operation)
		return
	}
	p.errors[operation] = err
}

func (p *Provider) AvailabilityZones(ctx context.Context, limit int) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.call("AvailabilityZones"); err != nil {
		return nil, err
	}

	zones := append([]string(nil), p.zones...)
	if limit > 0 && len(zones) > limit {
		zones = zones[:limit]
	}

	return zones, nil
}

func (p *Provider) CreateLaunchTemplate(ctx context.Context, config provider.LaunchTemplateConfig) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.call("CreateLaunchTemplate"); err != nil {
		return "", err
	}

	for _, t := range p.templates {
		if t.Name == config.Name {
			return "", microerror.Maskf(alreadyExistsError, "launch template %#q", config.Name)
		}
	}

	p.nextID++
	id := fmt.Sprintf("lt-%017d", p.nextID)
	p.templates[id] = config

	return id, nil
}

func (p *Provider) DeleteLaunchTemplate(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.call("DeleteLaunchTemplate"); err != nil {
		return err
	}

	if _, ok := p.templates[id]; !ok {
		return microerror.Maskf(notFoundError, "launch template %#q", id)
	}
	delete(p.templates, id)

	return nil
}

func (p *Provider) CreateGroup(ctx context.Context, config provider.GroupConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.call("CreateGroup"); err != nil {
		return err
	}

	if _, ok := p.groups[config.Name]; ok {
		return microerror.Maskf(alreadyExistsError, "auto scaling group %#q", config.Name)
	}
	if _, ok := p.templates[config.LaunchTemplateID]; !ok {
		return microerror.Maskf(notFoundError, "launch template %#q", config.LaunchTemplateID)
	}
	if config.MinSize > config.MaxSize {
		return microerror.Maskf(invalidCapacityError, "min size %d exceeds max size %d", config.MinSize, config.MaxSize)
	}

	p.groups[config.Name] = &provider.Group{
		Name:                  config.Name,
		ARN:                   fmt.Sprintf("arn:aws:autoscaling:us-east-1:123456789012:autoScalingGroup:%s", config.Name),
		MinSize:               config.MinSize,
		MaxSize:               config.MaxSize,
		DesiredCapacity:       config.MinSize,
		AvailabilityZones:     append([]string(nil), config.AvailabilityZones...),
		LaunchTemplateID:      config.LaunchTemplateID,
		LaunchTemplateVersion: provider.LatestVersion,
	}

	return nil
}

func (p *Provider) DeleteGroup(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.call("DeleteGroup"); err != nil {
		return err
	}

	g, ok := p.groups[name]
	if !ok {
		return microerror.Maskf(notFoundError, "auto scaling group %#q", name)
	}
	if len(g.Instances) > 0 {
		return microerror.Maskf(resourceInUseError, "auto scaling group %#q still has %d instances", name, len(g.Instances))
	}
	delete(p.groups, name)
	delete(p.activities, name)

	return nil
}

func (p *Provider) Group(ctx context.Context, name string) (provider.Group, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.call("Group"); err != nil {
		return provider.Group{}, err
	}

	g, ok := p.groups[name]
	if !ok {
		return provider.Group{}, microerror.Maskf(notFoundError, "auto scaling group %#q", name)
	}

	p.converge(g)

	return copyGroup(*g), nil
}

func (p *Provider) UpdateGroup(ctx context.Context, name string, c provider.Capacity) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.call("UpdateGroup"); err != nil {
		return err
	}

	g, ok := p.groups[name]
	if !ok {
		return microerror.Maskf(notFoundError, "auto scaling group %#q", name)
	}

	minSize, maxSize, desired := g.MinSize, g.MaxSize, g.DesiredCapacity
	if c.MinSize != nil {
		minSize = *c.MinSize
	}
	if c.MaxSize != nil {
		maxSize = *c.MaxSize
	}
	if c.DesiredCapacity != nil {
		desired = *c.DesiredCapacity
	}

	if minSize > maxSize {
		return microerror.Maskf(invalidCapacityError, "min size %d exceeds max size %d", minSize, maxSize)
	}
	if c.DesiredCapacity != nil && (desired < minSize || desired > maxSize) {
		return microerror.Maskf(invalidCapacityError, "desired capacity %d outside of [%d, %d]", desired, minSize, maxSize)
	}
	if desired < minSize {
		desired = minSize
	}
	if desired > maxSize {
		desired = maxSize
	}

	g.MinSize, g.MaxSize, g.DesiredCapacity = minSize, maxSize, desired

	return nil
}

func (p *Provider) TerminateInstance(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.call("TerminateInstance"); err != nil {
		return err
	}

	for _, g := range p.groups {
		for i := range g.Instances {
			if g.Instances[i].ID == id {
				g.Instances[i].LifecycleState = lifecycleTerminating
				return nil
			}
		}
	}

	return microerror.Maskf(notFoundError, "instance %#q", id)
}

func (p *Provider) EnableMetricsCollection(ctx context.Context, name string, metrics []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.call("EnableMetricsCollection"); err != nil {
		return err
	}

	g, ok := p.groups[name]
	if !ok {
		return microerror.Maskf(notFoundError, "auto scaling group %#q", name)
	}
	g.EnabledMetrics = append([]string(nil), metrics...)

	return nil
}

func (p *Provider) DisableMetricsCollection(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.call("DisableMetricsCollection"); err != nil {
		return err
	}

	g, ok := p.groups[name]
	if !ok {
		return microerror.Maskf(notFoundError, "auto scaling group %#q", name)
	}
	g.EnabledMetrics = nil

	return nil
}

func (p *Provider) Activities(ctx context.Context, name string) ([]provider.Activity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.call("Activities"); err != nil {
		return nil, err
	}

	if _, ok := p.groups[name]; !ok {
		return nil, microerror.Maskf(notFoundError, "auto scaling group %#q", name)
	}

	// Most recent first.
	recorded := p.activities[name]
	activities := make([]provider.Activity, 0, len(recorded))
	for i := len(recorded) - 1; i >= 0; i-- {
		activities = append(activities, recorded[i])
	}

	return activities, nil
}

func (p *Provider) GroupMetrics(ctx context.Context, name string, start, end time.Time) ([]provider.MetricSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.call("GroupMetrics"); err != nil {
		return nil, err
	}

	if _, ok := p.groups[name]; !ok {
		return nil, microerror.Maskf(notFoundError, "auto scaling group %#q", name)
	}

	return append([]provider.MetricSummary(nil), p.metrics...), nil
}

// call records operation and returns its configured error. p.mu must be held.
func (p *Provider) call(operation string) error {
	p.calls = append(p.calls, operation)

	return p.errors[operation]
}

// converge moves g one step towards its desired capacity. Terminating
// instances leave the group first. p.mu must be held.
func (p *Provider) converge(g *provider.Group) {
	var kept []provider.Instance
	for _, i := range g.Instances {
		if i.LifecycleState == lifecycleTerminating {
			p.record(g.Name, fmt.Sprintf("Terminating EC2 instance: %s", i.ID))
			continue
		}
		kept = append(kept, i)
	}
	if len(kept) != len(g.Instances) {
		g.Instances = kept
		return
	}

	switch n := int32(len(g.Instances)); {
	case n < g.DesiredCapacity:
		p.nextID++
		i := provider.Instance{
			ID:                    fmt.Sprintf("i-%017d", p.nextID),
			AvailabilityZone:      p.zoneFor(g, int(n)),
			LifecycleState:        lifecycleInService,
			HealthStatus:          "Healthy",
			LaunchTemplateVersion: "1",
		}
		g.Instances = append(g.Instances, i)
		p.record(g.Name, fmt.Sprintf("Launching a new EC2 instance: %s", i.ID))
	case n > g.DesiredCapacity:
		last := g.Instances[n-1]
		g.Instances = g.Instances[:n-1]
		p.record(g.Name, fmt.Sprintf("Terminating EC2 instance: %s", last.ID))
	}
}

func (p *Provider) record(group, description string) {
	p.nextID++
	p.activities[group] = append(p.activities[group], provider.Activity{
		ID:          fmt.Sprintf("activity-%d", p.nextID),
		StatusCode:  "Successful",
		Description: description,
	})
}

func (p *Provider) zoneFor(g *provider.Group, n int) string {
	zones := g.AvailabilityZones
	if len(zones) == 0 {
		zones = p.zones
	}
	if len(zones) == 0 {
		return ""
	}

	return zones[n%len(zones)]
}

func copyGroup(g provider.Group) provider.Group {
	g.AvailabilityZones = append([]string(nil), g.AvailabilityZones...)
	g.Instances = append([]provider.Instance(nil), g.Instances...)
	g.EnabledMetrics = append([]string(nil), g.EnabledMetrics...)

	return g
}
