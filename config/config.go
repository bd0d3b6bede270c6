package config

import (
	"os"
	"time"

	"github.com/giantswarm/microerror"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"

	"github.com/giantswarm/autoscaling-scenario/scaling"
)

const (
	DefaultMaxWait       = 10 * time.Minute
	DefaultMetricsWindow = time.Hour
	DefaultPollInterval  = time.Second
)

// Config is the scenario configuration as read from a YAML file. Fields left
// out of the file keep their defaults.
type Config struct {
	AWS            AWS            `yaml:"aws"`
	Group          Group          `yaml:"group"`
	LaunchTemplate LaunchTemplate `yaml:"launchTemplate"`
	Metrics        Metrics        `yaml:"metrics"`
	Wait           Wait           `yaml:"wait"`
}

type AWS struct {
	Profile string `yaml:"profile"`
	Region  string `yaml:"region"`
}

type Group struct {
	DesiredCapacity int32    `yaml:"desiredCapacity"`
	EnabledMetrics  []string `yaml:"enabledMetrics"`
	MaxSize         int32    `yaml:"maxSize"`
	Name            string   `yaml:"name"`
	Zones           int      `yaml:"zones"`
}

type LaunchTemplate struct {
	ImageID      string `yaml:"imageID"`
	InstanceType string `yaml:"instanceType"`
	Name         string `yaml:"name"`
}

type Metrics struct {
	// Address is where the prometheus endpoint listens. The endpoint is not
	// served when empty.
	Address string        `yaml:"address"`
	Window  time.Duration `yaml:"window"`
}

type Wait struct {
	Interval time.Duration `yaml:"interval"`
	MaxWait  time.Duration `yaml:"maxWait"`
}

func Default() Config {
	return Config{
		Group: Group{
			DesiredCapacity: scaling.DefaultDesiredCapacity,
			EnabledMetrics:  append([]string(nil), scaling.DefaultEnabledMetrics...),
			MaxSize:         scaling.DefaultMaxSize,
			Name:            scaling.DefaultGroupName,
			Zones:           scaling.DefaultZones,
		},
		LaunchTemplate: LaunchTemplate{
			ImageID:      scaling.DefaultImageID,
			InstanceType: scaling.DefaultInstanceType,
			Name:         scaling.DefaultLaunchTemplateName,
		},
		Metrics: Metrics{
			Window: DefaultMetricsWindow,
		},
		Wait: Wait{
			Interval: DefaultPollInterval,
			MaxWait:  DefaultMaxWait,
		},
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path
// yields the defaults. Unknown keys are rejected.
func Load(fs afero.Fs, path string) (Config, error) {
	c := Default()

	if path == "" {
		return c, nil
	}

	b, err := afero.ReadFile(fs, path)
	if os.IsNotExist(err) {
		return Config{}, microerror.Maskf(notFoundError, "config file %#q", path)
	} else if err != nil {
		return Config{}, microerror.Mask(err)
	}

	err = yaml.UnmarshalStrict(b, &c)
	if err != nil {
		return Config{}, microerror.Maskf(invalidConfigError, "parsing config file %#q: %s", path, err)
	}

	return c, nil
}

func (c Config) Validate() error {
	if c.Group.Name == "" {
		return microerror.Maskf(invalidConfigError, "group.name must not be empty")
	}
	if c.Group.Zones < 1 {
		return microerror.Maskf(invalidConfigError, "group.zones must be at least 1")
	}
	if c.Group.MaxSize < 1 {
		return microerror.Maskf(invalidConfigError, "group.maxSize must be at least 1")
	}
	if c.Group.DesiredCapacity < 1 || c.Group.DesiredCapacity > c.Group.MaxSize {
		return microerror.Maskf(invalidConfigError, "group.desiredCapacity must be between 1 and group.maxSize (%d)", c.Group.MaxSize)
	}

	if c.LaunchTemplate.Name == "" {
		return microerror.Maskf(invalidConfigError, "launchTemplate.name must not be empty")
	}
	if c.LaunchTemplate.ImageID == "" {
		return microerror.Maskf(invalidConfigError, "launchTemplate.imageID must not be empty")
	}
	if c.LaunchTemplate.InstanceType == "" {
		return microerror.Maskf(invalidConfigError, "launchTemplate.instanceType must not be empty")
	}

	if c.Metrics.Window <= 0 {
		return microerror.Maskf(invalidConfigError, "metrics.window must be positive")
	}

	if c.Wait.Interval <= 0 {
		return microerror.Maskf(invalidConfigError, "wait.interval must be positive")
	}
	if c.Wait.MaxWait < c.Wait.Interval {
		return microerror.Maskf(invalidConfigError, "wait.maxWait must not be shorter than wait.interval")
	}

	return nil
}
