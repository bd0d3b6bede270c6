package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/giantswarm/autoscaling-scenario/scaling"
)

func Test_Config_Load(t *testing.T) {
	testCases := []struct {
		name           string
		path           string
		content        string
		expectedConfig func() Config
		errorMatcher   func(error) bool
	}{
		{
			name:           "case 0: empty path yields defaults",
			path:           "",
			expectedConfig: Default,
			errorMatcher:   nil,
		},
		{
			name: "case 1: partial file overrides defaults",
			path: "/etc/scenario.yaml",
			content: `
aws:
  region: eu-central-1
group:
  name: my-group
  maxSize: 5
  desiredCapacity: 4
wait:
  interval: 2s
  maxWait: 5m
`,
			expectedConfig: func() Config {
				c := Default()
				c.AWS.Region = "eu-central-1"
				c.Group.Name = "my-group"
				c.Group.MaxSize = 5
				c.Group.DesiredCapacity = 4
				c.Wait.Interval = 2 * time.Second
				c.Wait.MaxWait = 5 * time.Minute
				return c
			},
			errorMatcher: nil,
		},
		{
			name: "case 2: enabled metrics replaced",
			path: "/etc/scenario.yaml",
			content: `
group:
  enabledMetrics:
  - GroupTotalInstances
metrics:
  address: 127.0.0.1:8000
  window: 30m
`,
			expectedConfig: func() Config {
				c := Default()
				c.Group.EnabledMetrics = []string{"GroupTotalInstances"}
				c.Metrics.Address = "127.0.0.1:8000"
				c.Metrics.Window = 30 * time.Minute
				return c
			},
			errorMatcher: nil,
		},
		{
			name:         "case 3: missing file",
			path:         "/etc/missing.yaml",
			errorMatcher: IsNotFound,
		},
		{
			name: "case 4: unknown key",
			path: "/etc/scenario.yaml",
			content: `
group:
  size: 3
`,
			errorMatcher: IsInvalidConfig,
		},
		{
			name: "case 5: malformed duration",
			path: "/etc/scenario.yaml",
			content: `
wait:
  interval: soon
`,
			errorMatcher: IsInvalidConfig,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if tc.content != "" {
				err := afero.WriteFile(fs, tc.path, []byte(tc.content), 0644)
				if err != nil {
					t.Fatalf("error == %#v, want nil", err)
				}
			}

			c, err := Load(fs, tc.path)

			switch {
			case err != nil && tc.errorMatcher == nil:
				t.Fatalf("error == %#v, want nil", err)
			case err == nil && tc.errorMatcher != nil:
				t.Fatalf("error == nil, want non-nil")
			case err != nil && !tc.errorMatcher(err):
				t.Fatalf("error == %#v, want matching", err)
			}

			if tc.expectedConfig != nil {
				if diff := cmp.Diff(tc.expectedConfig(), c); diff != "" {
					t.Fatalf("\n\n%s\n", diff)
				}
			}
		})
	}
}

func Test_Config_Validate(t *testing.T) {
	testCases := []struct {
		name         string
		mutate       func(c *Config)
		errorMatcher func(error) bool
	}{
		{
			name:         "case 0: defaults are valid",
			mutate:       func(c *Config) {},
			errorMatcher: nil,
		},
		{
			name:         "case 1: empty group name",
			mutate:       func(c *Config) { c.Group.Name = "" },
			errorMatcher: IsInvalidConfig,
		},
		{
			name:         "case 2: desired capacity above max size",
			mutate:       func(c *Config) { c.Group.DesiredCapacity = c.Group.MaxSize + 1 },
			errorMatcher: IsInvalidConfig,
		},
		{
			name:         "case 3: no zones",
			mutate:       func(c *Config) { c.Group.Zones = 0 },
			errorMatcher: IsInvalidConfig,
		},
		{
			name:         "case 4: empty instance type",
			mutate:       func(c *Config) { c.LaunchTemplate.InstanceType = "" },
			errorMatcher: IsInvalidConfig,
		},
		{
			name:         "case 5: max wait shorter than interval",
			mutate:       func(c *Config) { c.Wait.MaxWait = c.Wait.Interval / 2 },
			errorMatcher: IsInvalidConfig,
		},
		{
			name:         "case 6: zero metrics window",
			mutate:       func(c *Config) { c.Metrics.Window = 0 },
			errorMatcher: IsInvalidConfig,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(&c)

			err := c.Validate()

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

func Test_Config_Default(t *testing.T) {
	c := Default()

	if c.Group.Name != scaling.DefaultGroupName {
		t.Fatalf("group name == %#q, want %#q", c.Group.Name, scaling.DefaultGroupName)
	}
	if c.LaunchTemplate.InstanceType != "t1.micro" {
		t.Fatalf("instance type == %#q, want %#q", c.LaunchTemplate.InstanceType, "t1.micro")
	}

	// Callers must not be able to mutate the package defaults.
	c.Group.EnabledMetrics[0] = "changed"
	if scaling.DefaultEnabledMetrics[0] == "changed" {
		t.Fatalf("default enabled metrics mutated")
	}
}
