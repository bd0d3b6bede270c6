package scaling

import (
	"context"
)

const (
	// DefaultGroupName is the auto scaling group created by the scenario
	// unless configured otherwise.
	DefaultGroupName = "SDK_Code_Examples_EC2_Autoscaling_Group_from_Go_SDK"
	// DefaultLaunchTemplateName is the launch template created by the scenario
	// unless configured otherwise.
	DefaultLaunchTemplateName = "SDK_Code_Examples_EC2_Autoscaling_template_from_Go_SDK"
	DefaultImageID            = "ami-0ca285d4c2cda3300"
	DefaultInstanceType       = "t1.micro"

	DefaultZones           = 3
	DefaultMaxSize         = 3
	DefaultDesiredCapacity = 2
)

// DefaultEnabledMetrics are the group metrics collected while the scenario
// runs.
var DefaultEnabledMetrics = []string{
	"GroupMinSize",
	"GroupMaxSize",
	"GroupDesiredCapacity",
	"GroupInServiceInstances",
	"GroupTotalInstances",
}

type Interface interface {
	// Test executes the auto scaling scenario against the configured provider.
	// The scenario processes the following steps and cleans up whatever it
	// created when one of them fails.
	//
	//     - Create a launch template.
	//     - Create an auto scaling group of one instance in up to three
	//       availability zones.
	//     - Enable group metrics collection.
	//     - Wait for the first instance to be up.
	//     - Raise the group's max size.
	//     - Raise the group's desired capacity and wait for the new instance.
	//     - Terminate one instance and wait for its replacement.
	//     - List the scaling activities and the collected metrics.
	//     - Disable group metrics collection.
	//     - Scale the group down to zero and wait for the instances to be gone.
	//     - Delete the group and the launch template.
	//
	Test(ctx context.Context) error
}
