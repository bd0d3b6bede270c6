package provider

import "context"

// Interface rolls a scaling group from one launch template version to the
// next. Versions are launch template version numbers in their decimal string
// form.
type Interface interface {
	// CurrentVersion returns the launch template version the group launches
	// instances from, with $Latest and $Default resolved to a number.
	CurrentVersion(ctx context.Context) (string, error)
	// NextVersion creates a new launch template version based on the current
	// one and returns its number.
	NextVersion(ctx context.Context) (string, error)
	UpdateVersion(ctx context.Context, nextVersion string) error
	WaitForUpdate(ctx context.Context, nextVersion string) error
}
