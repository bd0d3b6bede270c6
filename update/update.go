package update

import (
	"context"
	"fmt"

	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"

	"github.com/giantswarm/autoscaling-scenario/update/provider"
)

type Config struct {
	Logger   micrologger.Logger
	Provider provider.Interface
}

type Update struct {
	logger   micrologger.Logger
	provider provider.Interface
}

func New(config Config) (*Update, error) {
	if config.Logger == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Logger must not be empty", config)
	}
	if config.Provider == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Provider must not be empty", config)
	}

	u := &Update{
		logger:   config.Logger,
		provider: config.Provider,
	}

	return u, nil
}

// Test rolls the group to a new launch template version and returns the
// version it ended up at.
func (u *Update) Test(ctx context.Context) (string, error) {
	var err error

	var currentVersion string
	{
		u.logger.LogCtx(ctx, "level", "debug", "message", "looking for the current launch template version")

		currentVersion, err = u.provider.CurrentVersion(ctx)
		if err != nil {
			return "", microerror.Mask(err)
		}

		u.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("found the current launch template version %#q", currentVersion))
	}

	var nextVersion string
	{
		u.logger.LogCtx(ctx, "level", "debug", "message", "creating the next launch template version")

		nextVersion, err = u.provider.NextVersion(ctx)
		if err != nil {
			return "", microerror.Mask(err)
		}

		u.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("created the next launch template version %#q", nextVersion))
	}

	{
		u.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("updating the group to launch template version %#q", nextVersion))

		err = u.provider.UpdateVersion(ctx, nextVersion)
		if err != nil {
			return "", microerror.Mask(err)
		}

		u.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("updated the group to launch template version %#q", nextVersion))
	}

	{
		u.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("waiting for instances at launch template version %#q", nextVersion))

		err = u.provider.WaitForUpdate(ctx, nextVersion)
		if err != nil {
			return "", microerror.Mask(err)
		}

		u.logger.LogCtx(ctx, "level", "debug", "message", fmt.Sprintf("instances are at launch template version %#q", nextVersion))
	}

	{
		u.logger.LogCtx(ctx, "level", "debug", "message", "verifying the launch template version")

		v, err := u.provider.CurrentVersion(ctx)
		if err != nil {
			return "", microerror.Mask(err)
		}
		if v != nextVersion {
			return "", microerror.Maskf(versionMismatchError, "group is at launch template version %#q, want %#q", v, nextVersion)
		}

		u.logger.LogCtx(ctx, "level", "debug", "message", "verified the launch template version")
	}

	return nextVersion, nil
}
