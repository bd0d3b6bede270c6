package update

import "github.com/giantswarm/microerror"

var invalidConfigError = &microerror.Error{
	Kind: "invalidConfigError",
}

// IsInvalidConfig asserts invalidConfigError.
func IsInvalidConfig(err error) bool {
	return microerror.Cause(err) == invalidConfigError
}

var versionMismatchError = &microerror.Error{
	Kind: "versionMismatchError",
}

// IsVersionMismatch asserts versionMismatchError.
func IsVersionMismatch(err error) bool {
	return microerror.Cause(err) == versionMismatchError
}
