package scaling

import "github.com/giantswarm/microerror"

var executionFailedError = &microerror.Error{
	Kind: "executionFailedError",
}

// IsExecutionFailed asserts executionFailedError.
func IsExecutionFailed(err error) bool {
	return microerror.Cause(err) == executionFailedError
}

var invalidConfigError = &microerror.Error{
	Kind: "invalidConfigError",
}

// IsInvalidConfig asserts invalidConfigError.
func IsInvalidConfig(err error) bool {
	return microerror.Cause(err) == invalidConfigError
}

var noInstancesError = &microerror.Error{
	Kind: "noInstancesError",
}

// IsNoInstances asserts noInstancesError.
func IsNoInstances(err error) bool {
	return microerror.Cause(err) == noInstancesError
}

var notPreparedError = &microerror.Error{
	Kind: "notPreparedError",
}

// IsNotPrepared asserts notPreparedError.
func IsNotPrepared(err error) bool {
	return microerror.Cause(err) == notPreparedError
}

var waitError = &microerror.Error{
	Kind: "waitError",
}

// IsWait asserts waitError.
func IsWait(err error) bool {
	return microerror.Cause(err) == waitError
}
