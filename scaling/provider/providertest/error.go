package providertest

import "github.com/giantswarm/microerror"

var alreadyExistsError = &microerror.Error{
	Kind: "alreadyExistsError",
}

// IsAlreadyExists asserts alreadyExistsError.
func IsAlreadyExists(err error) bool {
	return microerror.Cause(err) == alreadyExistsError
}

var invalidCapacityError = &microerror.Error{
	Kind: "invalidCapacityError",
}

// IsInvalidCapacity asserts invalidCapacityError.
func IsInvalidCapacity(err error) bool {
	return microerror.Cause(err) == invalidCapacityError
}

var notFoundError = &microerror.Error{
	Kind: "notFoundError",
}

// IsNotFound asserts notFoundError.
func IsNotFound(err error) bool {
	return microerror.Cause(err) == notFoundError
}

var resourceInUseError = &microerror.Error{
	Kind: "resourceInUseError",
}

// IsResourceInUse asserts resourceInUseError.
func IsResourceInUse(err error) bool {
	return microerror.Cause(err) == resourceInUseError
}
