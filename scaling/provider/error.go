package provider

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/giantswarm/microerror"
)

var alreadyExistsError = &microerror.Error{
	Kind: "alreadyExistsError",
}

// IsAlreadyExists asserts alreadyExistsError.
func IsAlreadyExists(err error) bool {
	return microerror.Cause(err) == alreadyExistsError
}

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

var notFoundError = &microerror.Error{
	Kind: "notFoundError",
}

// IsNotFound asserts notFoundError.
func IsNotFound(err error) bool {
	return microerror.Cause(err) == notFoundError
}

// maskAPIError masks err, returned by the remote operation described by
// format and args, with the error kind matching its service error code.
func maskAPIError(err error, format string, args ...interface{}) error {
	kind := executionFailedError

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case code == "AlreadyExists" || strings.HasSuffix(code, ".AlreadyExistsException"):
			kind = alreadyExistsError
		case strings.HasSuffix(code, ".NotFound") || strings.HasSuffix(code, ".NotFoundException"):
			kind = notFoundError
		case code == "ValidationError" && strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "not found"):
			kind = notFoundError
		}
	}

	return microerror.Maskf(kind, format+": %s", append(args, err.Error())...)
}
