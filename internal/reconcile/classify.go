package reconcile

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// Class buckets an AWS API error by how the reconciler should react to it.
type Class int

const (
	// ClassNone means no error.
	ClassNone Class = iota

	// ClassNotFound means the probed resource does not exist; take the
	// create path.
	ClassNotFound

	// ClassNoOpUpdate means the update call had nothing to do; treat as
	// success with an UNCHANGED outcome.
	ClassNoOpUpdate

	// ClassConflict means the resource already exists; compute resources
	// take the update-in-place path, everything else treats it as benign.
	ClassConflict

	// ClassFatal is everything else: transport, auth, malformed template,
	// quota. The resource and its dependents must not proceed.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassNotFound:
		return "not-found"
	case ClassNoOpUpdate:
		return "noop-update"
	case ClassConflict:
		return "conflict"
	default:
		return "fatal"
	}
}

// notFoundCodes are the structured error codes the managed services return
// when a probed resource is absent.
var notFoundCodes = map[string]struct{}{
	"ResourceNotFoundException":            {},
	"NoSuchEntity":                         {},
	"NoSuchEntityException":                {},
	"NotFoundException":                    {},
	"NotFound":                             {}, // s3 HeadBucket 404
	"NoSuchBucket":                         {},
	"ApplicationDoesNotExistException":     {},
	"DeploymentGroupDoesNotExistException": {},
	"PipelineNotFoundException":            {},
	"ParameterNotFound":                    {},
}

// conflictCodes are returned by create calls when the resource already
// exists under the same name.
var conflictCodes = map[string]struct{}{
	"ResourceConflictException":             {},
	"ResourceAlreadyExistsException":        {},
	"EntityAlreadyExists":                   {},
	"EntityAlreadyExistsException":          {},
	"ConflictException":                     {},
	"BucketAlreadyOwnedByYou":               {},
	"ApplicationAlreadyExistsException":     {},
	"DeploymentGroupAlreadyExistsException": {},
	"PipelineNameInUseException":            {},
	"InvalidStateException":                 {},
}

// Classify maps an AWS SDK error onto a reconciliation class using the
// structured error code from the response.
//
// CloudFormation is the one service that hides both "stack does not exist"
// and "no updates are to be performed" behind a generic ValidationError, so
// for that code alone the message has to be inspected as well.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return ClassFatal
	}

	code := apiErr.ErrorCode()
	if _, ok := notFoundCodes[code]; ok {
		return ClassNotFound
	}
	if _, ok := conflictCodes[code]; ok {
		return ClassConflict
	}

	if code == "ValidationError" {
		msg := apiErr.ErrorMessage()
		switch {
		case strings.Contains(msg, "does not exist"):
			return ClassNotFound
		case strings.Contains(msg, "No updates are to be performed"),
			strings.Contains(msg, "No updates to be performed"):
			return ClassNoOpUpdate
		}
	}

	return ClassFatal
}

// IsNotFound reports whether err classifies as an absent resource.
func IsNotFound(err error) bool { return Classify(err) == ClassNotFound }

// IsConflict reports whether err classifies as an already-existing resource.
func IsConflict(err error) bool { return Classify(err) == ClassConflict }

// IsNoOpUpdate reports whether err classifies as a benign empty update.
func IsNoOpUpdate(err error) bool { return Classify(err) == ClassNoOpUpdate }
