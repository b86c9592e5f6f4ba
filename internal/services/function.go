package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/hoistci/hoist/internal/reconcile"
)

// LambdaAPI is the subset of the Lambda client the function service uses.
type LambdaAPI interface {
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error)
	UpdateFunctionCode(ctx context.Context, params *lambda.UpdateFunctionCodeInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error)
	UpdateFunctionConfiguration(ctx context.Context, params *lambda.UpdateFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error)
	AddPermission(ctx context.Context, params *lambda.AddPermissionInput, optFns ...func(*lambda.Options)) (*lambda.AddPermissionOutput, error)
}

// FunctionSpec is the desired state of one function deployment.
type FunctionSpec struct {
	Name        string
	Runtime     string
	Handler     string
	RoleArn     string
	ZipBytes    []byte
	Timeout     int32
	Environment map[string]string
}

// FunctionService reconciles Lambda functions. Code and configuration are
// updated independently; environment variables replace the prior set rather
// than merging with it.
type FunctionService struct {
	client LambdaAPI

	createRetryWait time.Duration
	pollInterval    time.Duration
}

// NewFunctionService creates a FunctionService.
func NewFunctionService(client LambdaAPI) *FunctionService {
	return &FunctionService{
		client:          client,
		createRetryWait: 30 * time.Second,
		pollInterval:    2 * time.Second,
	}
}

// Deploy converges the remote function onto the spec.
func (s *FunctionService) Deploy(ctx context.Context, spec FunctionSpec) reconcile.Result {
	logger := zerolog.Ctx(ctx)

	out, err := s.client.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(spec.Name),
	})
	switch {
	case err == nil:
		return s.update(ctx, spec, out.Configuration)

	case reconcile.IsNotFound(err):
		logger.Info().Str("function", spec.Name).Msg("Function not found, creating")
		if err := s.create(ctx, spec); err != nil {
			if reconcile.IsConflict(err) {
				// created concurrently; converge in place
				return s.update(ctx, spec, nil)
			}
			return reconcile.Failed("function", spec.Name, fmt.Errorf("failed to create function: %w", err))
		}
		return reconcile.Created("function", spec.Name)

	default:
		return reconcile.Failed("function", spec.Name, fmt.Errorf("failed to probe function: %w", err))
	}
}

// create calls CreateFunction, retrying with a bounded backoff while IAM
// reports the execution role as not yet assumable.
func (s *FunctionService) create(ctx context.Context, spec FunctionSpec) error {
	logger := zerolog.Ctx(ctx)
	deadline := time.Now().Add(s.createRetryWait)

	input := &lambda.CreateFunctionInput{
		FunctionName: aws.String(spec.Name),
		Runtime:      types.Runtime(spec.Runtime),
		Handler:      aws.String(spec.Handler),
		Role:         aws.String(spec.RoleArn),
		Code:         &types.FunctionCode{ZipFile: spec.ZipBytes},
		Timeout:      aws.Int32(spec.Timeout),
		Environment:  &types.Environment{Variables: spec.Environment},
	}

	for {
		_, err := s.client.CreateFunction(ctx, input)
		if err == nil {
			return nil
		}
		if !isRolePropagationError(err) || time.Now().After(deadline) {
			return err
		}

		logger.Info().Str("function", spec.Name).Msg("Execution role not assumable yet, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

// update refreshes code and configuration independently, skipping whichever
// already matches. current may be nil when the caller has no fresh view.
func (s *FunctionService) update(ctx context.Context, spec FunctionSpec, current *types.FunctionConfiguration) reconcile.Result {
	logger := zerolog.Ctx(ctx)

	codeChanged := current == nil || aws.ToString(current.CodeSha256) != codeDigest(spec.ZipBytes)
	configChanged := current == nil || !configMatches(current, spec)

	if !codeChanged && !configChanged {
		logger.Info().Str("function", spec.Name).Msg("Function already up to date")
		return reconcile.Unchanged("function", spec.Name)
	}

	if codeChanged {
		if _, err := s.client.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
			FunctionName: aws.String(spec.Name),
			ZipFile:      spec.ZipBytes,
		}); err != nil {
			return reconcile.Failed("function", spec.Name, fmt.Errorf("failed to update function code: %w", err))
		}
		logger.Info().Str("function", spec.Name).Msg("Function code updated")
	}

	if configChanged {
		if _, err := s.client.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
			FunctionName: aws.String(spec.Name),
			Runtime:      types.Runtime(spec.Runtime),
			Handler:      aws.String(spec.Handler),
			Role:         aws.String(spec.RoleArn),
			Timeout:      aws.Int32(spec.Timeout),
			Environment:  &types.Environment{Variables: spec.Environment},
		}); err != nil {
			return reconcile.Failed("function", spec.Name, fmt.Errorf("failed to update function configuration: %w", err))
		}
		logger.Info().Str("function", spec.Name).Msg("Function configuration updated")
	}

	return reconcile.Updated("function", spec.Name)
}

// AddInvokePermission grants the given principal permission to invoke the
// function. An existing statement under the same id is an unchanged success.
func (s *FunctionService) AddInvokePermission(ctx context.Context, functionName, statementID, principal, sourceArn string) reconcile.Result {
	_, err := s.client.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: aws.String(functionName),
		StatementId:  aws.String(statementID),
		Action:       aws.String("lambda:InvokeFunction"),
		Principal:    aws.String(principal),
		SourceArn:    aws.String(sourceArn),
	})
	if err != nil {
		if reconcile.IsConflict(err) {
			return reconcile.Unchanged("permission", statementID)
		}
		return reconcile.Failed("permission", statementID, fmt.Errorf("failed to add invoke permission: %w", err))
	}
	return reconcile.Created("permission", statementID)
}

// codeDigest computes the digest Lambda reports as CodeSha256 for a zip
// package.
func codeDigest(zipBytes []byte) string {
	sum := sha256.Sum256(zipBytes)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func configMatches(current *types.FunctionConfiguration, spec FunctionSpec) bool {
	if string(current.Runtime) != spec.Runtime ||
		aws.ToString(current.Handler) != spec.Handler ||
		aws.ToString(current.Role) != spec.RoleArn ||
		aws.ToInt32(current.Timeout) != spec.Timeout {
		return false
	}

	var currentEnv map[string]string
	if current.Environment != nil {
		currentEnv = current.Environment.Variables
	}
	if len(currentEnv) == 0 && len(spec.Environment) == 0 {
		return true
	}
	return maps.Equal(currentEnv, spec.Environment)
}

// isRolePropagationError detects the create-time failure Lambda returns while
// a freshly created execution role is still propagating.
func isRolePropagationError(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "InvalidParameterValueException" &&
		strings.Contains(apiErr.ErrorMessage(), "cannot be assumed")
}
