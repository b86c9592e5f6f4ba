package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/rs/zerolog"

	apperrors "github.com/hoistci/hoist/internal/errors"
	"github.com/hoistci/hoist/internal/reconcile"
)

// CloudFormationAPI is the subset of the CloudFormation client the stack
// reconciler uses.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
	DescribeStackResources(ctx context.Context, params *cloudformation.DescribeStackResourcesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackResourcesOutput, error)
	DescribeStackEvents(ctx context.Context, params *cloudformation.DescribeStackEventsInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error)
}

// StackDescriptor is the desired state of one CloudFormation stack.
type StackDescriptor struct {
	Name         string
	TemplateBody string
	Capabilities []string
}

// DescriptorFromFile builds a StackDescriptor by reading the template body
// from disk.
func DescriptorFromFile(name, templatePath string, capabilities []string) (StackDescriptor, error) {
	body, err := os.ReadFile(templatePath)
	if err != nil {
		return StackDescriptor{}, fmt.Errorf("failed to read template %s: %w", templatePath, err)
	}
	return StackDescriptor{
		Name:         name,
		TemplateBody: string(body),
		Capabilities: capabilities,
	}, nil
}

// RoleMap maps a stack resource's logical id to the physical IAM role
// identifier it resolved to. Only IAM role resources are retained.
type RoleMap map[string]string

// StackService reconciles CloudFormation stacks and extracts their role maps.
type StackService struct {
	client       CloudFormationAPI
	waitTimeout  time.Duration
	pollInterval time.Duration
}

// NewStackService creates a StackService. waitTimeout bounds how long a
// create or update is polled before it is declared failed.
func NewStackService(client CloudFormationAPI, waitTimeout time.Duration) *StackService {
	return &StackService{
		client:       client,
		waitTimeout:  waitTimeout,
		pollInterval: 10 * time.Second,
	}
}

// Reconcile converges the remote stack onto the descriptor: create when the
// probe reports absence, update otherwise, and treat an empty update as an
// unchanged success. Long-running operations block until a terminal stack
// status is observed or the wait budget runs out.
func (s *StackService) Reconcile(ctx context.Context, desired StackDescriptor) reconcile.Result {
	logger := zerolog.Ctx(ctx)

	exists, err := s.probe(ctx, desired.Name)
	if err != nil {
		return reconcile.Failed("stack", desired.Name, fmt.Errorf("failed to probe stack: %w", err))
	}

	capabilities := make([]types.Capability, 0, len(desired.Capabilities))
	for _, c := range desired.Capabilities {
		capabilities = append(capabilities, types.Capability(c))
	}

	if !exists {
		logger.Info().Str("stack_name", desired.Name).Msg("Stack not found, creating")
		_, err := s.client.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:    aws.String(desired.Name),
			TemplateBody: aws.String(desired.TemplateBody),
			Capabilities: capabilities,
		})
		if err != nil {
			return reconcile.Failed("stack", desired.Name, fmt.Errorf("failed to create stack: %w", err))
		}
		if err := s.waitForTerminal(ctx, desired.Name); err != nil {
			return reconcile.Failed("stack", desired.Name, err)
		}
		return reconcile.Created("stack", desired.Name)
	}

	logger.Info().Str("stack_name", desired.Name).Msg("Stack exists, updating")
	_, err = s.client.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(desired.Name),
		TemplateBody: aws.String(desired.TemplateBody),
		Capabilities: capabilities,
	})
	if err != nil {
		if reconcile.IsNoOpUpdate(err) {
			logger.Info().Str("stack_name", desired.Name).Msg("Stack already up to date")
			return reconcile.Unchanged("stack", desired.Name)
		}
		return reconcile.Failed("stack", desired.Name, fmt.Errorf("failed to update stack: %w", err))
	}
	if err := s.waitForTerminal(ctx, desired.Name); err != nil {
		return reconcile.Failed("stack", desired.Name, err)
	}
	return reconcile.Updated("stack", desired.Name)
}

// probe reports whether the stack exists. A "does not exist" ValidationError
// is the expected absence signal; any other error is fatal.
func (s *StackService) probe(ctx context.Context, name string) (bool, error) {
	_, err := s.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		if reconcile.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// waitForTerminal polls the stack until it reaches a terminal status. Failure
// statuses surface the offending stack events in the log before returning.
func (s *StackService) waitForTerminal(ctx context.Context, name string) error {
	logger := zerolog.Ctx(ctx)
	deadline := time.Now().Add(s.waitTimeout)

	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: stack %s after %v", apperrors.ErrStackWaitTimeout, name, s.waitTimeout)
		}

		out, err := s.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
			StackName: aws.String(name),
		})
		if err != nil {
			return fmt.Errorf("failed to poll stack %s: %w", name, err)
		}
		if len(out.Stacks) == 0 {
			return fmt.Errorf("%w: %s", apperrors.ErrStackNotFound, name)
		}

		status := out.Stacks[0].StackStatus
		switch {
		case isSuccessStatus(status):
			logger.Info().Str("stack_name", name).Str("status", string(status)).Msg("Stack operation complete")
			return nil
		case isFailedStatus(status):
			s.logFailureEvents(ctx, name)
			reason := aws.ToString(out.Stacks[0].StackStatusReason)
			return fmt.Errorf("stack %s reached terminal status %s: %s", name, status, reason)
		}

		logger.Debug().Str("stack_name", name).Str("status", string(status)).Msg("Waiting for stack")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

func isSuccessStatus(status types.StackStatus) bool {
	switch status {
	case types.StackStatusCreateComplete,
		types.StackStatusUpdateComplete:
		return true
	}
	return false
}

func isFailedStatus(status types.StackStatus) bool {
	switch status {
	case types.StackStatusCreateFailed,
		types.StackStatusUpdateFailed,
		types.StackStatusDeleteFailed,
		types.StackStatusRollbackFailed,
		types.StackStatusRollbackComplete,
		types.StackStatusUpdateRollbackFailed,
		types.StackStatusUpdateRollbackComplete:
		return true
	}
	return false
}

func (s *StackService) logFailureEvents(ctx context.Context, name string) {
	logger := zerolog.Ctx(ctx)

	out, err := s.client.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{
		StackName: aws.String(name),
	})
	if err != nil {
		logger.Error().Err(err).Str("stack_name", name).Msg("Failed to fetch stack events")
		return
	}

	count := 0
	for i := range out.StackEvents {
		if count >= 10 {
			break
		}
		event := &out.StackEvents[i]
		switch event.ResourceStatus {
		case types.ResourceStatusCreateFailed,
			types.ResourceStatusUpdateFailed,
			types.ResourceStatusDeleteFailed:
			logger.Error().
				Str("resource_id", aws.ToString(event.LogicalResourceId)).
				Str("status", string(event.ResourceStatus)).
				Str("reason", aws.ToString(event.ResourceStatusReason)).
				Msg("Stack event")
			count++
		}
	}
}

// RoleMap inspects the stack's resources and returns the logical-id to
// physical-id mapping of its IAM roles.
func (s *StackService) RoleMap(ctx context.Context, stackName string) (RoleMap, error) {
	out, err := s.client.DescribeStackResources(ctx, &cloudformation.DescribeStackResourcesInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe resources of stack %s: %w", stackName, err)
	}

	roles := RoleMap{}
	for _, res := range out.StackResources {
		if aws.ToString(res.ResourceType) != "AWS::IAM::Role" {
			continue
		}
		roles[aws.ToString(res.LogicalResourceId)] = aws.ToString(res.PhysicalResourceId)
	}
	return roles, nil
}
