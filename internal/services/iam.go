package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"

	apperrors "github.com/hoistci/hoist/internal/errors"
	"github.com/hoistci/hoist/internal/reconcile"
)

// IAMAPI is the subset of the IAM client the role service uses.
type IAMAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	UpdateAssumeRolePolicy(ctx context.Context, params *iam.UpdateAssumeRolePolicyInput, optFns ...func(*iam.Options)) (*iam.UpdateAssumeRolePolicyOutput, error)
	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
}

// STSAPI resolves the caller's account identity.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// RoleSpec is the desired state of one service role.
type RoleSpec struct {
	Name        string
	Description string
	TrustPolicy string // rendered trust policy document

	// ManagedPolicyArns are attached after the role exists. AttachRolePolicy
	// is idempotent, so re-attaching on every run is safe.
	ManagedPolicyArns []string

	// InlinePolicies maps policy name to rendered document. PutRolePolicy
	// replaces, so repeated runs converge.
	InlinePolicies map[string]string
}

// RoleService reconciles IAM service roles.
type RoleService struct {
	client    IAMAPI
	stsClient STSAPI

	propagationWait time.Duration
	pollInterval    time.Duration
}

// NewRoleService creates a RoleService.
func NewRoleService(client IAMAPI, stsClient STSAPI) *RoleService {
	return &RoleService{
		client:          client,
		stsClient:       stsClient,
		propagationWait: 30 * time.Second,
		pollInterval:    2 * time.Second,
	}
}

// AccountID returns the AWS account id of the current credentials.
func (s *RoleService) AccountID(ctx context.Context) (string, error) {
	out, err := s.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	if out.Account == nil {
		return "", fmt.Errorf("caller identity returned no account id")
	}
	return *out.Account, nil
}

// Ensure converges the role onto the spec and returns its ARN. An existing
// role has its trust policy refreshed; attachments and inline policies are
// re-applied on every run since both calls are convergent.
func (s *RoleService) Ensure(ctx context.Context, spec RoleSpec) (string, reconcile.Result) {
	logger := zerolog.Ctx(ctx)

	var arn string
	outcome := reconcile.OutcomeUnchanged

	out, err := s.client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(spec.Name)})
	switch {
	case err == nil:
		arn = aws.ToString(out.Role.Arn)
		logger.Info().Str("role_name", spec.Name).Msg("Role already exists")
		if _, err := s.client.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
			RoleName:       aws.String(spec.Name),
			PolicyDocument: aws.String(spec.TrustPolicy),
		}); err != nil {
			return "", reconcile.Failed("role", spec.Name, fmt.Errorf("failed to update trust policy: %w", err))
		}

	case reconcile.IsNotFound(err):
		logger.Info().Str("role_name", spec.Name).Msg("Role not found, creating")
		created, err := s.client.CreateRole(ctx, &iam.CreateRoleInput{
			RoleName:                 aws.String(spec.Name),
			AssumeRolePolicyDocument: aws.String(spec.TrustPolicy),
			Description:              aws.String(spec.Description),
		})
		if err != nil {
			if !reconcile.IsConflict(err) {
				return "", reconcile.Failed("role", spec.Name, fmt.Errorf("failed to create role: %w", err))
			}
			// lost a race with a concurrent creator; fall back to the probe
			existing, err := s.client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(spec.Name)})
			if err != nil {
				return "", reconcile.Failed("role", spec.Name, fmt.Errorf("failed to fetch conflicting role: %w", err))
			}
			arn = aws.ToString(existing.Role.Arn)
		} else {
			arn = aws.ToString(created.Role.Arn)
			outcome = reconcile.OutcomeCreated
		}

	default:
		return "", reconcile.Failed("role", spec.Name, fmt.Errorf("failed to probe role: %w", err))
	}

	for _, policyArn := range spec.ManagedPolicyArns {
		if _, err := s.client.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(spec.Name),
			PolicyArn: aws.String(policyArn),
		}); err != nil {
			return "", reconcile.Failed("role", spec.Name, fmt.Errorf("failed to attach policy %s: %w", policyArn, err))
		}
	}

	for name, document := range spec.InlinePolicies {
		if _, err := s.client.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
			RoleName:       aws.String(spec.Name),
			PolicyName:     aws.String(name),
			PolicyDocument: aws.String(document),
		}); err != nil {
			return "", reconcile.Failed("role", spec.Name, fmt.Errorf("failed to put inline policy %s: %w", name, err))
		}
	}

	if outcome == reconcile.OutcomeCreated {
		if err := s.WaitForPropagation(ctx, spec.Name); err != nil {
			return "", reconcile.Failed("role", spec.Name, err)
		}
	}

	return arn, reconcile.Result{Kind: "role", Name: spec.Name, Outcome: outcome}
}

// WaitForPropagation polls the role until IAM reports it consistently, with a
// bounded deadline. A freshly created role is not immediately assumable by
// dependent services, and a fixed sleep is both too short and too long.
func (s *RoleService) WaitForPropagation(ctx context.Context, roleName string) error {
	logger := zerolog.Ctx(ctx)
	deadline := time.Now().Add(s.propagationWait)
	attempt := 0

	for time.Now().Before(deadline) {
		attempt++
		_, err := s.client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
		if err == nil {
			logger.Info().
				Str("role_name", roleName).
				Int("attempts", attempt).
				Msg("Role propagated")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}

	return fmt.Errorf("%w: %s after %v", apperrors.ErrRoleNotAssumable, roleName, s.propagationWait)
}
