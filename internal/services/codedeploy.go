package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codedeploy"
	"github.com/aws/aws-sdk-go-v2/service/codedeploy/types"
	"github.com/rs/zerolog"

	"github.com/hoistci/hoist/internal/reconcile"
)

// CodeDeployAPI is the subset of the CodeDeploy client the deploy service
// uses.
type CodeDeployAPI interface {
	GetApplication(ctx context.Context, params *codedeploy.GetApplicationInput, optFns ...func(*codedeploy.Options)) (*codedeploy.GetApplicationOutput, error)
	CreateApplication(ctx context.Context, params *codedeploy.CreateApplicationInput, optFns ...func(*codedeploy.Options)) (*codedeploy.CreateApplicationOutput, error)
	GetDeploymentGroup(ctx context.Context, params *codedeploy.GetDeploymentGroupInput, optFns ...func(*codedeploy.Options)) (*codedeploy.GetDeploymentGroupOutput, error)
	CreateDeploymentGroup(ctx context.Context, params *codedeploy.CreateDeploymentGroupInput, optFns ...func(*codedeploy.Options)) (*codedeploy.CreateDeploymentGroupOutput, error)
	UpdateDeploymentGroup(ctx context.Context, params *codedeploy.UpdateDeploymentGroupInput, optFns ...func(*codedeploy.Options)) (*codedeploy.UpdateDeploymentGroupOutput, error)
}

// DeploymentGroupSpec is the desired state of the in-place EC2 deployment
// group.
type DeploymentGroupSpec struct {
	AppName        string
	GroupName      string
	ServiceRoleArn string
	InstanceTag    string // EC2 Name tag value selecting the fleet
}

// DeployService reconciles CodeDeploy applications and deployment groups.
type DeployService struct {
	client CodeDeployAPI
}

// NewDeployService creates a DeployService.
func NewDeployService(client CodeDeployAPI) *DeployService {
	return &DeployService{client: client}
}

// EnsureApplication creates the application if absent.
func (s *DeployService) EnsureApplication(ctx context.Context, name string) reconcile.Result {
	logger := zerolog.Ctx(ctx)

	_, err := s.client.GetApplication(ctx, &codedeploy.GetApplicationInput{
		ApplicationName: aws.String(name),
	})
	if err == nil {
		logger.Info().Str("application", name).Msg("Application already exists")
		return reconcile.Unchanged("application", name)
	}
	if !reconcile.IsNotFound(err) {
		return reconcile.Failed("application", name, fmt.Errorf("failed to probe application: %w", err))
	}

	if _, err := s.client.CreateApplication(ctx, &codedeploy.CreateApplicationInput{
		ApplicationName: aws.String(name),
	}); err != nil {
		if reconcile.IsConflict(err) {
			return reconcile.Unchanged("application", name)
		}
		return reconcile.Failed("application", name, fmt.Errorf("failed to create application: %w", err))
	}

	logger.Info().Str("application", name).Msg("Application created")
	return reconcile.Created("application", name)
}

// EnsureDeploymentGroup converges the deployment group onto the spec.
func (s *DeployService) EnsureDeploymentGroup(ctx context.Context, spec DeploymentGroupSpec) reconcile.Result {
	logger := zerolog.Ctx(ctx)

	style := &types.DeploymentStyle{
		DeploymentType:   types.DeploymentTypeInPlace,
		DeploymentOption: types.DeploymentOptionWithoutTrafficControl,
	}
	tagFilters := []types.EC2TagFilter{
		{
			Key:   aws.String("Name"),
			Value: aws.String(spec.InstanceTag),
			Type:  types.EC2TagFilterTypeKeyAndValue,
		},
	}

	existing, err := s.client.GetDeploymentGroup(ctx, &codedeploy.GetDeploymentGroupInput{
		ApplicationName:     aws.String(spec.AppName),
		DeploymentGroupName: aws.String(spec.GroupName),
	})
	switch {
	case err == nil:
		if groupMatches(existing.DeploymentGroupInfo, spec) {
			logger.Info().Str("group", spec.GroupName).Msg("Deployment group already up to date")
			return reconcile.Unchanged("deployment-group", spec.GroupName)
		}
		logger.Info().Str("group", spec.GroupName).Msg("Deployment group exists, updating")
		if _, err := s.client.UpdateDeploymentGroup(ctx, &codedeploy.UpdateDeploymentGroupInput{
			ApplicationName:            aws.String(spec.AppName),
			CurrentDeploymentGroupName: aws.String(spec.GroupName),
			ServiceRoleArn:             aws.String(spec.ServiceRoleArn),
			DeploymentStyle:            style,
			Ec2TagFilters:              tagFilters,
		}); err != nil {
			return reconcile.Failed("deployment-group", spec.GroupName, fmt.Errorf("failed to update deployment group: %w", err))
		}
		return reconcile.Updated("deployment-group", spec.GroupName)

	case reconcile.IsNotFound(err):
		logger.Info().Str("group", spec.GroupName).Msg("Deployment group not found, creating")
		if _, err := s.client.CreateDeploymentGroup(ctx, &codedeploy.CreateDeploymentGroupInput{
			ApplicationName:     aws.String(spec.AppName),
			DeploymentGroupName: aws.String(spec.GroupName),
			ServiceRoleArn:      aws.String(spec.ServiceRoleArn),
			DeploymentStyle:     style,
			Ec2TagFilters:       tagFilters,
		}); err != nil {
			if reconcile.IsConflict(err) {
				return reconcile.Unchanged("deployment-group", spec.GroupName)
			}
			return reconcile.Failed("deployment-group", spec.GroupName, fmt.Errorf("failed to create deployment group: %w", err))
		}
		return reconcile.Created("deployment-group", spec.GroupName)

	default:
		return reconcile.Failed("deployment-group", spec.GroupName, fmt.Errorf("failed to probe deployment group: %w", err))
	}
}

func groupMatches(info *types.DeploymentGroupInfo, spec DeploymentGroupSpec) bool {
	if info == nil {
		return false
	}
	if aws.ToString(info.ServiceRoleArn) != spec.ServiceRoleArn {
		return false
	}
	for _, filter := range info.Ec2TagFilters {
		if aws.ToString(filter.Key) == "Name" && aws.ToString(filter.Value) == spec.InstanceTag {
			return true
		}
	}
	return false
}
