package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"github.com/rs/zerolog"

	"github.com/hoistci/hoist/internal/reconcile"
)

// CodeBuildAPI is the subset of the CodeBuild client the project service
// uses.
type CodeBuildAPI interface {
	BatchGetProjects(ctx context.Context, params *codebuild.BatchGetProjectsInput, optFns ...func(*codebuild.Options)) (*codebuild.BatchGetProjectsOutput, error)
	CreateProject(ctx context.Context, params *codebuild.CreateProjectInput, optFns ...func(*codebuild.Options)) (*codebuild.CreateProjectOutput, error)
	UpdateProject(ctx context.Context, params *codebuild.UpdateProjectInput, optFns ...func(*codebuild.Options)) (*codebuild.UpdateProjectOutput, error)
}

// BuildProjectSpec is the desired state of the pipeline's build project. The
// project sources from and hands artifacts back to CodePipeline.
type BuildProjectSpec struct {
	Name        string
	ServiceRole string // role ARN
	Image       string
	ComputeType string
}

// ProjectService reconciles CodeBuild projects.
type ProjectService struct {
	client CodeBuildAPI
}

// NewProjectService creates a ProjectService.
func NewProjectService(client CodeBuildAPI) *ProjectService {
	return &ProjectService{client: client}
}

// Ensure converges the build project onto the spec.
func (s *ProjectService) Ensure(ctx context.Context, spec BuildProjectSpec) reconcile.Result {
	logger := zerolog.Ctx(ctx)

	existing, err := s.probe(ctx, spec.Name)
	if err != nil {
		return reconcile.Failed("build-project", spec.Name, fmt.Errorf("failed to probe project: %w", err))
	}

	environment := &types.ProjectEnvironment{
		Type:        types.EnvironmentTypeLinuxContainer,
		ComputeType: types.ComputeType(spec.ComputeType),
		Image:       aws.String(spec.Image),
	}

	if existing == nil {
		logger.Info().Str("project", spec.Name).Msg("Build project not found, creating")
		_, err := s.client.CreateProject(ctx, &codebuild.CreateProjectInput{
			Name:        aws.String(spec.Name),
			ServiceRole: aws.String(spec.ServiceRole),
			Artifacts:   &types.ProjectArtifacts{Type: types.ArtifactsTypeCodepipeline},
			Source:      &types.ProjectSource{Type: types.SourceTypeCodepipeline},
			Environment: environment,
		})
		if err != nil {
			if !reconcile.IsConflict(err) {
				return reconcile.Failed("build-project", spec.Name, fmt.Errorf("failed to create project: %w", err))
			}
			return reconcile.Unchanged("build-project", spec.Name)
		}
		return reconcile.Created("build-project", spec.Name)
	}

	if projectMatches(existing, spec) {
		logger.Info().Str("project", spec.Name).Msg("Build project already up to date")
		return reconcile.Unchanged("build-project", spec.Name)
	}

	logger.Info().Str("project", spec.Name).Msg("Build project exists, updating")
	_, err = s.client.UpdateProject(ctx, &codebuild.UpdateProjectInput{
		Name:        aws.String(spec.Name),
		ServiceRole: aws.String(spec.ServiceRole),
		Artifacts:   &types.ProjectArtifacts{Type: types.ArtifactsTypeCodepipeline},
		Source:      &types.ProjectSource{Type: types.SourceTypeCodepipeline},
		Environment: environment,
	})
	if err != nil {
		return reconcile.Failed("build-project", spec.Name, fmt.Errorf("failed to update project: %w", err))
	}
	return reconcile.Updated("build-project", spec.Name)
}

// probe returns the existing project or nil when absent. BatchGetProjects
// reports absence through ProjectsNotFound rather than an error.
func (s *ProjectService) probe(ctx context.Context, name string) (*types.Project, error) {
	out, err := s.client.BatchGetProjects(ctx, &codebuild.BatchGetProjectsInput{
		Names: []string{name},
	})
	if err != nil {
		if reconcile.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(out.Projects) == 0 {
		return nil, nil
	}
	return &out.Projects[0], nil
}

func projectMatches(existing *types.Project, spec BuildProjectSpec) bool {
	if aws.ToString(existing.ServiceRole) != spec.ServiceRole {
		return false
	}
	env := existing.Environment
	if env == nil {
		return false
	}
	return aws.ToString(env.Image) == spec.Image &&
		string(env.ComputeType) == spec.ComputeType
}
