package services

import (
	"context"
	"fmt"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
	"github.com/rs/zerolog"

	"github.com/hoistci/hoist/internal/pipeline"
	"github.com/hoistci/hoist/internal/reconcile"
)

// CodePipelineAPI is the subset of the CodePipeline client the pipeline
// service uses.
type CodePipelineAPI interface {
	GetPipeline(ctx context.Context, params *codepipeline.GetPipelineInput, optFns ...func(*codepipeline.Options)) (*codepipeline.GetPipelineOutput, error)
	CreatePipeline(ctx context.Context, params *codepipeline.CreatePipelineInput, optFns ...func(*codepipeline.Options)) (*codepipeline.CreatePipelineOutput, error)
	UpdatePipeline(ctx context.Context, params *codepipeline.UpdatePipelineInput, optFns ...func(*codepipeline.Options)) (*codepipeline.UpdatePipelineOutput, error)
}

// PipelineService reconciles CodePipeline pipelines.
type PipelineService struct {
	client CodePipelineAPI
}

// NewPipelineService creates a PipelineService.
func NewPipelineService(client CodePipelineAPI) *PipelineService {
	return &PipelineService{client: client}
}

// Ensure validates the spec's artifact topology locally, then converges the
// remote pipeline onto it. A remote pipeline that already matches is left
// alone.
func (s *PipelineService) Ensure(ctx context.Context, spec pipeline.Spec) reconcile.Result {
	logger := zerolog.Ctx(ctx)

	if err := spec.Validate(); err != nil {
		return reconcile.Failed("pipeline", spec.Name, err)
	}

	desired := spec.Declaration()

	existing, err := s.client.GetPipeline(ctx, &codepipeline.GetPipelineInput{
		Name: aws.String(spec.Name),
	})
	switch {
	case err == nil:
		if declarationMatches(existing.Pipeline, desired) {
			logger.Info().Str("pipeline", spec.Name).Msg("Pipeline already up to date")
			return reconcile.Unchanged("pipeline", spec.Name)
		}
		logger.Info().Str("pipeline", spec.Name).Msg("Pipeline exists, updating")
		if _, err := s.client.UpdatePipeline(ctx, &codepipeline.UpdatePipelineInput{
			Pipeline: desired,
		}); err != nil {
			return reconcile.Failed("pipeline", spec.Name, fmt.Errorf("failed to update pipeline: %w", err))
		}
		return reconcile.Updated("pipeline", spec.Name)

	case reconcile.IsNotFound(err):
		logger.Info().Str("pipeline", spec.Name).Msg("Pipeline not found, creating")
		if _, err := s.client.CreatePipeline(ctx, &codepipeline.CreatePipelineInput{
			Pipeline: desired,
		}); err != nil {
			if reconcile.IsConflict(err) {
				return reconcile.Unchanged("pipeline", spec.Name)
			}
			return reconcile.Failed("pipeline", spec.Name, fmt.Errorf("failed to create pipeline: %w", err))
		}
		return reconcile.Created("pipeline", spec.Name)

	default:
		return reconcile.Failed("pipeline", spec.Name, fmt.Errorf("failed to probe pipeline: %w", err))
	}
}

// declarationMatches compares the remote declaration against the desired one
// on the fields this tool manages. The control plane adds run-order and
// region defaults on read, so the comparison normalizes both sides first.
func declarationMatches(remote, desired *types.PipelineDeclaration) bool {
	if remote == nil {
		return false
	}
	return reflect.DeepEqual(normalizeDeclaration(remote), normalizeDeclaration(desired))
}

type normalizedAction struct {
	Name          string
	Category      string
	Owner         string
	Provider      string
	Version       string
	Inputs        []string
	Outputs       []string
	Configuration map[string]string
}

type normalizedStage struct {
	Name    string
	Actions []normalizedAction
}

type normalizedDeclaration struct {
	Name          string
	RoleArn       string
	ArtifactStore string
	Stages        []normalizedStage
}

func normalizeDeclaration(decl *types.PipelineDeclaration) normalizedDeclaration {
	n := normalizedDeclaration{
		Name:    aws.ToString(decl.Name),
		RoleArn: aws.ToString(decl.RoleArn),
	}
	if decl.ArtifactStore != nil {
		n.ArtifactStore = aws.ToString(decl.ArtifactStore.Location)
	}
	for _, stage := range decl.Stages {
		ns := normalizedStage{Name: aws.ToString(stage.Name)}
		for _, action := range stage.Actions {
			na := normalizedAction{
				Name:          aws.ToString(action.Name),
				Configuration: action.Configuration,
			}
			if action.ActionTypeId != nil {
				na.Category = string(action.ActionTypeId.Category)
				na.Owner = string(action.ActionTypeId.Owner)
				na.Provider = aws.ToString(action.ActionTypeId.Provider)
				na.Version = aws.ToString(action.ActionTypeId.Version)
			}
			for _, in := range action.InputArtifacts {
				na.Inputs = append(na.Inputs, aws.ToString(in.Name))
			}
			for _, out := range action.OutputArtifacts {
				na.Outputs = append(na.Outputs, aws.ToString(out.Name))
			}
			ns.Actions = append(ns.Actions, na)
		}
		n.Stages = append(n.Stages, ns)
	}
	return n
}
