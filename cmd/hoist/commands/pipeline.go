package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/hoistci/hoist/internal/config"
	"github.com/hoistci/hoist/internal/di"
	"github.com/hoistci/hoist/internal/iampolicy"
	"github.com/hoistci/hoist/internal/pipeline"
	"github.com/hoistci/hoist/internal/provision"
	"github.com/hoistci/hoist/internal/reconcile"
	"github.com/hoistci/hoist/internal/services"
)

// Logical ids of the roles the base stack declares. The pipeline command
// resolves their ARNs from the stack's role map unless the config pins them.
const (
	pipelineRoleLogicalID = "PipelineRole"
	deployRoleLogicalID   = "DeployRole"
)

const (
	buildImage       = "aws/codebuild/amazonlinux2-x86_64-standard:5.0"
	buildComputeType = "BUILD_GENERAL1_SMALL"
)

// pipelineDeps bundles the services the pipeline steps call.
type pipelineDeps struct {
	Stacks   *services.StackService
	Roles    *services.RoleService
	Buckets  *services.BucketService
	Secrets  *services.SecretResolver
	Projects *services.ProjectService
	Deploys  *services.DeployService
	Pipeline *services.PipelineService
}

func resolvePipelineDeps(container di.Container) pipelineDeps {
	return pipelineDeps{
		Stacks:   di.MustGet[*services.StackService](container),
		Roles:    di.MustGet[*services.RoleService](container),
		Buckets:  di.MustGet[*services.BucketService](container),
		Secrets:  di.MustGet[*services.SecretResolver](container),
		Projects: di.MustGet[*services.ProjectService](container),
		Deploys:  di.MustGet[*services.DeployService](container),
		Pipeline: di.MustGet[*services.PipelineService](container),
	}
}

// PipelineCommand returns the pipeline command, which converges the artifact
// bucket, service roles, build project, deploy application and the pipeline
// itself, in dependency order.
func PipelineCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "pipeline",
		Usage: "Provision the GitHub to CodeDeploy pipeline",
		Flags: commandFlags(),
		Action: func(c *cli.Context) error {
			ctx := logger.WithContext(c.Context)

			cfg, container, err := loadContainer(c)
			if err != nil {
				return err
			}

			deps := resolvePipelineDeps(container)
			runner := di.MustGet[*provision.Runner](container)

			_, err = runner.Run(ctx, "pipeline", PipelineSteps(cfg, deps))
			return err
		},
	}
}

// PipelineSteps builds the ordered pipeline provisioning steps. Later steps
// reference resources earlier ones create, so the order is load-bearing:
// bucket and secret first, then roles, then the services that assume them,
// then the pipeline that glues them together.
func PipelineSteps(cfg *config.Config, deps pipelineDeps) []provision.Step {
	var (
		githubToken     string
		buildRoleArn    string
		deployRoleArn   string
		pipelineRoleArn string
	)

	return []provision.Step{
		provision.Func("artifact-bucket", func(ctx context.Context) reconcile.Result {
			return deps.Buckets.Ensure(ctx, cfg.Pipeline.ArtifactBucket)
		}),

		provision.Func("github-token", func(ctx context.Context) reconcile.Result {
			token, err := deps.Secrets.Resolve(ctx, cfg.Pipeline.SecretID)
			if err != nil {
				return reconcile.Failed("secret", cfg.Pipeline.SecretID, err)
			}
			githubToken = token
			return reconcile.Unchanged("secret", cfg.Pipeline.SecretID)
		}),

		provision.Func("stack-roles", func(ctx context.Context) reconcile.Result {
			var err error
			pipelineRoleArn, err = resolveRoleArn(ctx, deps.Stacks, cfg, cfg.Pipeline.PipelineRoleArn, pipelineRoleLogicalID)
			if err != nil {
				return reconcile.Failed("role", pipelineRoleLogicalID, err)
			}
			deployRoleArn, err = resolveRoleArn(ctx, deps.Stacks, cfg, cfg.Pipeline.DeployRoleArn, deployRoleLogicalID)
			if err != nil {
				return reconcile.Failed("role", deployRoleLogicalID, err)
			}
			return reconcile.Unchanged("role", "stack-roles")
		}),

		provision.Func("build-role", func(ctx context.Context) reconcile.Result {
			arn, result := deps.Roles.Ensure(ctx, buildRoleSpec(cfg))
			if !result.Failed() {
				buildRoleArn = arn
			}
			return result
		}),

		provision.Func("build-project", func(ctx context.Context) reconcile.Result {
			return deps.Projects.Ensure(ctx, services.BuildProjectSpec{
				Name:        cfg.Pipeline.BuildProjectName,
				ServiceRole: buildRoleArn,
				Image:       buildImage,
				ComputeType: buildComputeType,
			})
		}),

		provision.Func("deploy-application", func(ctx context.Context) reconcile.Result {
			return deps.Deploys.EnsureApplication(ctx, cfg.Pipeline.DeployAppName)
		}),

		provision.Func("deployment-group", func(ctx context.Context) reconcile.Result {
			return deps.Deploys.EnsureDeploymentGroup(ctx, services.DeploymentGroupSpec{
				AppName:        cfg.Pipeline.DeployAppName,
				GroupName:      cfg.Pipeline.DeployGroupName,
				ServiceRoleArn: deployRoleArn,
				InstanceTag:    cfg.Pipeline.DeployInstanceTag,
			})
		}),

		provision.Func("pipeline", func(ctx context.Context) reconcile.Result {
			spec := pipeline.GitHubToCodeDeploy(cfg.Pipeline.Name, pipelineRoleArn, cfg.Pipeline.ArtifactBucket, pipeline.GitHubSourceInput{
				Owner:        cfg.Pipeline.GitHubOwner,
				Repo:         cfg.Pipeline.GitHubRepo,
				Branch:       cfg.Pipeline.GitHubBranch,
				OAuthToken:   githubToken,
				BuildProject: cfg.Pipeline.BuildProjectName,
				DeployApp:    cfg.Pipeline.DeployAppName,
				DeployGroup:  cfg.Pipeline.DeployGroupName,
			})
			return deps.Pipeline.Ensure(ctx, spec)
		}),
	}
}

// resolveRoleArn prefers a pinned ARN from the config and otherwise looks the
// logical id up in the base stack's role map.
func resolveRoleArn(ctx context.Context, stacks *services.StackService, cfg *config.Config, pinned, logicalID string) (string, error) {
	if pinned != "" {
		return pinned, nil
	}
	roles, err := stacks.RoleMap(ctx, cfg.Stack.Name)
	if err != nil {
		return "", err
	}
	arn, ok := roles[logicalID]
	if !ok {
		return "", fmt.Errorf("stack %s declares no role %s, run infra first or pin the ARN in config", cfg.Stack.Name, logicalID)
	}
	return arn, nil
}

func buildRoleSpec(cfg *config.Config) services.RoleSpec {
	logs := iampolicy.Allow([]string{
		"logs:CreateLogGroup",
		"logs:CreateLogStream",
		"logs:PutLogEvents",
	}, "*")
	artifacts := iampolicy.Allow([]string{
		"s3:GetObject",
		"s3:GetObjectVersion",
		"s3:PutObject",
	}, fmt.Sprintf("arn:aws:s3:::%s/*", cfg.Pipeline.ArtifactBucket))

	return services.RoleSpec{
		Name:        cfg.Pipeline.BuildRoleName,
		Description: "Service role assumed by the pipeline's CodeBuild project",
		TrustPolicy: iampolicy.ServiceTrust("codebuild.amazonaws.com").MustJSON(),
		InlinePolicies: map[string]string{
			"logs":      logs.MustJSON(),
			"artifacts": artifacts.MustJSON(),
		},
	}
}
