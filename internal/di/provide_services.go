package di

import (
	"os"

	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/codedeploy"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/hoistci/hoist/internal/config"
	"github.com/hoistci/hoist/internal/dao/rundao"
	"github.com/hoistci/hoist/internal/policy"
	"github.com/hoistci/hoist/internal/provision"
	"github.com/hoistci/hoist/internal/services"
)

// ProvideStackService wraps the CloudFormation client with the shared rate
// limiter. Describe polling otherwise burns through the API quota.
func ProvideStackService(client *cloudformation.Client, cfg *config.Config) *services.StackService {
	limited := services.NewRateLimitedCloudFormation(client)
	return services.NewStackService(limited, cfg.Stack.WaitTimeout)
}

func ProvideRoleService(client *iam.Client, stsClient *sts.Client) *services.RoleService {
	return services.NewRoleService(client, stsClient)
}

func ProvideBucketService(client *s3.Client, cfg *config.Config) *services.BucketService {
	return services.NewBucketService(client, cfg.Region)
}

func ProvideSecretResolver(secrets *secretsmanager.Client, params *ssm.Client) *services.SecretResolver {
	return services.NewSecretResolver(secrets, params)
}

func ProvideProjectService(client *codebuild.Client) *services.ProjectService {
	return services.NewProjectService(client)
}

func ProvideDeployService(client *codedeploy.Client) *services.DeployService {
	return services.NewDeployService(client)
}

func ProvidePipelineService(client *codepipeline.Client) *services.PipelineService {
	return services.NewPipelineService(client)
}

func ProvideFunctionService(client *lambda.Client) *services.FunctionService {
	return services.NewFunctionService(client)
}

func ProvideGatewayService(client *apigatewayv2.Client, cfg *config.Config) *services.GatewayService {
	return services.NewGatewayService(client, cfg.Region)
}

func ProvideTemplateValidator() (*policy.Validator, error) {
	return policy.NewValidator()
}

// ProvideRunDAO returns the audit DAO, or nil when no audit table is
// configured.
func ProvideRunDAO(client *dynamodb.Client, cfg *config.Config) *rundao.DAO {
	if cfg.AuditTable == "" {
		return nil
	}
	return rundao.New(client, cfg.AuditTable)
}

func ProvideRunner(dao *rundao.DAO) *provision.Runner {
	if dao == nil {
		return provision.NewRunner(os.Stdout, nil)
	}
	return provision.NewRunner(os.Stdout, dao)
}
