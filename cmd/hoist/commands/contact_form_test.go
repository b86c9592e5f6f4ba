package commands

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoistci/hoist/internal/config"
	"github.com/hoistci/hoist/internal/services"
)

// stubGateway satisfies services.GatewayAPI with just enough behavior for the
// stage step to succeed.
type stubGateway struct{}

func (stubGateway) GetApis(context.Context, *apigatewayv2.GetApisInput, ...func(*apigatewayv2.Options)) (*apigatewayv2.GetApisOutput, error) {
	return &apigatewayv2.GetApisOutput{}, nil
}

func (stubGateway) CreateApi(context.Context, *apigatewayv2.CreateApiInput, ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateApiOutput, error) {
	return &apigatewayv2.CreateApiOutput{ApiId: aws.String("api-1")}, nil
}

func (stubGateway) GetIntegrations(context.Context, *apigatewayv2.GetIntegrationsInput, ...func(*apigatewayv2.Options)) (*apigatewayv2.GetIntegrationsOutput, error) {
	return &apigatewayv2.GetIntegrationsOutput{}, nil
}

func (stubGateway) CreateIntegration(context.Context, *apigatewayv2.CreateIntegrationInput, ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateIntegrationOutput, error) {
	return &apigatewayv2.CreateIntegrationOutput{IntegrationId: aws.String("integ-1")}, nil
}

func (stubGateway) GetRoutes(context.Context, *apigatewayv2.GetRoutesInput, ...func(*apigatewayv2.Options)) (*apigatewayv2.GetRoutesOutput, error) {
	return &apigatewayv2.GetRoutesOutput{}, nil
}

func (stubGateway) CreateRoute(context.Context, *apigatewayv2.CreateRouteInput, ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateRouteOutput, error) {
	return &apigatewayv2.CreateRouteOutput{}, nil
}

func (stubGateway) UpdateRoute(context.Context, *apigatewayv2.UpdateRouteInput, ...func(*apigatewayv2.Options)) (*apigatewayv2.UpdateRouteOutput, error) {
	return &apigatewayv2.UpdateRouteOutput{}, nil
}

func (stubGateway) CreateDeployment(context.Context, *apigatewayv2.CreateDeploymentInput, ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateDeploymentOutput, error) {
	return &apigatewayv2.CreateDeploymentOutput{DeploymentId: aws.String("dep-1")}, nil
}

func (stubGateway) GetStage(context.Context, *apigatewayv2.GetStageInput, ...func(*apigatewayv2.Options)) (*apigatewayv2.GetStageOutput, error) {
	return nil, &smithy.GenericAPIError{Code: "NotFoundException", Message: "stage not found"}
}

func (stubGateway) CreateStage(context.Context, *apigatewayv2.CreateStageInput, ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateStageOutput, error) {
	return &apigatewayv2.CreateStageOutput{}, nil
}

func (stubGateway) UpdateStage(context.Context, *apigatewayv2.UpdateStageInput, ...func(*apigatewayv2.Options)) (*apigatewayv2.UpdateStageOutput, error) {
	return &apigatewayv2.UpdateStageOutput{}, nil
}

func TestContactFormStepsFillInvokeURL(t *testing.T) {
	cfg := config.Default()
	deps := contactFormDeps{
		Gateway: services.NewGatewayService(stubGateway{}, "ap-south-1"),
	}

	steps, invokeURL := ContactFormSteps(cfg, deps)
	require.NotNil(t, invokeURL)
	assert.Empty(t, *invokeURL)

	stage := steps[len(steps)-1]
	require.Equal(t, "stage", stage.Name)

	result := stage.Run(context.Background())
	require.False(t, result.Failed())
	assert.Contains(t, *invokeURL, "execute-api.ap-south-1.amazonaws.com/prod/contact")
}
