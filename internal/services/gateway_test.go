package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	apitypes "github.com/aws/aws-sdk-go-v2/service/apigatewayv2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hoistci/hoist/internal/errors"
	"github.com/hoistci/hoist/internal/reconcile"
)

type fakeGateway struct {
	apis         []apitypes.Api
	integrations []apitypes.Integration
	routes       []apitypes.Route
	stages       map[string]string // stage name -> deployment id

	nextID      int
	listErr     error
	deployments int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{stages: map[string]string{}}
}

func (f *fakeGateway) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeGateway) GetApis(_ context.Context, _ *apigatewayv2.GetApisInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.GetApisOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &apigatewayv2.GetApisOutput{Items: f.apis}, nil
}

func (f *fakeGateway) CreateApi(_ context.Context, params *apigatewayv2.CreateApiInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateApiOutput, error) {
	apiID := f.id("api")
	f.apis = append(f.apis, apitypes.Api{ApiId: aws.String(apiID), Name: params.Name})
	return &apigatewayv2.CreateApiOutput{ApiId: aws.String(apiID), Name: params.Name}, nil
}

func (f *fakeGateway) GetIntegrations(_ context.Context, _ *apigatewayv2.GetIntegrationsInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.GetIntegrationsOutput, error) {
	return &apigatewayv2.GetIntegrationsOutput{Items: f.integrations}, nil
}

func (f *fakeGateway) CreateIntegration(_ context.Context, params *apigatewayv2.CreateIntegrationInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateIntegrationOutput, error) {
	integrationID := f.id("integ")
	f.integrations = append(f.integrations, apitypes.Integration{
		IntegrationId:  aws.String(integrationID),
		IntegrationUri: params.IntegrationUri,
	})
	return &apigatewayv2.CreateIntegrationOutput{IntegrationId: aws.String(integrationID)}, nil
}

func (f *fakeGateway) GetRoutes(_ context.Context, _ *apigatewayv2.GetRoutesInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.GetRoutesOutput, error) {
	return &apigatewayv2.GetRoutesOutput{Items: f.routes}, nil
}

func (f *fakeGateway) CreateRoute(_ context.Context, params *apigatewayv2.CreateRouteInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateRouteOutput, error) {
	routeID := f.id("route")
	f.routes = append(f.routes, apitypes.Route{
		RouteId:  aws.String(routeID),
		RouteKey: params.RouteKey,
		Target:   params.Target,
	})
	return &apigatewayv2.CreateRouteOutput{RouteId: aws.String(routeID)}, nil
}

func (f *fakeGateway) UpdateRoute(_ context.Context, params *apigatewayv2.UpdateRouteInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.UpdateRouteOutput, error) {
	for i := range f.routes {
		if aws.ToString(f.routes[i].RouteId) == aws.ToString(params.RouteId) {
			f.routes[i].Target = params.Target
		}
	}
	return &apigatewayv2.UpdateRouteOutput{}, nil
}

func (f *fakeGateway) CreateDeployment(_ context.Context, _ *apigatewayv2.CreateDeploymentInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateDeploymentOutput, error) {
	f.deployments++
	return &apigatewayv2.CreateDeploymentOutput{DeploymentId: aws.String(f.id("deploy"))}, nil
}

func (f *fakeGateway) GetStage(_ context.Context, params *apigatewayv2.GetStageInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.GetStageOutput, error) {
	name := aws.ToString(params.StageName)
	if _, ok := f.stages[name]; !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFoundException", Message: "stage not found"}
	}
	return &apigatewayv2.GetStageOutput{StageName: params.StageName}, nil
}

func (f *fakeGateway) CreateStage(_ context.Context, params *apigatewayv2.CreateStageInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateStageOutput, error) {
	f.stages[aws.ToString(params.StageName)] = aws.ToString(params.DeploymentId)
	return &apigatewayv2.CreateStageOutput{StageName: params.StageName}, nil
}

func (f *fakeGateway) UpdateStage(_ context.Context, params *apigatewayv2.UpdateStageInput, _ ...func(*apigatewayv2.Options)) (*apigatewayv2.UpdateStageOutput, error) {
	f.stages[aws.ToString(params.StageName)] = aws.ToString(params.DeploymentId)
	return &apigatewayv2.UpdateStageOutput{}, nil
}

func TestEnsureAPICreateThenUnchanged(t *testing.T) {
	client := newFakeGateway()
	service := NewGatewayService(client, "ap-south-1")

	apiID, result := service.EnsureAPI(context.Background(), "contact-form-api")
	require.False(t, result.Failed())
	assert.Equal(t, reconcile.OutcomeCreated, result.Outcome)
	assert.NotEmpty(t, apiID)

	again, result := service.EnsureAPI(context.Background(), "contact-form-api")
	assert.Equal(t, reconcile.OutcomeUnchanged, result.Outcome)
	assert.Equal(t, apiID, again)
}

func TestEnsureAPIProbeFailureIsFatal(t *testing.T) {
	client := newFakeGateway()
	client.listErr = &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"}
	service := NewGatewayService(client, "ap-south-1")

	_, result := service.EnsureAPI(context.Background(), "contact-form-api")
	assert.True(t, result.Failed())
}

func TestEnsureIntegrationIdempotent(t *testing.T) {
	client := newFakeGateway()
	service := NewGatewayService(client, "ap-south-1")

	integrationID, result := service.EnsureIntegration(context.Background(), "api-1", "123456789012", "contact-form")
	require.False(t, result.Failed())
	assert.Equal(t, reconcile.OutcomeCreated, result.Outcome)

	again, result := service.EnsureIntegration(context.Background(), "api-1", "123456789012", "contact-form")
	assert.Equal(t, reconcile.OutcomeUnchanged, result.Outcome)
	assert.Equal(t, integrationID, again)
}

func TestEnsureRouteCreatesAndRetargets(t *testing.T) {
	client := newFakeGateway()
	service := NewGatewayService(client, "ap-south-1")

	result := service.EnsureRoute(context.Background(), "api-1", "POST /contact", "integ-1")
	assert.Equal(t, reconcile.OutcomeCreated, result.Outcome)

	result = service.EnsureRoute(context.Background(), "api-1", "POST /contact", "integ-1")
	assert.Equal(t, reconcile.OutcomeUnchanged, result.Outcome)

	result = service.EnsureRoute(context.Background(), "api-1", "POST /contact", "integ-2")
	assert.Equal(t, reconcile.OutcomeUpdated, result.Outcome)
	assert.Equal(t, "integrations/integ-2", aws.ToString(client.routes[0].Target))
}

func TestEnsureRouteRequiresIntegration(t *testing.T) {
	client := newFakeGateway()
	service := NewGatewayService(client, "ap-south-1")

	result := service.EnsureRoute(context.Background(), "api-1", "POST /contact", "")
	assert.Equal(t, reconcile.OutcomeFailed, result.Outcome)
	assert.ErrorIs(t, result.Err, apperrors.ErrIntegrationRequired)
	assert.Len(t, client.routes, 0)
}

func TestEnsureStageDeploysEveryRun(t *testing.T) {
	client := newFakeGateway()
	service := NewGatewayService(client, "ap-south-1")

	result := service.EnsureStage(context.Background(), "api-1", "prod")
	assert.Equal(t, reconcile.OutcomeCreated, result.Outcome)

	result = service.EnsureStage(context.Background(), "api-1", "prod")
	assert.Equal(t, reconcile.OutcomeUpdated, result.Outcome)
	assert.Equal(t, 2, client.deployments, "every run snapshots a fresh deployment")
}

func TestExecuteAPISourceArn(t *testing.T) {
	service := NewGatewayService(newFakeGateway(), "ap-south-1")
	arn := service.ExecuteAPISourceArn("123456789012", "abc123", "POST /contact")
	assert.Equal(t, "arn:aws:execute-api:ap-south-1:123456789012:abc123/*/*/contact", arn)
}

func TestInvokeURL(t *testing.T) {
	service := NewGatewayService(newFakeGateway(), "ap-south-1")
	url := service.InvokeURL("abc123", "prod", "POST /contact")
	assert.Equal(t, "https://abc123.execute-api.ap-south-1.amazonaws.com/prod/contact", url)
}
