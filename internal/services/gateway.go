package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2/types"
	"github.com/rs/zerolog"

	apperrors "github.com/hoistci/hoist/internal/errors"
	"github.com/hoistci/hoist/internal/reconcile"
)

// GatewayAPI is the subset of the API Gateway v2 client the gateway service
// uses.
type GatewayAPI interface {
	GetApis(ctx context.Context, params *apigatewayv2.GetApisInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.GetApisOutput, error)
	CreateApi(ctx context.Context, params *apigatewayv2.CreateApiInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateApiOutput, error)
	GetIntegrations(ctx context.Context, params *apigatewayv2.GetIntegrationsInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.GetIntegrationsOutput, error)
	CreateIntegration(ctx context.Context, params *apigatewayv2.CreateIntegrationInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateIntegrationOutput, error)
	GetRoutes(ctx context.Context, params *apigatewayv2.GetRoutesInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.GetRoutesOutput, error)
	CreateRoute(ctx context.Context, params *apigatewayv2.CreateRouteInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateRouteOutput, error)
	UpdateRoute(ctx context.Context, params *apigatewayv2.UpdateRouteInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.UpdateRouteOutput, error)
	CreateDeployment(ctx context.Context, params *apigatewayv2.CreateDeploymentInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateDeploymentOutput, error)
	GetStage(ctx context.Context, params *apigatewayv2.GetStageInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.GetStageOutput, error)
	CreateStage(ctx context.Context, params *apigatewayv2.CreateStageInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.CreateStageOutput, error)
	UpdateStage(ctx context.Context, params *apigatewayv2.UpdateStageInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.UpdateStageOutput, error)
}

// GatewayService reconciles the HTTP API fronting the contact-form function.
type GatewayService struct {
	client GatewayAPI
	region string
}

// NewGatewayService creates a GatewayService for the given region.
func NewGatewayService(client GatewayAPI, region string) *GatewayService {
	return &GatewayService{client: client, region: region}
}

// EnsureAPI returns the id of the HTTP API with the given name, creating it
// when absent. Names are not unique in the control plane, so the probe takes
// the first match.
func (s *GatewayService) EnsureAPI(ctx context.Context, name string) (string, reconcile.Result) {
	logger := zerolog.Ctx(ctx)

	apis, err := s.client.GetApis(ctx, &apigatewayv2.GetApisInput{})
	if err != nil {
		return "", reconcile.Failed("api", name, fmt.Errorf("failed to list apis: %w", err))
	}
	for _, api := range apis.Items {
		if aws.ToString(api.Name) == name {
			logger.Info().Str("api", name).Str("api_id", aws.ToString(api.ApiId)).Msg("API already exists")
			return aws.ToString(api.ApiId), reconcile.Unchanged("api", name)
		}
	}

	created, err := s.client.CreateApi(ctx, &apigatewayv2.CreateApiInput{
		Name:         aws.String(name),
		ProtocolType: types.ProtocolTypeHttp,
	})
	if err != nil {
		return "", reconcile.Failed("api", name, fmt.Errorf("failed to create api: %w", err))
	}

	logger.Info().Str("api", name).Str("api_id", aws.ToString(created.ApiId)).Msg("API created")
	return aws.ToString(created.ApiId), reconcile.Created("api", name)
}

// EnsureIntegration returns the id of the AWS_PROXY integration pointing at
// the function, creating it when absent.
func (s *GatewayService) EnsureIntegration(ctx context.Context, apiID, accountID, functionName string) (string, reconcile.Result) {
	logger := zerolog.Ctx(ctx)

	uri := s.integrationURI(accountID, functionName)

	integrations, err := s.client.GetIntegrations(ctx, &apigatewayv2.GetIntegrationsInput{
		ApiId: aws.String(apiID),
	})
	if err != nil {
		return "", reconcile.Failed("integration", functionName, fmt.Errorf("failed to list integrations: %w", err))
	}
	for _, integration := range integrations.Items {
		if aws.ToString(integration.IntegrationUri) == uri {
			return aws.ToString(integration.IntegrationId), reconcile.Unchanged("integration", functionName)
		}
	}

	created, err := s.client.CreateIntegration(ctx, &apigatewayv2.CreateIntegrationInput{
		ApiId:                aws.String(apiID),
		IntegrationType:      types.IntegrationTypeAwsProxy,
		IntegrationUri:       aws.String(uri),
		PayloadFormatVersion: aws.String("2.0"),
	})
	if err != nil {
		return "", reconcile.Failed("integration", functionName, fmt.Errorf("failed to create integration: %w", err))
	}

	logger.Info().Str("integration_id", aws.ToString(created.IntegrationId)).Msg("Integration created")
	return aws.ToString(created.IntegrationId), reconcile.Created("integration", functionName)
}

// EnsureRoute points routeKey at the integration, creating or retargeting as
// needed. The integration must already exist.
func (s *GatewayService) EnsureRoute(ctx context.Context, apiID, routeKey, integrationID string) reconcile.Result {
	logger := zerolog.Ctx(ctx)
	if integrationID == "" {
		return reconcile.Failed("route", routeKey, apperrors.ErrIntegrationRequired)
	}
	target := "integrations/" + integrationID

	routes, err := s.client.GetRoutes(ctx, &apigatewayv2.GetRoutesInput{
		ApiId: aws.String(apiID),
	})
	if err != nil {
		return reconcile.Failed("route", routeKey, fmt.Errorf("failed to list routes: %w", err))
	}
	for _, route := range routes.Items {
		if aws.ToString(route.RouteKey) != routeKey {
			continue
		}
		if aws.ToString(route.Target) == target {
			return reconcile.Unchanged("route", routeKey)
		}
		if _, err := s.client.UpdateRoute(ctx, &apigatewayv2.UpdateRouteInput{
			ApiId:   aws.String(apiID),
			RouteId: route.RouteId,
			Target:  aws.String(target),
		}); err != nil {
			return reconcile.Failed("route", routeKey, fmt.Errorf("failed to retarget route: %w", err))
		}
		return reconcile.Updated("route", routeKey)
	}

	if _, err := s.client.CreateRoute(ctx, &apigatewayv2.CreateRouteInput{
		ApiId:    aws.String(apiID),
		RouteKey: aws.String(routeKey),
		Target:   aws.String(target),
	}); err != nil {
		if reconcile.IsConflict(err) {
			return reconcile.Unchanged("route", routeKey)
		}
		return reconcile.Failed("route", routeKey, fmt.Errorf("failed to create route: %w", err))
	}

	logger.Info().Str("route_key", routeKey).Msg("Route created")
	return reconcile.Created("route", routeKey)
}

// EnsureStage deploys the API and binds the stage to the new deployment.
// Routes must exist before the deployment snapshots them.
func (s *GatewayService) EnsureStage(ctx context.Context, apiID, stageName string) reconcile.Result {
	logger := zerolog.Ctx(ctx)

	deployment, err := s.client.CreateDeployment(ctx, &apigatewayv2.CreateDeploymentInput{
		ApiId: aws.String(apiID),
	})
	if err != nil {
		return reconcile.Failed("stage", stageName, fmt.Errorf("failed to create deployment: %w", err))
	}
	deploymentID := deployment.DeploymentId

	_, err = s.client.GetStage(ctx, &apigatewayv2.GetStageInput{
		ApiId:     aws.String(apiID),
		StageName: aws.String(stageName),
	})
	switch {
	case err == nil:
		if _, err := s.client.UpdateStage(ctx, &apigatewayv2.UpdateStageInput{
			ApiId:        aws.String(apiID),
			StageName:    aws.String(stageName),
			DeploymentId: deploymentID,
		}); err != nil {
			return reconcile.Failed("stage", stageName, fmt.Errorf("failed to update stage: %w", err))
		}
		return reconcile.Updated("stage", stageName)

	case reconcile.IsNotFound(err):
		if _, err := s.client.CreateStage(ctx, &apigatewayv2.CreateStageInput{
			ApiId:        aws.String(apiID),
			StageName:    aws.String(stageName),
			DeploymentId: deploymentID,
		}); err != nil {
			if reconcile.IsConflict(err) {
				return reconcile.Unchanged("stage", stageName)
			}
			return reconcile.Failed("stage", stageName, fmt.Errorf("failed to create stage: %w", err))
		}
		logger.Info().Str("stage", stageName).Msg("Stage created")
		return reconcile.Created("stage", stageName)

	default:
		return reconcile.Failed("stage", stageName, fmt.Errorf("failed to probe stage: %w", err))
	}
}

// integrationURI builds the apigateway invocation URI for the function.
func (s *GatewayService) integrationURI(accountID, functionName string) string {
	functionArn := fmt.Sprintf("arn:aws:lambda:%s:%s:function:%s", s.region, accountID, functionName)
	return fmt.Sprintf("arn:aws:apigateway:%s:lambda:path/2015-03-31/functions/%s/invocations", s.region, functionArn)
}

// ExecuteAPISourceArn builds the source ARN that scopes the function's invoke
// permission to one route of the API.
func (s *GatewayService) ExecuteAPISourceArn(accountID, apiID, routeKey string) string {
	// "POST /contact" -> "/contact"
	path := routeKey
	if idx := strings.IndexByte(routeKey, ' '); idx >= 0 {
		path = routeKey[idx+1:]
	}
	return fmt.Sprintf("arn:aws:execute-api:%s:%s:%s/*/*%s", s.region, accountID, apiID, path)
}

// InvokeURL is the public URL of the routed stage.
func (s *GatewayService) InvokeURL(apiID, stageName, routeKey string) string {
	path := routeKey
	if idx := strings.IndexByte(routeKey, ' '); idx >= 0 {
		path = routeKey[idx+1:]
	}
	return fmt.Sprintf("https://%s.execute-api.%s.amazonaws.com/%s%s", apiID, s.region, stageName, path)
}
