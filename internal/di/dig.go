// Package di provides a lightweight wrapper around uber's dig dependency
// injection framework. It simplifies container setup and provides type-safe
// dependency retrieval with generics.
package di

import (
	"go.uber.org/dig"

	"github.com/hoistci/hoist/internal/config"
)

// Container defines a dependency injection container based on uber's dig.
// This interface allows for easy testing and mocking of the DI container.
type Container interface {
	// Invoke executes a function, injecting its dependencies from the container.
	Invoke(function any, opts ...dig.InvokeOption) error

	// Provide registers a constructor function in the container.
	Provide(constructor any, opts ...dig.ProvideOption) error

	// Scope creates a scoped sub-container with its own set of values.
	Scope(name string, opts ...dig.ScopeOption) *dig.Scope
}

// MustGet returns an instance constructed via dependency injection or panics.
// This is a convenience function for retrieving a dependency from the
// container when you're certain it exists.
//
// Example:
//
//	stacks := MustGet[*services.StackService](container)
func MustGet[T any](container Container) (want T) {
	callback := func(got T) {
		want = got
	}
	if err := container.Invoke(callback); err != nil {
		panic(err)
	}
	return want
}

// New creates a new dependency injection container seeded with the loaded
// configuration. All AWS clients and provisioning services are registered.
func New(cfg *config.Config, opts ...Option) (Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	container := dig.New()
	if err := container.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}

	for _, provider := range core {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	for _, provider := range o.providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	return container, nil
}

var core = []any{
	ProvideContext,
	ProvideAWSConfig,
	ProvideCloudFormation,
	ProvideIAM,
	ProvideSTS,
	ProvideS3,
	ProvideSecretsManager,
	ProvideSSM,
	ProvideCodeBuild,
	ProvideCodeDeploy,
	ProvideCodePipeline,
	ProvideLambda,
	ProvideAPIGateway,
	ProvideDynamoDB,
	ProvideStackService,
	ProvideRoleService,
	ProvideBucketService,
	ProvideSecretResolver,
	ProvideProjectService,
	ProvideDeployService,
	ProvidePipelineService,
	ProvideFunctionService,
	ProvideGatewayService,
	ProvideTemplateValidator,
	ProvideRunDAO,
	ProvideRunner,
}
