package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/hoistci/hoist/internal/config"
	"github.com/hoistci/hoist/internal/di"
	"github.com/hoistci/hoist/internal/policy"
	"github.com/hoistci/hoist/internal/provision"
	"github.com/hoistci/hoist/internal/reconcile"
	"github.com/hoistci/hoist/internal/services"
)

// InfraCommand returns the infra command, which converges the CloudFormation
// stack that owns the service roles.
func InfraCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "infra",
		Usage: "Provision the base CloudFormation stack and its IAM roles",
		Flags: commandFlags(),
		Action: func(c *cli.Context) error {
			ctx := logger.WithContext(c.Context)

			cfg, container, err := loadContainer(c)
			if err != nil {
				return err
			}

			stacks := di.MustGet[*services.StackService](container)
			validator := di.MustGet[*policy.Validator](container)
			runner := di.MustGet[*provision.Runner](container)

			if _, err := runner.Run(ctx, "infra", InfraSteps(cfg, stacks, validator)); err != nil {
				return err
			}

			roles, err := stacks.RoleMap(ctx, cfg.Stack.Name)
			if err != nil {
				return err
			}
			for logicalID, arn := range roles {
				fmt.Printf("✓ %s: %s\n", logicalID, arn)
			}
			return nil
		},
	}
}

// InfraSteps builds the ordered steps of the infra command: the template
// policy gate first, then the stack reconcile. The gate runs before anything
// reaches the control plane.
func InfraSteps(cfg *config.Config, stacks *services.StackService, validator *policy.Validator) []provision.Step {
	return []provision.Step{
		provision.Func("template-gate", func(ctx context.Context) reconcile.Result {
			result, err := validateTemplateFile(ctx, validator, cfg.Stack.TemplatePath)
			if err != nil {
				return reconcile.Failed("template", cfg.Stack.TemplatePath, err)
			}
			if !result.Allowed {
				return reconcile.Failed("template", cfg.Stack.TemplatePath,
					fmt.Errorf("template rejected by policy: %v", result.Violations))
			}
			return reconcile.Unchanged("template", cfg.Stack.TemplatePath)
		}),

		provision.Func("stack", func(ctx context.Context) reconcile.Result {
			descriptor, err := services.DescriptorFromFile(cfg.Stack.Name, cfg.Stack.TemplatePath, cfg.Stack.Capabilities)
			if err != nil {
				return reconcile.Failed("stack", cfg.Stack.Name, err)
			}
			return stacks.Reconcile(ctx, descriptor)
		}),
	}
}

// validateTemplateFile decodes the template (JSON and YAML both parse as
// YAML) and evaluates it against the embedded policy.
func validateTemplateFile(ctx context.Context, validator *policy.Validator, path string) (*policy.ValidationResult, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}

	var template map[string]any
	if err := yaml.Unmarshal(body, &template); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
	}

	return validator.ValidateTemplate(ctx, template)
}
