package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/hoistci/hoist/internal/archive"
	"github.com/hoistci/hoist/internal/config"
	"github.com/hoistci/hoist/internal/di"
	"github.com/hoistci/hoist/internal/iampolicy"
	"github.com/hoistci/hoist/internal/provision"
	"github.com/hoistci/hoist/internal/reconcile"
	"github.com/hoistci/hoist/internal/services"
)

// contactFormDeps bundles the services the contact-form steps call.
type contactFormDeps struct {
	Roles     *services.RoleService
	Functions *services.FunctionService
	Gateway   *services.GatewayService
}

func resolveContactFormDeps(container di.Container) contactFormDeps {
	return contactFormDeps{
		Roles:     di.MustGet[*services.RoleService](container),
		Functions: di.MustGet[*services.FunctionService](container),
		Gateway:   di.MustGet[*services.GatewayService](container),
	}
}

// ContactFormCommand returns the contact-form command, which deploys the
// serverless contact-form backend: execution role, function, HTTP API, route
// and stage.
func ContactFormCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "contact-form",
		Usage: "Deploy the contact-form Lambda behind an HTTP API",
		Flags: commandFlags(),
		Action: func(c *cli.Context) error {
			ctx := logger.WithContext(c.Context)

			cfg, container, err := loadContainer(c)
			if err != nil {
				return err
			}

			deps := resolveContactFormDeps(container)
			runner := di.MustGet[*provision.Runner](container)

			steps, invokeURL := ContactFormSteps(cfg, deps)
			if _, err := runner.Run(ctx, "contact-form", steps); err != nil {
				return err
			}

			fmt.Printf("✓ Invoke URL: %s\n", *invokeURL)
			return nil
		},
	}
}

// ContactFormSteps builds the ordered contact-form steps. The returned string
// pointer is filled with the invoke URL once the stage step has run.
func ContactFormSteps(cfg *config.Config, deps contactFormDeps) ([]provision.Step, *string) {
	form := cfg.ContactForm

	var (
		accountID     string
		roleArn       string
		apiID         string
		integrationID string
		invokeURL     string
	)

	steps := []provision.Step{
		provision.Func("execution-role", func(ctx context.Context) reconcile.Result {
			account, err := deps.Roles.AccountID(ctx)
			if err != nil {
				return reconcile.Failed("role", form.RoleName, err)
			}
			accountID = account

			arn, result := deps.Roles.Ensure(ctx, contactFormRoleSpec(cfg))
			if !result.Failed() {
				roleArn = arn
			}
			return result
		}),

		provision.Func("function", func(ctx context.Context) reconcile.Result {
			zipBytes, err := archive.ZipFiles(form.SourcePath)
			if err != nil {
				return reconcile.Failed("function", form.FunctionName, err)
			}
			return deps.Functions.Deploy(ctx, services.FunctionSpec{
				Name:        form.FunctionName,
				Runtime:     form.Runtime,
				Handler:     form.Handler,
				RoleArn:     roleArn,
				ZipBytes:    zipBytes,
				Timeout:     form.Timeout,
				Environment: contactFormEnvironment(cfg),
			})
		}),

		provision.Func("http-api", func(ctx context.Context) reconcile.Result {
			id, result := deps.Gateway.EnsureAPI(ctx, form.APIName)
			if !result.Failed() {
				apiID = id
			}
			return result
		}),

		provision.Func("integration", func(ctx context.Context) reconcile.Result {
			id, result := deps.Gateway.EnsureIntegration(ctx, apiID, accountID, form.FunctionName)
			if !result.Failed() {
				integrationID = id
			}
			return result
		}),

		provision.Func("route", func(ctx context.Context) reconcile.Result {
			return deps.Gateway.EnsureRoute(ctx, apiID, form.RouteKey, integrationID)
		}),

		provision.Func("invoke-permission", func(ctx context.Context) reconcile.Result {
			sourceArn := deps.Gateway.ExecuteAPISourceArn(accountID, apiID, form.RouteKey)
			return deps.Functions.AddInvokePermission(ctx, form.FunctionName, "apigateway-invoke", "apigateway.amazonaws.com", sourceArn)
		}),

		provision.Func("stage", func(ctx context.Context) reconcile.Result {
			result := deps.Gateway.EnsureStage(ctx, apiID, form.StageName)
			if !result.Failed() {
				invokeURL = deps.Gateway.InvokeURL(apiID, form.StageName, form.RouteKey)
			}
			return result
		}),
	}

	return steps, &invokeURL
}

// contactFormEnvironment is the full variable set the function runs with.
// Deploys replace the remote set, so everything the handler needs is listed
// here.
func contactFormEnvironment(cfg *config.Config) map[string]string {
	form := cfg.ContactForm

	env := map[string]string{
		"FROM_EMAIL": form.FromEmail,
		"TO_EMAIL":   form.ToEmail,
		"SES_REGION": cfg.Region,
	}
	for key, value := range form.Environment {
		env[key] = value
	}
	return env
}

func contactFormRoleSpec(cfg *config.Config) services.RoleSpec {
	ses := iampolicy.Allow([]string{"ses:SendEmail"}, "*")

	return services.RoleSpec{
		Name:        cfg.ContactForm.RoleName,
		Description: "Execution role for the contact-form function",
		TrustPolicy: iampolicy.ServiceTrust("lambda.amazonaws.com").MustJSON(),
		ManagedPolicyArns: []string{
			"arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole",
		},
		InlinePolicies: map[string]string{
			"ses-send": ses.MustJSON(),
		},
	}
}
