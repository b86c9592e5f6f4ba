package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/hoistci/hoist/internal/di"
	"github.com/hoistci/hoist/internal/policy"
	"github.com/hoistci/hoist/internal/provision"
	"github.com/hoistci/hoist/internal/services"
)

// UpCommand returns the up command, which provisions everything the config
// describes in one run: stack, pipeline, then the contact-form backend. The
// run stops at the first failed step; a rerun converges from there.
func UpCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "up",
		Usage: "Provision the stack, pipeline and contact-form backend in order",
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

			steps := InfraSteps(cfg, stacks, validator)
			steps = append(steps, PipelineSteps(cfg, resolvePipelineDeps(container))...)
			contactSteps, invokeURL := ContactFormSteps(cfg, resolveContactFormDeps(container))
			steps = append(steps, contactSteps...)

			if _, err := runner.Run(ctx, "up", steps); err != nil {
				return err
			}

			fmt.Printf("✓ Invoke URL: %s\n", *invokeURL)
			return nil
		},
	}
}
