package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/hoistci/hoist/cmd/hoist/commands"
	"github.com/hoistci/hoist/internal/di"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "hoist",
		Usage: "Idempotent AWS provisioning for a small web deployment",
		Description: `Converges an AWS account onto the state a config file describes.

This tool provides commands for:
  - Provisioning the base CloudFormation stack and its IAM roles
  - Setting up a GitHub to CodeDeploy pipeline with CodeBuild in the middle
  - Deploying a contact-form Lambda behind an API Gateway HTTP API

Every command is safe to rerun: resources that already match are left alone.`,
		Commands: []*cli.Command{
			commands.InfraCommand(&logger),
			commands.PipelineCommand(&logger),
			commands.ContactFormCommand(&logger),
			commands.UpCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
