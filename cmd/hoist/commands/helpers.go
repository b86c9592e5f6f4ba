package commands

import (
	"github.com/urfave/cli/v2"

	"github.com/hoistci/hoist/internal/config"
	"github.com/hoistci/hoist/internal/di"
)

func commandFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the config file",
			Value:   "hoist.yml",
			EnvVars: []string{"HOIST_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "region",
			Aliases: []string{"r"},
			Usage:   "AWS region, overrides the config file",
			EnvVars: []string{"HOIST_REGION", "AWS_REGION"},
		},
		&cli.StringFlag{
			Name:    "stack-name",
			Usage:   "CloudFormation stack name, overrides the config file",
			EnvVars: []string{"HOIST_STACK_NAME"},
		},
		&cli.StringFlag{
			Name:    "artifact-bucket",
			Usage:   "S3 artifact bucket name, overrides the config file",
			EnvVars: []string{"HOIST_ARTIFACT_BUCKET"},
		},
	}
}

// applyOverrides layers flag and environment values over the loaded config.
func applyOverrides(cfg *config.Config, c *cli.Context) {
	if region := c.String("region"); region != "" {
		cfg.Region = region
	}
	if name := c.String("stack-name"); name != "" {
		cfg.Stack.Name = name
	}
	if bucket := c.String("artifact-bucket"); bucket != "" {
		cfg.Pipeline.ArtifactBucket = bucket
	}
}

// loadContainer reads the config named by the --config flag, applies flag
// overrides, and builds the dependency injection container around it.
func loadContainer(c *cli.Context) (*config.Config, di.Container, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	applyOverrides(cfg, c)

	container, err := di.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, container, nil
}
