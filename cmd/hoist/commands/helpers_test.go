package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/hoistci/hoist/internal/config"
)

func runWithFlags(t *testing.T, cfg *config.Config, args ...string) {
	t.Helper()
	app := &cli.App{
		Flags: commandFlags(),
		Action: func(c *cli.Context) error {
			applyOverrides(cfg, c)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"hoist"}, args...)))
}

func TestApplyOverridesFromFlags(t *testing.T) {
	cfg := config.Default()
	cfg.Stack.Name = "web"
	cfg.Pipeline.ArtifactBucket = "artifacts"

	runWithFlags(t, cfg, "--region", "us-west-2", "--stack-name", "web-2")

	assert.Equal(t, "us-west-2", cfg.Region)
	assert.Equal(t, "web-2", cfg.Stack.Name)
	assert.Equal(t, "artifacts", cfg.Pipeline.ArtifactBucket, "unset flags keep the config value")
}

func TestApplyOverridesFromEnvironment(t *testing.T) {
	t.Setenv("HOIST_REGION", "eu-west-1")
	t.Setenv("HOIST_ARTIFACT_BUCKET", "artifacts-eu")

	cfg := config.Default()
	runWithFlags(t, cfg)

	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "artifacts-eu", cfg.Pipeline.ArtifactBucket)
}
