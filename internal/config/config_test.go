package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Stack.Name = "demo-stack"
	cfg.Stack.TemplatePath = "iac.yml"
	cfg.Pipeline.Name = "demo-pipeline"
	cfg.Pipeline.ArtifactBucket = "demo-artifacts"
	cfg.Pipeline.GitHubOwner = "octocat"
	cfg.Pipeline.GitHubRepo = "demo"
	cfg.Pipeline.SecretID = "github_pat_for_cicd"
	cfg.Pipeline.BuildProjectName = "demo-build"
	cfg.Pipeline.BuildRoleName = "CodeBuildServiceRole"
	cfg.Pipeline.DeployAppName = "demo-app"
	cfg.Pipeline.DeployGroupName = "demo-group"
	cfg.ContactForm.FunctionName = "contact-form-sender"
	cfg.ContactForm.RoleName = "ContactFormLambdaRole"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("missing stack name", func(t *testing.T) {
		cfg := validConfig()
		cfg.Stack.Name = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stack.name")
	})

	t.Run("whitespace-only name rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pipeline.Name = "   "
		assert.Error(t, cfg.Validate())
	})

	t.Run("malformed role arn rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pipeline.PipelineRoleArn = "role/MyPipelineRole"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "well-formed ARN")
	})

	t.Run("well-formed role arn accepted", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pipeline.PipelineRoleArn = "arn:aws:iam::123456789012:role/MyPipelineRole"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("empty role arn accepted as runtime-resolved", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pipeline.PipelineRoleArn = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("non-positive timeout rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.ContactForm.Timeout = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestValidARN(t *testing.T) {
	tests := []struct {
		arn  string
		want bool
	}{
		{"arn:aws:iam::123456789012:role/MyRole", true},
		{"arn:aws:s3:::my-bucket", true},
		{"arn:aws:lambda:ap-south-1:123456789012:function:sender", true},
		{"not-an-arn", false},
		{"arn:aws:iam", false},
		{"arn::iam::123456789012:role/MyRole", false},
		{"arn:aws:iam::123456789012:", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.arn, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidARN(tt.arn))
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hoist.yml")

	content := `
region: ap-south-1
stack:
  name: demo-stack
  template_path: iac_ec2.yml
pipeline:
  name: demo-pipeline
  artifact_bucket: cicd-artifacts-demo
  github_owner: octocat
  github_repo: aws-cicd-project
  secret_id: github_pat_for_cicd
  build_project_name: demo-build
  build_role_name: CodeBuildServiceRole
  deploy_app_name: demo-app
  deploy_group_name: demo-group
  deploy_instance_tag: MyEC2Instance
contact_form:
  function_name: contact-form-sender
  role_name: ContactFormLambdaRole
  from_email: sender@example.com
  to_email: inbox@example.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "demo-stack", cfg.Stack.Name)
	assert.Equal(t, "main", cfg.Pipeline.GitHubBranch, "default should survive partial file")
	assert.Equal(t, "POST /contact", cfg.ContactForm.RouteKey)
	assert.Equal(t, []string{"CAPABILITY_IAM"}, cfg.Stack.Capabilities)
	assert.Equal(t, int32(10), cfg.ContactForm.Timeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestLoadInvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hoist.yml")
	require.NoError(t, os.WriteFile(path, []byte("region: us-east-1\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err, "config without required names must not load")
}
