// Package config holds the provisioner's desired-state inputs. Everything the
// original deployment required as an embedded constant lives here instead,
// loaded from a YAML file and validated before any remote call is made.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full desired-state input for one provisioning run.
type Config struct {
	Region string `yaml:"region"`

	Stack       StackConfig       `yaml:"stack"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	ContactForm ContactFormConfig `yaml:"contact_form"`

	// AuditTable, when set, names the DynamoDB table that receives a record
	// for every reconcile outcome. Empty disables auditing.
	AuditTable string `yaml:"audit_table"`
}

// StackConfig describes the CloudFormation stack that owns the IAM roles.
type StackConfig struct {
	Name         string        `yaml:"name"`
	TemplatePath string        `yaml:"template_path"`
	Capabilities []string      `yaml:"capabilities"`
	WaitTimeout  time.Duration `yaml:"wait_timeout"`
}

// PipelineConfig describes the CI/CD pipeline and its supporting resources.
type PipelineConfig struct {
	Name           string `yaml:"name"`
	ArtifactBucket string `yaml:"artifact_bucket"`
	GitHubOwner    string `yaml:"github_owner"`
	GitHubRepo     string `yaml:"github_repo"`
	GitHubBranch   string `yaml:"github_branch"`
	SecretID       string `yaml:"secret_id"`

	BuildProjectName  string `yaml:"build_project_name"`
	BuildRoleName     string `yaml:"build_role_name"`
	DeployAppName     string `yaml:"deploy_app_name"`
	DeployGroupName   string `yaml:"deploy_group_name"`
	DeployInstanceTag string `yaml:"deploy_instance_tag"`
	PipelineRoleArn   string `yaml:"pipeline_role_arn"`
	DeployRoleArn     string `yaml:"deploy_role_arn"`
}

// ContactFormConfig describes the serverless contact-form backend.
type ContactFormConfig struct {
	FunctionName string            `yaml:"function_name"`
	Runtime      string            `yaml:"runtime"`
	Handler      string            `yaml:"handler"`
	RoleName     string            `yaml:"role_name"`
	SourcePath   string            `yaml:"source_path"`
	Timeout      int32             `yaml:"timeout"`
	Environment  map[string]string `yaml:"environment"`

	APIName   string `yaml:"api_name"`
	RouteKey  string `yaml:"route_key"`
	StageName string `yaml:"stage_name"`

	FromEmail string `yaml:"from_email"`
	ToEmail   string `yaml:"to_email"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a config prefilled with the values that rarely change.
func Default() *Config {
	return &Config{
		Region: "ap-south-1",
		Stack: StackConfig{
			Capabilities: []string{"CAPABILITY_IAM"},
			WaitTimeout:  30 * time.Minute,
		},
		Pipeline: PipelineConfig{
			GitHubBranch: "main",
		},
		ContactForm: ContactFormConfig{
			Runtime:   "provided.al2023",
			Handler:   "bootstrap",
			Timeout:   10,
			RouteKey:  "POST /contact",
			StageName: "prod",
		},
	}
}

// Validate checks the invariants that every downstream call assumes: required
// names are non-empty and any preconfigured ARNs are well-formed.
func (c *Config) Validate() error {
	required := map[string]string{
		"region":                      c.Region,
		"stack.name":                  c.Stack.Name,
		"stack.template_path":         c.Stack.TemplatePath,
		"pipeline.name":               c.Pipeline.Name,
		"pipeline.artifact_bucket":    c.Pipeline.ArtifactBucket,
		"pipeline.github_owner":       c.Pipeline.GitHubOwner,
		"pipeline.github_repo":        c.Pipeline.GitHubRepo,
		"pipeline.secret_id":          c.Pipeline.SecretID,
		"pipeline.build_project_name": c.Pipeline.BuildProjectName,
		"pipeline.build_role_name":    c.Pipeline.BuildRoleName,
		"pipeline.deploy_app_name":    c.Pipeline.DeployAppName,
		"pipeline.deploy_group_name":  c.Pipeline.DeployGroupName,
		"contact_form.function_name":  c.ContactForm.FunctionName,
		"contact_form.role_name":      c.ContactForm.RoleName,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("config field %s is required", field)
		}
	}

	for field, arn := range map[string]string{
		"pipeline.pipeline_role_arn": c.Pipeline.PipelineRoleArn,
		"pipeline.deploy_role_arn":   c.Pipeline.DeployRoleArn,
	} {
		if arn == "" {
			continue // resolved from the stack's role map at runtime
		}
		if !ValidARN(arn) {
			return fmt.Errorf("config field %s is not a well-formed ARN: %q", field, arn)
		}
	}

	if c.ContactForm.Timeout <= 0 {
		return fmt.Errorf("contact_form.timeout must be positive")
	}

	return nil
}

// ValidARN reports whether s looks like an ARN: the literal arn prefix and
// six colon-delimited sections.
func ValidARN(s string) bool {
	if !strings.HasPrefix(s, "arn:") {
		return false
	}
	parts := strings.SplitN(s, ":", 6)
	if len(parts) != 6 {
		return false
	}
	// partition, service and resource must be present
	return parts[1] != "" && parts[2] != "" && parts[5] != ""
}
