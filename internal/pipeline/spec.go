// Package pipeline models a CodePipeline definition as ordered stages of
// actions and validates artifact chaining before anything is submitted to the
// control plane.
package pipeline

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
)

// Spec is a desired pipeline: a role, an artifact store and ordered stages.
type Spec struct {
	Name           string
	RoleArn        string
	ArtifactBucket string
	Stages         []Stage
}

// Stage is a named, ordered list of actions. Stages run in sequence; actions
// within a stage may run in parallel.
type Stage struct {
	Name    string
	Actions []Action
}

// Action is one unit of work in a stage. Input artifacts must be produced as
// output artifacts by an earlier action.
type Action struct {
	Name            string
	Category        string // Source, Build, Deploy
	Owner           string // AWS or ThirdParty
	Provider        string
	Version         string
	InputArtifacts  []string
	OutputArtifacts []string
	Configuration   map[string]string
}

// GitHubSourceInput carries what the standard three-stage pipeline needs.
type GitHubSourceInput struct {
	Owner        string
	Repo         string
	Branch       string
	OAuthToken   string
	BuildProject string
	DeployApp    string
	DeployGroup  string
}

// GitHubToCodeDeploy builds the standard Source → Build → Deploy pipeline
// with a GitHub v1 source.
func GitHubToCodeDeploy(name, roleArn, artifactBucket string, in GitHubSourceInput) Spec {
	return Spec{
		Name:           name,
		RoleArn:        roleArn,
		ArtifactBucket: artifactBucket,
		Stages: []Stage{
			{
				Name: "Source",
				Actions: []Action{
					{
						Name:            "Source",
						Category:        "Source",
						Owner:           "ThirdParty",
						Provider:        "GitHub",
						Version:         "1",
						OutputArtifacts: []string{"SourceArtifact"},
						Configuration: map[string]string{
							"Owner":                in.Owner,
							"Repo":                 in.Repo,
							"Branch":               in.Branch,
							"OAuthToken":           in.OAuthToken,
							"PollForSourceChanges": "false",
						},
					},
				},
			},
			{
				Name: "Build",
				Actions: []Action{
					{
						Name:            "Build",
						Category:        "Build",
						Owner:           "AWS",
						Provider:        "CodeBuild",
						Version:         "1",
						InputArtifacts:  []string{"SourceArtifact"},
						OutputArtifacts: []string{"BuildArtifact"},
						Configuration: map[string]string{
							"ProjectName": in.BuildProject,
						},
					},
				},
			},
			{
				Name: "Deploy",
				Actions: []Action{
					{
						Name:           "Deploy",
						Category:       "Deploy",
						Owner:          "AWS",
						Provider:       "CodeDeploy",
						Version:        "1",
						InputArtifacts: []string{"BuildArtifact"},
						Configuration: map[string]string{
							"ApplicationName":     in.DeployApp,
							"DeploymentGroupName": in.DeployGroup,
						},
					},
				},
			},
		},
	}
}

// Declaration converts the spec into the SDK's pipeline declaration.
func (s Spec) Declaration() *types.PipelineDeclaration {
	stages := make([]types.StageDeclaration, 0, len(s.Stages))
	for _, stage := range s.Stages {
		actions := make([]types.ActionDeclaration, 0, len(stage.Actions))
		for _, action := range stage.Actions {
			decl := types.ActionDeclaration{
				Name: aws.String(action.Name),
				ActionTypeId: &types.ActionTypeId{
					Category: types.ActionCategory(action.Category),
					Owner:    types.ActionOwner(action.Owner),
					Provider: aws.String(action.Provider),
					Version:  aws.String(action.Version),
				},
				Configuration: action.Configuration,
			}
			for _, name := range action.InputArtifacts {
				decl.InputArtifacts = append(decl.InputArtifacts, types.InputArtifact{Name: aws.String(name)})
			}
			for _, name := range action.OutputArtifacts {
				decl.OutputArtifacts = append(decl.OutputArtifacts, types.OutputArtifact{Name: aws.String(name)})
			}
			actions = append(actions, decl)
		}
		stages = append(stages, types.StageDeclaration{
			Name:    aws.String(stage.Name),
			Actions: actions,
		})
	}

	return &types.PipelineDeclaration{
		Name:    aws.String(s.Name),
		RoleArn: aws.String(s.RoleArn),
		ArtifactStore: &types.ArtifactStore{
			Type:     types.ArtifactStoreTypeS3,
			Location: aws.String(s.ArtifactBucket),
		},
		Stages: stages,
	}
}
