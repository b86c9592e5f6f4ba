package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	apperrors "github.com/hoistci/hoist/internal/errors"
)

// GitHubTokenKey is the well-known field name a structured secret payload may
// carry the token under.
const GitHubTokenKey = "github_token"

// ssmPrefix routes a secret id to Parameter Store instead of Secrets Manager.
const ssmPrefix = "ssm://"

// SecretsManagerAPI is the subset of the Secrets Manager client the resolver
// uses.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SSMAPI is the subset of the SSM client the resolver uses.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SecretResolver fetches a secret value and normalizes both supported
// payload encodings to a single plaintext string.
type SecretResolver struct {
	secrets SecretsManagerAPI
	params  SSMAPI
}

// NewSecretResolver creates a SecretResolver.
func NewSecretResolver(secrets SecretsManagerAPI, params SSMAPI) *SecretResolver {
	return &SecretResolver{secrets: secrets, params: params}
}

// Resolve fetches the secret behind id. Ids prefixed with ssm:// are read
// from Parameter Store with decryption; everything else from Secrets
// Manager. The payload may be a JSON object carrying the github_token field
// or a bare string; both normalize to a single string value. A transport or
// auth failure is fatal and callers must not proceed to dependent steps.
func (r *SecretResolver) Resolve(ctx context.Context, id string) (string, error) {
	raw, err := r.fetch(ctx, id)
	if err != nil {
		return "", err
	}

	value := normalizeSecret(raw)
	if value == "" {
		return "", fmt.Errorf("%w: %s", apperrors.ErrSecretEmpty, id)
	}
	return value, nil
}

func (r *SecretResolver) fetch(ctx context.Context, id string) (string, error) {
	if name, ok := strings.CutPrefix(id, ssmPrefix); ok {
		out, err := r.params.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(name),
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
		}
		if out.Parameter == nil || out.Parameter.Value == nil {
			return "", fmt.Errorf("parameter %s has no value", name)
		}
		return *out.Parameter.Value, nil
	}

	out, err := r.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", id, err)
	}

	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	if len(out.SecretBinary) > 0 {
		return string(out.SecretBinary), nil
	}
	return "", fmt.Errorf("secret %s has no value", id)
}

// normalizeSecret accepts either a structured JSON payload carrying the
// well-known key, or a bare string. Structured payloads without the key and
// undecodable payloads pass through verbatim.
func normalizeSecret(raw string) string {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return raw
	}

	if token, ok := payload[GitHubTokenKey].(string); ok && token != "" {
		return token
	}
	return raw
}
