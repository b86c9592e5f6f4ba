// Package policy gates CloudFormation templates with an embedded Rego policy
// before they are submitted to the control plane.
package policy

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

//go:embed cloudformation.rego
var policyContent string

// Validator evaluates stack templates against the embedded policy.
type Validator struct {
	allow      rego.PreparedEvalQuery
	violations rego.PreparedEvalQuery
}

// ValidationResult is the outcome of one template evaluation.
type ValidationResult struct {
	Allowed    bool     `json:"allowed"`
	Violations []string `json:"violations,omitempty"`
}

// NewValidator compiles the embedded policy.
func NewValidator() (*Validator, error) {
	allow, err := rego.New(
		rego.Query("data.cloudformation.allow"),
		rego.Module("cloudformation.rego", policyContent),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy query: %w", err)
	}

	violations, err := rego.New(
		rego.Query("data.cloudformation.violations"),
		rego.Module("cloudformation.rego", policyContent),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare violations query: %w", err)
	}

	return &Validator{allow: allow, violations: violations}, nil
}

// ValidateTemplate evaluates a decoded template. A template with no Resources
// section is allowed; the policy only constrains what a template declares.
func (v *Validator) ValidateTemplate(ctx context.Context, template map[string]any) (*ValidationResult, error) {
	input := map[string]any{
		"Resources": template["Resources"],
	}

	results, err := v.allow.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 {
		return &ValidationResult{
			Allowed:    false,
			Violations: []string{"policy evaluation returned no results"},
		}, nil
	}

	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return &ValidationResult{
			Allowed:    false,
			Violations: []string{"policy evaluation returned non-boolean result"},
		}, nil
	}

	result := &ValidationResult{Allowed: allowed}
	if !allowed {
		violations, err := v.getViolations(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to get violations: %w", err)
		}
		result.Violations = violations
	}
	return result, nil
}

func (v *Validator) getViolations(ctx context.Context, input map[string]any) ([]string, error) {
	results, err := v.violations.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate violations: %w", err)
	}
	if len(results) == 0 {
		return []string{"unknown policy violation"}, nil
	}

	var violations []string
	switch value := results[0].Expressions[0].Value.(type) {
	case []any:
		for _, violation := range value {
			if str, ok := violation.(string); ok {
				violations = append(violations, str)
			}
		}
	case map[string]any:
		// Rego sets surface as objects
		for violation := range value {
			violations = append(violations, violation)
		}
	}

	if len(violations) == 0 {
		return []string{"policy validation failed but no specific violations found"}, nil
	}
	return violations, nil
}
