// Package iampolicy builds IAM trust and permission policy documents. Pure
// construction only: no I/O, callers pass the rendered JSON to role-creation
// calls.
package iampolicy

import (
	"encoding/json"
	"fmt"
)

const version = "2012-10-17"

// Document is an IAM policy document.
type Document struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is a single policy statement. Principal is present only in trust
// policies.
type Statement struct {
	Effect    string     `json:"Effect"`
	Principal *Principal `json:"Principal,omitempty"`
	Action    any        `json:"Action"`
	Resource  any        `json:"Resource,omitempty"`
}

// Principal names who may act on the statement.
type Principal struct {
	Service string `json:"Service,omitempty"`
	AWS     string `json:"AWS,omitempty"`
}

// JSON renders the document.
func (d Document) JSON() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal policy document: %w", err)
	}
	return string(data), nil
}

// MustJSON renders the document or panics. The document is built from
// literals, so a marshal failure is a programming error.
func (d Document) MustJSON() string {
	s, err := d.JSON()
	if err != nil {
		panic(err)
	}
	return s
}

// ServiceTrust returns the trust policy allowing the named service principal
// to assume a role, e.g. "codebuild.amazonaws.com" or "lambda.amazonaws.com".
func ServiceTrust(servicePrincipal string) Document {
	return Document{
		Version: version,
		Statement: []Statement{
			{
				Effect:    "Allow",
				Principal: &Principal{Service: servicePrincipal},
				Action:    "sts:AssumeRole",
			},
		},
	}
}

// Allow returns a permission policy granting the given actions on the given
// resource scope.
func Allow(actions []string, resource string) Document {
	return Document{
		Version: version,
		Statement: []Statement{
			{
				Effect:   "Allow",
				Action:   actions,
				Resource: resource,
			},
		},
	}
}
