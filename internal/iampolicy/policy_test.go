package iampolicy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceTrust(t *testing.T) {
	tests := []struct {
		name      string
		principal string
	}{
		{name: "codebuild", principal: "codebuild.amazonaws.com"},
		{name: "lambda", principal: "lambda.amazonaws.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := ServiceTrust(tt.principal)

			rendered, err := doc.JSON()
			require.NoError(t, err)

			var decoded map[string]any
			require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
			assert.Equal(t, "2012-10-17", decoded["Version"])

			statements := decoded["Statement"].([]any)
			require.Len(t, statements, 1)
			stmt := statements[0].(map[string]any)
			assert.Equal(t, "Allow", stmt["Effect"])
			assert.Equal(t, "sts:AssumeRole", stmt["Action"])
			assert.Equal(t, tt.principal, stmt["Principal"].(map[string]any)["Service"])
		})
	}
}

func TestAllow(t *testing.T) {
	doc := Allow([]string{"ses:SendEmail", "ses:SendRawEmail"}, "*")

	rendered, err := doc.JSON()
	require.NoError(t, err)

	var decoded Document
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Len(t, decoded.Statement, 1)

	actions := decoded.Statement[0].Action.([]any)
	assert.ElementsMatch(t, []any{"ses:SendEmail", "ses:SendRawEmail"}, actions)
	assert.Equal(t, "*", decoded.Statement[0].Resource)
	assert.Nil(t, decoded.Statement[0].Principal, "permission policies carry no principal")
}

func TestMustJSONStable(t *testing.T) {
	a := ServiceTrust("lambda.amazonaws.com").MustJSON()
	b := ServiceTrust("lambda.amazonaws.com").MustJSON()
	assert.Equal(t, a, b)
}
