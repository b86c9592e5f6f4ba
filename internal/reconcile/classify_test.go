package reconcile

import (
	"errors"
	"fmt"
	"testing"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func apiError(code, message string) error {
	return &smithy.GenericAPIError{Code: code, Message: message}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{
			name: "nil error",
			err:  nil,
			want: ClassNone,
		},
		{
			name: "iam role missing",
			err:  apiError("NoSuchEntity", "The role with name CodeBuildServiceRole cannot be found."),
			want: ClassNotFound,
		},
		{
			name: "lambda function missing",
			err:  apiError("ResourceNotFoundException", "Function not found"),
			want: ClassNotFound,
		},
		{
			name: "s3 head bucket 404",
			err:  &s3types.NotFound{},
			want: ClassNotFound,
		},
		{
			name: "cloudformation stack missing via ValidationError",
			err:  apiError("ValidationError", "Stack with id demo-stack does not exist"),
			want: ClassNotFound,
		},
		{
			name: "cloudformation empty update via ValidationError",
			err:  apiError("ValidationError", "No updates are to be performed."),
			want: ClassNoOpUpdate,
		},
		{
			name: "cloudformation empty update alternate phrasing",
			err:  apiError("ValidationError", "No updates to be performed"),
			want: ClassNoOpUpdate,
		},
		{
			name: "cloudformation malformed template",
			err:  apiError("ValidationError", "Template format error: unsupported structure"),
			want: ClassFatal,
		},
		{
			name: "lambda already exists",
			err:  apiError("ResourceConflictException", "Function already exist: contact-form-sender"),
			want: ClassConflict,
		},
		{
			name: "iam role already exists",
			err:  apiError("EntityAlreadyExists", "Role with name ContactFormLambdaRole already exists."),
			want: ClassConflict,
		},
		{
			name: "bucket already owned",
			err:  apiError("BucketAlreadyOwnedByYou", "Your previous request to create the named bucket succeeded"),
			want: ClassConflict,
		},
		{
			name: "pipeline name in use",
			err:  apiError("PipelineNameInUseException", "Pipeline exists"),
			want: ClassConflict,
		},
		{
			name: "access denied is fatal",
			err:  apiError("AccessDeniedException", "User is not authorized"),
			want: ClassFatal,
		},
		{
			name: "throttling is fatal",
			err:  apiError("Throttling", "Rate exceeded"),
			want: ClassFatal,
		},
		{
			name: "wrapped api error still classifies",
			err:  fmt.Errorf("probing stack: %w", apiError("ValidationError", "Stack does not exist")),
			want: ClassNotFound,
		},
		{
			name: "plain error is fatal",
			err:  errors.New("dial tcp: connection refused"),
			want: ClassFatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifyHelpers(t *testing.T) {
	assert.True(t, IsNotFound(apiError("NoSuchEntity", "")))
	assert.True(t, IsConflict(apiError("ResourceConflictException", "")))
	assert.True(t, IsNoOpUpdate(apiError("ValidationError", "No updates are to be performed.")))
	assert.False(t, IsNotFound(nil))
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "stack demo: CREATED", Created("stack", "demo").String())

	failed := Failed("bucket", "artifacts", errors.New("quota exceeded"))
	assert.True(t, failed.Failed())
	assert.Contains(t, failed.String(), "quota exceeded")
}
