package provision

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoistci/hoist/internal/dao/rundao"
	"github.com/hoistci/hoist/internal/reconcile"
)

type fakeRecorder struct {
	created  []string
	finished []rundao.FinishInput

	createErr error
}

func (f *fakeRecorder) Create(_ context.Context, command string) (rundao.Record, error) {
	if f.createErr != nil {
		return rundao.Record{}, f.createErr
	}
	f.created = append(f.created, command)
	return rundao.Record{PK: command, SK: rundao.NewSK()}, nil
}

func (f *fakeRecorder) Finish(_ context.Context, input rundao.FinishInput) error {
	f.finished = append(f.finished, input)
	return nil
}

func okStep(kind, name string) Step {
	return Func(name, func(context.Context) reconcile.Result {
		return reconcile.Created(kind, name)
	})
}

func failStep(kind, name string, err error) Step {
	return Func(name, func(context.Context) reconcile.Result {
		return reconcile.Failed(kind, name, err)
	})
}

func TestRunnerRunsStepsInOrder(t *testing.T) {
	var out bytes.Buffer
	runner := NewRunner(&out, nil)

	var order []string
	steps := []Step{
		Func("first", func(context.Context) reconcile.Result {
			order = append(order, "first")
			return reconcile.Created("bucket", "artifacts")
		}),
		Func("second", func(context.Context) reconcile.Result {
			order = append(order, "second")
			return reconcile.Unchanged("role", "build-role")
		}),
	}

	results, err := runner.Run(context.Background(), "pipeline", steps)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Len(t, results, 2)
	assert.Contains(t, out.String(), "✓ bucket artifacts (CREATED)")
	assert.Contains(t, out.String(), "✓ role build-role (UNCHANGED)")
}

func TestRunnerStopsAtFirstFailure(t *testing.T) {
	var out bytes.Buffer
	runner := NewRunner(&out, nil)

	ran := false
	steps := []Step{
		okStep("bucket", "artifacts"),
		failStep("role", "build-role", errors.New("access denied")),
		Func("never", func(context.Context) reconcile.Result {
			ran = true
			return reconcile.Created("pipeline", "web")
		}),
	}

	results, err := runner.Run(context.Background(), "pipeline", steps)
	require.Error(t, err)
	assert.False(t, ran, "steps after a failure must not run")
	assert.Len(t, results, 2)
	assert.Equal(t, reconcile.OutcomeFailed, results[1].Outcome)
	assert.Contains(t, out.String(), "✗ role build-role")
}

func TestRunnerRecordsAudit(t *testing.T) {
	recorder := &fakeRecorder{}
	runner := NewRunner(&bytes.Buffer{}, recorder)

	_, err := runner.Run(context.Background(), "up", []Step{okStep("stack", "web-stack")})
	require.NoError(t, err)

	assert.Equal(t, []string{"up"}, recorder.created)
	require.Len(t, recorder.finished, 1)
	finish := recorder.finished[0]
	assert.Equal(t, rundao.RunStatusSuccess, finish.Status)
	assert.Equal(t, []string{"stack web-stack: CREATED"}, finish.Steps)
	assert.Nil(t, finish.ErrorMsg)
}

func TestRunnerRecordsFailure(t *testing.T) {
	recorder := &fakeRecorder{}
	runner := NewRunner(&bytes.Buffer{}, recorder)

	_, err := runner.Run(context.Background(), "up", []Step{
		failStep("stack", "web-stack", errors.New("rollback")),
	})
	require.Error(t, err)

	require.Len(t, recorder.finished, 1)
	finish := recorder.finished[0]
	assert.Equal(t, rundao.RunStatusFailed, finish.Status)
	require.NotNil(t, finish.ErrorMsg)
	assert.Contains(t, *finish.ErrorMsg, "rollback")
}

func TestRunnerAuditFailureDoesNotBlock(t *testing.T) {
	recorder := &fakeRecorder{createErr: errors.New("table missing")}
	runner := NewRunner(&bytes.Buffer{}, recorder)

	results, err := runner.Run(context.Background(), "up", []Step{okStep("stack", "web-stack")})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Empty(t, recorder.finished, "no record to finish when create failed")
}
