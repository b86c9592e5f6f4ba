// Package provision runs an ordered sequence of reconcile steps, stopping at
// the first fatal failure so later resources never reference one that was
// not provisioned.
package provision

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/hoistci/hoist/internal/dao/rundao"
	"github.com/hoistci/hoist/internal/reconcile"
)

// Step is one unit of provisioning work.
type Step struct {
	Name string
	Run  func(ctx context.Context) reconcile.Result
}

// Func wraps a no-argument closure as a Step.
func Func(name string, fn func(ctx context.Context) reconcile.Result) Step {
	return Step{Name: name, Run: fn}
}

// Recorder persists an audit trail of runs. *rundao.DAO satisfies it.
type Recorder interface {
	Create(ctx context.Context, command string) (rundao.Record, error)
	Finish(ctx context.Context, input rundao.FinishInput) error
}

// Runner executes steps in order and reports each outcome.
type Runner struct {
	out      io.Writer
	recorder Recorder // nil disables auditing
}

// NewRunner creates a Runner writing status lines to out.
func NewRunner(out io.Writer, recorder Recorder) *Runner {
	return &Runner{out: out, recorder: recorder}
}

// Run executes the steps in order under the given command name. It stops at
// the first failed step and returns its error; already completed results are
// returned either way. Nothing is rolled back on failure, a rerun converges
// from wherever the failure left the account.
func (r *Runner) Run(ctx context.Context, command string, steps []Step) ([]reconcile.Result, error) {
	logger := zerolog.Ctx(ctx)

	var record rundao.Record
	if r.recorder != nil {
		created, err := r.recorder.Create(ctx, command)
		if err != nil {
			// auditing never blocks provisioning
			logger.Warn().Err(err).Msg("Failed to create run record")
		} else {
			record = created
		}
	}

	var results []reconcile.Result
	var runErr error

	for _, step := range steps {
		logger.Info().Str("step", step.Name).Msg("Running step")
		result := step.Run(ctx)
		results = append(results, result)

		if result.Failed() {
			fmt.Fprintf(r.out, "✗ %s %s: %v\n", result.Kind, result.Name, result.Err)
			runErr = fmt.Errorf("step %s failed: %w", step.Name, result.Err)
			break
		}
		fmt.Fprintf(r.out, "✓ %s %s (%s)\n", result.Kind, result.Name, result.Outcome)
	}

	if r.recorder != nil && record.SK != "" {
		input := rundao.FinishInput{
			Command: command,
			SK:      record.SK,
			Status:  rundao.RunStatusSuccess,
		}
		for _, result := range results {
			input.Steps = append(input.Steps, result.String())
		}
		if runErr != nil {
			input.Status = rundao.RunStatusFailed
			msg := runErr.Error()
			input.ErrorMsg = &msg
		}
		if err := r.recorder.Finish(ctx, input); err != nil {
			logger.Warn().Err(err).Msg("Failed to finish run record")
		}
	}

	return results, runErr
}
