package pipeline

import "fmt"

// TopologyError reports an artifact-chain or uniqueness violation found
// before any remote call was made.
type TopologyError struct {
	Pipeline string
	Detail   string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("invalid pipeline topology in %q: %s", e.Pipeline, e.Detail)
}

func (s Spec) topologyErr(format string, args ...any) error {
	return &TopologyError{Pipeline: s.Name, Detail: fmt.Sprintf(format, args...)}
}

// Validate checks structural invariants the control plane would otherwise
// reject late and opaquely:
//
//   - stage names are unique, action names are unique within their stage
//   - every declared input artifact was produced as an output artifact by an
//     earlier action (earlier stage, or earlier action in the same stage)
//   - output artifact names are not produced twice
func (s Spec) Validate() error {
	if len(s.Stages) == 0 {
		return s.topologyErr("pipeline has no stages")
	}

	stageNames := make(map[string]struct{}, len(s.Stages))
	produced := make(map[string]string) // artifact name -> producing action

	for _, stage := range s.Stages {
		if stage.Name == "" {
			return s.topologyErr("stage with empty name")
		}
		if _, dup := stageNames[stage.Name]; dup {
			return s.topologyErr("duplicate stage name %q", stage.Name)
		}
		stageNames[stage.Name] = struct{}{}

		if len(stage.Actions) == 0 {
			return s.topologyErr("stage %q has no actions", stage.Name)
		}

		actionNames := make(map[string]struct{}, len(stage.Actions))
		for _, action := range stage.Actions {
			if action.Name == "" {
				return s.topologyErr("stage %q has an action with empty name", stage.Name)
			}
			if _, dup := actionNames[action.Name]; dup {
				return s.topologyErr("duplicate action name %q in stage %q", action.Name, stage.Name)
			}
			actionNames[action.Name] = struct{}{}

			for _, input := range action.InputArtifacts {
				if _, ok := produced[input]; !ok {
					return s.topologyErr(
						"action %q in stage %q consumes artifact %q that no earlier action produces",
						action.Name, stage.Name, input)
				}
			}

			for _, output := range action.OutputArtifacts {
				if prior, dup := produced[output]; dup {
					return s.topologyErr(
						"artifact %q produced by both %q and %q", output, prior, action.Name)
				}
				produced[output] = action.Name
			}
		}
	}

	return nil
}
