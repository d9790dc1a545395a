package pipeline

import "github.com/harrison/wiggum/internal/models"

// State is the coarse-grained lifecycle state a pipeline run occupies,
// derived from its committed step results rather than tracked separately,
// so it can never drift from what is actually on disk.
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StateFixing     State = "fixing" // last gate was FIX; a fix-follow-up worker owns the retry
	StateBlocked    State = "blocked"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateStopped    State = "stopped" // STOP gate: human intervention required
)

// Classify derives the pipeline's state from its step results, in pipeline
// order. An empty slice means the pipeline has not started.
func Classify(cfg *Config, results []models.StepResult) State {
	if len(results) == 0 {
		return StateNotStarted
	}

	latestByStep := make(map[string]models.StepResult, len(results))
	for _, r := range results {
		if prior, ok := latestByStep[r.StepID]; !ok || r.Epoch > prior.Epoch {
			latestByStep[r.StepID] = r
		}
	}

	allPass := true
	for _, step := range cfg.Steps {
		res, ran := latestByStep[step.ID]
		if !ran {
			allPass = false
			continue
		}
		switch res.Gate {
		case models.GateStop:
			return StateStopped
		case models.GateFail:
			return StateFailed
		case models.GateFix:
			return StateFixing
		case models.GateSkip:
			// treated as satisfied for progression purposes
		case models.GatePass:
			// satisfied
		default:
			allPass = false
		}
		if res.Gate != models.GatePass && res.Gate != models.GateSkip {
			allPass = false
		}
	}

	if allPass {
		return StateCompleted
	}
	return StateRunning
}
