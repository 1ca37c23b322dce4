package sandbox

import (
	"fmt"

	"github.com/codehaven/codehaven/pkg/model"
)

// InvalidTransitionError rejects an illegal lifecycle move. It indicates
// caller misuse and leaves the sandbox untouched.
type InvalidTransitionError struct {
	From model.SandboxStatus
	To   model.SandboxStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid sandbox transition %s -> %s", e.From, e.To)
}

// Legal lifecycle moves: the forward chain
// created -> starting -> running -> stopping -> stopped, error reachable
// from any non-terminal state, and error -> starting as the retry edge.
var transitions = map[model.SandboxStatus][]model.SandboxStatus{
	model.SandboxCreated:  {model.SandboxStarting, model.SandboxError},
	model.SandboxStarting: {model.SandboxRunning, model.SandboxError},
	model.SandboxRunning:  {model.SandboxStopping, model.SandboxError},
	model.SandboxStopping: {model.SandboxStopped, model.SandboxError},
	model.SandboxStopped:  {model.SandboxStarting, model.SandboxError},
	model.SandboxError:    {model.SandboxStarting},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to model.SandboxStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s names a known lifecycle state.
func ValidStatus(s model.SandboxStatus) bool {
	switch s {
	case model.SandboxCreated, model.SandboxStarting, model.SandboxRunning,
		model.SandboxStopping, model.SandboxStopped, model.SandboxError:
		return true
	default:
		return false
	}
}
