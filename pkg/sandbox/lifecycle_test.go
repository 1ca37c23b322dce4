package sandbox

import (
	"testing"

	"github.com/codehaven/codehaven/pkg/model"
)

func TestCanTransitionForwardChain(t *testing.T) {
	chain := []model.SandboxStatus{
		model.SandboxCreated,
		model.SandboxStarting,
		model.SandboxRunning,
		model.SandboxStopping,
		model.SandboxStopped,
	}
	for i := 0; i < len(chain)-1; i++ {
		if !CanTransition(chain[i], chain[i+1]) {
			t.Fatalf("expected %s -> %s to be legal", chain[i], chain[i+1])
		}
	}
}

func TestCanTransitionRejectsSkips(t *testing.T) {
	cases := []struct {
		from model.SandboxStatus
		to   model.SandboxStatus
	}{
		{model.SandboxStopped, model.SandboxRunning},
		{model.SandboxCreated, model.SandboxRunning},
		{model.SandboxRunning, model.SandboxStopped},
		{model.SandboxRunning, model.SandboxCreated},
		{model.SandboxError, model.SandboxRunning},
		{model.SandboxError, model.SandboxStopping},
		{model.SandboxError, model.SandboxStopped},
	}
	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestErrorReachableAndRetryable(t *testing.T) {
	for _, from := range []model.SandboxStatus{
		model.SandboxCreated,
		model.SandboxStarting,
		model.SandboxRunning,
		model.SandboxStopping,
		model.SandboxStopped,
	} {
		if !CanTransition(from, model.SandboxError) {
			t.Fatalf("expected %s -> error to be legal", from)
		}
	}

	if !CanTransition(model.SandboxError, model.SandboxStarting) {
		t.Fatalf("expected error -> starting retry to be legal")
	}
}

func TestStoppedCanRestart(t *testing.T) {
	if !CanTransition(model.SandboxStopped, model.SandboxStarting) {
		t.Fatalf("expected stopped -> starting to be legal")
	}
}

func TestValidStatus(t *testing.T) {
	if !ValidStatus(model.SandboxRunning) {
		t.Fatalf("expected running to be a valid status")
	}
	if ValidStatus(model.SandboxStatus("paused")) {
		t.Fatalf("expected paused to be rejected")
	}
}

func TestInvalidTransitionErrorMessage(t *testing.T) {
	err := &InvalidTransitionError{From: model.SandboxStopped, To: model.SandboxRunning}
	want := "invalid sandbox transition stopped -> running"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}
