package stt

import (
	"errors"
	"testing"
)

func TestTurnGateSuppressesRepeatedFinal(t *testing.T) {
	var g TurnGate
	steps := []struct {
		id   int64
		want Verdict
	}{
		{0, Admitted},
		{0, Duplicate},
		{1, Admitted},
		{3, Admitted},
		{3, Duplicate},
		{1, Reset},
		{1, Duplicate},
		{2, Admitted},
	}
	for i, step := range steps {
		if got := g.Admit(step.id); got != step.want {
			t.Fatalf("step %d id=%d: expected %s, got %s", i, step.id, step.want, got)
		}
	}
}

func TestVerdictFires(t *testing.T) {
	if Duplicate.Fires() || !Admitted.Fires() || !Reset.Fires() {
		t.Fatalf("unexpected Fires mapping")
	}
}

func TestConnectionErrorUnwraps(t *testing.T) {
	base := errors.New("dial tcp: refused")
	err := error(&ConnectionError{Provider: "mock", Err: base})
	if !errors.Is(err, base) {
		t.Fatalf("expected unwrap to base error")
	}
	var ce *ConnectionError
	if !errors.As(err, &ce) || ce.Provider != "mock" {
		t.Fatalf("expected ConnectionError")
	}
}
