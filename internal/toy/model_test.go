package toy

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestStepMatchesNaive compares Step against a hand-computed reference.
func TestStepMatchesNaive(t *testing.T) {
	t.Parallel()
	vocab, hidden := 8, 6
	m := New(vocab, hidden, 5)
	s0, err := m.InitState(1)
	if err != nil {
		t.Fatal(err)
	}
	_, s1, err := m.Step(3, s0)
	if err != nil {
		t.Fatal(err)
	}
	logits, _, err := m.Step(4, s1)
	if err != nil {
		t.Fatal(err)
	}

	prev := s1.(*State).H
	h := make([]float32, hidden)
	for i := range hidden {
		var sum float32
		for j := range hidden {
			sum += m.Rec.Row(i)[j] * prev[j]
		}
		h[i] = float32(math.Tanh(float64(sum + m.Emb.Row(4)[i])))
	}
	for v := range vocab {
		var sum float32
		for i := range hidden {
			sum += m.Out.Row(v)[i] * h[i]
		}
		if d := math.Abs(float64(logits[v] - sum - m.Bias[v])); d > 1e-4 {
			t.Fatalf("logit mismatch at %d: got %f, want %f", v, logits[v], sum)
		}
	}
}

func TestStepIsPure(t *testing.T) {
	t.Parallel()
	m := New(16, 4, 1)
	s0, _ := m.InitState(1)
	_, s1, err := m.Step(2, s0)
	if err != nil {
		t.Fatal(err)
	}
	before := append([]float32(nil), s1.(*State).H...)

	a, sa, err := m.Step(7, s1)
	if err != nil {
		t.Fatal(err)
	}
	b, sb, err := m.Step(7, s1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, s1.(*State).H); diff != "" {
		t.Fatalf("input state was mutated (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("same input gave different logits:\n%s", diff)
	}
	if diff := cmp.Diff(sa, sb); diff != "" {
		t.Fatalf("same input gave different state:\n%s", diff)
	}
	if len(sa.(*State).H) != 4 {
		t.Fatalf("state size changed: %d", len(sa.(*State).H))
	}
}

func TestStepRejectsBadInput(t *testing.T) {
	t.Parallel()
	m := New(4, 3, 1)
	s0, _ := m.InitState(1)
	if _, _, err := m.Step(4, s0); err == nil {
		t.Fatal("expected out-of-vocabulary error")
	}
	if _, _, err := m.Step(0, &State{H: make([]float32, 2)}); err == nil {
		t.Fatal("expected state dimension error")
	}
	if _, _, err := m.Step(0, "nope"); err == nil {
		t.Fatal("expected state type error")
	}
	if _, err := m.InitState(2); err == nil {
		t.Fatal("expected batch error")
	}
}

func TestNewIsSeeded(t *testing.T) {
	t.Parallel()
	if !cmp.Equal(New(10, 4, 9).Out.Data, New(10, 4, 9).Out.Data) {
		t.Fatal("same seed produced different weights")
	}
	if cmp.Equal(New(10, 4, 9).Out.Data, New(10, 4, 10).Out.Data) {
		t.Fatal("different seeds produced identical weights")
	}
}
