// Package toy provides a small deterministic recurrent language model. It
// exists to exercise the generation engine end to end without a real
// checkpoint: weights are random but seeded, so outputs are reproducible.
package toy

import (
	"fmt"
	"math"
)

// Model is an Elman-style recurrent LM:
//
//	h' = tanh(Emb[tok] + Rec·h)
//	logits = Out·h' + Bias
//
// The hidden vector h is the whole recurrent state, so per-step cost does not
// depend on how many tokens have been fed.
type Model struct {
	Vocab  int
	Hidden int

	Emb  Mat // [Vocab x Hidden]
	Rec  Mat // [Hidden x Hidden]
	Out  Mat // [Vocab x Hidden]
	Bias []float32
}

// State is the recurrent state of Model.
type State struct {
	H []float32
}

// New builds a model with weights derived from seed.
func New(vocab, hidden int, seed int64) *Model {
	m := &Model{
		Vocab:  vocab,
		Hidden: hidden,
		Emb:    NewMat(vocab, hidden),
		Rec:    NewMat(hidden, hidden),
		Out:    NewMat(vocab, hidden),
		Bias:   make([]float32, vocab),
	}
	FillRand(&m.Emb, seed+11, 2)
	FillRand(&m.Rec, seed+17, 1)
	FillRand(&m.Out, seed+23, 4)
	return m
}

func (m *Model) VocabSize() int { return m.Vocab }

// InitState returns a zero hidden state. Only batch 1 is supported.
func (m *Model) InitState(batch int) (any, error) {
	if batch != 1 {
		return nil, fmt.Errorf("toy model supports batch 1, got %d", batch)
	}
	return &State{H: make([]float32, m.Hidden)}, nil
}

// Step feeds tok and returns logits plus a new state. The input state is not
// modified.
func (m *Model) Step(tok int, state any) ([]float32, any, error) {
	st, ok := state.(*State)
	if !ok || st == nil {
		return nil, nil, fmt.Errorf("toy model: unexpected state type %T", state)
	}
	if len(st.H) != m.Hidden {
		return nil, nil, fmt.Errorf("toy model: state dimension %d, want %d", len(st.H), m.Hidden)
	}
	if tok < 0 || tok >= m.Vocab {
		return nil, nil, fmt.Errorf("toy model: token %d outside vocabulary of %d", tok, m.Vocab)
	}

	h := make([]float32, m.Hidden)
	MatVec(h, &m.Rec, st.H)
	emb := m.Emb.Row(tok)
	for i := range h {
		h[i] = float32(math.Tanh(float64(h[i] + emb[i])))
	}

	out := make([]float32, m.Vocab)
	MatVec(out, &m.Out, h)
	for i := range out {
		out[i] += m.Bias[i]
	}
	return out, &State{H: h}, nil
}
