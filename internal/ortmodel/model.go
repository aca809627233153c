// Package ortmodel runs an exported recurrent step graph with ONNX Runtime.
//
// The graph must take one token as input_ids [1,1] int64 plus one float
// tensor per state component, and produce logits together with the updated
// state components:
//
//	inputs:  input_ids, state.<name>...
//	outputs: logits, new_state.<name>...
//
// The state is carried between calls by the caller, so the graph itself stays
// stateless and the same Model may back several engines.
package ortmodel

import (
	"errors"
	"fmt"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

type Config struct {
	Path string
	// LibraryPath locates libonnxruntime; empty uses the library default.
	LibraryPath string
	Threads     int

	InputName      string
	LogitsName     string
	StatePrefix    string
	NewStatePrefix string
}

func (c Config) withDefaults() Config {
	if c.InputName == "" {
		c.InputName = "input_ids"
	}
	if c.LogitsName == "" {
		c.LogitsName = "logits"
	}
	if c.StatePrefix == "" {
		c.StatePrefix = "state."
	}
	if c.NewStatePrefix == "" {
		c.NewStatePrefix = "new_state."
	}
	return c
}

type Model struct {
	session *ort.DynamicAdvancedSession
	shapes  []ort.Shape
	sizes   []int
	vocab   int
}

// State holds one flat buffer per state component, in graph input order.
type State struct {
	Tensors [][]float32
}

// Open inspects the graph signature and creates a session.
func Open(cfg Config) (*Model, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("onnx model path is required")
	}
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnxruntime init: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", cfg.Path, err)
	}
	sig, err := resolveSignature(cfg, toPorts(inputs), toPorts(outputs))
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer func() { _ = opts.Destroy() }()
	if cfg.Threads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.Threads); err != nil {
			return nil, fmt.Errorf("set threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.Path, sig.inputNames, sig.outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	m := &Model{
		session: session,
		shapes:  sig.stateShapes,
		vocab:   sig.vocab,
	}
	for _, s := range sig.stateShapes {
		m.sizes = append(m.sizes, int(s.FlattenedSize()))
	}
	return m, nil
}

func (m *Model) VocabSize() int { return m.vocab }

func (m *Model) InitState(batch int) (any, error) {
	if batch != 1 {
		return nil, fmt.Errorf("onnx model supports batch 1, got %d", batch)
	}
	st := &State{Tensors: make([][]float32, len(m.sizes))}
	for i, n := range m.sizes {
		st.Tensors[i] = make([]float32, n)
	}
	return st, nil
}

func (m *Model) Step(tok int, state any) ([]float32, any, error) {
	st, ok := state.(*State)
	if !ok || st == nil {
		return nil, nil, fmt.Errorf("onnx model: unexpected state type %T", state)
	}
	if len(st.Tensors) != len(m.sizes) {
		return nil, nil, fmt.Errorf("onnx model: %d state tensors, want %d", len(st.Tensors), len(m.sizes))
	}

	inputs := make([]ort.Value, 0, 1+len(m.shapes))
	defer func() {
		for _, v := range inputs {
			_ = v.Destroy()
		}
	}()
	ids, err := ort.NewTensor(ort.NewShape(1, 1), []int64{int64(tok)})
	if err != nil {
		return nil, nil, fmt.Errorf("input tensor: %w", err)
	}
	inputs = append(inputs, ids)
	for i, shape := range m.shapes {
		if len(st.Tensors[i]) != m.sizes[i] {
			return nil, nil, fmt.Errorf("onnx model: state %d has %d values, want %d", i, len(st.Tensors[i]), m.sizes[i])
		}
		// ORT may write through the input buffer; hand it a copy so the
		// caller's state is never mutated.
		data := append([]float32(nil), st.Tensors[i]...)
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, nil, fmt.Errorf("state tensor %d: %w", i, err)
		}
		inputs = append(inputs, t)
	}

	outputs := make([]ort.Value, 1+len(m.shapes))
	defer func() {
		for _, v := range outputs {
			if v != nil {
				_ = v.Destroy()
			}
		}
	}()
	if err := m.session.Run(inputs, outputs); err != nil {
		return nil, nil, fmt.Errorf("onnx run: %w", err)
	}

	raw, err := floatData(outputs[0])
	if err != nil {
		return nil, nil, fmt.Errorf("logits: %w", err)
	}
	if len(raw) < m.vocab {
		return nil, nil, fmt.Errorf("logits has %d values, want at least %d", len(raw), m.vocab)
	}
	logits := append([]float32(nil), raw[len(raw)-m.vocab:]...)

	next := &State{Tensors: make([][]float32, len(m.shapes))}
	for i := range m.shapes {
		data, err := floatData(outputs[1+i])
		if err != nil {
			return nil, nil, fmt.Errorf("state output %d: %w", i, err)
		}
		if len(data) != m.sizes[i] {
			return nil, nil, fmt.Errorf("state output %d has %d values, want %d", i, len(data), m.sizes[i])
		}
		next.Tensors[i] = append([]float32(nil), data...)
	}
	return logits, next, nil
}

func (m *Model) Close() error {
	if m == nil || m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}

func floatData(v ort.Value) ([]float32, error) {
	t, ok := v.(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unsupported output tensor type %T", v)
	}
	return t.GetData(), nil
}

func toPorts(infos []ort.InputOutputInfo) []port {
	out := make([]port, len(infos))
	for i, info := range infos {
		out[i] = port{Name: info.Name, Dims: []int64(info.Dimensions)}
	}
	return out
}
