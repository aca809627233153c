package ortmodel

import (
	"fmt"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// port is a graph input or output as reported by the runtime.
type port struct {
	Name string
	Dims []int64
}

type signature struct {
	inputNames  []string
	outputNames []string
	stateShapes []ort.Shape
	vocab       int
}

// resolveSignature pairs every state input with its updated output and
// fixes the input and output order used for Run.
func resolveSignature(cfg Config, inputs, outputs []port) (signature, error) {
	var sig signature

	byName := make(map[string]port, len(outputs))
	for _, o := range outputs {
		byName[o.Name] = o
	}

	foundInput := false
	var states []port
	for _, in := range inputs {
		switch {
		case in.Name == cfg.InputName:
			foundInput = true
		case strings.HasPrefix(in.Name, cfg.StatePrefix):
			states = append(states, in)
		default:
			return sig, fmt.Errorf("unexpected graph input %q", in.Name)
		}
	}
	if !foundInput {
		return sig, fmt.Errorf("graph has no %q input", cfg.InputName)
	}

	logits, ok := byName[cfg.LogitsName]
	if !ok {
		return sig, fmt.Errorf("graph has no %q output", cfg.LogitsName)
	}
	if len(logits.Dims) == 0 || logits.Dims[len(logits.Dims)-1] <= 0 {
		return sig, fmt.Errorf("logits output needs a static vocabulary dimension, got %v", logits.Dims)
	}
	sig.vocab = int(logits.Dims[len(logits.Dims)-1])

	sig.inputNames = append(sig.inputNames, cfg.InputName)
	sig.outputNames = append(sig.outputNames, cfg.LogitsName)
	for _, s := range states {
		outName := stateOutputName(cfg, s.Name)
		o, ok := byName[outName]
		if !ok {
			return sig, fmt.Errorf("state input %q has no matching output %q", s.Name, outName)
		}
		shape, err := staticShape(s.Dims)
		if err != nil {
			return sig, fmt.Errorf("state input %q: %w", s.Name, err)
		}
		if oshape, err := staticShape(o.Dims); err == nil && oshape.FlattenedSize() != shape.FlattenedSize() {
			return sig, fmt.Errorf("state %q changes size from %v to %v", s.Name, s.Dims, o.Dims)
		}
		sig.inputNames = append(sig.inputNames, s.Name)
		sig.outputNames = append(sig.outputNames, outName)
		sig.stateShapes = append(sig.stateShapes, shape)
	}
	return sig, nil
}

func stateOutputName(cfg Config, input string) string {
	return cfg.NewStatePrefix + strings.TrimPrefix(input, cfg.StatePrefix)
}

// staticShape resolves a dynamic leading batch dimension to 1. Any other
// dynamic dimension is rejected because the state must have a fixed size.
func staticShape(dims []int64) (ort.Shape, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("scalar state is not supported")
	}
	out := make([]int64, len(dims))
	for i, d := range dims {
		switch {
		case d > 0:
			out[i] = d
		case i == 0:
			out[i] = 1
		default:
			return nil, fmt.Errorf("dimension %d is dynamic in %v", i, dims)
		}
	}
	return ort.NewShape(out...), nil
}
