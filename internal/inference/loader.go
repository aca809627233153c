package inference

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samcharles93/ssmgen/internal/codec"
	"github.com/samcharles93/ssmgen/internal/ortmodel"
	"github.com/samcharles93/ssmgen/internal/toy"
)

// ToyModelName selects the built-in toy recurrent model.
const ToyModelName = "toy"

// Loader resolves a model and a codec from CLI or server settings.
type Loader struct {
	// Model is ToyModelName or a path to an exported .onnx step graph.
	Model string
	// TokenizerPath optionally points at a tokenizer.json; empty selects the byte codec.
	TokenizerPath string
	EOSSymbol     string

	ORTLibraryPath string
	Threads        int

	ToySeed   int64
	ToyHidden int
}

// Backend is a loaded codec/model pair. Both are safe to share between
// engines: the codec is read-only and models keep no per-call state.
type Backend struct {
	Codec TokenCodec
	Model SequenceModel

	closers []io.Closer
}

func (l Loader) Load() (*Backend, error) {
	name := strings.TrimSpace(l.Model)
	if name == "" {
		return nil, fmt.Errorf("model is required")
	}
	eosSymbol := l.EOSSymbol
	if eosSymbol == "" {
		eosSymbol = codec.EndOfText
	}

	b := &Backend{}
	cleanup := func(err error) (*Backend, error) {
		_ = b.Close()
		return nil, err
	}

	if l.TokenizerPath != "" {
		hf, err := codec.LoadHF(l.TokenizerPath, eosSymbol)
		if err != nil {
			return nil, fmt.Errorf("load tokenizer: %w", err)
		}
		b.Codec = hf
		b.closers = append(b.closers, hf)
	}

	switch {
	case name == ToyModelName:
		if b.Codec != nil {
			return cleanup(fmt.Errorf("the toy model only supports the byte codec"))
		}
		bc := codec.NewByteCodec(codec.WithSpecialTokens(eosSymbol), codec.WithEOSSymbol(eosSymbol))
		hidden := l.ToyHidden
		if hidden <= 0 {
			hidden = 32
		}
		b.Codec = bc
		b.Model = toy.New(bc.VocabSize(), hidden, l.ToySeed)
	case strings.HasSuffix(strings.ToLower(name), ".onnx"):
		m, err := ortmodel.Open(ortmodel.Config{
			Path:        name,
			LibraryPath: l.ORTLibraryPath,
			Threads:     l.Threads,
		})
		if err != nil {
			return cleanup(fmt.Errorf("load onnx model: %w", err))
		}
		b.Model = m
		b.closers = append(b.closers, m)
		if b.Codec == nil {
			b.Codec = codec.NewByteCodec(codec.WithSpecialTokens(eosSymbol), codec.WithEOSSymbol(eosSymbol))
		}
	default:
		return cleanup(fmt.Errorf("unsupported model %q (want %q or a .onnx file)", name, ToyModelName))
	}
	return b, nil
}

// NewEngine builds an independent engine over the shared backend.
func (b *Backend) NewEngine(opts ...Option) (*Engine, error) {
	return NewEngine(b.Codec, b.Model, opts...)
}

func (b *Backend) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
