package inference

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Engine matches exactly one of them
// with errors.Is.
var (
	ErrConfig      = errors.New("config error")
	ErrEncoding    = errors.New("encoding error")
	ErrEmptyPrompt = errors.New("empty prompt")
	ErrModel       = errors.New("model error")
	ErrDecoding    = errors.New("decoding error")
	ErrCancelled   = errors.New("generation cancelled")
	ErrBusy        = errors.New("engine busy")
)

// Error carries the kind of a generation failure, the operation that failed
// and the underlying cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func safeEncode(codec TokenCodec, text string) (ids []int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Encode: %v", rec)
		}
	}()
	return codec.Encode(text)
}

func safeDecode(codec TokenCodec, ids []int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Decode: %v", rec)
		}
	}()
	return codec.Decode(ids)
}

func safeEOS(codec TokenCodec) (id int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in EOS: %v", rec)
		}
	}()
	return codec.EOS()
}

func safeInitState(m SequenceModel) (s State, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in InitState: %v", rec)
		}
	}()
	return m.InitState(1)
}

func safeStep(m SequenceModel, token int, state State) (out []float32, next State, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Step: %v", rec)
		}
	}()
	return m.Step(token, state)
}
