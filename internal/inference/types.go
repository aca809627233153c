package inference

import (
	"time"

	"github.com/samcharles93/ssmgen/internal/logits"
)

// State is the opaque recurrent state of a SequenceModel. The engine never
// inspects it; it only threads the value returned by one Step into the next.
type State = any

// TokenCodec converts between text and token ids.
type TokenCodec interface {
	// Encode tokenizes text.
	Encode(text string) ([]int, error)
	// Decode renders ids back to text. It may be lossy.
	Decode(ids []int) (string, error)
	// EOS returns the end-of-sequence id, or an error when the vocabulary
	// has no designated terminator.
	EOS() (int, error)
}

// SequenceModel is a recurrent step function with a fixed-size state.
//
// Step consumes state and returns the logits for the next position together
// with a new state. Implementations must not keep hidden memory between calls
// outside the state value they return.
type SequenceModel interface {
	InitState(batch int) (State, error)
	Step(token int, state State) ([]float32, State, error)
	VocabSize() int
}

// StreamFunc observes each generated token id as soon as it is sampled.
type StreamFunc func(token int)

// Request is one generation call.
type Request struct {
	Prompt string
	Config logits.SamplingConfig
}

// StopReason records why decoding ended.
type StopReason string

const (
	StopEOS       StopReason = "eos"
	StopMaxTokens StopReason = "max_tokens"
)

type Stats struct {
	PromptTokens    int
	TokensGenerated int
	PrefillDuration time.Duration
	Duration        time.Duration
	TPS             float64
}

// Result is the output of a completed generation.
type Result struct {
	// Text is the decoded prompt plus continuation.
	Text   string
	Tokens []int
	Stop   StopReason
	Stats  Stats
}

// Phase is a state of the generation state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePrefilling
	PhaseDecoding
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePrefilling:
		return "prefilling"
	case PhaseDecoding:
		return "decoding"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}
