// Package codec provides TokenCodec implementations for the generation engine.
package codec

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// EndOfText is the conventional terminator symbol of GPT-NeoX style vocabularies.
const EndOfText = "<|endoftext|>"

// ByteVocab is the number of ids reserved for raw bytes.
const ByteVocab = 256

// ByteCodec maps each UTF-8 byte to its own id and appends named special
// tokens after the byte range. Special tokens are never produced by Encode
// and are skipped by Decode.
type ByteCodec struct {
	special map[string]int
	names   map[int]string
	eos     string
}

type ByteOption func(*byteOptions)

type byteOptions struct {
	special []string
	eos     string
}

// WithSpecialTokens replaces the default special token list. Ids are
// assigned in order starting at ByteVocab.
func WithSpecialTokens(symbols ...string) ByteOption {
	return func(o *byteOptions) { o.special = symbols }
}

// WithEOSSymbol selects which special token terminates generation.
func WithEOSSymbol(symbol string) ByteOption {
	return func(o *byteOptions) { o.eos = symbol }
}

// NewByteCodec returns a codec with EndOfText registered as the only special
// token unless options say otherwise.
func NewByteCodec(opts ...ByteOption) *ByteCodec {
	o := byteOptions{special: []string{EndOfText}, eos: EndOfText}
	for _, opt := range opts {
		opt(&o)
	}
	c := &ByteCodec{
		special: make(map[string]int, len(o.special)),
		names:   make(map[int]string, len(o.special)),
		eos:     o.eos,
	}
	for _, sym := range o.special {
		if _, dup := c.special[sym]; dup {
			continue
		}
		id := ByteVocab + len(c.special)
		c.special[sym] = id
		c.names[id] = sym
	}
	return c
}

// VocabSize is the byte range plus the special tokens.
func (c *ByteCodec) VocabSize() int {
	return ByteVocab + len(c.special)
}

func (c *ByteCodec) Encode(text string) ([]int, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("text is not valid UTF-8")
	}
	ids := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		ids[i] = int(text[i])
	}
	return ids, nil
}

// Decode concatenates the bytes of ids, skipping special tokens. Invalid
// UTF-8 sequences become U+FFFD.
func (c *ByteCodec) Decode(ids []int) (string, error) {
	buf := make([]byte, 0, len(ids))
	for _, id := range ids {
		switch {
		case id >= 0 && id < ByteVocab:
			buf = append(buf, byte(id))
		case c.names[id] != "":
			// special tokens are not rendered
		default:
			return "", fmt.Errorf("token id %d is not in the vocabulary", id)
		}
	}
	return strings.ToValidUTF8(string(buf), "�"), nil
}

func (c *ByteCodec) EOS() (int, error) {
	id, ok := c.special[c.eos]
	if !ok {
		return 0, fmt.Errorf("vocabulary has no %q token", c.eos)
	}
	return id, nil
}

// SpecialTokens lists the registered special symbols ordered by id.
func (c *ByteCodec) SpecialTokens() []string {
	out := make([]string, 0, len(c.special))
	for sym := range c.special {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool { return c.special[out[i]] < c.special[out[j]] })
	return out
}
