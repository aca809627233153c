//go:build hftokenizers

package codec

import (
	"fmt"
	"math"

	"github.com/daulet/tokenizers"
)

// HFCodec wraps a Hugging Face tokenizer.json through the tokenizers
// library. Building it requires the libtokenizers static library.
type HFCodec struct {
	tk     *tokenizers.Tokenizer
	eos    int
	eosErr error
}

// LoadHF opens path and resolves eosSymbol from the same file. A missing
// symbol is reported by EOS, so engine construction fails with a config error.
func LoadHF(path, eosSymbol string) (*HFCodec, error) {
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, err
	}
	eos, eosErr := ResolveSymbol(path, eosSymbol)
	return &HFCodec{tk: tk, eos: eos, eosErr: eosErr}, nil
}

func (c *HFCodec) Encode(text string) ([]int, error) {
	raw, _ := c.tk.Encode(text, true)
	ids := make([]int, len(raw))
	for i, id := range raw {
		ids[i] = int(id)
	}
	return ids, nil
}

func (c *HFCodec) Decode(ids []int) (string, error) {
	raw := make([]uint32, len(ids))
	for i, id := range ids {
		if id < 0 || int64(id) > math.MaxUint32 {
			return "", fmt.Errorf("token id %d is not in the vocabulary", id)
		}
		raw[i] = uint32(id)
	}
	return c.tk.Decode(raw, true), nil
}

func (c *HFCodec) EOS() (int, error) {
	return c.eos, c.eosErr
}

func (c *HFCodec) Close() error {
	return c.tk.Close()
}
