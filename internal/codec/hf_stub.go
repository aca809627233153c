//go:build !hftokenizers

package codec

import "fmt"

// HFCodec is unavailable without the hftokenizers build tag.
type HFCodec struct{}

func LoadHF(path, eosSymbol string) (*HFCodec, error) {
	return nil, fmt.Errorf("tokenizer.json support is not available in this build (rebuild with -tags hftokenizers)")
}

func (c *HFCodec) Encode(string) ([]int, error) { return nil, fmt.Errorf("hf codec unavailable") }
func (c *HFCodec) Decode([]int) (string, error) { return "", fmt.Errorf("hf codec unavailable") }
func (c *HFCodec) EOS() (int, error)            { return 0, fmt.Errorf("hf codec unavailable") }
func (c *HFCodec) Close() error                 { return nil }
