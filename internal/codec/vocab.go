package codec

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

type tokenizerJSON struct {
	Model struct {
		Vocab map[string]int `json:"vocab"`
	} `json:"model"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

// ResolveSymbol finds the id of symbol in a Hugging Face tokenizer.json.
// added_tokens take precedence over model.vocab.
func ResolveSymbol(path, symbol string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return ResolveSymbolBytes(raw, symbol)
}

// ResolveSymbolBytes is ResolveSymbol over an in-memory tokenizer.json.
func ResolveSymbolBytes(raw []byte, symbol string) (int, error) {
	var tj tokenizerJSON
	if err := json.Unmarshal(raw, &tj); err != nil {
		return 0, fmt.Errorf("parse tokenizer json: %w", err)
	}
	for _, at := range tj.AddedTokens {
		if at.Content == symbol {
			return at.ID, nil
		}
	}
	if id, ok := tj.Model.Vocab[symbol]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("vocabulary has no %q token", symbol)
}
