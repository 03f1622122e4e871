// Package tokenizer provides approximate token counting for prompt
// budgeting. It uses the cl100k_base vocabulary, which is close enough for
// trimming decisions across all supported providers.
package tokenizer

import (
	"sync"

	tk "github.com/tiktoken-go/tokenizer"
)

var (
	once    sync.Once
	codec   tk.Codec
	initErr error
)

func get() (tk.Codec, error) {
	once.Do(func() {
		codec, initErr = tk.Get(tk.Cl100kBase)
	})
	return codec, initErr
}

// Count returns the token count of text. On tokenizer failure it falls back
// to a bytes/4 estimate so budgeting never blocks a request.
func Count(text string) int {
	c, err := get()
	if err != nil {
		return len(text) / 4
	}
	n, err := c.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}
