// Package tokens estimates the token footprint of instruction text.
// Counting prefers a real tiktoken encoding and falls back to the chars/4
// heuristic when no encoding is available (offline builds, unknown models).
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"promptforge/internal/logging"
)

// DefaultModel is the model whose encoding is used when none is configured.
const DefaultModel = "gpt-4"

// Counter counts tokens for a fixed model encoding. Safe for concurrent use.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

var (
	cacheMu       sync.Mutex
	encodingCache = make(map[string]*tiktoken.Tiktoken)
)

// NewCounter creates a counter for a model. An unknown model falls back to
// the cl100k_base encoding; if even that is unavailable the counter still
// works via the chars/4 estimate.
func NewCounter(model string) *Counter {
	if model == "" {
		model = DefaultModel
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if enc, ok := encodingCache[model]; ok {
		return &Counter{encoding: enc}
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			logging.Get(logging.CategoryTokens).Warnf(
				"no token encoding available for %q, using chars/4 estimate: %v", model, err)
			enc = nil
		}
	}

	encodingCache[model] = enc
	return &Counter{encoding: enc}
}

// Count returns the token count of text.
func (c *Counter) Count(text string) int {
	if c == nil || c.encoding == nil {
		return Estimate(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// Estimate approximates the token count at one token per four characters.
// Fast, model-independent, slightly generous for dense code.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
