// Package tokens counts prompt tokens for refinement records.
package tokens

import (
	"sync"
	"unicode"

	"github.com/clipperhouse/uax29/words"
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE table used when none is configured.
const DefaultEncoding = "cl100k_base"

// Counter counts tokens in text.
type Counter interface {
	Count(text string) int
}

// #region tiktoken
// TikToken counts BPE tokens. The encoding is loaded on first use; when it
// cannot be loaded (tiktoken fetches tables over the network) Count falls
// back to Words for the lifetime of the counter.
type TikToken struct {
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// NewTikToken returns a lazily loaded counter for encoding.
func NewTikToken(encoding string) *TikToken {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &TikToken{encoding: encoding}
}

func (c *TikToken) load() {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding(c.encoding)
	})
}

// Err reports why the BPE table is unavailable, or nil once it has loaded.
func (c *TikToken) Err() error {
	c.load()
	return c.err
}

func (c *TikToken) Count(text string) int {
	if text == "" {
		return 0
	}
	c.load()
	if c.err != nil {
		return Words{}.Count(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}
// #endregion tiktoken

// #region words
// Words counts Unicode word segments that contain a letter or digit.
type Words struct{}

func (Words) Count(text string) int {
	var n int
	for _, seg := range words.SegmentAll([]byte(text)) {
		if hasWordRune(seg) {
			n++
		}
	}
	return n
}

func hasWordRune(seg []byte) bool {
	for _, r := range string(seg) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
// #endregion words
