package content

import (
	"strings"

	"github.com/google/uuid"
)

// KeyLength is the length of generated node keys. Anything shorter that
// also looks word-like is treated as fabricated by the validator.
const KeyLength = 12

// NewKey returns a fresh random alphanumeric node key. Semantic keys like
// "hero-row" are never generated: keys only need to be unique and stable,
// and word-like keys are indistinguishable from LLM hallucinations.
func NewKey() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw[:KeyLength]
}
