package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// MaxKeyLength is the longest canonical encoding used verbatim as a store key.
// Longer encodings are replaced by a SHA-256 digest of the canonical form.
const MaxKeyLength = 512

// Key identifies a logical read resource.
// Elements are ordered; ["books", "detail", 7] and ["books", 7, "detail"] differ.
type Key []any

// String returns the canonical encoding of the key.
func (k Key) String() string {
	return defaultKeyer.Encode(k)
}

// Keyer canonicalizes query keys into stable strings.
//
// Contract:
// - Determinism: equal keys must encode to the same string, regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Encode never fails; every key yields some encoding.
type Keyer interface {
	Encode(key Key) string
}

// DefaultKeyer encodes keys as canonical JSON arrays.
type DefaultKeyer struct{}

var defaultKeyer = NewDefaultKeyer()

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Encode returns the canonical form of key.
// Format: ["books","detail",7], or sha256:<hex> when longer than MaxKeyLength.
func (k *DefaultKeyer) Encode(key Key) string {
	canonical := canonicalizeSlice([]any(key))
	if len(canonical) <= MaxKeyLength {
		return string(canonical)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func canonicalize(v any) []byte {
	switch val := v.(type) {
	case nil:
		return []byte("null")
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	case Key:
		return canonicalizeSlice([]any(val))
	default:
		b, err := json.Marshal(v)
		if err != nil {
			// Channels, funcs and cyclic values still need a stable token.
			fallback, _ := json.Marshal(fmt.Sprintf("%T:%v", v, v))
			return fallback
		}
		return b
	}
}

func canonicalizeMap(m map[string]any) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, _ := json.Marshal(k)
		result = append(result, keyBytes...)
		result = append(result, ':')
		result = append(result, canonicalize(m[k])...)
	}
	return append(result, '}')
}

func canonicalizeSlice(s []any) []byte {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		result = append(result, canonicalize(v)...)
	}
	return append(result, ']')
}

var _ Keyer = (*DefaultKeyer)(nil)
