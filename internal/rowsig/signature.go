// Package rowsig computes row signatures for the Multiset Matcher. This
// is a deliberately different hash family from diffcore's FNV-1a key
// hash: signature grouping is an in-run implementation detail (never
// serialized, never compared across runs or platforms), so it is free to
// use a faster general-purpose hash. The canonical cross-platform
// partition hash in diffcore must stay FNV-1a; this one must not be used
// for that purpose.
package rowsig

import (
	"github.com/zeebo/xxh3"
)

const fieldDelimiter = 0x1f

// Signature is the xxh3 fingerprint of a row's comparison-column values,
// joined by the same unit-separator convention as the key hash so that
// ["ab", "c"] and ["a", "bc"] never collide on delimiter placement.
type Signature uint64

// Of computes the signature of values (already reduced to the ordered
// comparison-column subset of a row).
func Of(values []string) Signature {
	var buf []byte
	for i, v := range values {
		if i > 0 {
			buf = append(buf, fieldDelimiter)
		}
		buf = append(buf, v...)
	}
	return Signature(xxh3.Hash(buf))
}
