// Package dedup implements the duplicate detection core: key extraction,
// grouping, canonical-member selection, and tagging.
package dedup

import (
	"strings"

	"github.com/starford/dagaz/internal/models"
)

// CombineAll is the key-spec sentinel meaning "use every field value,
// in field order, as the dedup key".
const CombineAll = "Combine All Keys"

// keySep separates tuple elements inside an encoded Key. A unit separator
// keeps ("ab","c") and ("a","bc") distinct, which plain concatenation
// would not.
const keySep = "\x1f"

// Key is an encoded tuple of field values. Two notes are duplicates iff
// their Keys compare equal.
type Key string

// EncodeKey builds a Key from an ordered list of values.
func EncodeKey(values []string) Key {
	return Key(strings.Join(values, keySep))
}

// ExtractKey computes the dedup key for a note under the given key spec.
//
// With the CombineAll sentinel the key is the tuple of all field values in
// the note's own field order; field names are deliberately not compared, so
// notes of different types collide whenever their value tuples match.
// With a field name, the key is a 1-tuple of that field's value; if the
// field is absent the note has no usable key and ok is false.
func ExtractKey(n *models.Note, keySpec string) (Key, bool) {
	if keySpec == CombineAll {
		return EncodeKey(n.Values()), true
	}
	v, ok := n.FieldValue(keySpec)
	if !ok {
		return "", false
	}
	return EncodeKey([]string{v}), true
}
