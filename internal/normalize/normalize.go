// Package normalize canonicalizes heterogeneous identifier fields into
// comparable match keys. Field spreadsheets disagree on case, whitespace, and
// separator conventions for the same identifier (CANR_TISL24_054 vs
// canr-tisl24 054), so every key comparison in the resolver goes through here.
package normalize

import "strings"

// FieldKind selects the normalization profile for a raw value.
type FieldKind int

const (
	// FieldCode marks code-like identifiers (source ids, tube ids, bag ids):
	// separators are stripped and letters upper-cased.
	FieldCode FieldKind = iota
	// FieldText marks free-text name fields (villages, scientific names):
	// whitespace is collapsed and case folded, internal separators kept.
	FieldText
)

// Key is a normalized match key. The zero Key is the Empty sentinel: callers
// must treat it as "absent", never as a valid match key, or blank cells would
// all match each other.
type Key struct {
	value string
}

// Empty is the sentinel key produced by blank or whitespace-only input.
var Empty = Key{}

// IsEmpty reports whether the key is the Empty sentinel.
func (k Key) IsEmpty() bool { return k.value == "" }

// String returns the canonical form. Empty keys render as "".
func (k Key) String() string { return k.value }

// codeSeparators are stripped from code-like identifiers.
const codeSeparators = "-_ \t"

// Normalize canonicalizes a raw cell value according to the field kind.
// Deterministic and pure: equal input always yields an equal key.
func Normalize(raw string, kind FieldKind) Key {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Empty
	}
	switch kind {
	case FieldCode:
		var b strings.Builder
		b.Grow(len(trimmed))
		for _, r := range trimmed {
			if strings.ContainsRune(codeSeparators, r) {
				continue
			}
			b.WriteRune(r)
		}
		return Key{value: strings.ToUpper(b.String())}
	default:
		return Key{value: strings.ToLower(strings.Join(strings.Fields(trimmed), " "))}
	}
}

// compositeSep joins key parts without colliding with stripped separators.
const compositeSep = "\x1f"

// Join composes a key from multiple parts, e.g. (source_id, host_type). Any
// empty part collapses the whole key to Empty: a partial composite key must
// not match anything.
func Join(parts ...Key) Key {
	vals := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.IsEmpty() {
			return Empty
		}
		vals = append(vals, p.value)
	}
	if len(vals) == 0 {
		return Empty
	}
	return Key{value: strings.Join(vals, compositeSep)}
}

// JoinSparse composes a key tolerating blank parts: missing components join
// as empty segments, and only an all-blank input collapses to Empty. Used for
// composite keys whose components are genuinely optional, like the location
// name chain.
func JoinSparse(parts ...Key) Key {
	vals := make([]string, len(parts))
	any := false
	for i, p := range parts {
		vals[i] = p.value
		if !p.IsEmpty() {
			any = true
		}
	}
	if !any {
		return Empty
	}
	return Key{value: strings.Join(vals, compositeSep)}
}
