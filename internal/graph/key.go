package graph

import (
	"strings"
)

// KeySeparator joins the node kind and slug in a logical key. Backends whose
// identifier grammar disallows it canonicalize on write; the logical form
// always keeps the separator.
const KeySeparator = "|"

// Key builds the logical key for a node: "<kind>|<slug>".
func Key(kind NodeKind, name string) string {
	return string(kind) + KeySeparator + Slug(name)
}

// ChildKey builds the logical key for a node owned by another node, e.g. a
// field or an example: "<kind>|<parent-slug>_<slug>".
func ChildKey(kind NodeKind, parentKey, name string) string {
	parent := parentKey
	if i := strings.Index(parent, KeySeparator); i >= 0 {
		parent = parent[i+len(KeySeparator):]
	}
	return string(kind) + KeySeparator + parent + "_" + Slug(name)
}

// Slug lower-cases the input and replaces any character outside [a-z0-9_-]
// with an underscore. Slugging is idempotent.
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// CanonicalID maps a logical key to the form accepted by backends that
// disallow "|" in identifiers: "|" becomes "_" and the "<>" marker used in
// edge keys becomes "_to_". Deterministic and idempotent.
func CanonicalID(key string) string {
	out := strings.ReplaceAll(key, "<>", "_to_")
	out = strings.ReplaceAll(out, KeySeparator, "_")
	return out
}

// EdgeID builds a stable identifier for an edge triple. The logical form uses
// the "<>" marker between endpoints; CanonicalID rewrites it for backends.
func EdgeID(fromKey, edgeType, toKey string) string {
	return fromKey + "<>" + strings.ToUpper(edgeType) + "<>" + toKey
}
