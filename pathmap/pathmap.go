// Package pathmap translates between native OS paths (backslash-separated,
// leading separator) and blob keys (forward-slash-separated, no leading
// separator, optionally rooted under a container subfolder).
//
// Every separator convention swap in the adapter goes through a Mapper;
// no other package should touch path separators directly.
package pathmap

import "strings"

// Mapper is a PathMapper bound to one optional container-relative
// subfolder prefix. It is immutable after construction and safe for
// concurrent use by any number of callbacks.
type Mapper struct {
	// prefix is either "" or "seg1/seg2/" - always empty or trailing-slash.
	prefix string
}

// New builds a Mapper for the given subfolder configuration string. The
// subfolder may be empty, may use either separator convention, and may
// carry leading/trailing separators of either kind; all of that is
// normalized away here so every other method can assume a clean prefix.
func New(subfolder string) *Mapper {
	return &Mapper{prefix: normalizePrefix(subfolder)}
}

func normalizePrefix(subfolder string) string {
	s := strings.ReplaceAll(subfolder, "\\", "/")
	s = strings.Trim(s, "/")
	if s == "" {
		return ""
	}
	return s + "/"
}

// Prefix returns the normalized subfolder prefix ("" or "a/b/").
func (m *Mapper) Prefix() string {
	return m.prefix
}

// ToBlobPath converts a native OS path to a blob key. The root native path
// (a single separator, or empty) maps to m.prefix (possibly "").
func (m *Mapper) ToBlobPath(native string) string {
	trimmed := strings.TrimLeft(native, "/\\")
	trimmed = strings.ReplaceAll(trimmed, "\\", "/")
	return m.prefix + trimmed
}

// ToNativePath converts a blob key back to a native OS path, stripping the
// mount's subfolder prefix (case-insensitively, matching the source
// behavior this adapter reimplements - see DESIGN.md for the accepted
// case-sensitivity limitation this carries forward).
func (m *Mapper) ToNativePath(key string) string {
	rel := key
	if m.prefix != "" && len(key) >= len(m.prefix) && strings.EqualFold(key[:len(m.prefix)], m.prefix) {
		rel = key[len(m.prefix):]
	}
	rel = strings.ReplaceAll(rel, "/", "\\")
	return "\\" + rel
}

// ListPrefix computes the hierarchical-listing prefix for a native
// directory path: ToBlobPath with a trailing "/" appended iff the result
// is non-empty and not already trailing.
func (m *Mapper) ListPrefix(native string) string {
	key := m.ToBlobPath(native)
	if key == "" || strings.HasSuffix(key, "/") {
		return key
	}
	return key + "/"
}

// LeafName returns the display name for a blob key or a trailing-slash
// synthetic directory marker: the substring after the last "/", with at
// most one trailing "/" trimmed first. Pure function, no Mapper state.
func LeafName(key string) string {
	trimmed := strings.TrimSuffix(key, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// ParentPrefix returns the immediate parent listing-prefix of a blob key,
// i.e. everything up to and including the last "/", or "" for a top-level
// key - the listing-prefix whose listing contains key.
func ParentPrefix(key string) string {
	idx := strings.LastIndex(strings.TrimSuffix(key, "/"), "/")
	if idx < 0 {
		return ""
	}
	return key[:idx+1]
}
