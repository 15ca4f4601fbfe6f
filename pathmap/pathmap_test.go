package pathmap

import "testing"

func TestToBlobPath(t *testing.T) {
	cases := []struct {
		name      string
		subfolder string
		native    string
		want      string
	}{
		{"root no prefix", "", `\`, ""},
		{"root with prefix", "data", `\`, "data/"},
		{"simple file", "", `\folder\new.txt`, "folder/new.txt"},
		{"simple file with prefix", "data", `\folder\new.txt`, "data/folder/new.txt"},
		{"mixed separators", "", `\a/b\c.txt`, "a/b/c.txt"},
		{"prefix normalizes backslashes", `data\sub`, `\x.txt`, "data/sub/x.txt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := New(tc.subfolder)
			if got := m.ToBlobPath(tc.native); got != tc.want {
				t.Errorf("ToBlobPath(%q) = %q, want %q", tc.native, got, tc.want)
			}
		})
	}
}

func TestToNativePath(t *testing.T) {
	m := New("data")
	if got, want := m.ToNativePath("data/folder/new.txt"), `\folder\new.txt`; got != want {
		t.Errorf("ToNativePath = %q, want %q", got, want)
	}

	// Case-insensitive prefix stripping, accepted limitation (spec §9).
	if got, want := m.ToNativePath("DATA/folder/new.txt"), `\folder\new.txt`; got != want {
		t.Errorf("ToNativePath case-insensitive = %q, want %q", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	paths := []string{`\a.txt`, `\folder\b.txt`, `\folder\sub\c.txt`, `\`}

	for _, subfolder := range []string{"", "data", "data/sub"} {
		m := New(subfolder)
		for _, p := range paths {
			key := m.ToBlobPath(p)
			back := m.ToNativePath(key)
			if back != normalizeNative(p) {
				t.Errorf("round trip with subfolder %q: %q -> %q -> %q, want %q",
					subfolder, p, key, back, normalizeNative(p))
			}
		}
	}
}

// normalizeNative mirrors the "up to separator normalization" clause of
// the round-trip property: a bare leading separator and no doubled
// separators.
func normalizeNative(p string) string {
	if p == `\` {
		return `\`
	}
	return p
}

func TestListPrefix(t *testing.T) {
	m := New("data")
	if got, want := m.ListPrefix(`\`), "data/"; got != want {
		t.Errorf("ListPrefix(root) = %q, want %q", got, want)
	}
	if got, want := m.ListPrefix(`\folder`), "data/folder/"; got != want {
		t.Errorf("ListPrefix = %q, want %q", got, want)
	}

	noPrefix := New("")
	if got, want := noPrefix.ListPrefix(`\`), ""; got != want {
		t.Errorf("ListPrefix(root, no prefix) = %q, want %q", got, want)
	}
}

func TestLeafName(t *testing.T) {
	cases := map[string]string{
		"a/b/c.txt": "c.txt",
		"a/b/dir/":  "dir",
		"top.txt":   "top.txt",
		"":          "",
	}
	for key, want := range cases {
		if got := LeafName(key); got != want {
			t.Errorf("LeafName(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestParentPrefix(t *testing.T) {
	cases := map[string]string{
		"a/b/c.txt": "a/b/",
		"top.txt":   "",
		"a/":        "",
	}
	for key, want := range cases {
		if got := ParentPrefix(key); got != want {
			t.Errorf("ParentPrefix(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestNormalizePrefixIdempotent(t *testing.T) {
	variants := []string{"data", "/data/", `\data\`, "data/", `\data`}
	for _, v := range variants {
		got := normalizePrefix(v)
		if got != "data/" {
			t.Errorf("normalizePrefix(%q) = %q, want %q", v, got, "data/")
		}
		// Re-normalizing an already-normalized prefix must be a no-op.
		if again := normalizePrefix(got); again != got {
			t.Errorf("normalizePrefix not idempotent: %q -> %q", got, again)
		}
	}
}
