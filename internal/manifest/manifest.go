// Package manifest parses pip requirement manifests into an ordered list
// of package/constraint pairs. The manifest is the single input of the
// dependency-resolution stage: it is read once, validated up front, and
// any syntax problem fails the build before a container engine is ever
// invoked.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Requirement is a single manifest entry: one package with an optional
// version constraint, extras, and environment marker.
type Requirement struct {
	Name       string // canonical (lowercased) package name
	RawName    string // name as written in the manifest
	Constraint string // e.g. "==2.5.0", ">=1.0,<2.0"; empty means unpinned
	Extras     []string
	Marker     string // environment marker after ';', verbatim
	Line       int    // 1-based line in the manifest file
}

// String reconstructs the requirement in pip syntax.
func (r Requirement) String() string {
	var sb strings.Builder
	sb.WriteString(r.RawName)
	if len(r.Extras) > 0 {
		sb.WriteString("[" + strings.Join(r.Extras, ",") + "]")
	}
	sb.WriteString(r.Constraint)
	if r.Marker != "" {
		sb.WriteString("; " + r.Marker)
	}
	return sb.String()
}

// Pinned reports whether the requirement pins an exact version.
func (r Requirement) Pinned() bool {
	return strings.HasPrefix(r.Constraint, "==") && !strings.Contains(r.Constraint, ",")
}

// Manifest is the parsed, ordered requirement list. Order is preserved
// exactly as declared; the manifest is immutable once parsed.
type Manifest struct {
	Path         string
	Requirements []Requirement
}

// Names returns the canonical package names in declaration order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Requirements))
	for i, r := range m.Requirements {
		names[i] = r.Name
	}
	return names
}

// Lookup returns the requirement for a canonical package name.
func (m *Manifest) Lookup(name string) (Requirement, bool) {
	name = canonicalName(name)
	for _, r := range m.Requirements {
		if r.Name == name {
			return r, true
		}
	}
	return Requirement{}, false
}

// Digest returns a stable hex digest of the resolved requirement set.
// It hashes the canonicalized (name, constraint, marker) tuples sorted by
// name, so comment and whitespace edits do not change the digest.
func (m *Manifest) Digest() string {
	lines := make([]string, len(m.Requirements))
	for i, r := range m.Requirements {
		lines[i] = fmt.Sprintf("%s%s;%s", r.Name, r.Constraint, r.Marker)
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalName normalizes a package name per PEP 503: lowercase, with
// runs of '-', '_' and '.' collapsed to a single '-'.
func canonicalName(name string) string {
	var sb strings.Builder
	prevSep := false
	for _, c := range strings.ToLower(name) {
		if c == '-' || c == '_' || c == '.' {
			if !prevSep {
				sb.WriteByte('-')
			}
			prevSep = true
			continue
		}
		prevSep = false
		sb.WriteRune(c)
	}
	return sb.String()
}
