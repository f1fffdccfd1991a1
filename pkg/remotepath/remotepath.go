// Package remotepath normalizes remote directory paths into ordered segments.
//
// Remote paths arrive from configuration, command lines and API requests and
// may use either '/' or '\' as a delimiter, with any number of leading,
// trailing or repeated delimiters. A remote directory is always rebuilt from
// its segments with '/'.
package remotepath

import (
	"strings"
)

const (
	Separator  = "/"
	delimiters = `/\`
)

// Segments is the root-to-leaf list of directory names of a remote path.
// No segment is blank and none contains a delimiter.
type Segments struct {
	parts []string
}

// SplitPath breaks path into its directory segments. A blank path yields no
// segments.
func SplitPath(path string) Segments {
	var reversed []string
	for strings.TrimSpace(path) != "" {
		var base string
		path, base = splitLast(path)
		if strings.TrimSpace(base) != "" {
			reversed = append(reversed, base)
		}
	}

	parts := make([]string, len(reversed))
	for i, p := range reversed {
		parts[len(reversed)-1-i] = p
	}
	return Segments{parts: parts}
}

// splitLast returns everything before the last delimiter and the component
// after it.
func splitLast(path string) (string, string) {
	i := strings.LastIndexAny(path, delimiters)
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

func (s Segments) Len() int {
	return len(s.parts)
}

func (s Segments) IsEmpty() bool {
	return len(s.parts) == 0
}

// Strings returns a copy of the segments.
func (s Segments) Strings() []string {
	out := make([]string, len(s.parts))
	copy(out, s.parts)
	return out
}

// Join rebuilds the relative path, e.g. "a/b/c".
func (s Segments) Join() string {
	return strings.Join(s.parts, Separator)
}

// Prefix joins the first n segments. n is clamped to [0, Len()].
func (s Segments) Prefix(n int) string {
	if n < 0 {
		n = 0
	}
	if n > len(s.parts) {
		n = len(s.parts)
	}
	return strings.Join(s.parts[:n], Separator)
}

// Absolute rebuilds the rooted path, e.g. "/a/b/c". Empty segments give "".
func (s Segments) Absolute() string {
	if s.IsEmpty() {
		return ""
	}
	return Separator + s.Join()
}

// File places name inside the directory described by s. Without segments the
// name is returned unchanged so it resolves against the session's working
// directory.
func (s Segments) File(name string) string {
	if s.IsEmpty() {
		return name
	}
	return s.Absolute() + Separator + name
}
