// Package sanitize maps remote display names to filesystem-safe path segments.
//
// Every name coming from the tracking service (project, episode, sequence,
// shot, asset, task type, file name) passes through Name before it becomes
// part of a local path. Only the following survive:
//   - Unicode letters and numbers
//   - space, '.', '_' and '-'
//
// Everything else (separators, control characters, zero-width characters,
// shell metacharacters) is dropped rather than replaced.
package sanitize

import (
	"strings"
	"unicode"
)

// Placeholder is returned whenever a name has nothing usable left.
const Placeholder = "Unnamed"

// Name returns a filesystem-safe version of name. It never returns an empty
// string and Name(Name(x)) == Name(x) for every x.
func Name(name string) string {
	if name == "" {
		return Placeholder
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if keep(r) {
			b.WriteRune(r)
		}
	}

	out := strings.Trim(b.String(), " ")
	if out == "" || onlyDots(out) {
		return Placeholder
	}
	return out
}

func keep(r rune) bool {
	switch r {
	case ' ', '.', '_', '-':
		return true
	}
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// "." and ".." are legal after filtering but would walk out of the parent.
func onlyDots(s string) bool {
	return strings.Trim(s, ".") == ""
}
