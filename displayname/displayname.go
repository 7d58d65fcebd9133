// Package displayname turns raw participant identifiers into the labels and
// badge initials shown on a roster.
//
// Example usage:
//
//	name := displayname.Resolve("jane.doe@mergington.edu") // "jane.doe"
//	badge := displayname.Initials(name)                     // "JD"
package displayname

import (
	"strings"
	"unicode"
)

// Unknown is returned by Resolve for an empty identifier.
const Unknown = "Unknown"

// NoInitials is returned by Initials when the name has no usable fragments.
const NoInitials = "?"

// Resolve returns the human-friendly label for a participant identifier.
// Email addresses resolve to the part before the first "@"; anything else is
// returned unchanged.
func Resolve(identifier string) string {
	if identifier == "" {
		return Unknown
	}
	if local, _, found := strings.Cut(identifier, "@"); found {
		return local
	}
	return identifier
}

// Initials returns a one or two character upper-case badge for a display name.
// The name is split on runs of whitespace, '.', '_' and '-'. A single fragment
// yields its first two characters, two or more fragments yield the first
// character of each of the first two.
func Initials(displayName string) string {
	parts := strings.FieldsFunc(displayName, isSeparator)
	switch len(parts) {
	case 0:
		return NoInitials
	case 1:
		r := []rune(parts[0])
		if len(r) > 2 {
			r = r[:2]
		}
		return strings.ToUpper(string(r))
	default:
		return strings.ToUpper(string(firstRune(parts[0])) + string(firstRune(parts[1])))
	}
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '.' || r == '_' || r == '-'
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}
