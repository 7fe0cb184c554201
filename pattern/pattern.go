// Package pattern implements the wildcard grammar shared by the bus
// request and event paths.
//
// A pattern names a module and an action or event:
//
//	module.action   request
//	module:event    event, subscription, route
//
// The only wildcard token is '*', which matches zero or more characters
// of any kind. Matching is anchored at both ends of the target, and a
// '*' may match across the '.' or ':' separator.
package pattern

import (
	"errors"
	"strings"
)

const (
	// MaxNameLen is the maximum length of a module, action or event name.
	MaxNameLen = 16

	// MaxPatternLen is the maximum length of a full pattern string.
	MaxPatternLen = 32
)

// Separator values reported by Parse.
const (
	// SepNone means the pattern is a bare module name.
	SepNone byte = 0

	// SepRequest is the module/action separator of a request pattern.
	SepRequest byte = '.'

	// SepEvent is the module/event separator of an event pattern.
	SepEvent byte = ':'
)

// ErrNameTooLong is returned when the module segment of a pattern
// exceeds MaxNameLen.
var ErrNameTooLong = errors.New("pattern: module name too long")

// Match reports whether target matches pattern.
//
// The walk is greedy and backtracking: on '*' every suffix of the
// remaining target is tried. Worst case is exponential in the number of
// wildcards, which is acceptable for the short, bounded identifiers the
// bus deals in.
func Match(pattern, target string) bool {
	p, t := pattern, target

	for len(p) > 0 && len(t) > 0 {
		if p[0] == '*' {
			p = p[1:]
			if len(p) == 0 {
				return true
			}
			for len(t) > 0 {
				if Match(p, t) {
					return true
				}
				t = t[1:]
			}
			return false
		}
		if p[0] != t[0] {
			return false
		}
		p = p[1:]
		t = t[1:]
	}

	for len(p) > 0 && p[0] == '*' {
		p = p[1:]
	}
	return len(p) == 0 && len(t) == 0
}

// Parse splits a pattern into its module and action/event segments.
//
// The split happens at the first '.' if one is present, otherwise at the
// first ':'. A pattern with neither separator is a bare module name with
// an empty action segment and sep SepNone.
func Parse(p string) (module, name string, sep byte, err error) {
	switch {
	case strings.IndexByte(p, '.') >= 0:
		i := strings.IndexByte(p, '.')
		module, name, sep = p[:i], p[i+1:], SepRequest
	case strings.IndexByte(p, ':') >= 0:
		i := strings.IndexByte(p, ':')
		module, name, sep = p[:i], p[i+1:], SepEvent
	default:
		module, sep = p, SepNone
	}

	if len(module) > MaxNameLen {
		return "", "", SepNone, ErrNameTooLong
	}
	return module, name, sep, nil
}

// ValidName reports whether s can be used as a module, action or event
// name: non-empty, within MaxNameLen, and free of separator and
// wildcard characters.
func ValidName(s string) bool {
	if s == "" || len(s) > MaxNameLen {
		return false
	}
	return !strings.ContainsAny(s, ".:*")
}
