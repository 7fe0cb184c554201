package pattern

import (
	"strings"
	"testing"
)

func TestMatch_Literal(t *testing.T) {
	// Without wildcards, match is string equality.
	targets := []string{"", "a", "led", "led:on", "btn.get_state", "a:b"}
	for _, p := range targets {
		for _, tgt := range targets {
			got := Match(p, tgt)
			want := p == tgt
			if got != want {
				t.Errorf("Match(%q, %q) = %v, want %v", p, tgt, got, want)
			}
		}
	}
}

func TestMatch_Wildcard(t *testing.T) {
	tests := []struct {
		pattern string
		target  string
		want    bool
	}{
		{"*", "", true},
		{"*", "anything", true},
		{"*", "a:b", true},
		{"a*c", "abc", true},
		{"a*c", "ac", true},
		{"a*c", "abd", false},
		{"a*c", "abcd", false},
		{"led*", "led1", true},
		{"led*", "led", true},
		{"*:on", "led:on", true},
		{"*:on", "btn:on", true},
		{"*:on", "led:off", false},
		{"led:*", "led:on", true},
		{"led:*", "led:", true},
		{"led:*", "btn:on", false},
		{"*:*", "led:on", true},
		// A wildcard may cross the separator.
		{"l*n", "led:on", true},
		{"**", "", true},
		{"**", "x", true},
		{"a**b", "ab", true},
		{"a*b*c", "aXbYc", true},
		{"a*b*c", "aXcYb", false},
		{"", "", true},
		{"", "x", false},
		{"x", "", false},
	}

	for _, tt := range tests {
		if got := Match(tt.pattern, tt.target); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.target, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		module string
		name   string
		sep    byte
	}{
		{"led.on", "led", "on", SepRequest},
		{"btn:short_press", "btn", "short_press", SepEvent},
		{"led", "led", "", SepNone},
		{"", "", "", SepNone},
		// '.' wins over ':' regardless of position.
		{"a:b.c", "a:b", "c", SepRequest},
		{"a.b:c", "a", "b:c", SepRequest},
		{"*.on", "*", "on", SepRequest},
		{"*:*", "*", "*", SepEvent},
	}

	for _, tt := range tests {
		module, name, sep, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if module != tt.module || name != tt.name || sep != tt.sep {
			t.Errorf("Parse(%q) = (%q, %q, %q), want (%q, %q, %q)",
				tt.in, module, name, sep, tt.module, tt.name, tt.sep)
		}
	}
}

func TestParse_ModuleTooLong(t *testing.T) {
	long := strings.Repeat("x", MaxNameLen+1)
	if _, _, _, err := Parse(long + ".on"); err != ErrNameTooLong {
		t.Errorf("expected ErrNameTooLong, got %v", err)
	}
	// Exactly at the bound is fine.
	exact := strings.Repeat("x", MaxNameLen)
	if _, _, _, err := Parse(exact + ".on"); err != nil {
		t.Errorf("unexpected error at bound: %v", err)
	}
}

func TestValidName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"led", true},
		{"btn1", true},
		{"", false},
		{"a.b", false},
		{"a:b", false},
		{"a*b", false},
		{strings.Repeat("x", MaxNameLen), true},
		{strings.Repeat("x", MaxNameLen+1), false},
	}
	for _, tt := range tests {
		if got := ValidName(tt.in); got != tt.want {
			t.Errorf("ValidName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
