package color

import (
	"regexp"
	"testing"
)

var hexColor = regexp.MustCompile(`^#[0-9A-F]{6}$`)

func TestForName(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"simple name", "dana"},
		{"name with spaces", "Dana Reeves"},
		{"unicode name", "José"},
		{"empty string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ForName(tt.input)
			if !hexColor.MatchString(got) {
				t.Errorf("ForName(%q) = %q, not a hex color", tt.input, got)
			}
			if again := ForName(tt.input); again != got {
				t.Errorf("ForName(%q) not deterministic: %q then %q", tt.input, got, again)
			}
		})
	}
}

func TestForName_SpreadsColors(t *testing.T) {
	names := []string{"alice", "bob", "carol", "dave", "erin"}

	seen := make(map[string]string, len(names))
	for _, name := range names {
		c := ForName(name)
		if prev, ok := seen[c]; ok {
			t.Errorf("%q and %q share color %s", prev, name, c)
		}
		seen[c] = name
	}
}

func TestHSLToRGB(t *testing.T) {
	tests := []struct {
		name    string
		h, s, l float64
		r, g, b uint8
	}{
		{"black", 0, 0, 0, 0, 0, 0},
		{"white", 0, 0, 1, 255, 255, 255},
		{"mid gray", 0, 0, 0.5, 127, 127, 127},
		{"pure red", 0, 1, 0.5, 255, 0, 0},
		{"pure green", 120, 1, 0.5, 0, 255, 0},
		{"pure blue", 240, 1, 0.5, 0, 0, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := hslToRGB(tt.h, tt.s, tt.l)
			if r != tt.r || g != tt.g || b != tt.b {
				t.Errorf("hslToRGB(%v, %v, %v) = (%d, %d, %d), want (%d, %d, %d)",
					tt.h, tt.s, tt.l, r, g, b, tt.r, tt.g, tt.b)
			}
		})
	}
}
