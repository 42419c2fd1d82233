// Package color generates deterministic avatar colors for users.
package color

import (
	"fmt"
	"hash/fnv"
	"math"
)

// goldenRatioConjugate spreads hues evenly around the wheel, so users
// registered one after another don't end up with near-identical colors.
const goldenRatioConjugate = 0.618033988749895

// ForName returns a stable hex color for a display name. The same name
// always maps to the same color, on any instance, so avatars survive
// database rebuilds and exports.
func ForName(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name)) //nolint:errcheck // hash.Write never fails

	seed := float64(h.Sum32()) * goldenRatioConjugate
	hue := math.Mod(seed, 1.0) * 360

	// Fixed saturation and lightness keep every color readable as a
	// background for white initials.
	r, g, b := hslToRGB(hue, 0.45, 0.62)

	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// hslToRGB converts HSL color space to RGB.
// h: hue (0-360), s: saturation (0-1), l: lightness (0-1)
// Returns RGB values (0-255).
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	h /= 360.0

	var r1, g1, b1 float64

	if s == 0 {
		// Achromatic (gray)
		r1, g1, b1 = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q

		r1 = hueToRGB(p, q, h+1.0/3.0)
		g1 = hueToRGB(p, q, h)
		b1 = hueToRGB(p, q, h-1.0/3.0)
	}

	r = uint8(r1 * 255)
	g = uint8(g1 * 255)
	b = uint8(b1 * 255)
	return
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
