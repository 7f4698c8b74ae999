package lib

import (
	"math"
	"unicode/utf16"
)

// Hash returns a stable int32 for a string. It iterates UTF-16 code units so the
// values match the hashCode used by browser front ends: h = c + (h<<5) - h, wrapping
// on overflow.
func Hash(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = int32(c) + (h << 5) - h
	}
	return h
}

// PseudoRandom maps a seed to a value in [0, 1). It is deterministic and is only used
// to jitter positions so that re-rendering the same graph does not move anything.
func PseudoRandom(seed float64) float64 {
	x := math.Sin(seed) * 10000
	return x - math.Floor(x)
}

// Jitter returns the x and y offsets in [-1, 1] for a node identity. The y offset is
// seeded with seed+1 so the two axes differ.
func Jitter(id string) (float64, float64) {
	seed := float64(Hash(id))
	return PseudoRandom(seed)*2 - 1, PseudoRandom(seed+1)*2 - 1
}
