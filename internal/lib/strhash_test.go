package lib

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashKnownValues(t *testing.T) {
	tests := []struct {
		in   string
		want int32
	}{
		{"", 0},
		{"a", 97},
		{"ab", 97*31 + 98},
		{"hello", 99162322},
		// Overflows and wraps to exactly the minimum int32.
		{"polygenelubricants", math.MinInt32},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Hash(tt.in), "Hash(%q)", tt.in)
	}
}

func TestHashUsesUTF16CodeUnits(t *testing.T) {
	// U+1F334 is a surrogate pair in UTF-16: 0xD83C 0xDF34.
	want := int32(0xDF34) + int32(0xD83C)*31
	assert.Equal(t, want, Hash("\U0001F334"))
}

func TestPseudoRandom(t *testing.T) {
	assert.Equal(t, 0.0, PseudoRandom(0))
	assert.InDelta(t, 0.7098480789645691, PseudoRandom(1), 1e-9)

	for _, seed := range []float64{-5, 1, 2, 3.5, 1e6, float64(Hash("node-1"))} {
		v := PseudoRandom(seed)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestJitterIsStable(t *testing.T) {
	x1, y1 := Jitter("node-1")
	x2, y2 := Jitter("node-1")
	assert.Equal(t, x1, x2)
	assert.Equal(t, y1, y2)
	assert.NotEqual(t, x1, y1)

	seed := float64(Hash("node-1"))
	assert.Equal(t, PseudoRandom(seed)*2-1, x1)
	assert.Equal(t, PseudoRandom(seed+1)*2-1, y1)

	for _, v := range []float64{x1, y1} {
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}
