package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditDistance(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{name: "classic kitten/sitting", a: "kitten", b: "sitting", want: 3},
		{name: "identical", a: "topps", b: "topps", want: 0},
		{name: "empty to word", a: "", b: "fleer", want: 5},
		{name: "word to empty", a: "fleer", b: "", want: 5},
		{name: "both empty", a: "", b: "", want: 0},
		{name: "single substitution", a: "donruss", b: "donriss", want: 1},
		{name: "insertion", a: "cub", b: "cubs", want: 1},
		{name: "unicode runes", a: "josé", b: "jose", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EditDistance(tt.a, tt.b))
			// Distance is symmetric.
			assert.Equal(t, tt.want, EditDistance(tt.b, tt.a))
		})
	}
}

func TestScore_Identities(t *testing.T) {
	// Identical non-empty strings score exactly 1.
	assert.Equal(t, 1.0, Score("mickey mantle", "mickey mantle"))

	// Empty vs empty scores 0, not 1.
	assert.Equal(t, 0.0, Score("", ""))

	// Whitespace-only input normalizes to empty.
	assert.Equal(t, 0.0, Score("   ", "\t"))
}

func TestScore_Normalization(t *testing.T) {
	// Case and whitespace differences do not count against similarity.
	assert.Equal(t, 1.0, Score("Chicago  Cubs", "chicago cubs"))
	assert.Equal(t, 1.0, Score(" Upper Deck ", "upper deck"))
}

func TestScore_Range(t *testing.T) {
	pairs := [][2]string{
		{"cubs", "chicago cubs"},
		{"topps chrome", "topps"},
		{"a", "z"},
		{"1989 fleer", "1989 fleer jr"},
		{"completely", "different"},
	}

	for _, p := range pairs {
		s := Score(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0, "score for %q vs %q", p[0], p[1])
		assert.LessOrEqual(t, s, 1.0, "score for %q vs %q", p[0], p[1])
	}
}

func TestScore_CloseStrings(t *testing.T) {
	// One edit across 12 runes should be well above a 0.85 fuzzy threshold.
	assert.Greater(t, Score("chicago cubs", "chicago cub"), 0.9)

	// Short strings with one edit fall below it.
	assert.Less(t, Score("cub", "tub"), 0.85)
}
