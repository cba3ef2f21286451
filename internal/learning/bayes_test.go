package learning

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoricalModel_EmptyModelHasNoOpinion(t *testing.T) {
	m := NewCategoricalModel()
	assert.Nil(t, m.Predict("baseball", nil, 0))

	m.Fit(nil)
	assert.Nil(t, m.Predict("baseball", nil, 0))
}

func TestCategoricalModel_LearnsDominantLabel(t *testing.T) {
	m := NewCategoricalModel()

	examples := make([]Example, 0, 10)
	for i := 0; i < 8; i++ {
		examples = append(examples, Example{
			Original:  "base ball",
			Corrected: "baseball",
			Context:   map[string]string{"brand": "topps"},
		})
	}
	examples = append(examples,
		Example{Original: "hockey", Corrected: "hockey", Context: map[string]string{"brand": "upper deck"}},
		Example{Original: "hockey", Corrected: "hockey", Context: map[string]string{"brand": "upper deck"}},
	)
	m.Fit(examples)

	p := m.Predict("base ball", map[string]string{"brand": "topps"}, 1)
	require.NotNil(t, p)
	assert.Equal(t, "baseball", p.Value)
	assert.Equal(t, 8, p.Support)
	assert.Greater(t, p.Confidence, 0.9)
	assert.Equal(t, ModelCategorical, p.Model)
}

func TestCategoricalModel_LaplaceSmoothing(t *testing.T) {
	// With one training example and a probe of an entirely unseen value,
	// the posterior must be strictly inside (0,1), never exactly 0 or 1.
	m := NewCategoricalModel()
	m.Fit([]Example{{
		Original:  "basketbal",
		Corrected: "basketball",
		Context:   map[string]string{"brand": "panini"},
	}})

	p := m.Predict("never seen", map[string]string{"brand": "never seen either"}, 1)
	require.NotNil(t, p)
	assert.Greater(t, p.Confidence, 0.0)
	assert.Less(t, p.Confidence, 1.0)
}

func TestCategoricalModel_SingleClassNeverCertain(t *testing.T) {
	// A model that has only ever seen one label must not report full
	// certainty, no matter how many examples back it or how unfamiliar
	// the probe is.
	fit := func(n int) *CategoricalModel {
		m := NewCategoricalModel()
		examples := make([]Example, 0, n)
		for i := 0; i < n; i++ {
			examples = append(examples, Example{
				Original:  "base ball",
				Corrected: "baseball",
				Context:   map[string]string{"brand": "topps"},
			})
		}
		m.Fit(examples)
		return m
	}

	for _, n := range []int{1, 5, 50} {
		p := fit(n).Predict("completely unknown", map[string]string{"brand": "mystery"}, 1)
		require.NotNil(t, p)
		assert.Greater(t, p.Confidence, 0.0, "n=%d", n)
		assert.Less(t, p.Confidence, 1.0, "n=%d", n)
	}

	// A probe matching the training data exactly gains confidence with
	// evidence but still stays strictly below 1.
	exactSmall := fit(1).Predict("base ball", map[string]string{"brand": "topps"}, 1)
	exactLarge := fit(50).Predict("base ball", map[string]string{"brand": "topps"}, 1)
	require.NotNil(t, exactSmall)
	require.NotNil(t, exactLarge)
	assert.Greater(t, exactLarge.Confidence, exactSmall.Confidence)
	assert.Less(t, exactLarge.Confidence, 1.0)
}

func TestCategoricalModel_MinSupportGate(t *testing.T) {
	m := NewCategoricalModel()
	m.Fit([]Example{
		{Original: "bb", Corrected: "baseball"},
		{Original: "bb", Corrected: "baseball"},
	})

	assert.NotNil(t, m.Predict("bb", nil, 2))
	assert.Nil(t, m.Predict("bb", nil, 3))
}

func TestCategoricalModel_RefitResetsState(t *testing.T) {
	m := NewCategoricalModel()
	m.Fit([]Example{{Original: "x", Corrected: "football"}})
	m.Fit([]Example{{Original: "x", Corrected: "soccer"}})

	p := m.Predict("x", nil, 1)
	require.NotNil(t, p)
	assert.Equal(t, "soccer", p.Value)
	assert.Equal(t, 1, m.TotalSamples)
}

func TestCategoricalModel_ConfidenceInRangeFuzz(t *testing.T) {
	// Property check over randomized training sets: all returned
	// confidences lie in [0,1].
	rng := rand.New(rand.NewSource(42))
	labels := []string{"baseball", "basketball", "football", "hockey", "soccer"}
	brands := []string{"topps", "panini", "fleer", "upper deck", ""}

	for trial := 0; trial < 50; trial++ {
		m := NewCategoricalModel()
		n := 1 + rng.Intn(40)
		examples := make([]Example, 0, n)
		for i := 0; i < n; i++ {
			examples = append(examples, Example{
				Original:  fmt.Sprintf("raw-%d", rng.Intn(10)),
				Corrected: labels[rng.Intn(len(labels))],
				Context:   map[string]string{"brand": brands[rng.Intn(len(brands))]},
			})
		}
		m.Fit(examples)

		for probe := 0; probe < 10; probe++ {
			p := m.Predict(
				fmt.Sprintf("raw-%d", rng.Intn(15)),
				map[string]string{"brand": brands[rng.Intn(len(brands))]},
				0,
			)
			if p == nil {
				continue
			}
			assert.GreaterOrEqual(t, p.Confidence, 0.0)
			assert.LessOrEqual(t, p.Confidence, 1.0)
			assert.GreaterOrEqual(t, p.Support, 0)
		}
	}
}
