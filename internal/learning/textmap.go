package learning

import (
	"math"
	"sort"

	"github.com/slabworks/cardlearn/internal/similarity"
)

// Default fuzzy-match constants. Empirically chosen in the original
// deployment; kept configurable rather than re-derived.
const (
	DefaultFuzzyThreshold     = 0.85
	DefaultFuzzyConfidenceCap = 0.90
)

// TextMapper learns original -> corrected frequency tables for one
// free-text field. Lookup proceeds exact-with-context, then exact
// unconditional, then fuzzy over known originals. Only examples whose
// original and corrected values differ contribute mappings; a record
// confirming the upstream value carries no correction signal.
type TextMapper struct {
	// Exact maps normalized original -> corrected -> count.
	Exact map[string]map[string]int `json:"exact"`
	// ByContext maps "original|contextKey" -> corrected -> count.
	ByContext map[string]map[string]int `json:"by_context"`
	// FuzzyThreshold is the minimum similarity for fuzzy candidates.
	FuzzyThreshold float64 `json:"fuzzy_threshold"`
	// FuzzyConfidenceCap bounds the confidence of fuzzy matches.
	FuzzyConfidenceCap float64 `json:"fuzzy_confidence_cap"`
}

// NewTextMapper returns an empty mapper with default fuzzy settings.
func NewTextMapper() *TextMapper {
	return &TextMapper{
		Exact:              make(map[string]map[string]int),
		ByContext:          make(map[string]map[string]int),
		FuzzyThreshold:     DefaultFuzzyThreshold,
		FuzzyConfidenceCap: DefaultFuzzyConfidenceCap,
	}
}

// Type implements FieldModel.
func (m *TextMapper) Type() ModelType { return ModelText }

// Fit resets the mapper and rebuilds both frequency tables.
func (m *TextMapper) Fit(examples []Example) {
	m.Exact = make(map[string]map[string]int)
	m.ByContext = make(map[string]map[string]int)
	if m.FuzzyThreshold <= 0 {
		m.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if m.FuzzyConfidenceCap <= 0 {
		m.FuzzyConfidenceCap = DefaultFuzzyConfidenceCap
	}

	for _, ex := range examples {
		original := similarity.Normalize(ex.Original)
		corrected := similarity.Normalize(ex.Corrected)
		if original == "" || corrected == "" || original == corrected {
			continue
		}

		if m.Exact[original] == nil {
			m.Exact[original] = make(map[string]int)
		}
		m.Exact[original][corrected]++

		if ck := ContextKey(ex.Context); ck != "" {
			key := original + "|" + ck
			if m.ByContext[key] == nil {
				m.ByContext[key] = make(map[string]int)
			}
			m.ByContext[key][corrected]++
		}
	}
}

// Predict implements FieldModel. Exact matches carry confidence
// support/total-for-key; fuzzy matches are ranked by
// similarity x log(support+1) and additionally capped at the configured
// confidence cap. A candidate below minSupport never wins.
func (m *TextMapper) Predict(value string, ctx map[string]string, minSupport int) *Prediction {
	original := similarity.Normalize(value)
	if original == "" {
		return nil
	}

	// 1. Context-conditioned exact match.
	if ck := ContextKey(ctx); ck != "" {
		if p := m.exactLookup(m.ByContext[original+"|"+ck], minSupport); p != nil {
			return p
		}
	}

	// 2. Unconditional exact match.
	if p := m.exactLookup(m.Exact[original], minSupport); p != nil {
		return p
	}

	// 3. Fuzzy fallback over known originals.
	return m.fuzzyLookup(original, minSupport)
}

// exactLookup picks the most frequent corrected value from one table
// entry, requiring its count to clear minSupport.
func (m *TextMapper) exactLookup(counts map[string]int, minSupport int) *Prediction {
	if len(counts) == 0 {
		return nil
	}

	best, bestCount, total := topCorrection(counts)
	if bestCount < minSupport {
		return nil
	}

	return &Prediction{
		Value:      best,
		Confidence: float64(bestCount) / float64(total),
		Support:    bestCount,
		Model:      ModelText,
	}
}

// fuzzyLookup scans known originals for near matches of the probe.
func (m *TextMapper) fuzzyLookup(original string, minSupport int) *Prediction {
	keys := make([]string, 0, len(m.Exact))
	for k := range m.Exact {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		bestScore float64
		bestPred  *Prediction
	)
	for _, key := range keys {
		sim := similarity.Score(original, key)
		if sim < m.FuzzyThreshold {
			continue
		}

		candidate, count, total := topCorrection(m.Exact[key])
		if count < minSupport {
			continue
		}

		rank := sim * math.Log(float64(count)+1)
		if rank <= bestScore {
			continue
		}

		confidence := float64(count) / float64(total)
		if confidence > m.FuzzyConfidenceCap {
			confidence = m.FuzzyConfidenceCap
		}

		bestScore = rank
		bestPred = &Prediction{
			Value:      candidate,
			Confidence: confidence,
			Support:    count,
			Model:      ModelText,
		}
	}

	return bestPred
}

// topCorrection returns the highest-count corrected value in a table
// entry, its count, and the total count across the entry. Ties break
// lexicographically for determinism.
func topCorrection(counts map[string]int) (string, int, int) {
	corrected := make([]string, 0, len(counts))
	for c := range counts {
		corrected = append(corrected, c)
	}
	sort.Strings(corrected)

	best := ""
	bestCount := 0
	total := 0
	for _, c := range corrected {
		total += counts[c]
		if counts[c] > bestCount {
			best = c
			bestCount = counts[c]
		}
	}
	return best, bestCount, total
}
