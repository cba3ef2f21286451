package learning

import (
	"math"
	"sort"

	"github.com/slabworks/cardlearn/internal/similarity"
)

// defaultAlpha is the Laplace smoothing constant.
const defaultAlpha = 1.0

// CategoricalModel is a multinomial Naive Bayes classifier over the
// conditioning context plus the upstream value itself. One instance
// serves one categorical field; the predicted label is the corrected
// value a human would have entered.
//
// All state is exported for JSON persistence. Fields must not be
// mutated after Fit; the engine swaps whole models on retrain.
type CategoricalModel struct {
	// ClassCounts counts training examples per corrected label.
	ClassCounts map[string]int `json:"class_counts"`
	// FeatureCounts counts label -> feature -> value observations.
	FeatureCounts map[string]map[string]map[string]int `json:"feature_counts"`
	// Vocabulary tracks the distinct values seen per feature.
	Vocabulary map[string]map[string]bool `json:"vocabulary"`
	// TotalSamples is the number of fitted examples.
	TotalSamples int `json:"total_samples"`
	// Alpha is the Laplace smoothing constant.
	Alpha float64 `json:"alpha"`
}

// NewCategoricalModel returns an empty classifier with default smoothing.
func NewCategoricalModel() *CategoricalModel {
	return &CategoricalModel{
		ClassCounts:   make(map[string]int),
		FeatureCounts: make(map[string]map[string]map[string]int),
		Vocabulary:    make(map[string]map[string]bool),
		Alpha:         defaultAlpha,
	}
}

// Type implements FieldModel.
func (m *CategoricalModel) Type() ModelType { return ModelCategorical }

// Fit resets the model and rebuilds counts from the given examples.
// Examples with an empty corrected value are skipped.
func (m *CategoricalModel) Fit(examples []Example) {
	m.ClassCounts = make(map[string]int)
	m.FeatureCounts = make(map[string]map[string]map[string]int)
	m.Vocabulary = make(map[string]map[string]bool)
	m.TotalSamples = 0
	if m.Alpha <= 0 {
		m.Alpha = defaultAlpha
	}

	for _, ex := range examples {
		label := similarity.Normalize(ex.Corrected)
		if label == "" {
			continue
		}

		m.ClassCounts[label]++
		m.TotalSamples++

		if m.FeatureCounts[label] == nil {
			m.FeatureCounts[label] = make(map[string]map[string]int)
		}
		for feature, value := range categoricalFeatures(ex.Original, ex.Context) {
			if m.FeatureCounts[label][feature] == nil {
				m.FeatureCounts[label][feature] = make(map[string]int)
			}
			m.FeatureCounts[label][feature][value]++

			if m.Vocabulary[feature] == nil {
				m.Vocabulary[feature] = make(map[string]bool)
			}
			m.Vocabulary[feature][value] = true
		}
	}
}

// Predict implements FieldModel. It scores every observed label with
// log-prior plus Laplace-smoothed log-likelihoods, normalizes through
// log-sum-exp, and returns the arg-max label with its posterior
// probability. Unseen feature values receive the smoothed baseline,
// never zero. The normalization includes the smoothing mass reserved
// for labels never observed, so even a lone class stays strictly below
// probability 1. Returns nil when no classes have been observed or the
// winning class count is below minSupport.
func (m *CategoricalModel) Predict(value string, ctx map[string]string, minSupport int) *Prediction {
	if m.TotalSamples == 0 || len(m.ClassCounts) == 0 {
		return nil
	}

	features := categoricalFeatures(value, ctx)

	labels := make([]string, 0, len(m.ClassCounts))
	for label := range m.ClassCounts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	featureNames := make([]string, 0, len(features))
	for f := range features {
		featureNames = append(featureNames, f)
	}
	sort.Strings(featureNames)

	scores := make([]float64, len(labels))
	for i, label := range labels {
		logp := math.Log(float64(m.ClassCounts[label]) / (float64(m.TotalSamples) + m.Alpha))

		for _, feature := range featureNames {
			vocabSize := len(m.Vocabulary[feature])
			if vocabSize == 0 {
				// Feature never observed during training; carries no signal.
				continue
			}

			count := 0
			totalForLabel := 0
			if perFeature := m.FeatureCounts[label][feature]; perFeature != nil {
				count = perFeature[features[feature]]
				for _, c := range perFeature {
					totalForLabel += c
				}
			}

			likelihood := (float64(count) + m.Alpha) /
				(float64(totalForLabel) + m.Alpha*float64(vocabSize))
			logp += math.Log(likelihood)
		}

		scores[i] = logp
	}

	// Virtual background outcome: the prior mass Laplace reserves for a
	// label never observed, with baseline likelihoods. It competes in
	// the normalization but is never a candidate, so a lone class cannot
	// reach probability exactly 1.
	background := math.Log(m.Alpha / (float64(m.TotalSamples) + m.Alpha))
	for _, feature := range featureNames {
		if vocabSize := len(m.Vocabulary[feature]); vocabSize > 0 {
			background -= math.Log(float64(vocabSize))
		}
	}

	// Log-sum-exp normalization for a proper posterior.
	maxScore := background
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	sumExp := math.Exp(background - maxScore)
	for _, s := range scores {
		sumExp += math.Exp(s - maxScore)
	}

	bestIdx := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[bestIdx] {
			bestIdx = i
		}
	}

	best := labels[bestIdx]
	support := m.ClassCounts[best]
	if support < minSupport {
		return nil
	}

	return &Prediction{
		Value:      best,
		Confidence: math.Exp(scores[bestIdx]-maxScore) / sumExp,
		Support:    support,
		Model:      ModelCategorical,
	}
}

// categoricalFeatures builds the feature map for one observation: the
// normalized upstream value plus every non-empty context attribute.
func categoricalFeatures(value string, ctx map[string]string) map[string]string {
	features := make(map[string]string, len(ctx)+1)
	if v := similarity.Normalize(value); v != "" {
		features["value"] = v
	}
	for k, v := range ctx {
		if nv := similarity.Normalize(v); nv != "" {
			features["ctx:"+k] = nv
		}
	}
	return features
}
