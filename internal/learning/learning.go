// Package learning implements the per-field predictive models behind the
// correction engine: a multinomial Naive Bayes classifier for categorical
// fields, a frequency-based text mapper with fuzzy fallback for free-text
// fields, and rule-table validators for structured fields.
//
// Models are fitted wholesale from a batch of training examples and are
// immutable afterwards from the caller's perspective: the engine replaces
// a model rather than mutating it in place. A model that has no opinion
// returns a nil *Prediction; callers must treat nil as "pass the upstream
// value through unchanged".
package learning

import (
	"sort"
	"strings"

	"github.com/slabworks/cardlearn/internal/similarity"
)

// ModelType identifies which model family produced a prediction.
type ModelType string

const (
	// ModelCategorical is the Naive Bayes classifier.
	ModelCategorical ModelType = "categorical"
	// ModelText is the exact/fuzzy text mapper.
	ModelText ModelType = "text"
	// ModelStructured is the rule-table validator.
	ModelStructured ModelType = "structured"
)

// Example is a single training observation for one field: the value the
// extraction pipeline produced, the value a human corrected it to, and
// the conditioning context captured at correction time.
type Example struct {
	Original  string            `json:"original"`
	Corrected string            `json:"corrected"`
	Context   map[string]string `json:"context,omitempty"`
}

// Prediction is a model's opinion about one field value.
type Prediction struct {
	// Value is the proposed field value.
	Value string `json:"value"`
	// Confidence is a normalized score in [0,1].
	Confidence float64 `json:"confidence"`
	// Support is the number of historical observations backing the value.
	Support int `json:"support"`
	// Model identifies the producing model family.
	Model ModelType `json:"model"`
}

// FieldModel is implemented by all per-field models.
//
// Predict returns nil when the model has no opinion: unseen input, empty
// tables, or support below minSupport. The categorical model applies
// minSupport to the winning class count; the text and structured models
// apply it to the matched mapping entry.
type FieldModel interface {
	// Fit resets the model and rebuilds it from the given examples.
	Fit(examples []Example)
	// Predict evaluates one upstream value under the given context.
	Predict(value string, ctx map[string]string, minSupport int) *Prediction
	// Type reports the model family.
	Type() ModelType
}

// ContextKey serializes a context mapping into a deterministic lookup
// key: normalized "k=v" pairs joined by ";" in key order. An empty or
// nil context yields "".
func ContextKey(ctx map[string]string) string {
	if len(ctx) == 0 {
		return ""
	}

	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		if strings.TrimSpace(ctx[k]) == "" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+similarity.Normalize(ctx[k]))
	}
	return strings.Join(parts, ";")
}
