package learning

import (
	"regexp"
	"sort"
	"strings"

	"github.com/slabworks/cardlearn/internal/similarity"
)

// StructuredKind selects the rule table a StructuredValidator applies.
type StructuredKind string

const (
	// KindYear cleans and confirms 4-digit production years.
	KindYear StructuredKind = "year"
	// KindIdentifier confirms brand-scoped identifiers such as card numbers.
	KindIdentifier StructuredKind = "identifier"
	// KindTagSet filters tag lists down to well-supported tags.
	KindTagSet StructuredKind = "tag_set"
	// KindLiteral corrects literal values (e.g. currency estimates) by
	// exact historical lookup.
	KindLiteral StructuredKind = "literal"
)

// Default tag-set constants, configurable like the fuzzy text settings.
const (
	DefaultTagSeparator     = ","
	DefaultTagConfidenceCap = 0.90
)

// yearRun finds the first embedded 4-digit run, restricted to the
// 1900-2099 range: card sets don't predate 1900, and the restriction
// keeps card numbers like "3000" from parsing as years.
var yearRun = regexp.MustCompile(`(19|20)\d{2}`)

// StructuredValidator applies one bespoke rule table to a structured
// field. The Kind field selects which table is populated and consulted;
// the others stay empty. Like the other models, it is rebuilt wholesale
// on Fit and returns nil when its support floor is unmet.
type StructuredValidator struct {
	Kind StructuredKind `json:"kind"`

	// Years counts observed corrected years (KindYear).
	Years map[string]int `json:"years,omitempty"`
	// Identifiers counts brand -> identifier observations (KindIdentifier).
	Identifiers map[string]map[string]int `json:"identifiers,omitempty"`
	// Tags counts individual tag observations (KindTagSet).
	Tags map[string]int `json:"tags,omitempty"`
	// Literals counts trimmed original -> corrected pairs (KindLiteral).
	Literals map[string]map[string]int `json:"literals,omitempty"`

	// TagSeparator splits and rejoins tag-set values.
	TagSeparator string `json:"tag_separator,omitempty"`
	// TagConfidenceCap bounds tag-set prediction confidence.
	TagConfidenceCap float64 `json:"tag_confidence_cap,omitempty"`
}

// NewStructuredValidator returns an empty validator for the given kind.
func NewStructuredValidator(kind StructuredKind) *StructuredValidator {
	return &StructuredValidator{
		Kind:             kind,
		Years:            make(map[string]int),
		Identifiers:      make(map[string]map[string]int),
		Tags:             make(map[string]int),
		Literals:         make(map[string]map[string]int),
		TagSeparator:     DefaultTagSeparator,
		TagConfidenceCap: DefaultTagConfidenceCap,
	}
}

// Type implements FieldModel.
func (v *StructuredValidator) Type() ModelType { return ModelStructured }

// Fit resets the validator and rebuilds the table for its kind from the
// corrected values of the given examples.
func (v *StructuredValidator) Fit(examples []Example) {
	v.Years = make(map[string]int)
	v.Identifiers = make(map[string]map[string]int)
	v.Tags = make(map[string]int)
	v.Literals = make(map[string]map[string]int)
	if v.TagSeparator == "" {
		v.TagSeparator = DefaultTagSeparator
	}
	if v.TagConfidenceCap <= 0 {
		v.TagConfidenceCap = DefaultTagConfidenceCap
	}

	for _, ex := range examples {
		switch v.Kind {
		case KindYear:
			if year := extractYear(ex.Corrected); year != "" {
				v.Years[year]++
			}
		case KindIdentifier:
			brand := similarity.Normalize(ex.Context["brand"])
			id := similarity.Normalize(ex.Corrected)
			if id == "" {
				continue
			}
			if v.Identifiers[brand] == nil {
				v.Identifiers[brand] = make(map[string]int)
			}
			v.Identifiers[brand][id]++
		case KindTagSet:
			for _, tag := range splitTags(ex.Corrected, v.TagSeparator) {
				v.Tags[tag]++
			}
		case KindLiteral:
			original := strings.TrimSpace(ex.Original)
			corrected := strings.TrimSpace(ex.Corrected)
			if original == "" || corrected == "" || original == corrected {
				continue
			}
			if v.Literals[original] == nil {
				v.Literals[original] = make(map[string]int)
			}
			v.Literals[original][corrected]++
		}
	}
}

// Predict implements FieldModel, dispatching on the validator kind.
func (v *StructuredValidator) Predict(value string, ctx map[string]string, minSupport int) *Prediction {
	switch v.Kind {
	case KindYear:
		return v.predictYear(value, minSupport)
	case KindIdentifier:
		return v.predictIdentifier(value, ctx, minSupport)
	case KindTagSet:
		return v.predictTagSet(value, minSupport)
	case KindLiteral:
		return v.predictLiteral(value, minSupport)
	}
	return nil
}

// predictYear extracts the first embedded 4-digit run when the raw
// value is not already a clean year, and proposes it only when that
// year has been observed at least minSupport times. A value that is
// already the extracted year needs no correction.
func (v *StructuredValidator) predictYear(value string, minSupport int) *Prediction {
	raw := strings.TrimSpace(value)
	year := extractYear(raw)
	if year == "" || year == raw {
		return nil
	}

	count := v.Years[year]
	if count < minSupport {
		return nil
	}

	return &Prediction{
		Value:      year,
		Confidence: saturating(count),
		Support:    count,
		Model:      ModelStructured,
	}
}

// predictIdentifier confirms (never corrects) the as-given value when
// the exact (brand, value) pair clears minSupport. The engine treats a
// prediction equal to the upstream value as a no-op, so confirmation
// only surfaces in provenance.
func (v *StructuredValidator) predictIdentifier(value string, ctx map[string]string, minSupport int) *Prediction {
	brand := similarity.Normalize(ctx["brand"])
	id := similarity.Normalize(value)
	if id == "" {
		return nil
	}

	count := v.Identifiers[brand][id]
	if count < minSupport {
		return nil
	}

	return &Prediction{
		Value:      strings.TrimSpace(value),
		Confidence: saturating(count),
		Support:    count,
		Model:      ModelStructured,
	}
}

// predictTagSet rebuilds the tag list keeping only tags individually
// meeting minSupport, deduped and sorted for determinism. It proposes
// the rebuilt set only when it differs from the (equally normalized)
// input and at least one tag survives; dropping every tag would erase
// the field rather than correct it.
func (v *StructuredValidator) predictTagSet(value string, minSupport int) *Prediction {
	input := splitTags(value, v.TagSeparator)
	if len(input) == 0 {
		return nil
	}

	kept := make([]string, 0, len(input))
	seen := make(map[string]bool, len(input))
	supportSum := 0
	minKept := 0
	for _, tag := range input {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		if v.Tags[tag] < minSupport {
			continue
		}
		kept = append(kept, tag)
		supportSum += v.Tags[tag]
		if minKept == 0 || v.Tags[tag] < minKept {
			minKept = v.Tags[tag]
		}
	}
	if len(kept) == 0 {
		return nil
	}
	sort.Strings(kept)

	rebuilt := strings.Join(kept, v.TagSeparator)
	normalizedInput := normalizedTagSet(input, v.TagSeparator)
	if rebuilt == normalizedInput {
		return nil
	}

	avg := float64(supportSum) / float64(len(kept))
	confidence := avg / (avg + 2)
	if confidence > v.TagConfidenceCap {
		confidence = v.TagConfidenceCap
	}

	return &Prediction{
		Value:      rebuilt,
		Confidence: confidence,
		Support:    minKept,
		Model:      ModelStructured,
	}
}

// predictLiteral looks up the trimmed original and proposes the best
// historical correction when that pair clears minSupport.
func (v *StructuredValidator) predictLiteral(value string, minSupport int) *Prediction {
	counts := v.Literals[strings.TrimSpace(value)]
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
		Model:      ModelStructured,
	}
}

// extractYear returns s itself when it is a bare 4-digit year, otherwise
// the first embedded 4-digit run, or "" when none exists.
func extractYear(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) == 4 && yearRun.MatchString(trimmed) {
		return trimmed
	}
	return yearRun.FindString(trimmed)
}

// splitTags splits, normalizes, and drops empty tags.
func splitTags(s, separator string) []string {
	parts := strings.Split(s, separator)
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if tag := similarity.Normalize(p); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// normalizedTagSet renders the input tags deduped and sorted so that a
// reordered-but-equal input is not treated as a correction.
func normalizedTagSet(tags []string, separator string) string {
	seen := make(map[string]bool, len(tags))
	unique := make([]string, 0, len(tags))
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}
	sort.Strings(unique)
	return strings.Join(unique, separator)
}

// saturating maps a support count to a confidence approaching 1:
// count/(count+1). Used by confirmation-style rules where no total
// exists to normalize against.
func saturating(count int) float64 {
	return float64(count) / float64(count+1)
}
