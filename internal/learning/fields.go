package learning

// Category groups recognized fields by the model family that serves them.
type Category string

const (
	// CategoryCategorical fields are served by the Naive Bayes classifier.
	CategoryCategorical Category = "categorical"
	// CategoryText fields are served by the text mapper.
	CategoryText Category = "text"
	// CategoryStructured fields are served by rule-table validators.
	CategoryStructured Category = "structured"
)

// Field names one recognized card field. The engine only ever builds
// models for fields in this registry; unknown field names are ignored
// at training time and pass through untouched at prediction time.
type Field string

const (
	FieldSport         Field = "sport"
	FieldBrand         Field = "brand"
	FieldCondition     Field = "condition"
	FieldPlayerName    Field = "player_name"
	FieldTeam          Field = "team"
	FieldSetName       Field = "set_name"
	FieldYear          Field = "year"
	FieldCardNumber    Field = "card_number"
	FieldFeatures      Field = "features"
	FieldValueEstimate Field = "value_estimate"
)

// fieldSpec describes how one recognized field is modeled.
type fieldSpec struct {
	category Category
	// kind is set for structured fields only.
	kind StructuredKind
}

// registry is the exhaustive set of recognized fields. Order in Fields()
// is fixed separately for deterministic iteration.
var registry = map[Field]fieldSpec{
	FieldSport:         {category: CategoryCategorical},
	FieldBrand:         {category: CategoryCategorical},
	FieldCondition:     {category: CategoryCategorical},
	FieldPlayerName:    {category: CategoryText},
	FieldTeam:          {category: CategoryText},
	FieldSetName:       {category: CategoryText},
	FieldYear:          {category: CategoryStructured, kind: KindYear},
	FieldCardNumber:    {category: CategoryStructured, kind: KindIdentifier},
	FieldFeatures:      {category: CategoryStructured, kind: KindTagSet},
	FieldValueEstimate: {category: CategoryStructured, kind: KindLiteral},
}

// fieldOrder fixes iteration order for training, persistence, and
// prediction sweeps.
var fieldOrder = []Field{
	FieldSport,
	FieldBrand,
	FieldCondition,
	FieldPlayerName,
	FieldTeam,
	FieldSetName,
	FieldYear,
	FieldCardNumber,
	FieldFeatures,
	FieldValueEstimate,
}

// Fields returns all recognized fields in deterministic order.
func Fields() []Field {
	out := make([]Field, len(fieldOrder))
	copy(out, fieldOrder)
	return out
}

// Recognized reports whether f is a known field.
func Recognized(f Field) bool {
	_, ok := registry[f]
	return ok
}

// CategoryOf returns the model category for a recognized field.
func CategoryOf(f Field) (Category, bool) {
	spec, ok := registry[f]
	if !ok {
		return "", false
	}
	return spec.category, true
}

// StructuredKindOf returns the rule kind for a structured field.
func StructuredKindOf(f Field) (StructuredKind, bool) {
	spec, ok := registry[f]
	if !ok || spec.category != CategoryStructured {
		return "", false
	}
	return spec.kind, true
}
