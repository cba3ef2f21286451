package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/slabworks/cardlearn/internal/learning"
)

// ErrNoArtifacts indicates no persisted model set exists yet. It is an
// expected first-run condition, not a failure.
var ErrNoArtifacts = errors.New("no persisted model artifacts")

const (
	metadataFile = "metadata.json"
	accuracyFile = "accuracy.json"
)

// artifact is the on-disk envelope for one field model.
type artifact struct {
	Field    learning.Field    `json:"field"`
	Category learning.Category `json:"category"`
	Version  string            `json:"version"`
	State    json.RawMessage   `json:"state"`
}

// FieldReport records one field's outcome in a training run; it feeds
// the accuracy snapshot, which is audit-only and never gates anything.
type FieldReport struct {
	Field    learning.Field `json:"field"`
	Examples int            `json:"examples"`
	Fitted   bool           `json:"fitted"`

	OverrideCount int     `json:"override_count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// accuracySnapshot is the audit artifact written after each run.
type accuracySnapshot struct {
	Version     string        `json:"version"`
	GeneratedAt time.Time     `json:"generated_at"`
	Fields      []FieldReport `json:"fields"`
}

// artifactPath returns the model file for one field.
func (e *Engine) artifactPath(field learning.Field) string {
	return filepath.Join(e.cfg.ModelDir, fmt.Sprintf("model_%s.json", field))
}

// saveArtifacts writes one artifact per fitted field plus the metadata
// file. Metadata is written last so a crash mid-save leaves the
// previous metadata pointing at a consistent older set, or no metadata
// at all.
func (e *Engine) saveArtifacts(set *modelSet) error {
	if err := os.MkdirAll(e.cfg.ModelDir, 0700); err != nil {
		return fmt.Errorf("failed to create model dir %s: %w", e.cfg.ModelDir, err)
	}

	for field, model := range set.models {
		state, err := json.Marshal(model)
		if err != nil {
			return fmt.Errorf("failed to encode model for %s: %w", field, err)
		}
		category, _ := learning.CategoryOf(field)
		encoded, err := json.MarshalIndent(artifact{
			Field:    field,
			Category: category,
			Version:  set.meta.Version,
			State:    state,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode artifact for %s: %w", field, err)
		}
		if err := writeFileAtomic(e.artifactPath(field), encoded); err != nil {
			return fmt.Errorf("failed to write artifact for %s: %w", field, err)
		}
	}

	encoded, err := json.MarshalIndent(set.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(e.cfg.ModelDir, metadataFile), encoded); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// loadArtifacts reads the metadata file and every artifact it lists.
// Load is all-or-nothing: any missing or undecodable artifact fails the
// whole load so the caller falls back to retraining. A field absent
// from metadata simply has no model, which is valid.
func (e *Engine) loadArtifacts() (*modelSet, error) {
	raw, err := os.ReadFile(filepath.Join(e.cfg.ModelDir, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoArtifacts
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	models := make(map[learning.Field]learning.FieldModel, len(meta.Fields))
	for _, field := range meta.Fields {
		if !learning.Recognized(field) {
			return nil, fmt.Errorf("metadata lists unrecognized field %q", field)
		}

		raw, err := os.ReadFile(e.artifactPath(field))
		if err != nil {
			return nil, fmt.Errorf("failed to read artifact for %s: %w", field, err)
		}
		var a artifact
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("failed to decode artifact for %s: %w", field, err)
		}
		if a.Version != meta.Version {
			return nil, fmt.Errorf("artifact version mismatch for %s: %s != %s", field, a.Version, meta.Version)
		}

		model, err := decodeModel(field, a)
		if err != nil {
			return nil, err
		}
		models[field] = model
	}

	return &modelSet{models: models, meta: meta}, nil
}

// decodeModel reconstructs a concrete model from its artifact envelope.
func decodeModel(field learning.Field, a artifact) (learning.FieldModel, error) {
	category, ok := learning.CategoryOf(field)
	if !ok || category != a.Category {
		return nil, fmt.Errorf("artifact category mismatch for %s: %s", field, a.Category)
	}

	var model learning.FieldModel
	switch category {
	case learning.CategoryCategorical:
		model = learning.NewCategoricalModel()
	case learning.CategoryText:
		model = learning.NewTextMapper()
	case learning.CategoryStructured:
		kind, _ := learning.StructuredKindOf(field)
		model = learning.NewStructuredValidator(kind)
	}

	if err := json.Unmarshal(a.State, model); err != nil {
		return nil, fmt.Errorf("failed to decode model state for %s: %w", field, err)
	}
	return model, nil
}

// writeAccuracySnapshot enriches the per-field training report with
// audit statistics and writes the snapshot next to the artifacts.
func (e *Engine) writeAccuracySnapshot(ctx context.Context, meta Metadata, report []FieldReport) error {
	for i := range report {
		stats, err := e.store.AccuracyStats(ctx, report[i].Field)
		if err != nil {
			e.logger.Debug("accuracy stats unavailable",
				zap.String("field", string(report[i].Field)),
				zap.Error(err),
			)
			continue
		}
		report[i].OverrideCount = stats.OverrideCount
		report[i].AvgConfidence = stats.AvgConfidence
	}

	encoded, err := json.MarshalIndent(accuracySnapshot{
		Version:     meta.Version,
		GeneratedAt: time.Now().UTC(),
		Fields:      report,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode accuracy snapshot: %w", err)
	}
	return writeFileAtomic(filepath.Join(e.cfg.ModelDir, accuracyFile), encoded)
}

// writeFileAtomic writes via a temp file and rename so readers never
// observe a partial artifact.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
