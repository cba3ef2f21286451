// Package engine implements the learning-based correction engine: it
// owns one predictive model per recognized card field, trains them from
// the correction log, persists and reloads versioned model state, and
// gates every prediction behind per-category confidence and support
// thresholds before overriding an upstream value.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/slabworks/cardlearn/internal/config"
	"github.com/slabworks/cardlearn/internal/learning"
	"github.com/slabworks/cardlearn/internal/similarity"
	"github.com/slabworks/cardlearn/internal/store"
)

// State is the engine lifecycle state.
type State string

const (
	// StateUninitialized means Init has not completed yet.
	StateUninitialized State = "uninitialized"
	// StateTraining means a training run is in flight.
	StateTraining State = "training"
	// StateReady means at least one field model is live.
	StateReady State = "ready"
	// StateReadyEmpty means the engine is serving but holds no models
	// (insufficient signal); every prediction passes through.
	StateReadyEmpty State = "ready_empty"
)

// Metadata describes one trained model set.
type Metadata struct {
	// Version is an opaque token; a new one is minted per training run.
	Version string `json:"version"`
	// TrainedAt is when the set was built.
	TrainedAt time.Time `json:"trained_at"`
	// CorrectionCount is the total correction-log size at train time.
	CorrectionCount int `json:"correction_count"`
	// Fields lists the fields that have a model artifact.
	Fields []learning.Field `json:"fields"`
}

// Override describes one prediction that cleared the gates and replaces
// an upstream value, with provenance for auditing.
type Override struct {
	Field         learning.Field     `json:"field"`
	UpstreamValue string             `json:"upstream_value"`
	Value         string             `json:"value"`
	Confidence    float64            `json:"confidence"`
	Support       int                `json:"support"`
	Model         learning.ModelType `json:"model"`
}

// modelSet is one immutable snapshot of fitted models plus metadata.
// Snapshots are swapped whole via an atomic pointer so readers observe
// either the complete old set or the complete new one, never a mix.
type modelSet struct {
	models map[learning.Field]learning.FieldModel
	meta   Metadata
}

// Engine is the correction engine. Predictions are safe for concurrent
// use; training runs are serialized internally and swap the model
// snapshot atomically on completion.
type Engine struct {
	cfg    config.EngineConfig
	store  store.CorrectionStore
	logger *zap.Logger

	trigger RetrainTrigger

	snapshot atomic.Pointer[modelSet]

	// trainMu serializes Train; stateMu protects state.
	trainMu sync.Mutex
	stateMu sync.RWMutex
	state   State
}

// Option configures an Engine.
type Option func(*Engine)

// WithTrigger injects the retrain policy consulted by RetrainIfNeeded.
// Without a trigger, RetrainIfNeeded never retrains.
func WithTrigger(t RetrainTrigger) Option {
	return func(e *Engine) { e.trigger = t }
}

// New creates an engine. Call Init to load or train before predicting;
// an uninitialized engine simply passes every value through.
func New(cfg config.EngineConfig, s store.CorrectionStore, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	e := &Engine{
		cfg:    cfg,
		store:  s,
		logger: logger,
		state:  StateUninitialized,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
}

// Meta returns the metadata of the live model set, or a zero Metadata
// when no snapshot has been published.
func (e *Engine) Meta() Metadata {
	if snap := e.snapshot.Load(); snap != nil {
		return snap.meta
	}
	return Metadata{}
}

// Init brings the engine up: it loads persisted model state and
// metadata, and falls back to a full training run when artifacts are
// absent or fail to load. Load failures are recoverable by design; the
// correction log remains the source of truth.
func (e *Engine) Init(ctx context.Context) error {
	set, err := e.loadArtifacts()
	if err == nil {
		e.snapshot.Store(set)
		e.setState(readyState(set))
		e.logger.Info("loaded persisted models",
			zap.String("version", set.meta.Version),
			zap.Int("fields", len(set.models)),
			zap.Time("trained_at", set.meta.TrainedAt),
		)
		return nil
	}

	if err == ErrNoArtifacts {
		e.logger.Info("no persisted models found, training from correction log")
	} else {
		e.logger.Warn("failed to load persisted models, retraining", zap.Error(err))
	}
	return e.Train(ctx)
}

// Train rebuilds every field model from the correction log, persists
// the new artifact set under a fresh version, and publishes it
// atomically. Too little total signal skips the run entirely; fields
// below their per-category floor keep no model. Persistence failures
// are logged, never fatal: the in-memory set stays valid.
func (e *Engine) Train(ctx context.Context) error {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	previous := e.State()
	e.setState(StateTraining)
	start := time.Now()

	total, err := e.store.TotalCorrections(ctx)
	if err != nil {
		e.setState(previous)
		trainingRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to read correction count: %w", err)
	}

	if total < e.cfg.MinTotalCorrections {
		e.logger.Info("insufficient correction signal, skipping training",
			zap.Int("total", total),
			zap.Int("floor", e.cfg.MinTotalCorrections),
		)
		if e.snapshot.Load() == nil {
			e.snapshot.Store(&modelSet{
				models: map[learning.Field]learning.FieldModel{},
				meta:   Metadata{TrainedAt: time.Now().UTC(), CorrectionCount: total},
			})
		}
		e.setState(readyState(e.snapshot.Load()))
		trainingRuns.WithLabelValues("skipped").Inc()
		return nil
	}

	models := make(map[learning.Field]learning.FieldModel)
	report := make([]FieldReport, 0, len(learning.Fields()))
	for _, field := range learning.Fields() {
		examples, err := e.store.TrainingExamples(ctx, field)
		if err != nil {
			e.setState(previous)
			trainingRuns.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to load examples for %s: %w", field, err)
		}

		category, _ := learning.CategoryOf(field)
		floor := e.floorFor(category)
		if len(examples) < floor {
			e.logger.Debug("field below example floor, keeping no model",
				zap.String("field", string(field)),
				zap.Int("examples", len(examples)),
				zap.Int("floor", floor),
			)
			report = append(report, FieldReport{
				Field:    field,
				Examples: len(examples),
				Fitted:   false,
			})
			continue
		}

		model := e.newModel(field, category)
		model.Fit(examples)
		models[field] = model
		report = append(report, FieldReport{
			Field:    field,
			Examples: len(examples),
			Fitted:   true,
		})
	}

	set := &modelSet{
		models: models,
		meta: Metadata{
			Version:         uuid.NewString(),
			TrainedAt:       time.Now().UTC(),
			CorrectionCount: total,
			Fields:          sortedFields(models),
		},
	}

	if err := e.saveArtifacts(set); err != nil {
		// In-memory state stays valid; only the failure is recorded.
		e.logger.Error("failed to persist model artifacts", zap.Error(err))
	}
	if err := e.writeAccuracySnapshot(ctx, set.meta, report); err != nil {
		e.logger.Warn("failed to write accuracy snapshot", zap.Error(err))
	}

	e.snapshot.Store(set)
	e.setState(readyState(set))
	modelFields.Set(float64(len(models)))
	trainingRuns.WithLabelValues("success").Inc()
	trainingDuration.Observe(time.Since(start).Seconds())

	e.logger.Info("training run complete",
		zap.String("version", set.meta.Version),
		zap.Int("total_corrections", total),
		zap.Int("fields_fitted", len(models)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Predict evaluates one field value and returns a non-nil Override only
// when a model exists, its prediction clears the field-category gate,
// and the predicted value actually differs from the upstream one.
// Confirmation-style predictions (same value) never override.
func (e *Engine) Predict(field learning.Field, value string, ctx map[string]string) *Override {
	if similarity.Normalize(value) == "" {
		return nil
	}

	snap := e.snapshot.Load()
	if snap == nil {
		return nil
	}
	model, ok := snap.models[field]
	if !ok {
		return nil
	}

	category, ok := learning.CategoryOf(field)
	if !ok {
		return nil
	}
	gate := e.gateFor(category)

	pred := model.Predict(value, ctx, gate.MinSupport)
	if pred == nil {
		suppressedPredictions.WithLabelValues(string(field), "no_opinion").Inc()
		return nil
	}
	if pred.Confidence < gate.MinConfidence || pred.Support < gate.MinSupport {
		suppressedPredictions.WithLabelValues(string(field), "below_threshold").Inc()
		return nil
	}
	if similarity.Normalize(pred.Value) == similarity.Normalize(value) {
		suppressedPredictions.WithLabelValues(string(field), "confirmation").Inc()
		return nil
	}

	return &Override{
		Field:         field,
		UpstreamValue: value,
		Value:         pred.Value,
		Confidence:    pred.Confidence,
		Support:       pred.Support,
		Model:         pred.Model,
	}
}

// PredictAllFields applies Predict to every recognized field present in
// the upstream values, returning the corrected mapping plus provenance
// for each applied override. Every applied override is appended to the
// audit trail; audit failures are logged and never block the result.
func (e *Engine) PredictAllFields(ctx context.Context, values map[string]string, attrs map[string]string) (map[string]string, []Override) {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}

	overrides := []Override{}
	for _, field := range learning.Fields() {
		value, ok := values[string(field)]
		if !ok {
			continue
		}

		ov := e.Predict(field, value, attrs)
		if ov == nil {
			continue
		}

		out[string(field)] = ov.Value
		overrides = append(overrides, *ov)
		overridesApplied.WithLabelValues(string(field)).Inc()

		if err := e.store.AppendAudit(ctx, store.AuditEntry{
			Field:         field,
			UpstreamValue: ov.UpstreamValue,
			MLValue:       ov.Value,
			Confidence:    ov.Confidence,
		}); err != nil {
			e.logger.Warn("failed to append override audit entry",
				zap.String("field", string(field)),
				zap.Error(err),
			)
		}

		e.logger.Info("override applied",
			zap.String("field", string(field)),
			zap.String("upstream", ov.UpstreamValue),
			zap.String("value", ov.Value),
			zap.Float64("confidence", ov.Confidence),
			zap.Int("support", ov.Support),
		)
	}

	return out, overrides
}

// RetrainIfNeeded consults the injected trigger policy and performs a
// full (never incremental) training run when it fires. Returns whether
// a retrain ran and the trigger's reason.
func (e *Engine) RetrainIfNeeded(ctx context.Context) (bool, string, error) {
	if e.trigger == nil {
		return false, "no trigger configured", nil
	}

	total, err := e.store.TotalCorrections(ctx)
	if err != nil {
		return false, "", fmt.Errorf("failed to read correction count: %w", err)
	}

	should, reason := e.trigger.ShouldRetrain(ctx, TrainState{
		Meta:             e.Meta(),
		TotalCorrections: total,
	})
	if !should {
		return false, reason, nil
	}

	e.logger.Info("retrain triggered", zap.String("reason", reason))
	if err := e.Train(ctx); err != nil {
		// Policies that consumed their signal get it back so the
		// retrain is retried on the next evaluation.
		if n, ok := e.trigger.(trainFailureNotifier); ok {
			n.NoteTrainFailure()
		}
		return false, reason, err
	}
	return true, reason, nil
}

// floorFor returns the per-field minimum example count per category.
func (e *Engine) floorFor(category learning.Category) int {
	switch category {
	case learning.CategoryCategorical:
		return e.cfg.MinExamplesCategorical
	case learning.CategoryText:
		return e.cfg.MinExamplesText
	case learning.CategoryStructured:
		return e.cfg.MinExamplesStructured
	}
	return 0
}

// gateFor returns the override thresholds per category.
func (e *Engine) gateFor(category learning.Category) config.Gate {
	switch category {
	case learning.CategoryCategorical:
		return e.cfg.Categorical
	case learning.CategoryText:
		return e.cfg.Text
	case learning.CategoryStructured:
		return e.cfg.Structured
	}
	return config.Gate{MinConfidence: 1, MinSupport: int(^uint(0) >> 1)}
}

// newModel constructs an unfitted model for a field, applying the
// configured matching constants.
func (e *Engine) newModel(field learning.Field, category learning.Category) learning.FieldModel {
	switch category {
	case learning.CategoryCategorical:
		return learning.NewCategoricalModel()
	case learning.CategoryText:
		m := learning.NewTextMapper()
		if e.cfg.FuzzyThreshold > 0 {
			m.FuzzyThreshold = e.cfg.FuzzyThreshold
		}
		if e.cfg.FuzzyConfidenceCap > 0 {
			m.FuzzyConfidenceCap = e.cfg.FuzzyConfidenceCap
		}
		return m
	case learning.CategoryStructured:
		kind, _ := learning.StructuredKindOf(field)
		v := learning.NewStructuredValidator(kind)
		if e.cfg.TagSeparator != "" {
			v.TagSeparator = e.cfg.TagSeparator
		}
		if e.cfg.TagConfidenceCap > 0 {
			v.TagConfidenceCap = e.cfg.TagConfidenceCap
		}
		return v
	}
	return nil
}

// readyState maps a snapshot to READY or READY-EMPTY.
func readyState(set *modelSet) State {
	if set == nil || len(set.models) == 0 {
		return StateReadyEmpty
	}
	return StateReady
}

// sortedFields lists the fitted fields in registry order.
func sortedFields(models map[learning.Field]learning.FieldModel) []learning.Field {
	out := []learning.Field{}
	for _, f := range learning.Fields() {
		if _, ok := models[f]; ok {
			out = append(out, f)
		}
	}
	return out
}
