// Package store defines the CorrectionStore interface for the persisted
// correction log and its audit trail, plus an in-memory implementation
// used in tests.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/slabworks/cardlearn/internal/learning"
)

// Correction is one persisted human correction event.
type Correction struct {
	Field     learning.Field    `json:"field"`
	Original  string            `json:"original"`
	Corrected string            `json:"corrected"`
	Context   map[string]string `json:"context,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// AuditEntry records one applied override for later accuracy review.
type AuditEntry struct {
	Field         learning.Field `json:"field"`
	UpstreamValue string         `json:"upstream_value"`
	MLValue       string         `json:"ml_value"`
	Confidence    float64        `json:"confidence"`
	CreatedAt     time.Time      `json:"created_at"`
}

// AccuracyStats summarizes audited overrides for one field. It is
// informational only and never gates predictions.
type AccuracyStats struct {
	Field          learning.Field `json:"field"`
	OverrideCount  int            `json:"override_count"`
	AvgConfidence  float64        `json:"avg_confidence"`
	LastOverrideAt *time.Time     `json:"last_override_at,omitempty"`
}

// CorrectionStore is the engine's view of the correction log.
//
// The log is appended concurrently by verification events; the engine
// bulk-reads it at train time and appends audit entries on override.
// Implementations must be safe for concurrent use.
type CorrectionStore interface {
	// Append records a correction. Appending is a no-op when the
	// original and corrected values are equal: confirmations carry no
	// correction signal.
	Append(ctx context.Context, field learning.Field, original, corrected string, attrs map[string]string) error

	// TrainingExamples returns all corrections for one field in append
	// order.
	TrainingExamples(ctx context.Context, field learning.Field) ([]learning.Example, error)

	// TotalCorrections returns the number of corrections across all
	// fields.
	TotalCorrections(ctx context.Context) (int, error)

	// AccuracyStats summarizes the audit trail for one field.
	AccuracyStats(ctx context.Context, field learning.Field) (*AccuracyStats, error)

	// AppendAudit records an applied override.
	AppendAudit(ctx context.Context, entry AuditEntry) error

	// Close releases underlying resources.
	Close() error
}

// validateAppend applies the shared append invariants. It returns
// (skip, err): skip means the record is a confirmation and must be
// silently dropped.
func validateAppend(field learning.Field, original, corrected string) (bool, error) {
	if strings.TrimSpace(string(field)) == "" {
		return false, fmt.Errorf("correction field name is required")
	}
	if strings.TrimSpace(original) == strings.TrimSpace(corrected) {
		return true, nil
	}
	return false, nil
}

// InMemoryStore is an in-memory CorrectionStore for tests.
type InMemoryStore struct {
	mu          sync.RWMutex
	corrections []Correction
	audit       []AuditEntry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append adds a correction, dropping confirmations.
func (s *InMemoryStore) Append(ctx context.Context, field learning.Field, original, corrected string, attrs map[string]string) error {
	skip, err := validateAppend(field, original, corrected)
	if err != nil || skip {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	s.corrections = append(s.corrections, Correction{
		Field:     field,
		Original:  original,
		Corrected: corrected,
		Context:   copied,
		CreatedAt: time.Now(),
	})
	return nil
}

// TrainingExamples returns corrections for one field in append order.
func (s *InMemoryStore) TrainingExamples(ctx context.Context, field learning.Field) ([]learning.Example, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	examples := []learning.Example{}
	for _, c := range s.corrections {
		if c.Field != field {
			continue
		}
		examples = append(examples, learning.Example{
			Original:  c.Original,
			Corrected: c.Corrected,
			Context:   c.Context,
		})
	}
	return examples, nil
}

// TotalCorrections returns the total correction count.
func (s *InMemoryStore) TotalCorrections(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.corrections), nil
}

// AccuracyStats summarizes audit entries for one field.
func (s *InMemoryStore) AccuracyStats(ctx context.Context, field learning.Field) (*AccuracyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &AccuracyStats{Field: field}
	sum := 0.0
	for _, e := range s.audit {
		if e.Field != field {
			continue
		}
		stats.OverrideCount++
		sum += e.Confidence
		if stats.LastOverrideAt == nil || e.CreatedAt.After(*stats.LastOverrideAt) {
			at := e.CreatedAt
			stats.LastOverrideAt = &at
		}
	}
	if stats.OverrideCount > 0 {
		stats.AvgConfidence = sum / float64(stats.OverrideCount)
	}
	return stats, nil
}

// AppendAudit records an applied override.
func (s *InMemoryStore) AppendAudit(ctx context.Context, entry AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.audit = append(s.audit, entry)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// AuditEntries returns a copy of the audit trail (test helper).
func (s *InMemoryStore) AuditEntries() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}
