package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/slabworks/cardlearn/internal/learning"
)

const schema = `
CREATE TABLE IF NOT EXISTS corrections (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	field      TEXT NOT NULL,
	original   TEXT NOT NULL,
	corrected  TEXT NOT NULL,
	context    TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_corrections_field ON corrections(field);

CREATE TABLE IF NOT EXISTS override_audit (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	field          TEXT NOT NULL,
	upstream_value TEXT NOT NULL,
	ml_value       TEXT NOT NULL,
	confidence     REAL NOT NULL,
	created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_override_audit_field ON override_audit(field);
`

// SQLiteStore is a CorrectionStore backed by a local SQLite database.
// database/sql serializes access; WAL mode keeps concurrent verification
// appends from blocking train-time bulk reads.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) the correction log at path
// and ensures the schema exists.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open correction log %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize correction log schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Append records a correction, dropping confirmations.
func (s *SQLiteStore) Append(ctx context.Context, field learning.Field, original, corrected string, attrs map[string]string) error {
	skip, err := validateAppend(field, original, corrected)
	if err != nil {
		return err
	}
	if skip {
		s.logger.Debug("skipping confirmation record",
			zap.String("field", string(field)),
		)
		return nil
	}

	encoded, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to encode correction context: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO corrections (field, original, corrected, context, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(field), original, corrected, string(encoded), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append correction: %w", err)
	}
	return nil
}

// TrainingExamples returns all corrections for one field in append
// order. Rows whose context fails to decode are skipped and logged, not
// fatal: one malformed record must not block training.
func (s *SQLiteStore) TrainingExamples(ctx context.Context, field learning.Field) ([]learning.Example, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT original, corrected, context FROM corrections WHERE field = ? ORDER BY id`,
		string(field),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections for %s: %w", field, err)
	}
	defer rows.Close()

	examples := []learning.Example{}
	skipped := 0
	for rows.Next() {
		var original, corrected, rawCtx string
		if err := rows.Scan(&original, &corrected, &rawCtx); err != nil {
			return nil, fmt.Errorf("failed to scan correction row: %w", err)
		}

		var attrs map[string]string
		if err := json.Unmarshal([]byte(rawCtx), &attrs); err != nil {
			skipped++
			continue
		}
		examples = append(examples, learning.Example{
			Original:  original,
			Corrected: corrected,
			Context:   attrs,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate corrections for %s: %w", field, err)
	}

	if skipped > 0 {
		s.logger.Warn("skipped malformed correction records",
			zap.String("field", string(field)),
			zap.Int("skipped", skipped),
		)
	}
	return examples, nil
}

// TotalCorrections returns the total correction count.
func (s *SQLiteStore) TotalCorrections(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM corrections`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count corrections: %w", err)
	}
	return count, nil
}

// AccuracyStats summarizes the audit trail for one field.
func (s *SQLiteStore) AccuracyStats(ctx context.Context, field learning.Field) (*AccuracyStats, error) {
	var (
		count int
		avg   sql.NullFloat64
		last  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(confidence), MAX(created_at) FROM override_audit WHERE field = ?`,
		string(field),
	).Scan(&count, &avg, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to query accuracy stats for %s: %w", field, err)
	}

	stats := &AccuracyStats{Field: field, OverrideCount: count}
	if avg.Valid {
		stats.AvgConfidence = avg.Float64
	}
	if last.Valid {
		at := last.Time
		stats.LastOverrideAt = &at
	}
	return stats, nil
}

// AppendAudit records an applied override.
func (s *SQLiteStore) AppendAudit(ctx context.Context, entry AuditEntry) error {
	at := entry.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO override_audit (field, upstream_value, ml_value, confidence, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(entry.Field), entry.UpstreamValue, entry.MLValue, entry.Confidence, at,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
