package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/slabworks/cardlearn/internal/learning"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "corrections.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// storesUnderTest returns both implementations so the contract
// assertions run against each.
func storesUnderTest(t *testing.T) map[string]CorrectionStore {
	t.Helper()
	return map[string]CorrectionStore{
		"sqlite": newTestSQLiteStore(t),
		"memory": NewInMemoryStore(),
	}
}

func TestCorrectionStore_AppendAndQuery(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Append(ctx, learning.FieldTeam, "cubs", "chicago cubs",
				map[string]string{"sport": "baseball"}))
			require.NoError(t, s.Append(ctx, learning.FieldTeam, "sox", "red sox", nil))
			require.NoError(t, s.Append(ctx, learning.FieldYear, "'89", "1989", nil))

			examples, err := s.TrainingExamples(ctx, learning.FieldTeam)
			require.NoError(t, err)
			require.Len(t, examples, 2)

			// Append order is preserved.
			assert.Equal(t, "cubs", examples[0].Original)
			assert.Equal(t, "chicago cubs", examples[0].Corrected)
			assert.Equal(t, "baseball", examples[0].Context["sport"])
			assert.Equal(t, "sox", examples[1].Original)

			total, err := s.TotalCorrections(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, total)
		})
	}
}

func TestCorrectionStore_ConfirmationIsNoOp(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Append(ctx, learning.FieldTeam, "chicago cubs", "chicago cubs", nil))
			require.NoError(t, s.Append(ctx, learning.FieldTeam, " chicago cubs ", "chicago cubs", nil))

			total, err := s.TotalCorrections(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, total)

			examples, err := s.TrainingExamples(ctx, learning.FieldTeam)
			require.NoError(t, err)
			assert.Empty(t, examples)
		})
	}
}

func TestCorrectionStore_MissingFieldNameRejected(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Append(context.Background(), learning.Field(""), "a", "b", nil)
			assert.Error(t, err)

			err = s.Append(context.Background(), learning.Field("  "), "a", "b", nil)
			assert.Error(t, err)
		})
	}
}

func TestCorrectionStore_AuditTrail(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			stats, err := s.AccuracyStats(ctx, learning.FieldTeam)
			require.NoError(t, err)
			assert.Equal(t, 0, stats.OverrideCount)
			assert.Nil(t, stats.LastOverrideAt)

			require.NoError(t, s.AppendAudit(ctx, AuditEntry{
				Field:         learning.FieldTeam,
				UpstreamValue: "cubs",
				MLValue:       "chicago cubs",
				Confidence:    0.96,
			}))
			require.NoError(t, s.AppendAudit(ctx, AuditEntry{
				Field:         learning.FieldTeam,
				UpstreamValue: "sox",
				MLValue:       "red sox",
				Confidence:    0.98,
			}))

			stats, err = s.AccuracyStats(ctx, learning.FieldTeam)
			require.NoError(t, err)
			assert.Equal(t, 2, stats.OverrideCount)
			assert.InDelta(t, 0.97, stats.AvgConfidence, 0.001)
			assert.NotNil(t, stats.LastOverrideAt)

			// Other fields are unaffected.
			stats, err = s.AccuracyStats(ctx, learning.FieldYear)
			require.NoError(t, err)
			assert.Equal(t, 0, stats.OverrideCount)
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "corrections.db")
	logger := zaptest.NewLogger(t)

	s, err := NewSQLiteStore(path, logger)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, learning.FieldTeam, "cubs", "chicago cubs", nil))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path, logger)
	require.NoError(t, err)
	defer reopened.Close()

	total, err := reopened.TotalCorrections(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
