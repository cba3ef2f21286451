package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCountGrowthTrigger(t *testing.T) {
	trigger := &CountGrowthTrigger{MinNew: 25}

	tests := []struct {
		name    string
		trained int
		total   int
		want    bool
	}{
		{name: "no growth", trained: 100, total: 100, want: false},
		{name: "below floor", trained: 100, total: 124, want: false},
		{name: "at floor", trained: 100, total: 125, want: true},
		{name: "first train", trained: 0, total: 30, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			should, reason := trigger.ShouldRetrain(context.Background(), TrainState{
				Meta:             Metadata{CorrectionCount: tt.trained},
				TotalCorrections: tt.total,
			})
			assert.Equal(t, tt.want, should)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestFileActivityTrigger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrections.db")
	require.NoError(t, os.WriteFile(path, []byte("seed"), 0600))

	trigger, err := NewFileActivityTrigger(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer trigger.Close()

	// Clean watcher: nothing to report.
	should, _ := trigger.ShouldRetrain(context.Background(), TrainState{})
	assert.False(t, should)

	require.NoError(t, os.WriteFile(path, []byte("seed+append"), 0600))

	// The watcher goroutine delivers the event asynchronously.
	assert.Eventually(t, func() bool {
		should, _ := trigger.ShouldRetrain(context.Background(), TrainState{})
		return should
	}, 2*time.Second, 10*time.Millisecond)

	// A true decision consumes the signal.
	should, _ = trigger.ShouldRetrain(context.Background(), TrainState{})
	assert.False(t, should)
}

func TestFileActivityTrigger_NoteTrainFailureRestoresSignal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrections.db")
	require.NoError(t, os.WriteFile(path, []byte("seed"), 0600))

	trigger, err := NewFileActivityTrigger(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer trigger.Close()

	require.NoError(t, os.WriteFile(path, []byte("seed+append"), 0600))
	assert.Eventually(t, func() bool {
		should, _ := trigger.ShouldRetrain(context.Background(), TrainState{})
		return should
	}, 2*time.Second, 10*time.Millisecond)

	// The fire above consumed the signal; a failed train hands it back.
	trigger.NoteTrainFailure()
	should, _ := trigger.ShouldRetrain(context.Background(), TrainState{})
	assert.True(t, should)
}

func TestAnyTrigger(t *testing.T) {
	never := TriggerFunc(func(context.Context, TrainState) (bool, string) {
		return false, "never"
	})
	always := TriggerFunc(func(context.Context, TrainState) (bool, string) {
		return true, "always"
	})

	should, reason := AnyTrigger{never, always}.ShouldRetrain(context.Background(), TrainState{})
	assert.True(t, should)
	assert.Equal(t, "always", reason)

	should, _ = AnyTrigger{never, never}.ShouldRetrain(context.Background(), TrainState{})
	assert.False(t, should)

	should, _ = AnyTrigger{}.ShouldRetrain(context.Background(), TrainState{})
	assert.False(t, should)
}

func TestAnyTrigger_ForwardsTrainFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrections.db")
	require.NoError(t, os.WriteFile(path, []byte("seed"), 0600))

	fileTrigger, err := NewFileActivityTrigger(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer fileTrigger.Close()

	combined := AnyTrigger{&CountGrowthTrigger{MinNew: 1000}, fileTrigger}
	combined.NoteTrainFailure()

	// The forwarded failure re-armed the file policy.
	should, _ := combined.ShouldRetrain(context.Background(), TrainState{})
	assert.True(t, should)
}
