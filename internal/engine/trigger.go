package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// TrainState is the information a retrain policy gets to decide with:
// the live model set's metadata plus the current correction-log size.
type TrainState struct {
	Meta             Metadata
	TotalCorrections int
}

// RetrainTrigger decides *when* to retrain; the engine owns the *how*.
// Implementations must be safe for concurrent use.
type RetrainTrigger interface {
	// ShouldRetrain returns the decision and a human-readable reason.
	ShouldRetrain(ctx context.Context, state TrainState) (bool, string)
}

// trainFailureNotifier is implemented by policies that consume their
// signal on a true decision and need it restored when the retrain they
// requested fails.
type trainFailureNotifier interface {
	NoteTrainFailure()
}

// TriggerFunc adapts a function to the RetrainTrigger interface.
type TriggerFunc func(ctx context.Context, state TrainState) (bool, string)

// ShouldRetrain implements RetrainTrigger.
func (f TriggerFunc) ShouldRetrain(ctx context.Context, state TrainState) (bool, string) {
	return f(ctx, state)
}

// CountGrowthTrigger fires once the correction log has grown by at
// least MinNew records since the last training run.
type CountGrowthTrigger struct {
	// MinNew is the growth floor.
	MinNew int
}

// ShouldRetrain implements RetrainTrigger.
func (t *CountGrowthTrigger) ShouldRetrain(ctx context.Context, state TrainState) (bool, string) {
	grown := state.TotalCorrections - state.Meta.CorrectionCount
	if grown < t.MinNew {
		return false, fmt.Sprintf("%d new corrections since last train, floor is %d", grown, t.MinNew)
	}
	return true, fmt.Sprintf("%d new corrections since last train", grown)
}

// FileActivityTrigger fires after the correction log file has been
// written on disk. Returning true consumes the signal, so one burst of
// appends produces one retrain. Combine with a scheduler interval to
// bound retrain frequency.
type FileActivityTrigger struct {
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu    sync.Mutex
	dirty bool
}

// NewFileActivityTrigger watches the given path (typically the SQLite
// correction log). Close releases the watcher.
func NewFileActivityTrigger(path string, logger *zap.Logger) (*FileActivityTrigger, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	t := &FileActivityTrigger{watcher: watcher, logger: logger}
	go t.run()
	return t, nil
}

// run consumes watcher events until the watcher is closed.
func (t *FileActivityTrigger) run() {
	for {
		select {
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				t.mu.Lock()
				t.dirty = true
				t.mu.Unlock()
			}
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.logger.Warn("correction log watcher error", zap.Error(err))
		}
	}
}

// ShouldRetrain implements RetrainTrigger.
func (t *FileActivityTrigger) ShouldRetrain(ctx context.Context, state TrainState) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.dirty {
		return false, "correction log unchanged on disk"
	}
	t.dirty = false
	return true, "correction log changed on disk"
}

// NoteTrainFailure restores the consumed signal so the retrain is
// reattempted on the next evaluation instead of waiting for another
// write.
func (t *FileActivityTrigger) NoteTrainFailure() {
	t.mu.Lock()
	t.dirty = true
	t.mu.Unlock()
}

// Close stops the watcher.
func (t *FileActivityTrigger) Close() error {
	return t.watcher.Close()
}

// AnyTrigger fires when any of its child policies fires, evaluating
// them in order.
type AnyTrigger []RetrainTrigger

// ShouldRetrain implements RetrainTrigger.
func (a AnyTrigger) ShouldRetrain(ctx context.Context, state TrainState) (bool, string) {
	for _, t := range a {
		if should, reason := t.ShouldRetrain(ctx, state); should {
			return true, reason
		}
	}
	return false, "no retrain policy fired"
}

// NoteTrainFailure forwards the failure to every child that tracks a
// consumable signal.
func (a AnyTrigger) NoteTrainFailure() {
	for _, t := range a {
		if n, ok := t.(trainFailureNotifier); ok {
			n.NoteTrainFailure()
		}
	}
}
