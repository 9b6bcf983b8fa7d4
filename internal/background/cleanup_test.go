package background

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockSweeper struct {
	calls atomic.Int64
	err   error
}

func (m *mockSweeper) CleanupExpired(ctx context.Context) (int64, error) {
	m.calls.Add(1)
	return 2, m.err
}

type mockPruner struct {
	calls atomic.Int64
	err   error
}

func (m *mockPruner) Prune(ctx context.Context) (int64, error) {
	m.calls.Add(1)
	return 5, m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanupManager_RunsImmediatelyOnStart(t *testing.T) {
	sweeper := &mockSweeper{}
	pruner := &mockPruner{}
	cm := NewCleanupManager(sweeper, pruner, testLogger(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	// The first sweep runs before the first tick
	assert.Eventually(t, func() bool {
		return sweeper.calls.Load() == 1 && pruner.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestCleanupManager_SweepFailureDoesNotBlockPrune(t *testing.T) {
	sweeper := &mockSweeper{err: context.DeadlineExceeded}
	pruner := &mockPruner{}
	cm := NewCleanupManager(sweeper, pruner, testLogger(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return pruner.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestCleanupManager_StopTerminates(t *testing.T) {
	cm := NewCleanupManager(&mockSweeper{}, &mockPruner{}, testLogger(), time.Hour)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	cm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}
