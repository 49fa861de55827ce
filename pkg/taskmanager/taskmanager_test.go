package taskmanager_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"newsroom-server/pkg/taskmanager"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRejectsSecondTaskForSameKey(t *testing.T) {
	m := taskmanager.New()
	defer m.Close()

	release := make(chan struct{})
	_, err := m.Submit("batch", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	_, err = m.Submit("batch", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, taskmanager.ErrKeyBusy)

	close(release)
	require.Eventually(t, func() bool { return !m.Running("batch") }, 2*time.Second, 10*time.Millisecond)

	_, err = m.Submit("batch", func(ctx context.Context) error { return nil })
	assert.NoError(t, err, "a finished task frees the key")
}

func TestCancelStopsRunningTask(t *testing.T) {
	m := taskmanager.New()
	defer m.Close()

	started := make(chan struct{})
	_, err := m.Submit("batch", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	<-started

	require.NoError(t, m.Cancel("batch"))
	require.Eventually(t, func() bool { return !m.Running("batch") }, 2*time.Second, 10*time.Millisecond)

	task, err := m.Get("batch")
	require.NoError(t, err)
	assert.Equal(t, taskmanager.TaskStatusCancelled, task.Status)
}

func TestCancelUnknownOrFinishedKeyReturnsNotFound(t *testing.T) {
	m := taskmanager.New()
	defer m.Close()

	assert.ErrorIs(t, m.Cancel("nope"), taskmanager.ErrTaskNotFound)

	_, err := m.Submit("batch", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !m.Running("batch") }, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, m.Cancel("batch"), taskmanager.ErrTaskNotFound)
}

// Cancel must not read task state outside the manager lock while the
// task goroutine records its final status. Run with -race.
func TestCancelConcurrentWithCompletion(t *testing.T) {
	m := taskmanager.New()
	defer m.Close()

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("batch-%d", i)
		_, err := m.Submit(key, func(ctx context.Context) error { return nil })
		require.NoError(t, err)

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < 25; n++ {
					_ = m.Cancel(key)
				}
			}()
		}
		wg.Wait()
		require.Eventually(t, func() bool { return !m.Running(key) }, 2*time.Second, time.Millisecond)
	}
}

func TestCleanupDropsOnlyOldTerminalTasks(t *testing.T) {
	m := taskmanager.New()
	defer m.Close()

	_, err := m.Submit("done", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !m.Running("done") }, 2*time.Second, 10*time.Millisecond)

	release := make(chan struct{})
	_, err = m.Submit("live", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	m.Cleanup(0)

	_, err = m.Get("done")
	assert.ErrorIs(t, err, taskmanager.ErrTaskNotFound)
	assert.True(t, m.Running("live"), "live tasks survive cleanup")
	close(release)
}
