package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSpec(t *testing.T) {
	assert.NoError(t, ValidateSpec("0 */10 * * * *"))
	assert.NoError(t, ValidateSpec("@every 30s"))
	assert.Error(t, ValidateSpec("*/10 * * * *"), "five fields lack the seconds column")
	assert.Error(t, ValidateSpec("not a schedule"))
}

func TestRunLinkScheduleInvalidSpec(t *testing.T) {
	var runs int32
	err := RunLinkSchedule(context.Background(), "bogus", true, func(context.Context) {
		atomic.AddInt32(&runs, 1)
	})
	assert.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&runs))
}

func TestRunLinkScheduleFires(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs int32
	done := make(chan error, 1)
	go func() {
		done <- RunLinkSchedule(ctx, "* * * * * *", true, func(context.Context) {
			atomic.AddInt32(&runs, 1)
		})
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 2
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("schedule did not stop after cancel")
	}
}

func TestRunLinkScheduleSkipsOverlap(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var running, maxRunning, runs int32
	done := make(chan error, 1)
	go func() {
		done <- RunLinkSchedule(ctx, "* * * * * *", false, func(context.Context) {
			n := atomic.AddInt32(&running, 1)
			for {
				m := atomic.LoadInt32(&maxRunning)
				if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
					break
				}
			}
			atomic.AddInt32(&runs, 1)
			time.Sleep(1500 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		})
	}()

	time.Sleep(3500 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(1))
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxRunning))
}
