package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	for _, spec := range []string{"@hourly", "@every 5m", "*/15 * * * *", "0 3 * * 1"} {
		assert.NoError(t, Validate(spec), spec)
	}
	for _, spec := range []string{"", "hourly", "* * *", "61 * * * *"} {
		assert.Error(t, Validate(spec), spec)
	}
}

func TestRunRejectsBadSpec(t *testing.T) {
	err := Run(context.Background(), Options{Spec: "not a spec"}, func(context.Context) error { return nil })
	assert.ErrorContains(t, err, "invalid schedule")
}

func TestRunAtStartAndStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	done := make(chan error, 1)

	go func() {
		done <- Run(ctx, Options{Spec: "@yearly", RunAtStart: true}, func(context.Context) error {
			runs.Add(1)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(1), runs.Load())
}

func TestStopWaitsForRunningJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var finished atomic.Bool
	var jobCtxErr atomic.Value
	done := make(chan error, 1)

	go func() {
		done <- Run(ctx, Options{Spec: "@yearly", RunAtStart: true}, func(jobCtx context.Context) error {
			close(started)
			time.Sleep(100 * time.Millisecond)
			if err := jobCtx.Err(); err != nil {
				jobCtxErr.Store(err)
			}
			finished.Store(true)
			return errors.New("job errors are logged, not returned")
		})
	}()

	<-started
	cancel()
	require.NoError(t, <-done)
	assert.True(t, finished.Load(), "Run returned before the job finished")
	assert.Nil(t, jobCtxErr.Load(), "job context was canceled")
}
