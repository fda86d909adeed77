package sideeffects

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/factoring-portal/pkg/logger"
	"github.com/angelmondragon/factoring-portal/pkg/metrics"
)

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestDispatcher(t *testing.T, params Params) (*Dispatcher, *safeBuffer, *prometheus.Registry) {
	t.Helper()
	out := &safeBuffer{}
	reg := prometheus.NewRegistry()
	params.Logger = logger.New(logger.Options{ServiceName: "test", Output: out})
	params.Metrics = metrics.NewSideEffectMetrics(reg)
	d, err := NewDispatcher(params)
	require.NoError(t, err)
	return d, out, reg
}

func TestDispatchRunsTasksAndDrainsOnClose(t *testing.T) {
	d, _, reg := newTestDispatcher(t, Params{Workers: 2, QueueSize: 8})

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		accepted := d.Dispatch(context.Background(), Task{Kind: "audit", Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}})
		require.True(t, accepted)
	}
	require.NoError(t, d.Close(context.Background()))

	assert.EqualValues(t, 5, ran.Load())
	count, err := testutil.GatherAndCount(reg, "side_effect_success_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDispatchDetachesCallerCancellation(t *testing.T) {
	d, _, _ := newTestDispatcher(t, Params{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	d.Dispatch(ctx, Task{Kind: "notify", Run: func(taskCtx context.Context) error {
		result <- taskCtx.Err()
		return nil
	}})
	cancel()
	require.NoError(t, d.Close(context.Background()))

	assert.NoError(t, <-result)
}

func TestFailuresAreLoggedAndNeverReturned(t *testing.T) {
	d, out, reg := newTestDispatcher(t, Params{Workers: 1})

	accepted := d.Dispatch(context.Background(), Task{Kind: "audit", Run: func(ctx context.Context) error {
		return errors.New("audit insert failed")
	}})
	require.True(t, accepted)
	d.Dispatch(context.Background(), Task{Kind: "notify", Run: func(ctx context.Context) error {
		panic("boom")
	}})
	require.NoError(t, d.Close(context.Background()))

	logs := out.String()
	assert.Contains(t, logs, "sideeffect.failed")
	assert.Contains(t, logs, "audit insert failed")
	assert.Contains(t, logs, "side effect panic: boom")
	series, err := testutil.GatherAndCount(reg, "side_effect_failure_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestFullQueueDropsTask(t *testing.T) {
	d, out, _ := newTestDispatcher(t, Params{Workers: 1, QueueSize: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	d.Dispatch(context.Background(), Task{Kind: "block", Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	require.True(t, d.Dispatch(context.Background(), Task{Kind: "queued", Run: func(ctx context.Context) error { return nil }}))
	dropped := d.Dispatch(context.Background(), Task{Kind: "overflow", Run: func(ctx context.Context) error { return nil }})
	assert.False(t, dropped)

	close(release)
	require.NoError(t, d.Close(context.Background()))
	assert.Contains(t, out.String(), ErrQueueFull.Error())
}

func TestDispatchAfterCloseIsRejected(t *testing.T) {
	d, _, _ := newTestDispatcher(t, Params{})
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	assert.False(t, d.Dispatch(context.Background(), Task{Kind: "late", Run: func(ctx context.Context) error { return nil }}))
}

func TestCloseHonorsDeadline(t *testing.T) {
	d, _, _ := newTestDispatcher(t, Params{Workers: 1, TaskTimeout: time.Second})
	release := make(chan struct{})
	defer close(release)
	d.Dispatch(context.Background(), Task{Kind: "slow", Run: func(ctx context.Context) error {
		<-release
		return nil
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
