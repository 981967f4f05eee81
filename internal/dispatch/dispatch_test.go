package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerDrainsOnClose(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := NewRunner(2, 16, log)

	var n atomic.Int32
	for range 10 {
		require.True(t, r.Submit("count", func(context.Context) {
			time.Sleep(time.Millisecond)
			n.Add(1)
		}))
	}

	require.NoError(t, r.Close(context.Background()))
	assert.Equal(t, int32(10), n.Load())
}

func TestSubmitDropsWhenFull(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := NewRunner(1, 1, log)

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, r.Submit("block", func(context.Context) {
		close(started)
		<-release
	}))
	<-started
	require.True(t, r.Submit("queued", func(context.Context) {}))

	assert.False(t, r.Submit("overflow", func(context.Context) {}))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "overflow", hook.LastEntry().Data["job"])

	close(release)
	require.NoError(t, r.Close(context.Background()))
}

func TestSubmitAfterClose(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := NewRunner(1, 1, log)
	require.NoError(t, r.Close(context.Background()))

	assert.False(t, r.Submit("late", func(context.Context) {}))
	assert.NoError(t, r.Close(context.Background()))
}

func TestPanickingJobDoesNotKillWorker(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := NewRunner(1, 4, log)

	var ran atomic.Bool
	r.Submit("panics", func(context.Context) { panic("boom") })
	r.Submit("after", func(context.Context) { ran.Store(true) })
	require.NoError(t, r.Close(context.Background()))

	assert.True(t, ran.Load())
	assert.Equal(t, logrus.ErrorLevel, hook.AllEntries()[0].Level)
}

func TestCloseHonoursContext(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := NewRunner(1, 1, log)
	release := make(chan struct{})
	defer close(release)
	r.Submit("stuck", func(context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Close(ctx), context.DeadlineExceeded)
}
