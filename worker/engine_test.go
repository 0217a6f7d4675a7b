package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyModule struct {
	failures int64
	runs     int64
}

func (m *flakyModule) RunModule(ctx context.Context) error {
	if atomic.AddInt64(&m.runs, 1) <= m.failures {
		return errors.New("transient")
	}
	<-ctx.Done()
	return nil
}

func (m *flakyModule) Name() string {
	return "flaky"
}

func TestEngineRestartsFailedModule(t *testing.T) {
	GracefulRetryDelay = 10 * time.Millisecond
	defer func() { GracefulRetryDelay = 3 * time.Second }()

	m := &flakyModule{failures: 2}
	engine := NewEngine([]Module{m}, NewEventBus())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt64(&m.runs) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop after cancel")
	}
	assert.Equal(t, int64(3), atomic.LoadInt64(&m.runs))
}

func TestRunModuleStopsRetryingOnCancel(t *testing.T) {
	GracefulRetryDelay = time.Hour
	defer func() { GracefulRetryDelay = 3 * time.Second }()

	ctx, cancel := context.WithCancel(context.Background())
	m := &flakyModule{failures: 100}
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	RunModuleWithGracefulRestart(ctx, m)
	assert.Equal(t, int64(1), atomic.LoadInt64(&m.runs))
}

func TestContentTaskRoundTrip(t *testing.T) {
	msg, err := NewMessage(ContentTask{ContentId: "c1", UserId: "u1"})
	require.NoError(t, err)
	task, err := ParseContentTask(msg)
	require.NoError(t, err)
	assert.Equal(t, ContentTask{ContentId: "c1", UserId: "u1"}, task)

	msg, err = NewMessage(map[string]string{"user_id": "u1"})
	require.NoError(t, err)
	_, err = ParseContentTask(msg)
	assert.Error(t, err)
}
