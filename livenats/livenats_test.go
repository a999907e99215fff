package livenats

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startNATS(t *testing.T) *NATS {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	n, err := New(ctx, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = n.Close()
		cancel()
	})
	return n
}

func TestPublishSubscribe(t *testing.T) {
	n := startNATS(t)

	var mu sync.Mutex
	var got []string
	sub, err := n.Subscribe("lifecycle.counter.a", func(data []byte) {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NoError(t, n.Conn().Flush())

	require.NoError(t, n.Publish("lifecycle.counter.a", []byte("mount")))
	require.NoError(t, n.Publish("lifecycle.counter.b", []byte("other widget")))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"mount"}, got)

	require.NoError(t, sub.Unsubscribe())
}

func TestEnsureStream_CreateThenUpdate(t *testing.T) {
	n := startNATS(t)

	cfg := StreamConfig{
		Name:     "LIFECYCLE",
		Subjects: []string{"lifecycle.counter.>"},
		MaxMsgs:  100,
		MaxAge:   time.Hour,
	}
	require.NoError(t, EnsureStream(n, cfg))

	cfg.MaxMsgs = 10
	require.NoError(t, EnsureStream(n, cfg))

	info, err := n.JetStream().StreamInfo("LIFECYCLE")
	require.NoError(t, err)
	assert.Equal(t, int64(10), info.Config.MaxMsgs)
	assert.Equal(t, []string{"lifecycle.counter.>"}, info.Config.Subjects)
}

func TestLast(t *testing.T) {
	n := startNATS(t)
	require.NoError(t, EnsureStream(n, StreamConfig{
		Name:     "LIFECYCLE",
		Subjects: []string{"lifecycle.counter.>"},
		MaxMsgs:  100,
	}))

	empty, err := Last(n, "LIFECYCLE", "lifecycle.counter.w1", 3)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i := 1; i <= 5; i++ {
		require.NoError(t, n.Publish("lifecycle.counter.w1", []byte(fmt.Sprintf("event %d", i))))
	}
	require.NoError(t, n.Publish("lifecycle.counter.w2", []byte("elsewhere")))

	assert.Eventually(t, func() bool {
		info, err := n.JetStream().StreamInfo("LIFECYCLE")
		return err == nil && info.State.Msgs == 6
	}, 2*time.Second, 10*time.Millisecond)

	msgs, err := Last(n, "LIFECYCLE", "lifecycle.counter.w1", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "event 3", string(msgs[0]))
	assert.Equal(t, "event 5", string(msgs[2]))
}

func TestLast_UnknownStream(t *testing.T) {
	n := startNATS(t)
	_, err := Last(n, "MISSING", "x", 1)
	assert.Error(t, err)
}
