package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_FilterAndOrder(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{EventDestinationMoved}},
		func(ctx context.Context, ev *Envelope) {
			mu.Lock()
			got = append(got, string(ev.Payload))
			n := len(got)
			mu.Unlock()
			if n == 3 {
				close(done)
			}
		})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, NewEnvelope("test", EventDeltaBatch, 5, []byte("skip"))))
	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, bus.Publish(ctx, NewEnvelope("test", EventDestinationMoved, 5, []byte(p))))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("события не доставлены")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, got)

	stats := bus.Metrics()
	assert.Equal(t, uint64(4), stats.Published)
}

func TestMemoryBus_DropsLowPriorityWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)
	defer bus.Close()

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		started <- struct{}{}
		<-block
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, NewEnvelope("t", "x", 1, nil)))
	<-started // первое событие в обработчике, очередь пуста

	require.NoError(t, bus.Publish(ctx, NewEnvelope("t", "x", 1, nil))) // в очередь
	require.NoError(t, bus.Publish(ctx, NewEnvelope("t", "x", 1, nil))) // отброшено

	assert.Equal(t, uint64(1), bus.Metrics().Dropped)
	close(block)
}

func TestMemoryBus_Closed(t *testing.T) {
	bus := NewMemoryBus(4)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), NewEnvelope("t", "x", 1, nil))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewEnvelope(t *testing.T) {
	ev := NewEnvelope("svc", EventDestinationMoved, 7, []byte{1})
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 1, ev.Version)
	assert.Equal(t, "svc", ev.Source)
	assert.NotEqual(t, ev.ID, NewEnvelope("svc", EventDestinationMoved, 7, nil).ID)
}

func TestMetricsExporter_Collect(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()

	reg := prometheus.NewRegistry()
	me := NewMetricsExporter(bus, reg)

	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("t", "x", 5, nil)))
	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("t", "x", 5, nil)))
	me.Collect()
	me.Collect()

	assert.Equal(t, float64(2), testutil.ToFloat64(me.published))
}
