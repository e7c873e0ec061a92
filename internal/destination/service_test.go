package destination

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/annel0/mapcoord/internal/coord"
	"github.com/annel0/mapcoord/internal/eventbus"
	"github.com/annel0/mapcoord/internal/journal"
	"github.com/annel0/mapcoord/internal/problems"
	"github.com/annel0/mapcoord/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc      *Service
	repo     *storage.MemoryDestinationRepo
	bus      eventbus.EventBus
	journal  *journal.Journal
	problems *problems.List
}

func newFixture(t *testing.T, strict bool) *fixture {
	t.Helper()
	bus := eventbus.NewMemoryBus(16)
	t.Cleanup(func() { bus.Close() })

	codec, err := journal.NewCodec("none", strict)
	require.NoError(t, err)
	j, err := journal.New(bus, codec, journal.Config{Source: "test"})
	require.NoError(t, err)

	repo := storage.NewMemoryDestinationRepo()
	list := problems.NewList(nil, nil)
	svc := NewService(repo, Config{Strict: strict, Source: "test"}, Deps{
		Journal:  j,
		Bus:      bus,
		Problems: list,
	})
	return &fixture{svc: svc, repo: repo, bus: bus, journal: j, problems: list}
}

func TestService_SetGetRemove(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	pos, err := f.svc.Set(ctx, 1, coord.New(30000, 31000, 5))
	require.NoError(t, err)
	assert.Equal(t, coord.New(30000, 31000, 5), pos)

	got, err := f.svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, pos, got)

	raw, ok := f.repo.Raw(1)
	require.True(t, ok)
	assert.Equal(t, coord.PackAbsolute(pos), raw)

	require.NoError(t, f.svc.Remove(ctx, 1))
	_, err = f.svc.Get(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, f.svc.Remove(ctx, 1), storage.ErrNotFound)
}

func TestService_SetWrapsOutOfDomain(t *testing.T) {
	f := newFixture(t, false)

	pos, err := f.svc.Set(context.Background(), 1, coord.New(40960, 24576, 16))
	require.NoError(t, err)
	assert.Equal(t, coord.New(24576, 24576, 0), pos)
}

func TestService_StrictRejects(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Set(ctx, 1, coord.New(40960, 24576, 0))
	assert.ErrorIs(t, err, coord.ErrOutOfDomain)
	assert.Equal(t, 0, f.repo.Count())

	_, err = f.svc.Set(ctx, 1, coord.New(40950, 24576, 0))
	require.NoError(t, err)

	_, err = f.svc.Move(ctx, 1, coord.New(100, 0, 0))
	assert.ErrorIs(t, err, coord.ErrOutOfDomain)

	_, err = f.svc.Move(ctx, 1, coord.New(0, 0, 8))
	assert.ErrorIs(t, err, coord.ErrOutOfDomain)

	got, err := f.svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, coord.New(40950, 24576, 0), got)
}

func TestService_MoveUndoAndEvents(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	events := make(chan *eventbus.Envelope, 4)
	_, err := f.bus.Subscribe(ctx, eventbus.Filter{Types: []string{eventbus.EventDestinationMoved}},
		func(ctx context.Context, ev *eventbus.Envelope) { events <- ev })
	require.NoError(t, err)

	_, err = f.svc.Set(ctx, 7, coord.New(30000, 30000, 3))
	require.NoError(t, err)

	pos, err := f.svc.Move(ctx, 7, coord.New(-10, 20, 1))
	require.NoError(t, err)
	assert.Equal(t, coord.New(29990, 30020, 4), pos)
	assert.Equal(t, 1, f.journal.Pending())

	select {
	case ev := <-events:
		m, err := DecodeMoved(ev.Payload)
		require.NoError(t, err)
		assert.Equal(t, Moved{ItemID: 7, From: coord.New(30000, 30000, 3), To: coord.New(29990, 30020, 4)}, m)
		assert.Equal(t, coord.New(-10, 20, 1), m.Delta())
	case <-time.After(2 * time.Second):
		t.Fatal("событие не получено")
	}

	pos, err = f.svc.Undo(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, coord.New(30000, 30000, 3), pos)

	_, err = f.svc.Undo(ctx, 7)
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestService_MoveWraps(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Set(ctx, 1, coord.New(40959, 24576, 15))
	require.NoError(t, err)

	pos, err := f.svc.Move(ctx, 1, coord.New(1, -1, 1))
	require.NoError(t, err)
	assert.Equal(t, coord.New(24576, 40959, 0), pos)
}

func TestService_MoveMissing(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Move(context.Background(), 99, coord.New(1, 1, 1))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 0, f.journal.Pending())
}

func TestService_ShiftAll(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Set(ctx, 1, coord.New(30000, 30000, 0))
	require.NoError(t, err)
	_, err = f.svc.Set(ctx, 2, coord.New(40959, 25000, 15))
	require.NoError(t, err)

	n, err := f.svc.ShiftAll(ctx, coord.New(1, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, coord.New(30001, 30002, 1), all[1])
	assert.Equal(t, coord.New(24576, 25002, 0), all[2])
}

func TestService_ShiftAllStrictIsAtomic(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Set(ctx, 1, coord.New(30000, 30000, 0))
	require.NoError(t, err)
	_, err = f.svc.Set(ctx, 2, coord.New(40959, 30000, 0))
	require.NoError(t, err)

	_, err = f.svc.ShiftAll(ctx, coord.New(1, 0, 0))
	assert.ErrorIs(t, err, coord.ErrOutOfDomain)

	got, err := f.svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, coord.New(30000, 30000, 0), got)
}

func TestService_Validate(t *testing.T) {
	repo := storage.NewMemoryDestinationRepo()
	list := problems.NewList(nil, nil)
	bounds := coord.Bounds{MinLayer: 0, MaxLayer: 7, MaxWidth: 35000, MaxHeight: 65000}
	svc := NewService(repo, Config{Bounds: bounds}, Deps{Problems: list})
	ctx := context.Background()

	_, err := svc.Set(ctx, 3, coord.New(36000, 30000, 0))
	require.NoError(t, err)
	_, err = svc.Set(ctx, 1, coord.New(30000, 30000, 9))
	require.NoError(t, err)
	_, err = svc.Set(ctx, 2, coord.New(30000, 30000, 2))
	require.NoError(t, err)

	n, err := svc.Validate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Equal(t, 2, list.Len())

	assert.Equal(t, "Error", list.Text(0, problems.ColumnSeverity))
	assert.Equal(t, "(30000,30000,9)", list.Text(0, problems.ColumnSource))
	assert.Contains(t, list.Text(1, problems.ColumnMessage), "item 3")

	// Повторная проверка не дублирует записи
	_, err = svc.Validate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Len())
}

func TestService_ApplyRemoteDelta(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Set(ctx, 5, coord.New(30000, 30000, 0))
	require.NoError(t, err)
	require.NoError(t, f.svc.Apply(ctx, journal.Entry{ItemID: 5, Delta: coord.New(5, 5, 5)}))

	got, err := f.svc.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, coord.New(30005, 30005, 5), got)
	assert.Equal(t, 0, f.journal.Pending())
}

// slowRepo растягивает чтение, чтобы конкурентные перемещения пересекались
type slowRepo struct {
	*storage.MemoryDestinationRepo
}

func (r slowRepo) Load(ctx context.Context, itemID uint64) (coord.Position, bool, error) {
	time.Sleep(time.Millisecond)
	return r.MemoryDestinationRepo.Load(ctx, itemID)
}

func TestService_ConcurrentMovesKeepEveryDelta(t *testing.T) {
	j, err := journal.New(nil, nil, journal.Config{Capacity: 1000})
	require.NoError(t, err)
	svc := NewService(slowRepo{storage.NewMemoryDestinationRepo()}, Config{}, Deps{Journal: j})
	ctx := context.Background()

	_, err = svc.Set(ctx, 7, coord.New(30000, 30000, 0))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Move(ctx, 7, coord.New(1, 0, 0))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, coord.New(30050, 30000, 0), got)
	assert.Equal(t, 50, j.Pending())

	// История отмен совпадает с хранилищем
	for i := 0; i < 50; i++ {
		_, err := svc.Undo(ctx, 7)
		require.NoError(t, err)
	}
	got, err = svc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, coord.New(30000, 30000, 0), got)
}

func TestService_UndoBoundaryDeltaEvent(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	events := make(chan *eventbus.Envelope, 4)
	_, err := f.bus.Subscribe(ctx, eventbus.Filter{Types: []string{eventbus.EventDestinationMoved}},
		func(ctx context.Context, ev *eventbus.Envelope) { events <- ev })
	require.NoError(t, err)

	start := coord.New(35000, 30000, 8)
	_, err = f.svc.Set(ctx, 2, start)
	require.NoError(t, err)

	_, err = f.svc.Move(ctx, 2, coord.New(-8192, 0, -8))
	require.NoError(t, err)
	pos, err := f.svc.Undo(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, start, pos)

	var moves []Moved
	for len(moves) < 2 {
		select {
		case ev := <-events:
			m, err := DecodeMoved(ev.Payload)
			require.NoError(t, err)
			moves = append(moves, m)
		case <-time.After(2 * time.Second):
			t.Fatal("событие не получено")
		}
	}
	assert.Equal(t, coord.New(-8192, 0, -8), moves[0].Delta())
	assert.Equal(t, coord.New(8192, 0, 8), moves[1].Delta())
	assert.Equal(t, start, moves[1].To)
}

func TestService_UndoReplicatesToRemoteNode(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	t.Cleanup(func() { bus.Close() })
	codec, err := journal.NewCodec("zstd", false)
	require.NoError(t, err)
	ctx := context.Background()

	ja, err := journal.New(bus, codec, journal.Config{Source: "node-a"})
	require.NoError(t, err)
	nodeA := NewService(storage.NewMemoryDestinationRepo(), Config{Source: "node-a"}, Deps{Journal: ja, Bus: bus})

	remoteRepo := storage.NewMemoryDestinationRepo()
	nodeB := NewService(remoteRepo, Config{Source: "node-b"}, Deps{})
	consumer, err := journal.NewConsumer(bus, codec, "node-b", nodeB.Apply)
	require.NoError(t, err)
	defer consumer.Stop()

	start := coord.New(35000, 35000, 7)
	for _, svc := range []*Service{nodeA, nodeB} {
		_, err := svc.Set(ctx, 9, start)
		require.NoError(t, err)
	}

	remoteAt := func() coord.Position {
		pos, _, _ := remoteRepo.Load(ctx, 9)
		return pos
	}

	tests := []struct {
		name  string
		delta coord.Position
	}{
		{"small", coord.New(5, 0, 0)},
		{"relative minimum", coord.New(-8192, -8192, -7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := nodeA.Move(ctx, 9, tt.delta)
			require.NoError(t, err)
			require.NoError(t, ja.Flush(ctx))
			require.Eventually(t, func() bool { return remoteAt() == start.Add(tt.delta) },
				2*time.Second, 10*time.Millisecond)

			local, err := nodeA.Undo(ctx, 9)
			require.NoError(t, err)
			assert.Equal(t, start, local)
			require.NoError(t, ja.Flush(ctx))
			require.Eventually(t, func() bool { return remoteAt() == start },
				2*time.Second, 10*time.Millisecond)
		})
	}
}
