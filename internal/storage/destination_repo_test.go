package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/annel0/mapcoord/internal/config"
	"github.com/annel0/mapcoord/internal/coord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDestinationRepo прогоняет общий контракт DestinationRepo
func testDestinationRepo(t *testing.T, repo DestinationRepo) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		expected := coord.New(32000, 31000, 7)
		require.NoError(t, repo.Save(ctx, 100, expected))

		actual, found, err := repo.Load(ctx, 100)
		require.NoError(t, err)
		require.True(t, found, "Пункт назначения не найден")
		assert.Equal(t, expected, actual)
	})

	t.Run("Domain boundaries survive storage", func(t *testing.T) {
		d := coord.DomainOf(coord.Absolute)
		require.NoError(t, repo.Save(ctx, 101, d.Min))
		require.NoError(t, repo.Save(ctx, 102, d.Max))

		got, _, err := repo.Load(ctx, 101)
		require.NoError(t, err)
		assert.Equal(t, d.Min, got)

		got, _, err = repo.Load(ctx, 102)
		require.NoError(t, err)
		assert.Equal(t, d.Max, got)
	})

	t.Run("Load Non-Existent Item", func(t *testing.T) {
		pos, found, err := repo.Load(ctx, 999)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, coord.Position{}, pos)
	})

	t.Run("Update", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, 200, coord.New(30000, 30000, 1)))
		require.NoError(t, repo.Save(ctx, 200, coord.New(30001, 30002, 2)))

		got, found, err := repo.Load(ctx, 200)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, coord.New(30001, 30002, 2), got)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, 300, coord.New(30000, 30000, 1)))
		require.NoError(t, repo.Delete(ctx, 300))

		_, found, err := repo.Load(ctx, 300)
		require.NoError(t, err)
		assert.False(t, found)

		err = repo.Delete(ctx, 300)
		assert.True(t, errors.Is(err, ErrNotFound), "ожидалась ErrNotFound, получена %v", err)
	})

	t.Run("BatchSave and List", func(t *testing.T) {
		batch := map[uint64]coord.Position{
			400: coord.New(25000, 25000, 0),
			401: coord.New(26000, 27000, 15),
			402: coord.New(40000, 24576, 8),
		}
		require.NoError(t, repo.BatchSave(ctx, batch))

		all, err := repo.List(ctx)
		require.NoError(t, err)
		for itemID, expected := range batch {
			assert.Equal(t, expected, all[itemID], "предмет %d", itemID)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		err := repo.Save(ctx, 0, coord.New(30000, 30000, 7))
		assert.True(t, errors.Is(err, ErrInvalidItem))

		err = repo.Save(ctx, 500, coord.New(40960, 30000, 7))
		assert.True(t, errors.Is(err, coord.ErrOutOfDomain))

		_, found, err := repo.Load(ctx, 500)
		require.NoError(t, err)
		assert.False(t, found, "позиция вне домена не должна сохраняться")

		err = repo.BatchSave(ctx, map[uint64]coord.Position{
			501: coord.New(30000, 30000, 7),
			502: coord.New(30000, 30000, 16),
		})
		assert.True(t, errors.Is(err, coord.ErrOutOfDomain))

		_, found, err = repo.Load(ctx, 501)
		require.NoError(t, err)
		assert.False(t, found, "batch с ошибкой не должен записываться частично")
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := repo.Save(cctx, 600, coord.New(30000, 30000, 7))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryDestinationRepo(t *testing.T) {
	repo := NewMemoryDestinationRepo()
	defer repo.Close()

	testDestinationRepo(t, repo)

	raw, ok := repo.Raw(100)
	require.True(t, ok)
	assert.Equal(t, coord.PackAbsolute(coord.New(32000, 31000, 7)), raw)
}

func TestBadgerDestinationRepo(t *testing.T) {
	repo, err := NewInMemoryBadgerDestinationRepo()
	require.NoError(t, err)
	defer repo.Close()

	testDestinationRepo(t, repo)
}

func TestBadgerDestinationRepo_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repo, err := NewBadgerDestinationRepo(dir)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, 7, coord.New(33000, 34000, 7)))
	require.NoError(t, repo.Close())

	_, _, err = repo.Load(ctx, 7)
	assert.Error(t, err, "закрытое хранилище должно возвращать ошибку")

	repo, err = NewBadgerDestinationRepo(dir)
	require.NoError(t, err)
	defer repo.Close()

	got, found, err := repo.Load(ctx, 7)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, coord.New(33000, 34000, 7), got)
}

func TestDecodePacked(t *testing.T) {
	pos := coord.New(24576, 40959, 3)
	got, err := decodePacked(encodePacked(pos))
	require.NoError(t, err)
	assert.Equal(t, pos, got)

	_, err = decodePacked([]byte{1, 2})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	repo, err := Open(context.Background(), config.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryDestinationRepo{}, repo)

	_, err = Open(context.Background(), config.StorageConfig{Backend: "tape"})
	assert.Error(t, err)
}
