package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/internal/storage"
	"github.com/jwebster45206/npc-engine/internal/storage/storagetest"
)

func TestMemoryStorage_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.NPCRepository {
		return storage.NewMemoryStorage()
	})
}

func TestMemoryStorage_FailOn(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemoryStorage()
	cause := errors.New("disk full")
	m.FailOn("create", cause)

	_, err := m.Create(ctx, storagetest.Goblin())
	require.Error(t, err)

	var storeErr *storage.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "create", storeErr.Op)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 1, m.Calls("create"))

	m.FailOn("create", nil)
	_, err = m.Create(ctx, storagetest.Goblin())
	assert.NoError(t, err)
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemoryStorage()
	created, err := m.Create(ctx, storagetest.Goblin())
	require.NoError(t, err)

	created.Dialogue[0] = "changed"
	created.Health = -5

	loaded, err := m.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grr", loaded.Dialogue[0])
	assert.Equal(t, 10, loaded.Health)
}

func TestMemoryStorage_Ping(t *testing.T) {
	m := storage.NewMemoryStorage()
	m.SetPingError(errors.New("connection failed"))
	assert.Error(t, m.Ping(context.Background()))

	m.SetPingSuccess()
	assert.NoError(t, m.Ping(context.Background()))
}

func TestStoreError(t *testing.T) {
	assert.Nil(t, storage.Wrap("get", nil))

	cause := errors.New("boom")
	err := storage.Wrap("get", cause)
	assert.EqualError(t, err, "store get: boom")
	assert.True(t, errors.Is(err, cause))
}
