package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/internal/storage"
	"github.com/jwebster45206/npc-engine/pkg/actor"
)

// mockRepository is a testify mock of storage.NPCRepository
type mockRepository struct {
	mock.Mock
}

var _ storage.NPCRepository = (*mockRepository)(nil)

func (m *mockRepository) Ping(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockRepository) Close() error                   { return m.Called().Error(0) }

func (m *mockRepository) GetByID(ctx context.Context, id int64) (*actor.NPC, error) {
	args := m.Called(ctx, id)
	npc, _ := args.Get(0).(*actor.NPC)
	return npc, args.Error(1)
}

func (m *mockRepository) GetAll(ctx context.Context) ([]actor.NPC, error) {
	args := m.Called(ctx)
	npcs, _ := args.Get(0).([]actor.NPC)
	return npcs, args.Error(1)
}

func (m *mockRepository) GetByLocation(ctx context.Context, location string) ([]actor.NPC, error) {
	args := m.Called(ctx, location)
	npcs, _ := args.Get(0).([]actor.NPC)
	return npcs, args.Error(1)
}

func (m *mockRepository) Create(ctx context.Context, npc actor.NPCCreate) (*actor.NPC, error) {
	args := m.Called(ctx, npc)
	created, _ := args.Get(0).(*actor.NPC)
	return created, args.Error(1)
}

func (m *mockRepository) Update(ctx context.Context, update actor.NPCUpdate) (*actor.NPC, error) {
	args := m.Called(ctx, update)
	npc, _ := args.Get(0).(*actor.NPC)
	return npc, args.Error(1)
}

func (m *mockRepository) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) SetLocation(ctx context.Context, id int64, location string) (*actor.NPC, error) {
	args := m.Called(ctx, id, location)
	npc, _ := args.Get(0).(*actor.NPC)
	return npc, args.Error(1)
}

func (m *mockRepository) SetHealth(ctx context.Context, id int64, health int) (*actor.NPC, error) {
	args := m.Called(ctx, id, health)
	npc, _ := args.Get(0).(*actor.NPC)
	return npc, args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func goblinCreate() actor.NPCCreate {
	cave := "cave"
	return actor.NPCCreate{
		Name:         "Goblin",
		Description:  "A sneaky goblin",
		Health:       10,
		Strength:     4,
		Agility:      7,
		Intelligence: 2,
		Dialogue:     []string{"Grr"},
		IsHostile:    true,
		Location:     &cave,
	}
}

func newMemoryService(t *testing.T) (*NPCService, *storage.MemoryStorage) {
	t.Helper()
	repo := storage.NewMemoryStorage()
	return NewNPCService(repo, testLogger()), repo
}

func TestNPCService_CreateNPC_RejectsNonPositiveHealth(t *testing.T) {
	for _, health := range []int{0, -1, -100} {
		repo := new(mockRepository)
		svc := NewNPCService(repo, testLogger())

		in := goblinCreate()
		in.Health = health
		npc, err := svc.CreateNPC(context.Background(), in)

		assert.Nil(t, npc)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, "health %d", health)
		assert.Equal(t, "health", ve.Field)
		assert.Equal(t, "health must be greater than 0", ve.Error())
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	}
}

func TestNPCService_CreateNPC_EchoesInput(t *testing.T) {
	svc, _ := newMemoryService(t)

	for _, health := range []int{1, 10, 9999} {
		in := goblinCreate()
		in.Health = health

		npc, err := svc.CreateNPC(context.Background(), in)
		require.NoError(t, err)
		assert.NotZero(t, npc.ID)

		want := in.NPC(npc.ID)
		assert.Equal(t, *want, *npc)
	}
}

func TestNPCService_Passthrough(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	svc := NewNPCService(repo, testLogger())

	listed := []actor.NPC{{ID: 1, Name: "Goblin"}}
	repo.On("GetByID", ctx, int64(1)).Return(&listed[0], nil)
	repo.On("GetAll", ctx).Return(listed, nil)
	repo.On("GetByLocation", ctx, "cave").Return(listed, nil)

	npc, err := svc.GetNPC(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Goblin", npc.Name)

	all, err := svc.GetAllNPCs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	inCave, err := svc.GetNPCsByLocation(ctx, "cave")
	require.NoError(t, err)
	assert.Len(t, inCave, 1)

	repo.AssertExpectations(t)
}

func TestNPCService_MissingIDDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	const missing = int64(999)

	repo := new(mockRepository)
	repo.On("GetByID", ctx, missing).Return(nil, nil)
	svc := NewNPCService(repo, testLogger())

	updated, err := svc.UpdateNPC(ctx, actor.NPCUpdate{ID: missing, Name: actor.Some("x")})
	require.NoError(t, err)
	assert.Nil(t, updated)

	deleted, err := svc.DeleteNPC(ctx, missing)
	require.NoError(t, err)
	assert.False(t, deleted)

	moved, err := svc.MoveNPC(ctx, missing, "forest")
	require.NoError(t, err)
	assert.Nil(t, moved)

	damaged, err := svc.ApplyDamage(ctx, missing, 5)
	require.NoError(t, err)
	assert.Nil(t, damaged)

	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "SetLocation", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "SetHealth", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNumberOfCalls(t, "GetByID", 4)
}

func TestNPCService_ApplyDamage_Clamps(t *testing.T) {
	tests := []struct {
		name       string
		health     int
		damage     int
		wantHealth int
	}{
		{"partial damage", 10, 3, 7},
		{"exact kill", 10, 10, 0},
		{"overkill", 10, 15, 0},
		{"zero damage", 10, 0, 10},
		{"already dead", 0, 5, 0},
		{"negative damage heals", 10, -5, 15},
		{"min int damage saturates", 10, math.MinInt, math.MaxInt},
		{"huge heal saturates", 5, -math.MaxInt, math.MaxInt},
		{"heal to exactly max", 0, -math.MaxInt, math.MaxInt},
		{"max int damage kills", 10, math.MaxInt, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := new(mockRepository)
			svc := NewNPCService(repo, testLogger())

			repo.On("GetByID", ctx, int64(1)).Return(&actor.NPC{ID: 1, Health: tt.health}, nil)
			repo.On("SetHealth", ctx, int64(1), tt.wantHealth).Return(&actor.NPC{ID: 1, Health: tt.wantHealth}, nil)

			npc, err := svc.ApplyDamage(ctx, 1, tt.damage)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHealth, npc.Health)
			assert.GreaterOrEqual(t, npc.Health, 0)
			repo.AssertExpectations(t)
		})
	}
}

func TestNPCService_ApplyDamage_HealDoesNotWrap(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t)

	goblin, err := svc.CreateNPC(ctx, goblinCreate())
	require.NoError(t, err)

	healed, err := svc.ApplyDamage(ctx, goblin.ID, math.MinInt)
	require.NoError(t, err)
	require.NotNil(t, healed)
	assert.Equal(t, math.MaxInt, healed.Health)
	assert.True(t, healed.IsAlive())

	healed, err = svc.ApplyDamage(ctx, goblin.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, healed.Health)
}

func TestNPCService_GoblinScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t)

	goblin, err := svc.CreateNPC(ctx, goblinCreate())
	require.NoError(t, err)
	assert.Equal(t, int64(1), goblin.ID)
	assert.Equal(t, 10, goblin.Health)

	hit, err := svc.ApplyDamage(ctx, goblin.ID, 15)
	require.NoError(t, err)
	assert.Equal(t, 0, hit.Health)
	assert.False(t, hit.IsAlive())

	again, err := svc.ApplyDamage(ctx, goblin.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Health)

	moved, err := svc.MoveNPC(ctx, 999, "forest")
	require.NoError(t, err)
	assert.Nil(t, moved)
}

func TestNPCService_UpdateNPC_NameOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t)

	created, err := svc.CreateNPC(ctx, goblinCreate())
	require.NoError(t, err)

	updated, err := svc.UpdateNPC(ctx, actor.NPCUpdate{ID: created.ID, Name: actor.Some("Hobgoblin")})
	require.NoError(t, err)

	want := *created
	want.Name = "Hobgoblin"
	assert.Equal(t, want, *updated)
}

func TestNPCService_UpdateNPC_Validation(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepository)
	svc := NewNPCService(repo, testLogger())

	_, err := svc.UpdateNPC(ctx, actor.NPCUpdate{ID: 1, Health: actor.Some(-1)})
	assert.True(t, IsValidationError(err))

	_, err = svc.UpdateNPC(ctx, actor.NPCUpdate{ID: 1, Name: actor.Null[string]()})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)

	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestNPCService_UpdateNPC_ClearsLocation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t)

	created, err := svc.CreateNPC(ctx, goblinCreate())
	require.NoError(t, err)

	updated, err := svc.UpdateNPC(ctx, actor.NPCUpdate{ID: created.ID, Location: actor.Null[string]()})
	require.NoError(t, err)
	assert.Nil(t, updated.Location)
	assert.Equal(t, created.Health, updated.Health)
}

func TestNPCService_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, repo := newMemoryService(t)

	created, err := svc.CreateNPC(ctx, goblinCreate())
	require.NoError(t, err)

	ok, err := svc.DeleteNPC(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.DeleteNPC(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, repo.Calls("delete"))
	assert.Equal(t, 0, repo.Len())
}

func TestNPCService_MoveNPC(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t)

	created, err := svc.CreateNPC(ctx, goblinCreate())
	require.NoError(t, err)

	moved, err := svc.MoveNPC(ctx, created.ID, "forest")
	require.NoError(t, err)
	require.NotNil(t, moved.Location)
	assert.Equal(t, "forest", *moved.Location)

	inForest, err := svc.GetNPCsByLocation(ctx, "forest")
	require.NoError(t, err)
	assert.Len(t, inForest, 1)
}

func TestNPCService_PropagatesStoreErrorsUnchanged(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("connection reset")
	storeErr := &storage.StoreError{Op: "get", Err: cause}

	repo := new(mockRepository)
	repo.On("GetByID", ctx, int64(1)).Return(nil, storeErr)
	svc := NewNPCService(repo, testLogger())

	_, err := svc.GetNPC(ctx, 1)
	assert.Same(t, storeErr, err)

	_, err = svc.ApplyDamage(ctx, 1, 3)
	assert.Same(t, storeErr, err)

	_, err = svc.DeleteNPC(ctx, 1)
	assert.Same(t, storeErr, err)

	_, err = svc.MoveNPC(ctx, 1, "forest")
	assert.Same(t, storeErr, err)
}

func TestNPCService_CreateStoreFailure(t *testing.T) {
	svc, repo := newMemoryService(t)
	repo.FailOn("create", errors.New("disk full"))

	_, err := svc.CreateNPC(context.Background(), goblinCreate())
	var storeErr *storage.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.False(t, IsValidationError(err))
}
