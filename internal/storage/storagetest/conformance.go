// Package storagetest holds a behavioural test suite every NPCRepository
// implementation must pass.
package storagetest

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/internal/storage"
	"github.com/jwebster45206/npc-engine/pkg/actor"
)

// Factory returns a fresh, empty repository for one subtest.
type Factory func(t *testing.T) storage.NPCRepository

func strPtr(s string) *string { return &s }

// Goblin returns a standard creation request used across the suite.
func Goblin() actor.NPCCreate {
	return actor.NPCCreate{
		Name:         "Goblin",
		Description:  "A sneaky goblin",
		Health:       10,
		Strength:     4,
		Agility:      7,
		Intelligence: 2,
		Dialogue:     []string{"Grr", "Shiny!"},
		IsHostile:    true,
		Location:     strPtr("cave"),
	}
}

// Run exercises the full repository contract.
func Run(t *testing.T, newRepo Factory) {
	ctx := context.Background()

	t.Run("create assigns id and echoes fields", func(t *testing.T) {
		repo := newRepo(t)
		in := Goblin()

		got, err := repo.Create(ctx, in)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.NotZero(t, got.ID)
		assert.Equal(t, in.Name, got.Name)
		assert.Equal(t, in.Description, got.Description)
		assert.Equal(t, in.Health, got.Health)
		assert.Equal(t, in.Strength, got.Strength)
		assert.Equal(t, in.Agility, got.Agility)
		assert.Equal(t, in.Intelligence, got.Intelligence)
		assert.Equal(t, in.Dialogue, got.Dialogue)
		assert.Equal(t, in.IsHostile, got.IsHostile)
		require.NotNil(t, got.Location)
		assert.Equal(t, "cave", *got.Location)

		second, err := repo.Create(ctx, in)
		require.NoError(t, err)
		assert.NotEqual(t, got.ID, second.ID)
	})

	t.Run("create without location or dialogue", func(t *testing.T) {
		repo := newRepo(t)
		in := Goblin()
		in.Location = nil
		in.Dialogue = nil

		got, err := repo.Create(ctx, in)
		require.NoError(t, err)
		assert.Nil(t, got.Location)
		assert.NotNil(t, got.Dialogue)
		assert.Empty(t, got.Dialogue)

		loaded, err := repo.GetByID(ctx, got.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Nil(t, loaded.Location)
		assert.Empty(t, loaded.Dialogue)
	})

	t.Run("get missing returns nil without error", func(t *testing.T) {
		repo := newRepo(t)
		got, err := repo.GetByID(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("get all and by location", func(t *testing.T) {
		repo := newRepo(t)
		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		cave := Goblin()
		forest := Goblin()
		forest.Name = "Elf"
		forest.Location = strPtr("forest")
		nowhere := Goblin()
		nowhere.Name = "Ghost"
		nowhere.Location = nil

		for _, c := range []actor.NPCCreate{cave, forest, nowhere} {
			_, err := repo.Create(ctx, c)
			require.NoError(t, err)
		}

		all, err = repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		inForest, err := repo.GetByLocation(ctx, "forest")
		require.NoError(t, err)
		require.Len(t, inForest, 1)
		assert.Equal(t, "Elf", inForest[0].Name)

		// exact match only
		partial, err := repo.GetByLocation(ctx, "Forest")
		require.NoError(t, err)
		assert.Empty(t, partial)
	})

	t.Run("update applies only supplied fields", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, Goblin())
		require.NoError(t, err)

		got, err := repo.Update(ctx, actor.NPCUpdate{ID: created.ID, Name: actor.Some("Hobgoblin")})
		require.NoError(t, err)
		require.NotNil(t, got)

		want := *created
		want.Name = "Hobgoblin"
		assert.Equal(t, want, *got)

		loaded, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, want, *loaded)
	})

	t.Run("update clears and moves location index", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, Goblin())
		require.NoError(t, err)

		got, err := repo.Update(ctx, actor.NPCUpdate{ID: created.ID, Location: actor.Null[string]()})
		require.NoError(t, err)
		assert.Nil(t, got.Location)

		inCave, err := repo.GetByLocation(ctx, "cave")
		require.NoError(t, err)
		assert.Empty(t, inCave)

		_, err = repo.Update(ctx, actor.NPCUpdate{ID: created.ID, Location: actor.Some("swamp")})
		require.NoError(t, err)
		inSwamp, err := repo.GetByLocation(ctx, "swamp")
		require.NoError(t, err)
		assert.Len(t, inSwamp, 1)
	})

	t.Run("update missing returns nil", func(t *testing.T) {
		repo := newRepo(t)
		got, err := repo.Update(ctx, actor.NPCUpdate{ID: 404, Name: actor.Some("x")})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete twice", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, Goblin())
		require.NoError(t, err)

		ok, err := repo.Delete(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Delete(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		gone, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)

		inCave, err := repo.GetByLocation(ctx, "cave")
		require.NoError(t, err)
		assert.Empty(t, inCave)
	})

	t.Run("set location", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, Goblin())
		require.NoError(t, err)

		got, err := repo.SetLocation(ctx, created.ID, "forest")
		require.NoError(t, err)
		require.NotNil(t, got.Location)
		assert.Equal(t, "forest", *got.Location)

		inForest, err := repo.GetByLocation(ctx, "forest")
		require.NoError(t, err)
		assert.Len(t, inForest, 1)
		inCave, err := repo.GetByLocation(ctx, "cave")
		require.NoError(t, err)
		assert.Empty(t, inCave)

		missing, err := repo.SetLocation(ctx, 999, "forest")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("set health stores value as given", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, Goblin())
		require.NoError(t, err)

		got, err := repo.SetHealth(ctx, created.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Health)

		got, err = repo.SetHealth(ctx, created.ID, 250)
		require.NoError(t, err)
		assert.Equal(t, 250, got.Health)
		assert.Equal(t, created.Name, got.Name)

		got, err = repo.SetHealth(ctx, created.ID, math.MaxInt)
		require.NoError(t, err)
		assert.Equal(t, math.MaxInt, got.Health)

		loaded, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, math.MaxInt, loaded.Health)

		missing, err := repo.SetHealth(ctx, 999, 5)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("negative health is refused", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, Goblin())
		require.NoError(t, err)

		assertConstraint := func(t *testing.T, op string, err error) {
			t.Helper()
			var storeErr *storage.StoreError
			require.ErrorAs(t, err, &storeErr)
			assert.Equal(t, op, storeErr.Op)
			assert.ErrorIs(t, err, storage.ErrConstraint)
		}

		got, err := repo.SetHealth(ctx, created.ID, -1)
		assertConstraint(t, "set_health", err)
		assert.Nil(t, got)

		got, err = repo.Update(ctx, actor.NPCUpdate{ID: created.ID, Name: actor.Some("Wraith"), Health: actor.Some(-3)})
		assertConstraint(t, "update", err)
		assert.Nil(t, got)

		negative := Goblin()
		negative.Health = -5
		got, err = repo.Create(ctx, negative)
		assertConstraint(t, "create", err)
		assert.Nil(t, got)

		loaded, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, *created, *loaded)

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("ping", func(t *testing.T) {
		repo := newRepo(t)
		assert.NoError(t, repo.Ping(ctx))
	})
}
