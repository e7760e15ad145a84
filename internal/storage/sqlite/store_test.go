package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jwebster45206/npc-engine/internal/storage"
	"github.com/jwebster45206/npc-engine/internal/storage/storagetest"
	"github.com/jwebster45206/npc-engine/pkg/actor"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.NPCRepository {
		return openTempStore(t)
	})
}

func TestReopenKeepsRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "npcs.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	created, err := store.Create(context.Background(), storagetest.Goblin())
	if err != nil {
		t.Fatalf("create npc: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get npc: %v", err)
	}
	if got == nil || got.Name != "Goblin" {
		t.Fatalf("reopened npc = %+v, want Goblin", got)
	}
	if len(got.Dialogue) != 2 || got.Dialogue[1] != "Shiny!" {
		t.Fatalf("dialogue = %v, want [Grr Shiny!]", got.Dialogue)
	}
}

func TestSetHealthRejectsNegative(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	created, err := store.Create(context.Background(), storagetest.Goblin())
	if err != nil {
		t.Fatalf("create npc: %v", err)
	}

	_, err = store.SetHealth(context.Background(), created.ID, -1)
	var storeErr *storage.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("set negative health error = %v, want StoreError", err)
	}
	if !errors.Is(err, storage.ErrConstraint) {
		t.Fatalf("set negative health error = %v, want ErrConstraint", err)
	}

	got, err := store.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get npc: %v", err)
	}
	if got.Health != 10 {
		t.Fatalf("health = %d, want unchanged 10", got.Health)
	}
}

func TestUpdateWithNoFieldsReturnsCurrent(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	created, err := store.Create(context.Background(), storagetest.Goblin())
	if err != nil {
		t.Fatalf("create npc: %v", err)
	}

	got, err := store.Update(context.Background(), actor.NPCUpdate{ID: created.ID})
	if err != nil {
		t.Fatalf("update npc: %v", err)
	}
	if got == nil || got.Name != created.Name {
		t.Fatalf("update = %+v, want unchanged record", got)
	}

	missing, err := store.Update(context.Background(), actor.NPCUpdate{ID: 999})
	if err != nil {
		t.Fatalf("update missing npc: %v", err)
	}
	if missing != nil {
		t.Fatalf("update missing = %+v, want nil", missing)
	}
}

func TestClosedStoreReturnsStoreError(t *testing.T) {
	t.Parallel()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "npcs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	_, err = store.GetAll(context.Background())
	var storeErr *storage.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("list after close error = %v, want StoreError", err)
	}
	if storeErr.Op != "list" {
		t.Fatalf("op = %q, want list", storeErr.Op)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "npcs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
