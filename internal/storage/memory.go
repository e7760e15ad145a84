package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/jwebster45206/npc-engine/pkg/actor"
)

// MemoryStorage is a map-backed NPCRepository for tests and local runs
type MemoryStorage struct {
	mu        sync.RWMutex
	npcs      map[int64]*actor.NPC
	nextID    int64
	pingError error
	failures  map[string]error

	calls map[string]int
}

// Ensure MemoryStorage implements NPCRepository interface
var _ NPCRepository = (*MemoryStorage)(nil)

// NewMemoryStorage creates a new in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		npcs:     make(map[int64]*actor.NPC),
		nextID:   1,
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// SetPingSuccess configures the storage to succeed on ping
func (m *MemoryStorage) SetPingSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = nil
}

// SetPingError configures the storage to fail on ping with the given error
func (m *MemoryStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// FailOn makes the named operation (e.g. "create", "get") return a StoreError
// wrapping err. Passing a nil err clears the failure.
func (m *MemoryStorage) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns how many times the named operation has been invoked
func (m *MemoryStorage) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// Len returns the number of stored NPCs
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.npcs)
}

// begin records the call and returns the injected failure, if any.
// Callers must hold the write lock.
func (m *MemoryStorage) begin(op string) error {
	m.calls[op]++
	return Wrap(op, m.failures[op])
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) GetByID(ctx context.Context, id int64) (*actor.NPC, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("get"); err != nil {
		return nil, err
	}
	npc, ok := m.npcs[id]
	if !ok {
		return nil, nil
	}
	return npc.Clone(), nil
}

func (m *MemoryStorage) GetAll(ctx context.Context) ([]actor.NPC, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("list"); err != nil {
		return nil, err
	}
	return m.collect(func(*actor.NPC) bool { return true }), nil
}

func (m *MemoryStorage) GetByLocation(ctx context.Context, location string) ([]actor.NPC, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("list_by_location"); err != nil {
		return nil, err
	}
	return m.collect(func(n *actor.NPC) bool {
		return n.Location != nil && *n.Location == location
	}), nil
}

func (m *MemoryStorage) collect(keep func(*actor.NPC) bool) []actor.NPC {
	out := make([]actor.NPC, 0, len(m.npcs))
	for _, n := range m.npcs {
		if keep(n) {
			out = append(out, *n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryStorage) Create(ctx context.Context, npc actor.NPCCreate) (*actor.NPC, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("create"); err != nil {
		return nil, err
	}
	if err := CheckHealth(npc.Health); err != nil {
		return nil, Wrap("create", err)
	}
	created := npc.NPC(m.nextID)
	m.npcs[created.ID] = created
	m.nextID++
	return created.Clone(), nil
}

func (m *MemoryStorage) Update(ctx context.Context, update actor.NPCUpdate) (*actor.NPC, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("update"); err != nil {
		return nil, err
	}
	npc, ok := m.npcs[update.ID]
	if !ok {
		return nil, nil
	}
	updated := npc.Clone()
	update.Apply(updated)
	if err := CheckHealth(updated.Health); err != nil {
		return nil, Wrap("update", err)
	}
	m.npcs[update.ID] = updated
	return updated.Clone(), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("delete"); err != nil {
		return false, err
	}
	if _, ok := m.npcs[id]; !ok {
		return false, nil
	}
	delete(m.npcs, id)
	return true, nil
}

func (m *MemoryStorage) SetLocation(ctx context.Context, id int64, location string) (*actor.NPC, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("set_location"); err != nil {
		return nil, err
	}
	npc, ok := m.npcs[id]
	if !ok {
		return nil, nil
	}
	loc := location
	npc.Location = &loc
	return npc.Clone(), nil
}

func (m *MemoryStorage) SetHealth(ctx context.Context, id int64, health int) (*actor.NPC, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("set_health"); err != nil {
		return nil, err
	}
	npc, ok := m.npcs[id]
	if !ok {
		return nil, nil
	}
	if err := CheckHealth(health); err != nil {
		return nil, Wrap("set_health", err)
	}
	npc.Health = health
	return npc.Clone(), nil
}
