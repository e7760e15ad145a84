package services

import (
	"context"
	"log/slog"
	"math"

	"github.com/jwebster45206/npc-engine/internal/storage"
	"github.com/jwebster45206/npc-engine/pkg/actor"
)

// NPCService holds the business rules for NPC records and delegates
// persistence to an injected repository.
//
// Mutations check existence before acting and do not lock; two concurrent
// calls on the same id can interleave between the check and the write.
type NPCService struct {
	repo   storage.NPCRepository
	logger *slog.Logger
}

// NewNPCService creates a service bound to repo for the process lifetime.
func NewNPCService(repo storage.NPCRepository, logger *slog.Logger) *NPCService {
	return &NPCService{
		repo:   repo,
		logger: logger,
	}
}

// GetNPC returns the NPC, or nil if it doesn't exist.
func (s *NPCService) GetNPC(ctx context.Context, id int64) (*actor.NPC, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *NPCService) GetAllNPCs(ctx context.Context) ([]actor.NPC, error) {
	return s.repo.GetAll(ctx)
}

func (s *NPCService) GetNPCsByLocation(ctx context.Context, location string) ([]actor.NPC, error) {
	return s.repo.GetByLocation(ctx, location)
}

// CreateNPC validates the request and persists it.
func (s *NPCService) CreateNPC(ctx context.Context, create actor.NPCCreate) (*actor.NPC, error) {
	if create.Health <= 0 {
		return nil, NewValidationError("health", "health must be greater than 0")
	}

	npc, err := s.repo.Create(ctx, create)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("NPC created", "id", npc.ID, "name", npc.Name)
	return npc, nil
}

// UpdateNPC applies a partial update. Returns nil if the NPC doesn't exist.
func (s *NPCService) UpdateNPC(ctx context.Context, update actor.NPCUpdate) (*actor.NPC, error) {
	if fields := update.NullFields(); len(fields) > 0 {
		return nil, NewValidationError(fields[0], fields[0]+" cannot be null")
	}
	if h, ok := update.Health.Get(); ok && h < 0 {
		return nil, NewValidationError("health", "health cannot be negative")
	}

	existing, err := s.repo.GetByID(ctx, update.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	return s.repo.Update(ctx, update)
}

// DeleteNPC removes the NPC and reports whether it existed.
func (s *NPCService) DeleteNPC(ctx context.Context, id int64) (bool, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	if _, err := s.repo.Delete(ctx, id); err != nil {
		return false, err
	}
	s.logger.Debug("NPC deleted", "id", id)
	return true, nil
}

// MoveNPC sets a new location. Returns nil if the NPC doesn't exist.
func (s *NPCService) MoveNPC(ctx context.Context, id int64, location string) (*actor.NPC, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	return s.repo.SetLocation(ctx, id, location)
}

// ApplyDamage lowers health by damage, never below zero. Negative damage is
// not rejected and raises health, saturating at math.MaxInt.
// Returns nil if the NPC doesn't exist.
func (s *NPCService) ApplyDamage(ctx context.Context, id int64, damage int) (*actor.NPC, error) {
	npc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if npc == nil {
		return nil, nil
	}

	newHealth := damagedHealth(npc.Health, damage)
	updated, err := s.repo.SetHealth(ctx, id, newHealth)
	if err != nil {
		return nil, err
	}
	if updated != nil && !updated.IsAlive() {
		s.logger.Debug("NPC health reached zero", "id", id, "damage", damage)
	}
	return updated, nil
}

// Ping reports whether the backing store is reachable.
func (s *NPCService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// damagedHealth returns health minus damage clamped to [0, math.MaxInt].
// health is never negative, so only a heal can overflow.
func damagedHealth(health, damage int) int {
	if damage < 0 && health > math.MaxInt+damage {
		return math.MaxInt
	}
	return max(0, health-damage)
}
