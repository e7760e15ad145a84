package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwebster45206/npc-engine/pkg/actor"
)

// NPCRepository defines the persistence operations the NPC service depends on.
// A missing record is reported as a nil result (or false for Delete), never as
// an error. Errors are reserved for store failures and are *StoreError values.
type NPCRepository interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// GetByID returns nil if the NPC doesn't exist
	GetByID(ctx context.Context, id int64) (*actor.NPC, error)
	GetAll(ctx context.Context) ([]actor.NPC, error)
	// GetByLocation matches the location tag exactly
	GetByLocation(ctx context.Context, location string) ([]actor.NPC, error)

	// Create persists a new record and returns it with its assigned ID
	Create(ctx context.Context, npc actor.NPCCreate) (*actor.NPC, error)
	// Update applies only the supplied fields; returns nil if the ID doesn't exist
	Update(ctx context.Context, update actor.NPCUpdate) (*actor.NPC, error)
	Delete(ctx context.Context, id int64) (bool, error)

	SetLocation(ctx context.Context, id int64, location string) (*actor.NPC, error)
	// SetHealth stores health as given; clamping is the caller's job.
	// Negative values are refused with ErrConstraint.
	SetHealth(ctx context.Context, id int64, health int) (*actor.NPC, error)
}

// ErrConstraint marks writes that break a record invariant. Every backend
// refuses a negative health on Create, Update and SetHealth with a
// *StoreError wrapping it.
var ErrConstraint = errors.New("constraint violation")

// CheckHealth returns an ErrConstraint error for a negative health.
func CheckHealth(health int) error {
	if health < 0 {
		return fmt.Errorf("%w: health %d is negative", ErrConstraint, health)
	}
	return nil
}

// StoreError wraps a connectivity or constraint failure from a backend.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Wrap returns a *StoreError for op, or nil when err is nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
