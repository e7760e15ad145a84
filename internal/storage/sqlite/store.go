// Package sqlite provides the SQLite-backed NPC repository.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/jwebster45206/npc-engine/internal/storage"
	"github.com/jwebster45206/npc-engine/internal/storage/sqlite/migrations"
	"github.com/jwebster45206/npc-engine/internal/storage/sqlitemigrate"
	"github.com/jwebster45206/npc-engine/pkg/actor"
)

const npcColumns = `id, name, description, health, strength, agility, intelligence, dialogue, is_hostile, location`

// Store persists NPCs in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Ensure Store implements the NPCRepository interface
var _ storage.NPCRepository = (*Store)(nil)

// Open opens a SQLite NPC store, creating parent directories as needed, and
// applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return storage.Wrap("ping", err)
	}
	return nil
}

// GetByID returns one NPC, or nil if none has that id.
func (s *Store) GetByID(ctx context.Context, id int64) (*actor.NPC, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+npcColumns+` FROM npcs WHERE id = ?`, id)
	npc, err := scanNPC(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storage.Wrap("get", err)
	}
	return npc, nil
}

// GetAll returns every NPC ordered by id.
func (s *Store) GetAll(ctx context.Context) ([]actor.NPC, error) {
	return s.query(ctx, "list", `SELECT `+npcColumns+` FROM npcs ORDER BY id`)
}

// GetByLocation returns NPCs whose location equals location exactly.
func (s *Store) GetByLocation(ctx context.Context, location string) ([]actor.NPC, error) {
	return s.query(ctx, "list_by_location",
		`SELECT `+npcColumns+` FROM npcs WHERE location = ? ORDER BY id`, location)
}

// Create inserts one NPC and returns it with the assigned id.
func (s *Store) Create(ctx context.Context, create actor.NPCCreate) (*actor.NPC, error) {
	dialogue, err := encodeDialogue(create.Dialogue)
	if err != nil {
		return nil, storage.Wrap("create", err)
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`INSERT INTO npcs (name, description, health, strength, agility, intelligence, dialogue, is_hostile, location)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+npcColumns,
		create.Name,
		create.Description,
		create.Health,
		create.Strength,
		create.Agility,
		create.Intelligence,
		dialogue,
		create.IsHostile,
		nullString(create.Location),
	)
	npc, err := scanNPC(row)
	if err != nil {
		return nil, storage.Wrap("create", classify(err))
	}
	return npc, nil
}

// Update writes only the supplied fields in a single statement. Returns nil
// if the id doesn't exist.
func (s *Store) Update(ctx context.Context, update actor.NPCUpdate) (*actor.NPC, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if v, ok := update.Name.Get(); ok {
		set("name", v)
	}
	if v, ok := update.Description.Get(); ok {
		set("description", v)
	}
	if v, ok := update.Health.Get(); ok {
		set("health", v)
	}
	if v, ok := update.Strength.Get(); ok {
		set("strength", v)
	}
	if v, ok := update.Agility.Get(); ok {
		set("agility", v)
	}
	if v, ok := update.Intelligence.Get(); ok {
		set("intelligence", v)
	}
	if v, ok := update.Dialogue.Get(); ok {
		dialogue, err := encodeDialogue(v)
		if err != nil {
			return nil, storage.Wrap("update", err)
		}
		set("dialogue", dialogue)
	}
	if v, ok := update.IsHostile.Get(); ok {
		set("is_hostile", v)
	}
	if update.Location.Set {
		if update.Location.Null {
			set("location", nil)
		} else {
			set("location", update.Location.Value)
		}
	}

	if len(sets) == 0 {
		return s.GetByID(ctx, update.ID)
	}

	args = append(args, update.ID)
	return s.updateOne(ctx, "update",
		`UPDATE npcs SET `+strings.Join(sets, ", ")+` WHERE id = ? RETURNING `+npcColumns, args...)
}

// Delete removes one NPC and reports whether a row was deleted.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM npcs WHERE id = ?`, id)
	if err != nil {
		return false, storage.Wrap("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storage.Wrap("delete", err)
	}
	return n > 0, nil
}

// SetLocation replaces the location tag.
func (s *Store) SetLocation(ctx context.Context, id int64, location string) (*actor.NPC, error) {
	return s.updateOne(ctx, "set_location",
		`UPDATE npcs SET location = ? WHERE id = ? RETURNING `+npcColumns, location, id)
}

// SetHealth stores health unchanged. Negative values are rejected by the
// table's CHECK constraint and reported as storage.ErrConstraint.
func (s *Store) SetHealth(ctx context.Context, id int64, health int) (*actor.NPC, error) {
	return s.updateOne(ctx, "set_health",
		`UPDATE npcs SET health = ? WHERE id = ? RETURNING `+npcColumns, health, id)
}

func (s *Store) updateOne(ctx context.Context, op, query string, args ...any) (*actor.NPC, error) {
	npc, err := scanNPC(s.sqlDB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storage.Wrap(op, classify(err))
	}
	return npc, nil
}

func (s *Store) query(ctx context.Context, op, query string, args ...any) ([]actor.NPC, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Wrap(op, err)
	}
	defer rows.Close()

	npcs := make([]actor.NPC, 0)
	for rows.Next() {
		npc, err := scanNPC(rows)
		if err != nil {
			return nil, storage.Wrap(op, err)
		}
		npcs = append(npcs, *npc)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap(op, err)
	}
	return npcs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNPC(row rowScanner) (*actor.NPC, error) {
	var (
		npc      actor.NPC
		dialogue string
		location sql.NullString
	)
	if err := row.Scan(
		&npc.ID,
		&npc.Name,
		&npc.Description,
		&npc.Health,
		&npc.Strength,
		&npc.Agility,
		&npc.Intelligence,
		&dialogue,
		&npc.IsHostile,
		&location,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(dialogue), &npc.Dialogue); err != nil {
		return nil, fmt.Errorf("decode dialogue for npc %d: %w", npc.ID, err)
	}
	if npc.Dialogue == nil {
		npc.Dialogue = []string{}
	}
	if location.Valid {
		loc := location.String
		npc.Location = &loc
	}
	return &npc, nil
}

func encodeDialogue(lines []string) (string, error) {
	if lines == nil {
		lines = []string{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("encode dialogue: %w", err)
	}
	return string(data), nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// classify tags constraint failures with storage.ErrConstraint, keeping the
// driver error in the chain.
func classify(err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT, sqlite3lib.SQLITE_CONSTRAINT_CHECK, sqlite3lib.SQLITE_CONSTRAINT_NOTNULL:
			return fmt.Errorf("%w: %w", storage.ErrConstraint, err)
		}
	}
	return err
}
