package actor

import (
	"bytes"
	"encoding/json"
	"slices"
)

// NPC represents a non-player character record managed by the engine.
// It is also the full response shape returned by the API.
type NPC struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Health       int      `json:"health"` // never negative; zero means dead
	Strength     int      `json:"strength"`
	Agility      int      `json:"agility"`
	Intelligence int      `json:"intelligence"`
	Dialogue     []string `json:"dialogue"`
	IsHostile    bool     `json:"is_hostile"`
	Location     *string  `json:"location"` // nil means the NPC is nowhere
}

// IsAlive reports whether the NPC still has health left.
func (n *NPC) IsAlive() bool {
	return n.Health > 0
}

// LocationName returns the location tag, or "" when unset.
func (n *NPC) LocationName() string {
	if n.Location == nil {
		return ""
	}
	return *n.Location
}

// Clone returns a deep copy so callers can't mutate stored state.
func (n *NPC) Clone() *NPC {
	if n == nil {
		return nil
	}
	c := *n
	c.Dialogue = slices.Clone(n.Dialogue)
	if c.Dialogue == nil {
		c.Dialogue = []string{}
	}
	if n.Location != nil {
		loc := *n.Location
		c.Location = &loc
	}
	return &c
}

// NPCCreate is the request shape for creating an NPC. It carries every field
// except the store-assigned ID.
type NPCCreate struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Health       int      `json:"health"`
	Strength     int      `json:"strength"`
	Agility      int      `json:"agility"`
	Intelligence int      `json:"intelligence"`
	Dialogue     []string `json:"dialogue"`
	IsHostile    bool     `json:"is_hostile"`
	Location     *string  `json:"location,omitempty"`
}

// createRequired lists the creation keys that must be present and non-null.
// Location is the only optional field.
var createRequired = []string{
	"name",
	"description",
	"health",
	"strength",
	"agility",
	"intelligence",
	"dialogue",
	"is_hostile",
}

// MissingFieldError reports a required creation field that was absent or null.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return e.Field + " is required"
}

// MissingCreateFields returns the required keys that raw lacks or holds as
// null, in field order.
func MissingCreateFields(raw map[string]json.RawMessage) []string {
	var missing []string
	for _, key := range createRequired {
		value, ok := raw[key]
		if !ok || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			missing = append(missing, key)
		}
	}
	return missing
}

// DecodeNPCCreate strictly decodes one creation request. Unknown keys are
// rejected and every field except location must be supplied.
// A missing field is reported as a *MissingFieldError.
func DecodeNPCCreate(data []byte) (NPCCreate, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return NPCCreate{}, err
	}

	var create NPCCreate
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&create); err != nil {
		return NPCCreate{}, err
	}

	if missing := MissingCreateFields(raw); len(missing) > 0 {
		return NPCCreate{}, &MissingFieldError{Field: missing[0]}
	}
	return create, nil
}

// NPC builds the record the store persists for this request under the given id.
func (c NPCCreate) NPC(id int64) *NPC {
	n := &NPC{
		ID:           id,
		Name:         c.Name,
		Description:  c.Description,
		Health:       c.Health,
		Strength:     c.Strength,
		Agility:      c.Agility,
		Intelligence: c.Intelligence,
		Dialogue:     c.Dialogue,
		IsHostile:    c.IsHostile,
		Location:     c.Location,
	}
	return n.Clone()
}

// NPCUpdate is the partial-update request shape. Only supplied fields change.
// An explicit null location clears the tag.
type NPCUpdate struct {
	ID           int64              `json:"id"`
	Name         Optional[string]   `json:"name,omitzero"`
	Description  Optional[string]   `json:"description,omitzero"`
	Health       Optional[int]      `json:"health,omitzero"`
	Strength     Optional[int]      `json:"strength,omitzero"`
	Agility      Optional[int]      `json:"agility,omitzero"`
	Intelligence Optional[int]      `json:"intelligence,omitzero"`
	Dialogue     Optional[[]string] `json:"dialogue,omitzero"`
	IsHostile    Optional[bool]     `json:"is_hostile,omitzero"`
	Location     Optional[string]   `json:"location,omitzero"`
}

// NullFields lists the supplied fields that were set to null but can't be
// empty. Location is nullable and never reported.
func (u NPCUpdate) NullFields() []string {
	var fields []string
	check := func(name string, set, null bool) {
		if set && null {
			fields = append(fields, name)
		}
	}
	check("name", u.Name.Set, u.Name.Null)
	check("description", u.Description.Set, u.Description.Null)
	check("health", u.Health.Set, u.Health.Null)
	check("strength", u.Strength.Set, u.Strength.Null)
	check("agility", u.Agility.Set, u.Agility.Null)
	check("intelligence", u.Intelligence.Set, u.Intelligence.Null)
	check("dialogue", u.Dialogue.Set, u.Dialogue.Null)
	check("is_hostile", u.IsHostile.Set, u.IsHostile.Null)
	return fields
}

// Apply writes the supplied fields onto n in place.
func (u NPCUpdate) Apply(n *NPC) {
	if v, ok := u.Name.Get(); ok {
		n.Name = v
	}
	if v, ok := u.Description.Get(); ok {
		n.Description = v
	}
	if v, ok := u.Health.Get(); ok {
		n.Health = v
	}
	if v, ok := u.Strength.Get(); ok {
		n.Strength = v
	}
	if v, ok := u.Agility.Get(); ok {
		n.Agility = v
	}
	if v, ok := u.Intelligence.Get(); ok {
		n.Intelligence = v
	}
	if v, ok := u.Dialogue.Get(); ok {
		n.Dialogue = slices.Clone(v)
		if n.Dialogue == nil {
			n.Dialogue = []string{}
		}
	}
	if v, ok := u.IsHostile.Get(); ok {
		n.IsHostile = v
	}
	if u.Location.Set {
		if u.Location.Null {
			n.Location = nil
		} else {
			loc := u.Location.Value
			n.Location = &loc
		}
	}
}
