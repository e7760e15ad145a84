package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/npc-engine/pkg/actor"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <npcs.json>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	validator := &NPCValidator{}

	if err := validator.validateFile(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("NPC seed file is valid!")
}

// NPCValidator checks seed files: a JSON array of NPC create requests.
type NPCValidator struct {
	errors []string
}

func (v *NPCValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".json") {
		return fmt.Errorf("seed file must have .json extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ".json")
	if !isValidFilename(nameWithoutExt) {
		return fmt.Errorf("seed filename '%s' must be lowercase snake_case (e.g., starter_npcs.json)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil

	if !json.Valid(data) {
		return fmt.Errorf("file %s contains invalid JSON", filename)
	}

	var npcs []actor.NPCCreate
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&npcs); err != nil {
		return fmt.Errorf("file %s failed strict JSON unmarshaling: %w", filename, err)
	}

	var records []map[string]json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("file %s failed JSON unmarshaling: %w", filename, err)
	}

	v.validateNPCs(npcs, records)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}

	return nil
}

// validateNPCs checks each decoded record; records holds the same array as
// raw keys so absent fields can be told apart from zero values.
func (v *NPCValidator) validateNPCs(npcs []actor.NPCCreate, records []map[string]json.RawMessage) {
	if len(npcs) == 0 {
		v.addError("file contains no NPCs")
		return
	}

	for i, npc := range npcs {
		label := fmt.Sprintf("NPC %d", i)
		if npc.Name != "" {
			label = fmt.Sprintf("NPC %d (%s)", i, npc.Name)
		}

		if missing := actor.MissingCreateFields(records[i]); len(missing) > 0 {
			v.addError(fmt.Sprintf("%s is missing required fields: %s", label, strings.Join(missing, ", ")))
		}
		if strings.TrimSpace(npc.Name) == "" {
			v.addError(label + " has an empty name")
		}
		if npc.Health <= 0 {
			v.addError(fmt.Sprintf("%s has health %d, must be greater than 0", label, npc.Health))
		}
		if npc.Location != nil {
			v.validateLocation(label, *npc.Location)
		}
		for j, line := range npc.Dialogue {
			if strings.TrimSpace(line) == "" {
				v.addError(fmt.Sprintf("%s has an empty dialogue line at index %d", label, j))
			}
		}
	}
}

// validateLocation flags tags that would never match an exact lookup.
func (v *NPCValidator) validateLocation(label, location string) {
	if location == "" {
		v.addError(label + " has an empty location, omit the field instead")
		return
	}
	if strings.TrimSpace(location) != location {
		v.addError(fmt.Sprintf("%s location '%s' has leading or trailing whitespace", label, location))
	}
}

func (v *NPCValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func isValidFilename(name string) bool {
	return validFilenameRegex.MatchString(name)
}
