package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSeed(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestValidateFile_StarterSeed(t *testing.T) {
	v := &NPCValidator{}
	if err := v.validateFile(filepath.Join("..", "..", "data", "seed", "starter_npcs.json")); err != nil {
		t.Fatalf("starter seed should be valid: %v", err)
	}
}

func TestValidateFile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		wantErr  string
	}{
		{
			name:     "wrong extension",
			filename: "npcs.yaml",
			content:  `[]`,
			wantErr:  ".json extension",
		},
		{
			name:     "bad filename",
			filename: "My-NPCs.json",
			content:  `[]`,
			wantErr:  "snake_case",
		},
		{
			name:     "invalid json",
			filename: "npcs.json",
			content:  `[{"name":`,
			wantErr:  "invalid JSON",
		},
		{
			name:     "unknown field",
			filename: "npcs.json",
			content:  `[{"name":"Goblin","health":5,"mana":3}]`,
			wantErr:  "strict JSON",
		},
		{
			name:     "empty file",
			filename: "npcs.json",
			content:  `[]`,
			wantErr:  "no NPCs",
		},
		{
			name:     "non-positive health",
			filename: "npcs.json",
			content:  `[{"name":"Ghost","health":0}]`,
			wantErr:  "NPC 0 (Ghost) has health 0",
		},
		{
			name:     "empty name",
			filename: "npcs.json",
			content:  `[{"name":"","health":3}]`,
			wantErr:  "empty name",
		},
		{
			name:     "missing fields",
			filename: "npcs.json",
			content:  `[{"name":"Goblin","health":3,"strength":1,"agility":1,"intelligence":1,"dialogue":[]}]`,
			wantErr:  "NPC 0 (Goblin) is missing required fields: description, is_hostile",
		},
		{
			name:     "null dialogue",
			filename: "npcs.json",
			content:  `[{"name":"Goblin","description":"","health":3,"strength":1,"agility":1,"intelligence":1,"dialogue":null,"is_hostile":true}]`,
			wantErr:  "missing required fields: dialogue",
		},
		{
			name:     "padded location",
			filename: "npcs.json",
			content:  `[{"name":"Goblin","health":3,"location":" cave"}]`,
			wantErr:  "whitespace",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &NPCValidator{}
			err := v.validateFile(writeSeed(t, tt.filename, tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateFile_ReportsEveryRecord(t *testing.T) {
	v := &NPCValidator{}
	err := v.validateFile(writeSeed(t, "npcs.json", `[
		{"name":"A","description":"","health":-1,"strength":1,"agility":1,"intelligence":1,"dialogue":[],"is_hostile":false},
		{"name":"B","description":"","health":2,"strength":1,"agility":1,"intelligence":1,"dialogue":[],"is_hostile":false},
		{"name":"","description":"","health":0,"strength":1,"agility":1,"intelligence":1,"dialogue":[],"is_hostile":false}
	]`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got := len(v.errors); got != 3 {
		t.Errorf("expected 3 errors, got %d: %v", got, v.errors)
	}
}
