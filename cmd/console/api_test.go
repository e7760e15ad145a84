package main

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/jwebster45206/npc-engine/internal/handlers"
	"github.com/jwebster45206/npc-engine/internal/services"
	"github.com/jwebster45206/npc-engine/internal/storage"
	"github.com/jwebster45206/npc-engine/pkg/actor"
)

func newTestAPI(t *testing.T) (*APIClient, *services.NPCService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	svc := services.NewNPCService(storage.NewMemoryStorage(), logger)

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(svc, logger))
	npcHandler := handlers.NewNPCHandler(logger, svc)
	mux.Handle("/v1/npcs", npcHandler)
	mux.Handle("/v1/npcs/", npcHandler)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	if !testConnection(server.Client(), server.URL) {
		t.Fatal("test server health check failed")
	}
	return NewAPIClient(server.Client(), server.URL), svc
}

func TestAPIClient_RoundTrip(t *testing.T) {
	api, svc := newTestAPI(t)

	cave := "old mill"
	created, err := svc.CreateNPC(t.Context(), actor.NPCCreate{Name: "Miller", Health: 8, Location: &cave})
	if err != nil {
		t.Fatalf("create npc: %v", err)
	}

	npcs, err := api.ListNPCs()
	if err != nil || len(npcs) != 1 {
		t.Fatalf("ListNPCs = %v, %v", npcs, err)
	}

	at, err := api.ListNPCsAt("old mill")
	if err != nil || len(at) != 1 {
		t.Fatalf("ListNPCsAt = %v, %v", at, err)
	}

	moved, err := api.MoveNPC(created.ID, "town square")
	if err != nil {
		t.Fatalf("MoveNPC: %v", err)
	}
	if moved.LocationName() != "town square" {
		t.Errorf("location = %q, want town square", moved.LocationName())
	}

	hit, err := api.DamageNPC(created.ID, 20)
	if err != nil {
		t.Fatalf("DamageNPC: %v", err)
	}
	if hit.Health != 0 {
		t.Errorf("health = %d, want 0", hit.Health)
	}

	if err := api.DeleteNPC(created.ID); err != nil {
		t.Fatalf("DeleteNPC: %v", err)
	}
	_, err = api.GetNPC(created.ID)
	if err == nil || !strings.Contains(err.Error(), "NPC not found") {
		t.Errorf("GetNPC after delete error = %v, want NPC not found", err)
	}
}
