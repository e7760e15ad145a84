package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jwebster45206/npc-engine/internal/logger"
	"github.com/jwebster45206/npc-engine/internal/services"
	"github.com/jwebster45206/npc-engine/pkg/actor"
)

const npcsPath = "/v1/npcs"

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type NPCHandler struct {
	service *services.NPCService
	logger  *slog.Logger
}

func NewNPCHandler(logger *slog.Logger, service *services.NPCService) *NPCHandler {
	return &NPCHandler{
		service: service,
		logger:  logger,
	}
}

// ServeHTTP handles HTTP requests for NPC operations
// Routes:
// GET    /v1/npcs                              - List all NPCs
// POST   /v1/npcs                              - Create NPC
// PUT    /v1/npcs                              - Partial update, id in body
// GET    /v1/npcs/location/{location}          - List NPCs at a location
// GET    /v1/npcs/{id}                         - Read NPC
// DELETE /v1/npcs/{id}                         - Delete NPC
// PATCH  /v1/npcs/{id}/move?new_location={loc} - Move NPC
// PATCH  /v1/npcs/{id}/damage?damage={n}       - Apply damage
func (h *NPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	rest := strings.Trim(strings.TrimPrefix(r.URL.EscapedPath(), npcsPath), "/")
	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		case http.MethodPut:
			h.handleUpdate(w, r)
		default:
			h.methodNotAllowed(w, r, "GET, POST, PUT")
		}
		return
	}

	segments := strings.Split(rest, "/")
	if segments[0] == "location" && len(segments) == 2 {
		if r.Method != http.MethodGet {
			h.methodNotAllowed(w, r, "GET")
			return
		}
		location, err := url.PathUnescape(segments[1])
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid location")
			return
		}
		h.handleListByLocation(w, r, location)
		return
	}

	id, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil {
		h.logger.Warn("Invalid NPC ID", "id", segments[0], "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid NPC ID format")
		return
	}

	switch {
	case len(segments) == 1:
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			h.methodNotAllowed(w, r, "GET, DELETE")
		}
	case len(segments) == 2 && segments[1] == "move":
		if r.Method != http.MethodPatch {
			h.methodNotAllowed(w, r, "PATCH")
			return
		}
		h.handleMove(w, r, id)
	case len(segments) == 2 && segments[1] == "damage":
		if r.Method != http.MethodPatch {
			h.methodNotAllowed(w, r, "PATCH")
			return
		}
		h.handleDamage(w, r, id)
	default:
		h.writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *NPCHandler) handleList(w http.ResponseWriter, r *http.Request) {
	npcs, err := h.service.GetAllNPCs(r.Context())
	if err != nil {
		h.serverError(w, "Failed to list NPCs", err)
		return
	}
	h.writeJSON(w, http.StatusOK, npcs)
}

func (h *NPCHandler) handleListByLocation(w http.ResponseWriter, r *http.Request, location string) {
	npcs, err := h.service.GetNPCsByLocation(r.Context(), location)
	if err != nil {
		h.serverError(w, "Failed to list NPCs", err, "location", location)
		return
	}
	h.writeJSON(w, http.StatusOK, npcs)
}

func (h *NPCHandler) handleRead(w http.ResponseWriter, r *http.Request, id int64) {
	npc, err := h.service.GetNPC(r.Context(), id)
	if err != nil {
		h.serverError(w, "Failed to load NPC", err, "id", id)
		return
	}
	if npc == nil {
		h.writeError(w, http.StatusNotFound, "NPC not found")
		return
	}
	h.writeJSON(w, http.StatusOK, npc)
}

func (h *NPCHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Warn("Failed to read request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body. Expected NPC JSON.")
		return
	}

	request, err := actor.DecodeNPCCreate(body)
	if err != nil {
		var missing *actor.MissingFieldError
		if errors.As(err, &missing) {
			h.writeError(w, http.StatusBadRequest, missing.Error())
			return
		}
		h.logger.Warn("Invalid request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body. Expected NPC JSON.")
		return
	}

	npc, err := h.service.CreateNPC(r.Context(), request)
	if err != nil {
		h.handleServiceError(w, "Failed to create NPC", err)
		return
	}

	h.logger.Info("NPC created", "id", npc.ID, "name", npc.Name)
	h.writeJSON(w, http.StatusCreated, npc)
}

func (h *NPCHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var request actor.NPCUpdate
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body. Expected NPC update JSON.")
		return
	}
	if request.ID == 0 {
		h.writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	npc, err := h.service.UpdateNPC(r.Context(), request)
	if err != nil {
		h.handleServiceError(w, "Failed to update NPC", err, "id", request.ID)
		return
	}
	if npc == nil {
		h.writeError(w, http.StatusNotFound, "NPC not found")
		return
	}
	h.writeJSON(w, http.StatusOK, npc)
}

func (h *NPCHandler) handleDelete(w http.ResponseWriter, r *http.Request, id int64) {
	deleted, err := h.service.DeleteNPC(r.Context(), id)
	if err != nil {
		h.serverError(w, "Failed to delete NPC", err, "id", id)
		return
	}
	if !deleted {
		h.writeError(w, http.StatusNotFound, "NPC not found")
		return
	}

	h.logger.Info("NPC deleted", "id", id)
	h.writeJSON(w, http.StatusOK, MessageResponse{Message: "NPC deleted"})
}

func (h *NPCHandler) handleMove(w http.ResponseWriter, r *http.Request, id int64) {
	query := r.URL.Query()
	if !query.Has("new_location") {
		h.writeError(w, http.StatusBadRequest, "new_location query parameter is required")
		return
	}

	npc, err := h.service.MoveNPC(r.Context(), id, query.Get("new_location"))
	if err != nil {
		h.serverError(w, "Failed to move NPC", err, "id", id)
		return
	}
	if npc == nil {
		h.writeError(w, http.StatusNotFound, "NPC not found")
		return
	}
	h.writeJSON(w, http.StatusOK, npc)
}

func (h *NPCHandler) handleDamage(w http.ResponseWriter, r *http.Request, id int64) {
	damage, err := strconv.Atoi(r.URL.Query().Get("damage"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "damage query parameter must be an integer")
		return
	}

	npc, err := h.service.ApplyDamage(r.Context(), id, damage)
	if err != nil {
		h.serverError(w, "Failed to apply damage", err, "id", id)
		return
	}
	if npc == nil {
		h.writeError(w, http.StatusNotFound, "NPC not found")
		return
	}
	h.writeJSON(w, http.StatusOK, npc)
}

// handleServiceError maps validation failures to 400 and everything else to 500.
func (h *NPCHandler) handleServiceError(w http.ResponseWriter, msg string, err error, attrs ...any) {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		h.logger.Warn("NPC validation failed", "field", ve.Field, "error", ve.Message)
		h.writeError(w, http.StatusBadRequest, ve.Message)
		return
	}
	h.serverError(w, msg, err, attrs...)
}

func (h *NPCHandler) serverError(w http.ResponseWriter, msg string, err error, attrs ...any) {
	logger.WithError(h.logger, err).Error(msg, attrs...)
	h.writeError(w, http.StatusInternalServerError, msg)
}

func (h *NPCHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	h.logger.Warn("Method not allowed for NPC endpoint", "method", r.Method, "path", r.URL.Path)
	w.Header().Set("Allow", allowed)
	h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: "+allowed)
}

func (h *NPCHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}

func (h *NPCHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
