package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jwebster45206/npc-engine/pkg/actor"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// APIClient is a thin JSON client for the NPC endpoints.
type APIClient struct {
	client  *http.Client
	baseURL string
}

func NewAPIClient(client *http.Client, baseURL string) *APIClient {
	return &APIClient{client: client, baseURL: baseURL}
}

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func (c *APIClient) ListNPCs() ([]actor.NPC, error) {
	var npcs []actor.NPC
	if err := c.do(http.MethodGet, "/v1/npcs", &npcs); err != nil {
		return nil, fmt.Errorf("failed to list NPCs: %w", err)
	}
	return npcs, nil
}

func (c *APIClient) ListNPCsAt(location string) ([]actor.NPC, error) {
	var npcs []actor.NPC
	if err := c.do(http.MethodGet, "/v1/npcs/location/"+url.PathEscape(location), &npcs); err != nil {
		return nil, fmt.Errorf("failed to list NPCs at %s: %w", location, err)
	}
	return npcs, nil
}

func (c *APIClient) GetNPC(id int64) (*actor.NPC, error) {
	var npc actor.NPC
	if err := c.do(http.MethodGet, npcPath(id), &npc); err != nil {
		return nil, fmt.Errorf("failed to get NPC %d: %w", id, err)
	}
	return &npc, nil
}

func (c *APIClient) MoveNPC(id int64, location string) (*actor.NPC, error) {
	var npc actor.NPC
	path := npcPath(id) + "/move?new_location=" + url.QueryEscape(location)
	if err := c.do(http.MethodPatch, path, &npc); err != nil {
		return nil, fmt.Errorf("failed to move NPC %d: %w", id, err)
	}
	return &npc, nil
}

func (c *APIClient) DamageNPC(id int64, damage int) (*actor.NPC, error) {
	var npc actor.NPC
	path := npcPath(id) + "/damage?damage=" + strconv.Itoa(damage)
	if err := c.do(http.MethodPatch, path, &npc); err != nil {
		return nil, fmt.Errorf("failed to damage NPC %d: %w", id, err)
	}
	return &npc, nil
}

func (c *APIClient) DeleteNPC(id int64) error {
	if err := c.do(http.MethodDelete, npcPath(id), nil); err != nil {
		return fmt.Errorf("failed to delete NPC %d: %w", id, err)
	}
	return nil
}

func npcPath(id int64) string {
	return "/v1/npcs/" + strconv.FormatInt(id, 10)
}

// do sends a bodyless request and decodes a 200 response into out.
func (c *APIClient) do(method, path string, out any) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return errors.New(errorResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
