package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/horserace/game/room"
)

// Client is a thin MCP server that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API at baseURL
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Horse Race Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Horse Race multiplayer server - MCP Interface

This is a thin client that proxies all requests to the server's REST API.
Players race in rooms of up to four over a WebSocket connection; these tools
let you observe the rooms.

AVAILABLE TOOLS:
- list_rooms: List every live room with its phase and racers
- get_room: Detailed view of one room (room_id is the 4-character code)
- server_health: Room and connection counts
- race_rules: How a match runs and what the client protocol looks like`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List all live race rooms",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get details of one race room, including every racer's progress",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Room code, case-insensitive",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleGetRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_health",
		Description: "Report server status with room and connection counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleHealth)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "race_rules",
		Description: "Explain the match lifecycle and the WebSocket message protocol",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleRaceRules)
}

// GetMCPServer returns the underlying MCP server, for stdio serving.
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// ServeHTTP answers one JSON-RPC message per POST.
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := c.mcpServer.HandleMessage(r.Context(), body)
	if response == nil {
		// Notifications have no reply.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	responseData, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(responseData)
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int             `json:"count"`
		Rooms []room.Snapshot `json:"rooms"`
	}

	if err := c.apiCall(ctx, "GET", "/api/rooms", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoomList(response.Rooms)), nil
}

func (c *Client) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	roomID, _ := args["room_id"].(string)
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return mcp.NewToolResultError("room_id is required"), nil
	}

	var snap room.Snapshot
	if err := c.apiCall(ctx, "GET", "/api/rooms/"+url.PathEscape(roomID), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoom(snap)), nil
}

func (c *Client) handleHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var health struct {
		Status      string `json:"status"`
		Rooms       int    `json:"rooms"`
		Connections int    `json:"connections"`
	}

	if err := c.apiCall(ctx, "GET", "/api/health", nil, &health); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Status: %s\nRooms: %d\nConnections: %d\n",
		health.Status, health.Rooms, health.Connections)), nil
}

func (c *Client) handleRaceRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(raceRules), nil
}

const raceRules = `Horse Race - Match Rules

ROOMS:
- Up to 4 racers per room, identified by a 4-character code.
- Joining without a code puts you in the first room still waiting for racers.
- Joining with a code uses that room if it has a free seat, otherwise a new room is opened.

MATCH LIFECYCLE:
- WAITING: the first racer starts a 10 second countdown. A 4th racer starts the match at once.
- ACTIVE: every racer gets game_start with the shared seed and level. The match runs at most 120 seconds.
- ENDED: when everyone has finished, or time runs out, game_end carries the rankings.
- The full roster is pushed to everyone every 200ms as players_state.

CLIENT MESSAGES (JSON text frames):
- {"type":"join","playerName":"Ann","roomCode":"ABCD"}      roomCode optional
- {"type":"state_update","distance":120,"coins":3,"speed":310,"city":"苏州"}   every field optional
- {"type":"boost_used"}                                      boost lasts 3 seconds
- {"type":"player_finished","finalDistance":3000}           finalDistance optional

SERVER MESSAGES:
- room_joined {roomId, playerId, players}
- game_start {seed, levelConfig, startedAt}
- players_state {players}
- game_end {rankings}

RANKING:
- Finished racers are scored by final distance, others by current distance. Higher is better.
`

// Formatting helpers

func formatRoomList(rooms []room.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Live Rooms (%d):\n\n", len(rooms))
	for _, r := range rooms {
		fmt.Fprintf(&b, "- %s [%s] %d/%d racers\n", r.ID, r.Phase, r.PlayerCount, r.Capacity)
	}
	return b.String()
}

func formatRoom(r room.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room %s\n", r.ID)
	fmt.Fprintf(&b, "Phase: %s\n", r.Phase)
	fmt.Fprintf(&b, "Racers: %d/%d\n", r.PlayerCount, r.Capacity)
	if r.Seed != nil {
		fmt.Fprintf(&b, "Seed: %d\n", *r.Seed)
	}
	if r.LevelConfig != nil {
		fmt.Fprintf(&b, "Level: %s (base speed %.0f, +%.0f)\n",
			r.LevelConfig.Name, r.LevelConfig.BaseSpeed, r.LevelConfig.SpeedIncrease)
	}
	if r.StartedAt != nil {
		fmt.Fprintf(&b, "Started: %s\n", r.StartedAt.Format("15:04:05"))
	}

	b.WriteString("\n")
	for _, p := range r.Players {
		status := "racing"
		if p.Finished {
			status = fmt.Sprintf("finished at %.0f", p.FinalDistance)
		}
		boost := ""
		if p.BoostActive {
			boost = " BOOST"
		}
		fmt.Fprintf(&b, "- %s (%s): %.0f m, %d coins, %s, %s%s\n",
			p.Name, p.ID, p.Distance, p.Coins, p.City, status, boost)
	}
	return b.String()
}
