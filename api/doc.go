// Package api provides the HTTP front of the race server.
//
// The api package implements:
//   - Read-only REST endpoints over the room registry
//   - WebSocket upgrade handling for game clients
//   - Mounting of the MCP JSON-RPC endpoint
//
// Endpoints:
//
//   - GET /api/health - {"status":"healthy","rooms":n,"connections":n}
//   - GET /api/rooms - {"count":n,"rooms":[snapshot...]}
//   - GET /api/rooms/{id} - one room snapshot, 404 when unknown
//   - POST /mcp - MCP JSON-RPC, when an MCP handler is configured
//   - /ws - WebSocket upgrade
//
// Any other path upgrades to a game WebSocket when the request asks for it
// and otherwise answers 200 with a plain-text banner, so a browser or load
// balancer probing the server gets a readable reply.
//
// Room codes in /api/rooms/{id} are case-insensitive.
//
// Error Handling:
//
// Errors are returned as JSON with an appropriate HTTP status code:
//
//	{"error": "room not found"}
//
// A 503 means the lobby has stopped and can no longer answer.
package api
