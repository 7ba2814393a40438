// Package mcp provides a Model Context Protocol server for the race server.
//
// The mcp package implements:
//   - MCP tools that let AI agents observe live rooms
//   - A thin proxy to the REST API, so it can run in or out of process
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//   - list_rooms: every live room with phase and racer count
//   - get_room: one room's racers, seed, level and start time
//   - server_health: room and connection counts
//   - race_rules: match lifecycle and client message reference
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: mount the Client itself, it answers one JSON-RPC message per POST
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	router.Handle("/mcp", client)
package mcp
