// Package websocket provides the WebSocket transport for the race server.
//
// The websocket package implements:
//   - Connection upgrade for browser and bot clients
//   - Ordered delivery of inbound frames to a Dispatcher
//   - Non-blocking outbound sends, one JSON message per frame
//   - Keepalive pings and connection lifecycle management
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub tracks every
// open Client. Each connection gets a reader goroutine, which hands frames
// to the Dispatcher in the order they arrive, and a writer goroutine, which
// drains the client's send buffer and keeps the peer alive with pings.
//
// A Client satisfies room.Conn, so the lobby sends to it directly. Send
// never blocks the caller: it fails with ErrSendBufferFull when the peer is
// too slow and ErrConnClosed once the connection is gone. Neither drops the
// connection.
//
// Usage:
//
//	hub := websocket.NewHub(manager, logger)
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", hub.ServeWS)
//
// Connection Lifecycle:
//
// 1. Client connects and is registered with the hub
// 2. Each frame it sends is passed to Dispatcher.Message
// 3. Read failure or close calls Dispatcher.Disconnect exactly once
// 4. The client is unregistered and its writer stops
//
// When the hub's context is canceled every open client is closed with a
// close frame.
package websocket
