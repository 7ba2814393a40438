package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/wricardo/horserace/game/lobby"
	"github.com/wricardo/horserace/game/room"
	"github.com/wricardo/horserace/transport/websocket"
)

// Banner is the plain-text reply to any non-upgrade request outside the API.
const Banner = "Horse multiplayer server running"

// Lobby is the read side of the room registry.
type Lobby interface {
	Rooms(ctx context.Context) ([]room.Snapshot, error)
	Room(ctx context.Context, id string) (room.Snapshot, error)
}

// Server represents the HTTP front of the race server
type Server struct {
	lobby  Lobby
	hub    *websocket.Hub
	mcp    http.Handler
	router *mux.Router
	log    zerolog.Logger
}

// NewServer creates a new API server. mcpHandler may be nil, in which case
// /mcp is not served.
func NewServer(l Lobby, hub *websocket.Hub, mcpHandler http.Handler, logger zerolog.Logger) *Server {
	s := &Server{
		lobby:  l,
		hub:    hub,
		mcp:    mcpHandler,
		router: mux.NewRouter(),
		log:    logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods("GET")

	if s.mcp != nil {
		s.router.Handle("/mcp", s.mcp).Methods("POST")
	}

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Everything else: upgrade or banner
	s.router.PathPrefix("/").HandlerFunc(s.handleRoot)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if gws.IsWebSocketUpgrade(r) {
		s.hub.ServeWS(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(Banner))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.lobby.Rooms(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"rooms":       len(rooms),
		"connections": s.hub.Count(),
	})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.lobby.Rooms(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	snap, err := s.lobby.Room(r.Context(), id)
	switch {
	case errors.Is(err, lobby.ErrRoomNotFound):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.log.Debug().Err(err).Str("room", id).Msg("room lookup failed")
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, snap)
}
