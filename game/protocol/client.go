package protocol

import (
	"encoding/json"
	"fmt"
)

// Client-side frames, used by the racer bot and by tests that speak the
// protocol over a real connection.

type joinFrame struct {
	Type MessageType `json:"type"`
	JoinMessage
}

type stateUpdateFrame struct {
	Type MessageType `json:"type"`
	StatePatch
}

type finishedFrame struct {
	Type MessageType `json:"type"`
	FinishedMessage
}

func EncodeJoin(playerName, roomCode string) ([]byte, error) {
	return json.Marshal(joinFrame{Type: TypeJoin, JoinMessage: JoinMessage{PlayerName: playerName, RoomCode: roomCode}})
}

func EncodeStateUpdate(patch StatePatch) ([]byte, error) {
	return json.Marshal(stateUpdateFrame{Type: TypeStateUpdate, StatePatch: patch})
}

func EncodeBoostUsed() ([]byte, error) {
	return json.Marshal(Envelope{Type: TypeBoostUsed})
}

func EncodePlayerFinished(finalDistance *float64) ([]byte, error) {
	return json.Marshal(finishedFrame{Type: TypePlayerFinished, FinishedMessage: FinishedMessage{FinalDistance: finalDistance}})
}

// ServerMessage is the union of every server frame, as seen by a client.
type ServerMessage struct {
	Type        MessageType   `json:"type"`
	RoomID      string        `json:"roomId,omitempty"`
	PlayerID    string        `json:"playerId,omitempty"`
	Players     []PlayerState `json:"players,omitempty"`
	Seed        int           `json:"seed,omitempty"`
	LevelConfig *LevelConfig  `json:"levelConfig,omitempty"`
	StartedAt   int64         `json:"startedAt,omitempty"`
	Rankings    []Ranking     `json:"rankings,omitempty"`
}

// DecodeServer parses a server frame on the client side.
func DecodeServer(raw []byte) (ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ServerMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch msg.Type {
	case TypeRoomJoined, TypeGameStart, TypePlayersState, TypeGameEnd:
		return msg, nil
	default:
		return ServerMessage{}, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
}

// Float64 and friends build StatePatch fields inline.
func Float64(v float64) *float64 { return &v }
func Int(v int) *int             { return &v }
func String(v string) *string    { return &v }
func Bool(v bool) *bool          { return &v }
