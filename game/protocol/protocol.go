package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType is the value of the "type" tag carried by every frame.
type MessageType string

const (
	TypeJoin           MessageType = "join"
	TypeRoomJoined     MessageType = "room_joined"
	TypeGameStart      MessageType = "game_start"
	TypeStateUpdate    MessageType = "state_update"
	TypePlayersState   MessageType = "players_state"
	TypeBoostUsed      MessageType = "boost_used"
	TypePlayerFinished MessageType = "player_finished"
	TypeGameEnd        MessageType = "game_end"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

// Envelope is decoded first to learn which payload follows.
type Envelope struct {
	Type MessageType `json:"type"`
}

// JoinMessage asks the server to seat the sender in a room.
type JoinMessage struct {
	PlayerName string `json:"playerName"`
	RoomCode   string `json:"roomCode,omitempty"`
}

// StatePatch is a partial racer state. Nil fields leave the previous value untouched.
type StatePatch struct {
	Distance    *float64 `json:"distance,omitempty"`
	Coins       *int     `json:"coins,omitempty"`
	Speed       *float64 `json:"speed,omitempty"`
	City        *string  `json:"city,omitempty"`
	BoostActive *bool    `json:"boostActive,omitempty"`
}

// FinishedMessage reports the sender crossed the line.
type FinishedMessage struct {
	FinalDistance *float64 `json:"finalDistance,omitempty"`
}

// Inbound is a decoded client frame. Exactly one payload pointer is set for
// the kinds that carry one; boost_used carries none.
type Inbound struct {
	Type     MessageType
	Join     *JoinMessage
	State    *StatePatch
	Finished *FinishedMessage
}

// Decode parses a client frame. Frames that are not JSON objects wrap
// ErrMalformed; frames whose type is not accepted from clients wrap ErrUnknownType.
func Decode(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	in := Inbound{Type: env.Type}
	switch env.Type {
	case TypeJoin:
		in.Join = &JoinMessage{}
		if err := json.Unmarshal(raw, in.Join); err != nil {
			return Inbound{}, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
	case TypeStateUpdate:
		in.State = &StatePatch{}
		if err := json.Unmarshal(raw, in.State); err != nil {
			return Inbound{}, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
	case TypePlayerFinished:
		in.Finished = &FinishedMessage{}
		if err := json.Unmarshal(raw, in.Finished); err != nil {
			return Inbound{}, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
	case TypeBoostUsed:
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return in, nil
}

// PlayerState is the public view of one racer, shared with every room member.
type PlayerState struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Distance      float64 `json:"distance"`
	Coins         int     `json:"coins"`
	Speed         float64 `json:"speed"`
	City          string  `json:"city"`
	BoostActive   bool    `json:"boostActive"`
	Finished      bool    `json:"finished"`
	FinalDistance float64 `json:"finalDistance"`
}

// Ranking is a PlayerState with its final standing.
type Ranking struct {
	PlayerState
	Rank int `json:"rank"`
}

// LevelConfig is the match parameter snapshot sent with game_start.
// TargetDistance is nil for open-ended races and encodes as null.
type LevelConfig struct {
	Name           string   `json:"name"`
	TargetDistance *float64 `json:"targetDistance"`
	BaseSpeed      float64  `json:"baseSpeed"`
	SpeedIncrease  float64  `json:"speedIncrease"`
	SpawnInterval  int      `json:"spawnInterval"`
}

type RoomJoined struct {
	Type     MessageType   `json:"type"`
	RoomID   string        `json:"roomId"`
	PlayerID string        `json:"playerId"`
	Players  []PlayerState `json:"players"`
}

type GameStart struct {
	Type        MessageType `json:"type"`
	Seed        int         `json:"seed"`
	LevelConfig LevelConfig `json:"levelConfig"`
	StartedAt   int64       `json:"startedAt"`
}

type PlayersState struct {
	Type    MessageType   `json:"type"`
	Players []PlayerState `json:"players"`
}

type GameEnd struct {
	Type     MessageType `json:"type"`
	Rankings []Ranking   `json:"rankings"`
}

func NewRoomJoined(roomID, playerID string, players []PlayerState) RoomJoined {
	return RoomJoined{Type: TypeRoomJoined, RoomID: roomID, PlayerID: playerID, Players: players}
}

func NewGameStart(seed int, level LevelConfig, startedAt int64) GameStart {
	return GameStart{Type: TypeGameStart, Seed: seed, LevelConfig: level, StartedAt: startedAt}
}

func NewPlayersState(players []PlayerState) PlayersState {
	return PlayersState{Type: TypePlayersState, Players: players}
}

func NewGameEnd(rankings []Ranking) GameEnd {
	return GameEnd{Type: TypeGameEnd, Rankings: rankings}
}
