package room

import (
	"fmt"
	"time"

	"github.com/wricardo/horserace/game/protocol"
)

// Phase is the match lifecycle stage. Phases only move forward.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseActive
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "WAITING"
	case PhaseActive:
		return "ACTIVE"
	case PhaseEnded:
		return "ENDED"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "WAITING":
		*p = PhaseWaiting
	case "ACTIVE":
		*p = PhaseActive
	case "ENDED":
		*p = PhaseEnded
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}

// Snapshot is a read-only copy of a room, safe to hand to other goroutines.
type Snapshot struct {
	ID          string                 `json:"id"`
	Phase       Phase                  `json:"phase"`
	PlayerCount int                    `json:"playerCount"`
	Capacity    int                    `json:"capacity"`
	Seed        *int                   `json:"seed,omitempty"`
	LevelConfig *protocol.LevelConfig  `json:"levelConfig,omitempty"`
	StartedAt   *time.Time             `json:"startedAt,omitempty"`
	Players     []protocol.PlayerState `json:"players"`
}

// Snapshot copies the room's current state.
func (r *Room) Snapshot() Snapshot {
	s := Snapshot{
		ID:          r.id,
		Phase:       r.phase,
		PlayerCount: len(r.players),
		Capacity:    Capacity,
		Players:     r.PublicStates(),
	}
	if r.level != nil {
		seed := r.seed
		level := *r.level
		startedAt := r.startedAt
		s.Seed = &seed
		s.LevelConfig = &level
		s.StartedAt = &startedAt
	}
	return s
}
