package room

import (
	"time"

	"github.com/google/uuid"
	"github.com/wricardo/horserace/game/loop"
	"github.com/wricardo/horserace/game/protocol"
)

const (
	// DefaultPlayerName is used when a join carries no name.
	DefaultPlayerName = "玩家"

	// StartingCity is where every racer begins.
	StartingCity = "起点"
)

// Conn pushes encoded frames to exactly one remote peer.
// Send must not block; a closed peer reports an error.
type Conn interface {
	Send(data []byte) error
}

// State is the last racer state reported by the client.
type State struct {
	Distance    float64
	Coins       int
	Speed       float64
	City        string
	BoostActive bool
}

// Player is the session of one connected racer.
type Player struct {
	id    string
	name  string
	conn  Conn
	state State

	finished      bool
	finalDistance float64

	boostExpiry loop.Timer
}

// NewPlayer creates a session bound to conn with a fresh unique id.
func NewPlayer(name string, conn Conn) *Player {
	if name == "" {
		name = DefaultPlayerName
	}
	return &Player{
		id:    uuid.NewString(),
		name:  name,
		conn:  conn,
		state: State{City: StartingCity},
	}
}

func (p *Player) ID() string     { return p.id }
func (p *Player) Name() string   { return p.name }
func (p *Player) Conn() Conn     { return p.conn }
func (p *Player) State() State   { return p.state }
func (p *Player) Finished() bool { return p.finished }

// FinalDistance is only meaningful once Finished reports true.
func (p *Player) FinalDistance() float64 { return p.finalDistance }

// applyPatch merges supplied fields over the current state.
// Negative distance or coin counts are ignored.
func (p *Player) applyPatch(patch protocol.StatePatch) {
	if patch.Distance != nil && *patch.Distance >= 0 {
		p.state.Distance = *patch.Distance
	}
	if patch.Coins != nil && *patch.Coins >= 0 {
		p.state.Coins = *patch.Coins
	}
	if patch.Speed != nil {
		p.state.Speed = *patch.Speed
	}
	if patch.City != nil {
		p.state.City = *patch.City
	}
	if patch.BoostActive != nil {
		p.state.BoostActive = *patch.BoostActive
	}
}

// activateBoost turns the boost on and restarts its expiry window.
func (p *Player) activateBoost(sched loop.Scheduler, d time.Duration) {
	p.state.BoostActive = true
	if p.boostExpiry != nil {
		p.boostExpiry.Stop()
	}
	p.boostExpiry = sched.AfterFunc(d, func() {
		p.state.BoostActive = false
		p.boostExpiry = nil
	})
}

func (p *Player) markFinished(finalDistance *float64) {
	p.finished = true
	if finalDistance != nil {
		p.finalDistance = *finalDistance
		return
	}
	p.finalDistance = p.state.Distance
}

// score is the distance used for ranking.
func (p *Player) score() float64 {
	if p.finished {
		return p.finalDistance
	}
	return p.state.Distance
}

// release cancels the pending boost expiry, if any.
func (p *Player) release() {
	if p.boostExpiry != nil {
		p.boostExpiry.Stop()
		p.boostExpiry = nil
	}
}

// PublicState is what every room member sees about this player.
func (p *Player) PublicState() protocol.PlayerState {
	return protocol.PlayerState{
		ID:            p.id,
		Name:          p.name,
		Distance:      p.state.Distance,
		Coins:         p.state.Coins,
		Speed:         p.state.Speed,
		City:          p.state.City,
		BoostActive:   p.state.BoostActive,
		Finished:      p.finished,
		FinalDistance: p.finalDistance,
	}
}
