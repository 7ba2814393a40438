package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/wricardo/horserace/game/loop"
	"github.com/wricardo/horserace/game/protocol"
)

const (
	Capacity          = 4
	CountdownDelay    = 10 * time.Second
	BroadcastInterval = 200 * time.Millisecond
	MatchTimeout      = 120 * time.Second
	BoostDuration     = 3 * time.Second

	// SeedRange bounds the match seed to [0, SeedRange).
	SeedRange = 1_000_000
)

var (
	ErrRoomFull   = errors.New("room is full")
	ErrRoomClosed = errors.New("room is closed")
)

// Every online match uses the same race parameters, independent of any
// level a player picked in single player.
func onlineLevel() protocol.LevelConfig {
	return protocol.LevelConfig{
		Name:          "联机对战",
		BaseSpeed:     300,
		SpeedIncrease: 5,
		SpawnInterval: 1400,
	}
}

// Room runs one match: waiting for racers, the race itself, and the final
// standings. A Room is not safe for concurrent use; all calls and all timer
// callbacks must come from the same loop.
type Room struct {
	id      string
	phase   Phase
	players map[string]*Player
	order   []string

	seed      int
	level     *protocol.LevelConfig
	startedAt time.Time

	countdown loop.Timer
	ticker    loop.Timer
	timeout   loop.Timer
	closed    bool

	sched    loop.Scheduler
	log      zerolog.Logger
	now      func() time.Time
	drawSeed func() int
}

// New creates an empty room in the waiting phase.
func New(id string, sched loop.Scheduler, logger zerolog.Logger) *Room {
	return &Room{
		id:       id,
		phase:    PhaseWaiting,
		players:  make(map[string]*Player, Capacity),
		sched:    sched,
		log:      logger.With().Str("room", id).Logger(),
		now:      time.Now,
		drawSeed: func() int { return rand.IntN(SeedRange) },
	}
}

func (r *Room) ID() string   { return r.id }
func (r *Room) Phase() Phase { return r.phase }
func (r *Room) Len() int     { return len(r.players) }
func (r *Room) Full() bool   { return len(r.players) >= Capacity }
func (r *Room) Closed() bool { return r.closed }
func (r *Room) Seed() int    { return r.seed }
func (r *Room) StartedAt() time.Time {
	return r.startedAt
}

// LevelConfig is nil until the match starts.
func (r *Room) LevelConfig() *protocol.LevelConfig {
	return r.level
}

// Player looks up a member by id.
func (r *Room) Player(id string) (*Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

// Players returns the members in join order.
func (r *Room) Players() []*Player {
	out := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id])
	}
	return out
}

// PublicStates is the roster as shared with clients.
func (r *Room) PublicStates() []protocol.PlayerState {
	out := make([]protocol.PlayerState, 0, len(r.order))
	for _, p := range r.Players() {
		out = append(out, p.PublicState())
	}
	return out
}

// AddPlayer seats p. A late joiner in an active match receives the existing
// game_start; in the waiting phase the first player arms the countdown and
// the player that fills the room starts the match at once.
func (r *Room) AddPlayer(p *Player) error {
	if r.closed {
		return ErrRoomClosed
	}
	if r.Full() {
		return fmt.Errorf("%w: %s has %d players", ErrRoomFull, r.id, len(r.players))
	}

	r.players[p.id] = p
	r.order = append(r.order, p.id)
	r.startBroadcast()

	r.log.Info().
		Str("player", p.id).
		Str("name", p.name).
		Int("players", len(r.players)).
		Stringer("phase", r.phase).
		Msg("player joined")

	switch r.phase {
	case PhaseActive:
		r.send(p, r.gameStart())
	case PhaseWaiting:
		if r.countdown == nil {
			r.countdown = r.sched.AfterFunc(CountdownDelay, r.StartMatch)
		}
		if r.Full() {
			r.StartMatch()
		}
	}
	return nil
}

// RemovePlayer drops a member and reports whether the room is now empty.
// An empty room has all of its timers canceled and must be discarded.
func (r *Room) RemovePlayer(id string) bool {
	p, ok := r.players[id]
	if ok {
		p.release()
		delete(r.players, id)
		for i, pid := range r.order {
			if pid == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
		r.log.Info().Str("player", id).Int("players", len(r.players)).Msg("player left")
	}

	if len(r.players) == 0 {
		r.Close()
		return true
	}
	return false
}

// UpdatePlayerState merges patch into the player's state. Unknown ids are ignored.
func (r *Room) UpdatePlayerState(id string, patch protocol.StatePatch) {
	p, ok := r.players[id]
	if !ok {
		return
	}
	p.applyPatch(patch)
}

// SetBoost activates the player's boost for BoostDuration, restarting the
// window if one is already running.
func (r *Room) SetBoost(id string) {
	p, ok := r.players[id]
	if !ok {
		return
	}
	p.activateBoost(r.sched, BoostDuration)
}

// MarkFinished records the player's final distance, falling back to the last
// reported distance. Once every member has finished an active match ends.
func (r *Room) MarkFinished(id string, finalDistance *float64) {
	p, ok := r.players[id]
	if !ok {
		return
	}
	p.markFinished(finalDistance)
	r.log.Info().Str("player", id).Float64("final_distance", p.finalDistance).Msg("player finished")

	if r.phase == PhaseActive && r.allFinished() {
		r.EndMatch()
	}
}

func (r *Room) allFinished() bool {
	for _, p := range r.players {
		if !p.finished {
			return false
		}
	}
	return true
}

// StartMatch fixes the seed and level, moves the room to ACTIVE and tells
// every member. It does nothing unless the room is still waiting.
func (r *Room) StartMatch() {
	if r.closed || r.phase != PhaseWaiting {
		return
	}
	stopTimer(&r.countdown)

	level := onlineLevel()
	r.level = &level
	r.seed = r.drawSeed()
	r.startedAt = r.now()
	r.phase = PhaseActive

	r.log.Info().Int("seed", r.seed).Int("players", len(r.players)).Msg("match started")
	r.broadcast(r.gameStart())

	r.timeout = r.sched.AfterFunc(MatchTimeout, r.EndMatch)
}

// EndMatch ranks every member and broadcasts the standings. It does nothing
// unless a match is running.
func (r *Room) EndMatch() {
	if r.closed || r.phase != PhaseActive {
		return
	}
	stopTimer(&r.timeout)
	r.phase = PhaseEnded

	rankings := r.Rankings()
	r.log.Info().Int("players", len(rankings)).Msg("match ended")
	r.broadcast(protocol.NewGameEnd(rankings))
}

// Rankings orders members by final distance (or current distance when not
// finished), highest first. Ties keep join order.
func (r *Room) Rankings() []protocol.Ranking {
	players := r.Players()
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].score() > players[j].score()
	})

	rankings := make([]protocol.Ranking, len(players))
	for i, p := range players {
		rankings[i] = protocol.Ranking{PlayerState: p.PublicState(), Rank: i + 1}
	}
	return rankings
}

// Close cancels every timer owned by the room and its players. It is safe to
// call more than once.
func (r *Room) Close() {
	if r.closed {
		return
	}
	r.closed = true
	stopTimer(&r.countdown)
	stopTimer(&r.ticker)
	stopTimer(&r.timeout)
	for _, p := range r.players {
		p.release()
	}
	r.log.Debug().Msg("room closed")
}

func (r *Room) startBroadcast() {
	if r.ticker != nil {
		return
	}
	r.ticker = r.sched.Every(BroadcastInterval, r.broadcastPlayers)
}

func (r *Room) broadcastPlayers() {
	if r.closed || len(r.players) == 0 {
		return
	}
	r.broadcast(protocol.NewPlayersState(r.PublicStates()))
}

func (r *Room) gameStart() protocol.GameStart {
	return protocol.NewGameStart(r.seed, *r.level, r.startedAt.UnixMilli())
}

// broadcast encodes msg once and sends it to every member. A failed send only
// skips that recipient.
func (r *Room) broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to encode broadcast")
		return
	}
	for _, p := range r.Players() {
		if err := p.conn.Send(data); err != nil {
			r.log.Debug().Err(err).Str("player", p.id).Msg("skipping recipient")
		}
	}
}

func (r *Room) send(p *Player, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to encode message")
		return
	}
	if err := p.conn.Send(data); err != nil {
		r.log.Debug().Err(err).Str("player", p.id).Msg("send failed")
	}
}

func stopTimer(t *loop.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
