package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wricardo/horserace/game/loop"
	"github.com/wricardo/horserace/game/protocol"
	"github.com/wricardo/horserace/game/room"
)

const (
	// CodeAlphabet leaves out characters that are easy to misread (I, L, O, 0, 1).
	CodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	CodeLength   = 4
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrStopped      = errors.New("lobby stopped")
)

// seat records where a connection's player sits.
type seat struct {
	roomID   string
	playerID string
}

// Manager owns every live room and routes connection events to them.
//
// The exported entry points only enqueue work; the work itself runs on the
// manager's loop, one event at a time.
type Manager struct {
	loop  *loop.Loop
	sched loop.Scheduler
	post  func(func()) bool

	rooms map[string]*room.Room
	order []string
	seats map[room.Conn]seat

	newCode func() string
	log     zerolog.Logger
}

// NewManager creates a manager whose rooms run on l.
func NewManager(l *loop.Loop, logger zerolog.Logger) *Manager {
	m := newManager(l, l.Post, logger)
	m.loop = l
	return m
}

func newManager(sched loop.Scheduler, post func(func()) bool, logger zerolog.Logger) *Manager {
	return &Manager{
		sched:   sched,
		post:    post,
		rooms:   make(map[string]*room.Room),
		seats:   make(map[room.Conn]seat),
		newCode: randomCode,
		log:     logger.With().Str("component", "lobby").Logger(),
	}
}

// Run drives the loop until ctx is done and then closes every room.
func (m *Manager) Run(ctx context.Context) error {
	err := m.loop.Run(ctx)
	m.closeAll()
	return err
}

// Join seats conn's player in the requested room, or matchmakes when code is empty.
func (m *Manager) Join(conn room.Conn, name, code string) {
	m.post(func() { m.join(conn, name, code) })
}

// Message handles one raw frame received on conn.
func (m *Manager) Message(conn room.Conn, raw []byte) {
	m.post(func() { m.message(conn, raw) })
}

// Disconnect removes conn's player from its room.
func (m *Manager) Disconnect(conn room.Conn) {
	m.post(func() { m.disconnect(conn) })
}

// Rooms returns a snapshot of every live room in creation order.
func (m *Manager) Rooms(ctx context.Context) ([]room.Snapshot, error) {
	var out []room.Snapshot
	err := m.query(ctx, func() {
		out = make([]room.Snapshot, 0, len(m.order))
		for _, id := range m.order {
			out = append(out, m.rooms[id].Snapshot())
		}
	})
	return out, err
}

// Room returns a snapshot of one room.
func (m *Manager) Room(ctx context.Context, id string) (room.Snapshot, error) {
	var (
		out   room.Snapshot
		found bool
	)
	err := m.query(ctx, func() {
		r, ok := m.rooms[normalizeCode(id)]
		if ok {
			out, found = r.Snapshot(), true
		}
	})
	if err != nil {
		return room.Snapshot{}, err
	}
	if !found {
		return room.Snapshot{}, ErrRoomNotFound
	}
	return out, nil
}

// query runs fn on the loop and waits for it.
func (m *Manager) query(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !m.post(func() {
		fn()
		close(done)
	}) {
		return ErrStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) join(conn room.Conn, name, code string) {
	if s, ok := m.seats[conn]; ok {
		m.log.Debug().Str("room", s.roomID).Str("player", s.playerID).Msg("dropping repeated join")
		return
	}

	p := room.NewPlayer(name, conn)
	r := m.resolveRoom(normalizeCode(code))
	if err := r.AddPlayer(p); err != nil {
		// resolveRoom only hands out rooms with a free seat.
		m.log.Error().Err(err).Str("room", r.ID()).Msg("failed to seat player")
		if r.Len() == 0 {
			m.removeRoom(r)
		}
		return
	}
	m.seats[conn] = seat{roomID: r.ID(), playerID: p.ID()}

	data, err := json.Marshal(protocol.NewRoomJoined(r.ID(), p.ID(), r.PublicStates()))
	if err != nil {
		m.log.Error().Err(err).Msg("failed to encode room_joined")
		return
	}
	if err := conn.Send(data); err != nil {
		m.log.Debug().Err(err).Str("player", p.ID()).Msg("room_joined not delivered")
	}
}

// resolveRoom picks the room a new player goes to. A requested room is used
// when it exists and has a free seat; without a request the first waiting
// room with a free seat wins. Otherwise a new room is created, under the
// requested code when that code is free.
func (m *Manager) resolveRoom(code string) *room.Room {
	if code != "" {
		if r, ok := m.rooms[code]; ok && !r.Full() {
			return r
		}
	} else {
		for _, id := range m.order {
			r := m.rooms[id]
			if r.Phase() == room.PhaseWaiting && !r.Full() {
				return r
			}
		}
	}

	id := code
	if _, taken := m.rooms[id]; id == "" || taken {
		id = m.uniqueCode()
	}

	r := room.New(id, m.sched, m.log)
	m.rooms[id] = r
	m.order = append(m.order, id)
	m.log.Info().Str("room", id).Int("rooms", len(m.rooms)).Msg("room created")
	return r
}

func (m *Manager) uniqueCode() string {
	for {
		code := m.newCode()
		if _, taken := m.rooms[code]; !taken {
			return code
		}
	}
}

func (m *Manager) message(conn room.Conn, raw []byte) {
	in, err := protocol.Decode(raw)
	if err != nil {
		m.log.Debug().Err(err).Msg("dropping frame")
		return
	}

	if in.Type == protocol.TypeJoin {
		m.join(conn, in.Join.PlayerName, in.Join.RoomCode)
		return
	}

	s, ok := m.seats[conn]
	if !ok {
		m.log.Debug().Str("type", string(in.Type)).Msg("dropping frame before join")
		return
	}
	r, ok := m.rooms[s.roomID]
	if !ok {
		return
	}

	switch in.Type {
	case protocol.TypeStateUpdate:
		r.UpdatePlayerState(s.playerID, *in.State)
	case protocol.TypeBoostUsed:
		r.SetBoost(s.playerID)
	case protocol.TypePlayerFinished:
		r.MarkFinished(s.playerID, in.Finished.FinalDistance)
	}
}

func (m *Manager) disconnect(conn room.Conn) {
	s, ok := m.seats[conn]
	if !ok {
		return
	}
	delete(m.seats, conn)

	r, ok := m.rooms[s.roomID]
	if !ok {
		return
	}
	if r.RemovePlayer(s.playerID) {
		m.removeRoom(r)
	}
}

func (m *Manager) removeRoom(r *room.Room) {
	r.Close()
	delete(m.rooms, r.ID())
	for i, id := range m.order {
		if id == r.ID() {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.log.Info().Str("room", r.ID()).Int("rooms", len(m.rooms)).Msg("room removed")
}

func (m *Manager) closeAll() {
	for _, r := range m.rooms {
		r.Close()
	}
	m.rooms = make(map[string]*room.Room)
	m.order = nil
	m.seats = make(map[room.Conn]seat)
	m.log.Info().Msg("all rooms closed")
}

func randomCode() string {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(CodeAlphabet[rand.IntN(len(CodeAlphabet))])
	}
	return b.String()
}

// normalizeCode makes typed room codes case-insensitive.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
