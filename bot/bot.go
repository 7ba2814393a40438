// Package bot is a headless racer that speaks the client side of the game
// protocol. It is used for load and smoke testing a running server.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/wricardo/horserace/game/protocol"
	"github.com/wricardo/horserace/game/room"
)

const (
	// Game speed units per metre.
	speedScale = 100.0

	// Speed grows by the level's speedIncrease this often.
	speedStep = 5 * time.Second

	// Speed multiplier while boosted.
	boostFactor = 1.5
)

var ErrConnectionLost = errors.New("connection lost before game_end")

// Options configures one bot run.
type Options struct {
	URL    string
	Name   string
	Room   string
	Target float64

	// UpdateInterval is how often state_update is sent. Defaults to 200ms.
	UpdateInterval time.Duration

	// BoostEvery fires boost_used on this period. Zero disables boosting.
	BoostEvery time.Duration
}

// Result is what the bot saw of its match.
type Result struct {
	RoomID        string
	PlayerID      string
	Seed          int
	FinalDistance float64
	Rankings      []protocol.Ranking
}

type inbound struct {
	msg protocol.ServerMessage
	err error
}

// Run joins a room, races until Target is reached and returns once game_end
// arrives.
func Run(ctx context.Context, opts Options, logger zerolog.Logger) (*Result, error) {
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = room.BroadcastInterval
	}
	if opts.Target <= 0 {
		return nil, fmt.Errorf("target distance must be positive, got %v", opts.Target)
	}
	log := logger.With().Str("bot", opts.Name).Logger()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", opts.URL, err)
	}
	defer conn.Close()

	// Unblock the reader when the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	done := make(chan struct{})
	defer close(done)
	frames := make(chan inbound, 64)
	go readLoop(conn, frames, done)

	c := sender{conn}
	if err := c.send(protocol.EncodeJoin(opts.Name, opts.Room)); err != nil {
		return nil, fmt.Errorf("sending join: %w", err)
	}

	res := &Result{}
	var (
		r        *racer
		last     time.Time
		finished bool
		updates  <-chan time.Time
		boosts   <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case in, ok := <-frames:
			if !ok {
				return nil, ErrConnectionLost
			}
			if in.err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, fmt.Errorf("%w: %v", ErrConnectionLost, in.err)
			}

			switch in.msg.Type {
			case protocol.TypeRoomJoined:
				res.RoomID, res.PlayerID = in.msg.RoomID, in.msg.PlayerID
				log.Info().Str("room", res.RoomID).Str("player", res.PlayerID).Int("players", len(in.msg.Players)).Msg("joined")

			case protocol.TypeGameStart:
				if r != nil || in.msg.LevelConfig == nil {
					continue
				}
				res.Seed = in.msg.Seed
				r = newRacer(*in.msg.LevelConfig)
				last = time.Now()

				updateTicker := time.NewTicker(opts.UpdateInterval)
				defer updateTicker.Stop()
				updates = updateTicker.C
				if opts.BoostEvery > 0 {
					boostTicker := time.NewTicker(opts.BoostEvery)
					defer boostTicker.Stop()
					boosts = boostTicker.C
				}
				log.Info().Int("seed", res.Seed).Str("level", in.msg.LevelConfig.Name).Msg("race started")

			case protocol.TypeGameEnd:
				res.Rankings = in.msg.Rankings
				log.Info().Int("rankings", len(res.Rankings)).Msg("race over")
				return res, nil
			}

		case now := <-updates:
			if finished {
				continue
			}
			r.advance(now.Sub(last))
			last = now

			if err := c.send(protocol.EncodeStateUpdate(r.patch())); err != nil {
				return nil, err
			}
			if r.distance >= opts.Target {
				finished = true
				updates = nil
				boosts = nil
				res.FinalDistance = r.distance
				if err := c.send(protocol.EncodePlayerFinished(protocol.Float64(r.distance))); err != nil {
					return nil, err
				}
				log.Info().Float64("distance", r.distance).Msg("finished")
			}

		case <-boosts:
			r.boost(room.BoostDuration)
			if err := c.send(protocol.EncodeBoostUsed()); err != nil {
				return nil, err
			}
		}
	}
}

// PrintRankings writes a human-readable result table.
func PrintRankings(w io.Writer, res *Result) {
	fmt.Fprintf(w, "Room %s, seed %d\n", res.RoomID, res.Seed)
	for _, rk := range res.Rankings {
		marker := " "
		if rk.ID == res.PlayerID {
			marker = "*"
		}
		score := rk.Distance
		if rk.Finished {
			score = rk.FinalDistance
		}
		fmt.Fprintf(w, "%s %d. %-12s %8.1f m  %3d coins\n", marker, rk.Rank, rk.Name, score, rk.Coins)
	}
}

// sender is the only writer on the connection.
type sender struct {
	conn *websocket.Conn
}

// send takes an encoder's results directly.
func (s sender) send(data []byte, err error) error {
	if err != nil {
		return err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return nil
}

func readLoop(conn *websocket.Conn, out chan<- inbound, done <-chan struct{}) {
	defer close(out)
	for {
		var in inbound
		_, raw, err := conn.ReadMessage()
		if err != nil {
			in.err = err
		} else if in.msg, err = protocol.DecodeServer(raw); err != nil {
			continue
		}

		select {
		case out <- in:
		case <-done:
			return
		}
		if in.err != nil {
			return
		}
	}
}
