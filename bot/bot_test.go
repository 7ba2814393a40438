package bot

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/horserace/api"
	"github.com/wricardo/horserace/game/lobby"
	"github.com/wricardo/horserace/game/loop"
	"github.com/wricardo/horserace/game/protocol"
	"github.com/wricardo/horserace/game/room"
	"github.com/wricardo/horserace/transport/websocket"
	"golang.org/x/sync/errgroup"
)

// startServer runs the whole stack in process and returns its /ws URL.
func startServer(t *testing.T) string {
	t.Helper()
	logger := zerolog.Nop()

	l := loop.New(logger, 256)
	manager := lobby.NewManager(l, logger)
	hub := websocket.NewHub(manager, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Run(ctx)
	go hub.Run(ctx)

	srv := httptest.NewServer(api.NewServer(manager, hub, nil, logger))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestRun_FullRoomRacesToTheEnd(t *testing.T) {
	url := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results := make([]*Result, room.Capacity)
	g, gctx := errgroup.WithContext(ctx)
	for i := range results {
		g.Go(func() error {
			res, err := Run(gctx, Options{
				URL:            url,
				Name:           fmt.Sprintf("bot-%d", i),
				Room:           "test",
				Target:         0.5 + float64(i)*0.1,
				UpdateInterval: 20 * time.Millisecond,
				BoostEvery:     50 * time.Millisecond,
			}, zerolog.Nop())
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	seed := results[0].Seed
	for i, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, "TEST", res.RoomID)
		assert.Equal(t, seed, res.Seed, "every racer shares the seed")
		assert.GreaterOrEqual(t, res.FinalDistance, 0.5+float64(i)*0.1)

		require.Len(t, res.Rankings, room.Capacity)
		seen := map[string]bool{}
		for rank, rk := range res.Rankings {
			assert.Equal(t, rank+1, rk.Rank)
			assert.True(t, rk.Finished)
			seen[rk.ID] = true
		}
		assert.True(t, seen[res.PlayerID])
	}
}

func TestRun_CanceledWhileWaiting(t *testing.T) {
	url := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, Options{URL: url, Name: "alone", Target: 10}, zerolog.Nop())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_RejectsBadOptions(t *testing.T) {
	_, err := Run(context.Background(), Options{URL: "ws://127.0.0.1:1/ws", Target: 0}, zerolog.Nop())
	assert.Error(t, err)

	_, err = Run(context.Background(), Options{URL: "ws://127.0.0.1:1/ws", Target: 1}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRacer(t *testing.T) {
	r := newRacer(protocol.LevelConfig{BaseSpeed: 300, SpeedIncrease: 5})

	r.advance(time.Second)
	assert.InDelta(t, 3.0, r.distance, 1e-9)
	assert.Equal(t, 300.0, r.speed)

	r.advance(4 * time.Second)
	assert.Equal(t, 305.0, r.speed, "speed steps up after 5s")

	before := r.distance
	r.boost(room.BoostDuration)
	r.advance(time.Second)
	assert.InDelta(t, 305*boostFactor/speedScale, r.distance-before, 1e-9)
	assert.True(t, *r.patch().BoostActive)

	r.advance(room.BoostDuration)
	assert.False(t, *r.patch().BoostActive)

	p := r.patch()
	assert.Equal(t, r.distance, *p.Distance)
	assert.Equal(t, "起点", *p.City)
}

func TestRacer_CoinsAndCities(t *testing.T) {
	r := newRacer(protocol.LevelConfig{BaseSpeed: 10_000})

	r.advance(5 * time.Second) // 500 m
	assert.Equal(t, 20, r.coins)
	assert.Equal(t, route[1], r.city())

	r.advance(time.Hour)
	assert.Equal(t, route[len(route)-1], r.city())
}

func TestPrintRankings(t *testing.T) {
	var buf bytes.Buffer
	PrintRankings(&buf, &Result{
		RoomID:   "ABCD",
		PlayerID: "p2",
		Seed:     7,
		Rankings: []protocol.Ranking{
			{PlayerState: protocol.PlayerState{ID: "p1", Name: "Ann", Distance: 500, Finished: true, FinalDistance: 520, Coins: 3}, Rank: 1},
			{PlayerState: protocol.PlayerState{ID: "p2", Name: "Bo", Distance: 410}, Rank: 2},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Room ABCD, seed 7")
	assert.Contains(t, out, "  1. Ann")
	assert.Contains(t, out, "520.0 m")
	assert.Contains(t, out, "* 2. Bo")
	assert.Contains(t, out, "410.0 m")
}
