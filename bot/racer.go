package bot

import (
	"time"

	"github.com/wricardo/horserace/game/protocol"
)

// Cities the route passes through, one every cityEvery metres.
var route = []string{"起点", "北京", "天津", "济南", "南京", "苏州", "上海", "杭州"}

const (
	cityEvery = 400.0
	coinEvery = 25.0
)

// racer integrates a simple run: speed starts at the level's base speed and
// steps up every speedStep.
type racer struct {
	level      protocol.LevelConfig
	elapsed    time.Duration
	boostLeft  time.Duration
	distance   float64
	speed      float64
	boostFlag  bool
	coinCredit float64
	coins      int
}

func newRacer(level protocol.LevelConfig) *racer {
	return &racer{level: level, speed: level.BaseSpeed}
}

func (r *racer) advance(dt time.Duration) {
	if dt <= 0 {
		return
	}
	r.elapsed += dt
	r.speed = r.level.BaseSpeed + r.level.SpeedIncrease*float64(r.elapsed/speedStep)

	speed := r.speed
	if r.boostLeft > 0 {
		speed *= boostFactor
		r.boostLeft -= dt
	}
	r.boostFlag = r.boostLeft > 0

	step := speed * dt.Seconds() / speedScale
	r.distance += step
	r.coinCredit += step
	for r.coinCredit >= coinEvery {
		r.coinCredit -= coinEvery
		r.coins++
	}
}

func (r *racer) boost(d time.Duration) {
	r.boostLeft = d
	r.boostFlag = true
}

func (r *racer) city() string {
	i := int(r.distance / cityEvery)
	if i >= len(route) {
		i = len(route) - 1
	}
	return route[i]
}

func (r *racer) patch() protocol.StatePatch {
	return protocol.StatePatch{
		Distance:    protocol.Float64(r.distance),
		Coins:       protocol.Int(r.coins),
		Speed:       protocol.Float64(r.speed),
		City:        protocol.String(r.city()),
		BoostActive: protocol.Bool(r.boostFlag),
	}
}
