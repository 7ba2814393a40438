// Package room implements a single multiplayer race: the racers seated in it
// and the match lifecycle they go through together.
//
// Lifecycle:
//
//	WAITING ──(10s countdown, or 4th racer joins)──▶ ACTIVE
//	ACTIVE  ──(every racer finished, or 120s timeout)──▶ ENDED
//
// While any racer is present the room pushes the full roster to everyone
// every 200ms, whatever the phase. A racer joining an ACTIVE room gets the
// existing game_start so it can race with the same seed and level.
//
// Timers:
//
// A Room owns a countdown, a broadcast ticker and a match timeout; each
// Player owns a boost expiry. All of them come from a loop.Scheduler and are
// canceled when the room empties, so no callback runs against a dropped room.
//
// Concurrency:
//
// Room and Player are not safe for concurrent use. The lobby drives them from
// a single loop.Loop, which also delivers every timer callback.
package room
