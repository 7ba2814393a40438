// Package lobby is the room registry and message dispatcher.
//
// A Manager maps room codes to live rooms and connections to the seat their
// player holds. Transports hand it raw frames and disconnect notices; it
// decodes each frame and routes it to the right room:
//
//	join             seat the player (matchmaking when no code is given)
//	state_update     patch the sender's racer state
//	boost_used       start or restart the sender's 3s boost
//	player_finished  mark the sender finished
//
// Frames that do not decode, and anything other than join from a connection
// that has not joined yet, are dropped without a reply.
//
// Matchmaking:
//
// A requested code joins that room when it has a free seat. With no code the
// first WAITING room with a free seat is used. In every other case a new room
// is created, under the requested code if it is free and under a generated
// four-character code otherwise. Rooms are removed as soon as their last
// player leaves.
//
// Concurrency:
//
// Join, Message and Disconnect only enqueue work on the manager's loop.Loop.
// Rooms and Room post a read onto the same loop and wait for the answer, so
// callers on any goroutine see a consistent snapshot.
package lobby
