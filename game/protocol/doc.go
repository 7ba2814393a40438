// Package protocol defines the wire contract between racers and the room server.
//
// Every frame is a JSON object carrying a "type" tag:
//
//	client → server: join, state_update, boost_used, player_finished
//	server → client: room_joined, game_start, players_state, game_end
//
// Decode turns a raw client frame into an Inbound value. It never panics on
// bad input; callers are expected to drop frames that fail to decode.
//
// StatePatch carries optional fields as pointers so an absent field can be
// told apart from a zero value. Only supplied fields change the racer state.
package protocol
