package room

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/horserace/game/loop/looptest"
	"github.com/wricardo/horserace/game/protocol"
)

var errPeerGone = errors.New("peer gone")

// recordingConn keeps every frame it is asked to send.
type recordingConn struct {
	frames [][]byte
	closed bool
}

func (c *recordingConn) Send(data []byte) error {
	if c.closed {
		return errPeerGone
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *recordingConn) messages(t *testing.T) []protocol.ServerMessage {
	t.Helper()
	out := make([]protocol.ServerMessage, 0, len(c.frames))
	for _, f := range c.frames {
		msg, err := protocol.DecodeServer(f)
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

func (c *recordingConn) ofType(t *testing.T, typ protocol.MessageType) []protocol.ServerMessage {
	t.Helper()
	var out []protocol.ServerMessage
	for _, msg := range c.messages(t) {
		if msg.Type == typ {
			out = append(out, msg)
		}
	}
	return out
}

func newTestRoom(t *testing.T) (*Room, *looptest.Scheduler) {
	t.Helper()
	sched := looptest.New()
	return New("TEST", sched, zerolog.Nop()), sched
}

func join(t *testing.T, r *Room, name string) (*Player, *recordingConn) {
	t.Helper()
	conn := &recordingConn{}
	p := NewPlayer(name, conn)
	require.NoError(t, r.AddPlayer(p))
	return p, conn
}
