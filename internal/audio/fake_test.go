// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"

	"hush/internal/device"
)

// fakeConn scripts a connection handshake: it stays Connecting for
// readyAfter advances, then flips to Ready and starts ticking its streams.
type fakeConn struct {
	state        device.ConnState
	readyAfter   int
	advances     int
	lastBlocking bool
	outcome      device.Outcome // returned once state is Ready; Success by default

	capture  *fakeStream
	playback *fakeStream
	created  []device.BufferAttr
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		state:    device.ConnConnecting,
		capture:  &fakeStream{role: device.RoleCapture, state: device.StreamCreating},
		playback: &fakeStream{role: device.RolePlayback, state: device.StreamCreating},
	}
}

func (c *fakeConn) State() device.ConnState { return c.state }

func (c *fakeConn) Advance(blocking bool) device.Outcome {
	c.advances++
	c.lastBlocking = blocking
	if c.state == device.ConnConnecting && c.advances > c.readyAfter {
		c.state = device.ConnReady
	}
	if c.state != device.ConnReady {
		return device.OutcomeSuccess
	}
	if c.outcome != device.OutcomeSuccess {
		return c.outcome
	}
	c.capture.tick()
	c.playback.tick()
	return device.OutcomeSuccess
}

func (c *fakeConn) NewStream(role device.Role, attr device.BufferAttr) (device.Stream, error) {
	c.created = append(c.created, attr)
	switch role {
	case device.RoleCapture:
		return c.capture, nil
	case device.RolePlayback:
		return c.playback, nil
	}
	return nil, fmt.Errorf("unknown role %d", role)
}

func (c *fakeConn) Close() error {
	c.state = device.ConnTerminated
	return nil
}

// fakeStream scripts the stream lifecycle and a queue of peek outcomes.
type fakeStream struct {
	role        device.Role
	state       device.StreamState
	readyAfter  int // ticks after Connect before turning Ready
	ticks       int
	connected   bool
	startCorked bool
	corked      bool
	failConnect bool

	queue     []device.PeekResult
	discards  int
	writes    [][]byte
	failWrite error

	// onWrite, when set, observes every successful write.
	onWrite func(p []byte)
}

func (s *fakeStream) tick() {
	if !s.connected || s.state != device.StreamCreating {
		return
	}
	s.ticks++
	if s.ticks > s.readyAfter {
		s.state = device.StreamReady
	}
}

func (s *fakeStream) Connect(startCorked bool) error {
	if s.failConnect {
		s.state = device.StreamFailed
		return device.ErrStreamConnect
	}
	s.connected = true
	s.startCorked = startCorked
	s.corked = startCorked
	return nil
}

func (s *fakeStream) State() device.StreamState { return s.state }

func (s *fakeStream) Peek() device.PeekResult {
	if len(s.queue) == 0 {
		return device.PeekResult{Kind: device.PeekEmpty}
	}
	return s.queue[0]
}

func (s *fakeStream) Discard() error {
	if len(s.queue) == 0 {
		return device.ErrNothingPeeked
	}
	s.queue = s.queue[1:]
	s.discards++
	return nil
}

func (s *fakeStream) Write(p []byte) error {
	if s.failWrite != nil {
		return s.failWrite
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	s.writes = append(s.writes, cp)
	if s.onWrite != nil {
		s.onWrite(cp)
	}
	return nil
}

func (s *fakeStream) IsCorked() bool { return s.corked }

func (s *fakeStream) Uncork() error {
	s.corked = false
	return nil
}

func testFormat() device.Format {
	return device.Format{SampleRate: 44100, Channels: 2}
}
