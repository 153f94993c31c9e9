// SPDX-License-Identifier: MIT
/*
Package audio implements the loopback pipeline: a device session that
brings a capture and a playback stream online, and the pump loop that moves
audio between them through the limiter.

Everything here runs on a single thread. The session owns both streams
outright; the pump borrows them for the duration of one iteration. The only
state carried across iterations lives inside the limiter, so no
synchronization is needed anywhere in the pipeline.
*/
package audio

import (
	"errors"
	"fmt"

	"hush/internal/device"
	"hush/internal/log"
)

var (
	// ErrConnAborted is returned when the connection fails or terminates
	// during the handshake or the pump loop.
	ErrConnAborted = errors.New("audio: connection failed or terminated")

	// ErrStreamAborted is returned when either stream fails or
	// terminates.
	ErrStreamAborted = errors.New("audio: stream failed or terminated")
)

// unlimited marks buffer fields the backend should treat as unconstrained.
const unlimited = ^uint32(0)

// Session owns one connection and its capture/playback stream pair and
// runs the readiness handshake. Failure anywhere is terminal; there is no
// reconnect path.
type Session struct {
	conn     device.Conn
	format   device.Format
	frames   int
	blocking bool

	capture  device.Stream
	playback device.Stream
}

// NewSession wraps an established connection. frames is the fragment size
// in frames used to derive the buffering hints for both streams; blocking
// selects the event-loop poll mode.
func NewSession(conn device.Conn, format device.Format, frames int, blocking bool) *Session {
	return &Session{
		conn:     conn,
		format:   format,
		frames:   frames,
		blocking: blocking,
	}
}

// Capture returns the capture stream. Valid after Open.
func (s *Session) Capture() device.Stream { return s.capture }

// Playback returns the playback stream. Valid after Open.
func (s *Session) Playback() device.Stream { return s.playback }

// Advance drives the connection's event loop by one step in the session's
// configured poll mode.
func (s *Session) Advance() device.Outcome {
	return s.conn.Advance(s.blocking)
}

// Close tears down the connection and both streams.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Open runs the handshake: wait for the connection, create and connect
// both streams corked, then wait until every stream is ready in the same
// polling pass. A stream still coming up forces another full pass, so the
// pump can never start with only half the pair online.
func (s *Session) Open() error {
	if err := s.awaitConn(); err != nil {
		return err
	}

	fragBytes := uint32(s.frames * s.format.FrameBytes())

	capture, err := s.conn.NewStream(device.RoleCapture, device.BufferAttr{
		MaxLength:    unlimited,
		FragmentSize: fragBytes,
	})
	if err != nil {
		return fmt.Errorf("creating capture stream: %w", err)
	}
	playback, err := s.conn.NewStream(device.RolePlayback, device.BufferAttr{
		MaxLength:    unlimited,
		TargetLength: fragBytes,
		PreBuffer:    unlimited,
		MinRequest:   unlimited,
	})
	if err != nil {
		return fmt.Errorf("creating playback stream: %w", err)
	}

	// Both streams start corked: no audio moves until the pump has data
	// to feed the playback side.
	if err := capture.Connect(true); err != nil {
		return fmt.Errorf("connecting capture stream: %w", err)
	}
	if err := playback.Connect(true); err != nil {
		return fmt.Errorf("connecting playback stream: %w", err)
	}

	s.capture = capture
	s.playback = playback

	if err := s.awaitStreams(); err != nil {
		return err
	}

	log.Infof("session ready: %d ch @ %.0f Hz, %d frames per fragment",
		s.format.Channels, s.format.SampleRate, s.frames)
	return nil
}

func (s *Session) awaitConn() error {
	for {
		if out := s.Advance(); out != device.OutcomeSuccess {
			return fmt.Errorf("%w: event loop returned %s", ErrConnAborted, out)
		}
		switch state := s.conn.State(); state {
		case device.ConnReady:
			return nil
		case device.ConnFailed, device.ConnTerminated:
			return fmt.Errorf("%w: connection state %s", ErrConnAborted, state)
		}
	}
}

func (s *Session) awaitStreams() error {
	for {
		if out := s.Advance(); out != device.OutcomeSuccess {
			return fmt.Errorf("%w: event loop returned %s", ErrConnAborted, out)
		}

		ready := true
		for _, st := range []device.Stream{s.playback, s.capture} {
			switch state := st.State(); state {
			case device.StreamReady:
			case device.StreamFailed, device.StreamTerminated:
				return fmt.Errorf("%w: stream state %s", ErrStreamAborted, state)
			default:
				ready = false
			}
		}
		if ready {
			return nil
		}
	}
}

// CheckStreams verifies both streams are still ready; used by the pump on
// every iteration so a mid-run failure aborts promptly.
func (s *Session) CheckStreams() error {
	for _, st := range []device.Stream{s.capture, s.playback} {
		switch state := st.State(); state {
		case device.StreamReady:
		default:
			return fmt.Errorf("%w: stream state %s", ErrStreamAborted, state)
		}
	}
	return nil
}

// FragmentBytes returns the session's fragment size in bytes, the natural
// unit of one pump read.
func (s *Session) FragmentBytes() int {
	return s.frames * s.format.FrameBytes()
}

// SamplesPerFragment returns the fragment size in samples across channels.
func (s *Session) SamplesPerFragment() int {
	return s.frames * s.format.Channels
}
