// SPDX-License-Identifier: MIT
/*
Package device abstracts the audio server the pipeline talks to. It exposes
a poll-driven connection with directional streams: the caller repeatedly
advances the event loop and inspects connection and stream states until
everything is ready, then moves audio with Peek/Write/Discard.

The production backend sits on PortAudio (portaudio.go); the pipeline tests
substitute a scripted implementation of the same interfaces.
*/
package device

import "errors"

var (
	// ErrServerUnreachable wraps failures to reach the audio backend at
	// connect time.
	ErrServerUnreachable = errors.New("device: audio server unreachable")

	// ErrStreamConnect wraps failures to bring a stream online.
	ErrStreamConnect = errors.New("device: stream connect failed")

	// ErrNothingPeeked is returned by Discard when no peeked fragment is
	// pending release.
	ErrNothingPeeked = errors.New("device: discard without a peeked fragment")
)

// Format fixes the sample layout shared by every stream of a connection.
// Samples are always 32-bit little-endian floats, interleaved by channel.
type Format struct {
	SampleRate float64
	Channels   int
}

// FrameBytes returns the byte size of one frame (one sample per channel).
func (f Format) FrameBytes() int { return f.Channels * 4 }

// Role selects the direction of a stream.
type Role int

const (
	RoleCapture Role = iota
	RolePlayback
)

func (r Role) String() string {
	switch r {
	case RoleCapture:
		return "capture"
	case RolePlayback:
		return "playback"
	default:
		return "unknown"
	}
}

// ConnState is the lifecycle state of a connection.
type ConnState int

const (
	ConnConnecting ConnState = iota
	ConnReady
	ConnFailed
	ConnTerminated
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnReady:
		return "ready"
	case ConnFailed:
		return "failed"
	case ConnTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// StreamState is the lifecycle state of a stream.
type StreamState int

const (
	StreamCreating StreamState = iota
	StreamReady
	StreamFailed
	StreamTerminated
)

func (s StreamState) String() string {
	switch s {
	case StreamCreating:
		return "creating"
	case StreamReady:
		return "ready"
	case StreamFailed:
		return "failed"
	case StreamTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Outcome reports the result of one event-loop step.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeQuit
	OutcomeErr
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeQuit:
		return "quit"
	case OutcomeErr:
		return "error"
	default:
		return "unknown"
	}
}

// BufferAttr carries the buffering hints handed to the backend when a
// stream is created. Zero values let the backend pick.
type BufferAttr struct {
	MaxLength    uint32 // total bytes the backend may buffer
	TargetLength uint32 // playback: bytes to keep queued
	PreBuffer    uint32 // playback: bytes required before starting
	MinRequest   uint32 // playback: minimum refill request
	FragmentSize uint32 // capture: bytes delivered per fragment
}

// PeekKind discriminates the three outcomes of a Peek.
type PeekKind int

const (
	PeekEmpty PeekKind = iota
	PeekHole
	PeekData
)

// PeekResult is the next unit of available capture data. A Hole is a gap in
// the input, not an error; it must be discarded like data to keep the
// stream position moving. Data stays valid until the following Discard.
type PeekResult struct {
	Kind      PeekKind
	Data      []byte
	HoleBytes int
}

// Conn is one connection to the audio server. All methods are driven from
// the single pipeline thread.
type Conn interface {
	// State reports the connection lifecycle state.
	State() ConnState

	// Advance drives pending I/O by one step. With blocking set it may
	// suspend until the backend has new work; otherwise it returns
	// immediately. Quit and Err outcomes are fatal to the session.
	Advance(blocking bool) Outcome

	// NewStream registers a stream of the given role. The stream starts
	// in StreamCreating and reaches StreamReady through Connect plus
	// subsequent Advance calls.
	NewStream(role Role, attr BufferAttr) (Stream, error)

	// Close tears the connection down; later Advance calls return Quit.
	Close() error
}

// Stream is one directional audio channel bound to a Conn.
type Stream interface {
	// Connect requests the stream to come online. With startCorked the
	// stream stays silent until Uncork; playback data written while
	// corked is queued as prebuffer.
	Connect(startCorked bool) error

	// State reports the stream lifecycle state.
	State() StreamState

	// Peek returns the next unit of available capture data without
	// consuming it. Calling Peek again before Discard returns the same
	// unit.
	Peek() PeekResult

	// Discard releases the most recently peeked unit.
	Discard() error

	// Write appends bytes at the stream's current relative write
	// position.
	Write(p []byte) error

	// IsCorked reports whether the stream is corked.
	IsCorked() bool

	// Uncork starts audio exchange on a corked stream.
	Uncork() error
}
