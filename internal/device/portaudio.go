// SPDX-License-Identifier: MIT
package device

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/smallnest/ringbuffer"
)

const (
	// defaultFrames is the callback buffer size used when the stream
	// attributes leave the fragment or target length unset.
	defaultFrames = 512

	// defaultRingBytes bounds each stream's byte queue when MaxLength is
	// unset or unlimited. Roughly three seconds of stereo float audio at
	// 44.1 kHz, enough to ride out scheduling hiccups without drift.
	defaultRingBytes = 1 << 20

	// unlimited mirrors the wire convention of "no limit" buffer fields.
	unlimited = ^uint32(0)
)

// Connect resolves the input and output devices and returns a connection in
// the Connecting state. The handshake completes through Advance, so callers
// observe the same poll-until-ready protocol the interface promises.
func Connect(format Format, inputID, outputID int, lowLatency bool) (Conn, error) {
	in, err := inputDevice(inputID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}
	out, err := outputDevice(outputID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}

	return &paConn{
		format:     format,
		state:      ConnConnecting,
		in:         in,
		out:        out,
		lowLatency: lowLatency,
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}, nil
}

// paConn drives PortAudio streams behind the Conn interface. Lifecycle
// state is touched only by the pipeline thread; the audio callbacks talk to
// it exclusively through the stream rings and the notify channel.
type paConn struct {
	format     Format
	state      ConnState
	in, out    *portaudio.DeviceInfo
	lowLatency bool
	streams    []*paStream
	notify     chan struct{}
	done       chan struct{}
	closed     bool
}

func (c *paConn) State() ConnState { return c.state }

func (c *paConn) Advance(blocking bool) Outcome {
	if c.closed {
		return OutcomeQuit
	}

	if c.state == ConnConnecting {
		// Devices were validated at Connect; the first drive of the
		// loop completes the handshake.
		c.state = ConnReady
		return OutcomeSuccess
	}

	progressed := false
	corked := false
	for _, s := range c.streams {
		if s.pending && s.state == StreamCreating {
			s.open()
			progressed = true
		}
		if s.corked {
			corked = true
		}
	}

	// Never suspend while a stream is still corked: its callbacks are not
	// running yet, so nothing would ever signal notify, and the caller
	// needs Advance to return before it can uncork anything.
	if blocking && !progressed && !corked {
		select {
		case <-c.notify:
		case <-c.done:
			return OutcomeQuit
		}
	}
	return OutcomeSuccess
}

func (c *paConn) NewStream(role Role, attr BufferAttr) (Stream, error) {
	if c.state != ConnReady {
		return nil, fmt.Errorf("device: connection is %s, not ready", c.state)
	}
	s := &paStream{
		conn:  c,
		role:  role,
		attr:  attr,
		state: StreamCreating,
	}
	c.streams = append(c.streams, s)
	return s, nil
}

func (c *paConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.state = ConnTerminated
	close(c.done)

	var firstErr error
	for _, s := range c.streams {
		if err := s.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// wake nudges a blocking Advance. Called from the audio callbacks, so it
// must never block.
func (c *paConn) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *paConn) latencyFor(dev *portaudio.DeviceInfo, role Role) time.Duration {
	switch {
	case role == RoleCapture && c.lowLatency:
		return dev.DefaultLowInputLatency
	case role == RoleCapture:
		return dev.DefaultHighInputLatency
	case c.lowLatency:
		return dev.DefaultLowOutputLatency
	default:
		return dev.DefaultHighOutputLatency
	}
}

// paStream is one PortAudio callback stream. The callback communicates with
// the pipeline thread through ring (bytes) and holeBytes (capture overrun
// accounting); everything else belongs to the pipeline thread.
type paStream struct {
	conn        *paConn
	role        Role
	attr        BufferAttr
	state       StreamState
	pending     bool
	startCorked bool
	corked      bool

	pa        *portaudio.Stream
	ring      *ringbuffer.RingBuffer
	holeBytes atomic.Int64

	cb       []byte // callback staging buffer
	peekBuf  []byte
	held     []byte
	heldHole int
}

func (s *paStream) Connect(startCorked bool) error {
	if s.conn.closed || s.conn.state != ConnReady {
		return fmt.Errorf("%w: connection is %s", ErrStreamConnect, s.conn.state)
	}
	s.pending = true
	s.startCorked = startCorked
	return nil
}

func (s *paStream) State() StreamState { return s.state }

// open completes a requested connect. Runs on the pipeline thread from
// Advance, which is what makes the Creating -> Ready transition observable
// through polling.
func (s *paStream) open() {
	s.pending = false

	format := s.conn.format
	frames := s.frames()
	bytesPerBuffer := frames * format.FrameBytes()

	s.cb = make([]byte, bytesPerBuffer)
	s.peekBuf = make([]byte, 4*bytesPerBuffer)
	s.ring = ringbuffer.New(s.ringBytes())

	params := portaudio.StreamParameters{
		SampleRate:      format.SampleRate,
		FramesPerBuffer: frames,
	}
	var (
		stream *portaudio.Stream
		err    error
	)
	switch s.role {
	case RoleCapture:
		params.Input = portaudio.StreamDeviceParameters{
			Device:   s.conn.in,
			Channels: format.Channels,
			Latency:  s.conn.latencyFor(s.conn.in, RoleCapture),
		}
		stream, err = portaudio.OpenStream(params, s.captureCallback)
	case RolePlayback:
		params.Output = portaudio.StreamDeviceParameters{
			Device:   s.conn.out,
			Channels: format.Channels,
			Latency:  s.conn.latencyFor(s.conn.out, RolePlayback),
		}
		stream, err = portaudio.OpenStream(params, s.playbackCallback)
	}
	if err != nil {
		s.state = StreamFailed
		return
	}
	s.pa = stream

	if s.startCorked {
		s.corked = true
	} else if err := s.pa.Start(); err != nil {
		s.pa.Close()
		s.pa = nil
		s.state = StreamFailed
		return
	}
	s.state = StreamReady
}

func (s *paStream) frames() int {
	var hint uint32
	switch s.role {
	case RoleCapture:
		hint = s.attr.FragmentSize
	case RolePlayback:
		hint = s.attr.TargetLength
	}
	if hint == 0 || hint == unlimited {
		return defaultFrames
	}
	frames := int(hint) / s.conn.format.FrameBytes()
	if frames < 1 {
		return 1
	}
	return frames
}

func (s *paStream) ringBytes() int {
	if s.attr.MaxLength == 0 || s.attr.MaxLength == unlimited {
		return defaultRingBytes
	}
	return int(s.attr.MaxLength)
}

// captureCallback runs on the PortAudio thread. Incoming frames are encoded
// into the ring; when the ring cannot take a whole buffer the buffer is
// dropped and accounted as a hole rather than written partially.
func (s *paStream) captureCallback(in []float32) {
	n := len(in) * 4
	if n > len(s.cb) {
		n = len(s.cb)
		in = in[:n/4]
	}
	buf := s.cb[:n]
	for i, v := range in {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}

	if s.ring.Free() < n {
		s.holeBytes.Add(int64(n))
	} else {
		s.ring.Write(buf)
	}
	s.conn.wake()
}

// playbackCallback drains the ring into the device, zero-filling whatever
// the pipeline has not delivered in time.
func (s *paStream) playbackCallback(out []float32) {
	need := len(out) * 4
	if need > len(s.cb) {
		need = len(s.cb)
	}
	n, _ := s.ring.Read(s.cb[:need])

	samples := n / 4
	for i := 0; i < samples; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(s.cb[4*i:]))
	}
	for i := samples; i < len(out); i++ {
		out[i] = 0
	}
	s.conn.wake()
}

func (s *paStream) Peek() PeekResult {
	if s.role != RoleCapture || s.state != StreamReady {
		return PeekResult{Kind: PeekEmpty}
	}
	if s.heldHole > 0 {
		return PeekResult{Kind: PeekHole, HoleBytes: s.heldHole}
	}
	if s.held != nil {
		return PeekResult{Kind: PeekData, Data: s.held}
	}

	if n := s.ring.Length(); n > 0 {
		want := n
		if want > len(s.peekBuf) {
			want = len(s.peekBuf)
		}
		m, err := s.ring.Read(s.peekBuf[:want])
		if err == nil && m > 0 {
			s.held = s.peekBuf[:m]
			return PeekResult{Kind: PeekData, Data: s.held}
		}
	}

	// Only surface overrun holes once the buffered audio before them has
	// been consumed.
	if h := s.holeBytes.Swap(0); h > 0 {
		s.heldHole = int(h)
		return PeekResult{Kind: PeekHole, HoleBytes: s.heldHole}
	}
	return PeekResult{Kind: PeekEmpty}
}

func (s *paStream) Discard() error {
	switch {
	case s.heldHole > 0:
		s.heldHole = 0
	case s.held != nil:
		s.held = nil
	default:
		return ErrNothingPeeked
	}
	return nil
}

func (s *paStream) Write(p []byte) error {
	if s.role != RolePlayback {
		return fmt.Errorf("device: write on %s stream", s.role)
	}
	if s.state != StreamReady {
		return fmt.Errorf("device: write on %s stream in state %s", s.role, s.state)
	}
	if s.ring.Free() < len(p) {
		return fmt.Errorf("device: playback buffer full, %d bytes would not fit", len(p))
	}
	_, err := s.ring.Write(p)
	return err
}

func (s *paStream) IsCorked() bool { return s.corked }

func (s *paStream) Uncork() error {
	if !s.corked {
		return nil
	}
	if err := s.pa.Start(); err != nil {
		s.state = StreamFailed
		return err
	}
	s.corked = false
	return nil
}

func (s *paStream) close() error {
	if s.pa == nil {
		s.state = StreamTerminated
		return nil
	}
	var firstErr error
	if !s.corked {
		if err := s.pa.Stop(); err != nil {
			firstErr = err
		}
	}
	if err := s.pa.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.pa = nil
	s.state = StreamTerminated
	return firstErr
}
