// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hush/internal/device"
	"hush/internal/dsp"
)

func newReadySession(t *testing.T) (*Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	s := NewSession(conn, testFormat(), 1024, false)
	require.NoError(t, s.Open())
	return s, conn
}

func newTestPump(t *testing.T, s *Session, ceiling float32) *Pump {
	t.Helper()
	limiter, err := dsp.NewLimiter(ceiling)
	require.NoError(t, err)
	return NewPump(s, limiter, nil)
}

func constantBuffer(n int, v float32) []byte {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = v
	}
	return dsp.Encode(samples)
}

func TestPumpHoleDiscardedWithoutWrite(t *testing.T) {
	s, conn := newReadySession(t)
	conn.capture.queue = []device.PeekResult{
		{Kind: device.PeekHole, HoleBytes: 4096},
		{Kind: device.PeekData, Data: constantBuffer(256, 0.01)},
	}

	p := newTestPump(t, s, 0.5)

	// Hole iteration: discarded, nothing written.
	require.NoError(t, p.step())
	assert.Equal(t, 1, conn.capture.discards)
	assert.Empty(t, conn.playback.writes)

	// The following iteration proceeds normally.
	require.NoError(t, p.step())
	assert.Equal(t, 2, conn.capture.discards)
	assert.Len(t, conn.playback.writes, 1)

	// And an empty peek is a no-op.
	require.NoError(t, p.step())
	assert.Equal(t, 2, conn.capture.discards)
	assert.Len(t, conn.playback.writes, 1)
}

func TestPumpUncorksCaptureFirstPlaybackAfterFirstWrite(t *testing.T) {
	s, conn := newReadySession(t)
	conn.capture.queue = []device.PeekResult{
		{Kind: device.PeekData, Data: constantBuffer(128, 0.01)},
	}

	p := newTestPump(t, s, 0.5)

	require.True(t, conn.capture.IsCorked())
	require.True(t, conn.playback.IsCorked())

	// First step has no choice but to uncork capture before peeking;
	// playback is uncorked only once its first buffer is queued.
	playbackCorkedAtWrite := true
	conn.playback.onWrite = func([]byte) {
		playbackCorkedAtWrite = conn.playback.IsCorked()
	}

	require.NoError(t, p.step())
	assert.False(t, conn.capture.IsCorked())
	assert.False(t, conn.playback.IsCorked())
	assert.True(t, playbackCorkedAtWrite, "playback must stay corked until data is queued")
}

func TestPumpAppliesLimiterGain(t *testing.T) {
	s, conn := newReadySession(t)
	conn.capture.queue = []device.PeekResult{
		{Kind: device.PeekData, Data: constantBuffer(dsp.DefaultChunkSamples, 0.5)},
	}

	p := newTestPump(t, s, 0.25)
	require.NoError(t, p.step())
	require.Len(t, conn.playback.writes, 1)

	out, err := dsp.Decode(conn.playback.writes[0])
	require.NoError(t, err)
	require.Len(t, out, dsp.DefaultChunkSamples)
	for _, v := range out {
		assert.InDelta(t, 0.25, v, 1e-6)
	}
}

func TestPumpPassesQuietAudioUntouched(t *testing.T) {
	s, conn := newReadySession(t)
	in := constantBuffer(256, 0.01)
	conn.capture.queue = []device.PeekResult{
		{Kind: device.PeekData, Data: in},
	}

	p := newTestPump(t, s, 0.5)
	require.NoError(t, p.step())
	require.Len(t, conn.playback.writes, 1)
	assert.Equal(t, in, conn.playback.writes[0], "below the ceiling the bytes pass through unchanged")
}

func TestPumpShortFinalChunk(t *testing.T) {
	s, conn := newReadySession(t)
	// 80 samples: one full chunk of 64 plus a short final chunk of 16.
	conn.capture.queue = []device.PeekResult{
		{Kind: device.PeekData, Data: constantBuffer(80, 0.5)},
	}

	p := newTestPump(t, s, 0.25)
	require.NoError(t, p.step())
	require.Len(t, conn.playback.writes, 1)

	out, err := dsp.Decode(conn.playback.writes[0])
	require.NoError(t, err)
	require.Len(t, out, 80)
	for i, v := range out {
		assert.LessOrEqualf(t, v, float32(0.25)+1e-6, "sample %d above the ceiling", i)
	}
}

func TestPumpMalformedCaptureIsFatal(t *testing.T) {
	s, conn := newReadySession(t)
	conn.capture.queue = []device.PeekResult{
		{Kind: device.PeekData, Data: []byte{1, 2, 3}},
	}

	p := newTestPump(t, s, 0.5)
	err := p.step()
	require.ErrorIs(t, err, dsp.ErrMalformedBuffer)
	assert.Empty(t, conn.playback.writes)
}

func TestPumpWriteFailureIsFatal(t *testing.T) {
	s, conn := newReadySession(t)
	conn.capture.queue = []device.PeekResult{
		{Kind: device.PeekData, Data: constantBuffer(64, 0.1)},
	}
	conn.playback.failWrite = errors.New("sink gone")

	p := newTestPump(t, s, 0.5)
	require.Error(t, p.step())
	// The peeked input was not discarded past the failed write.
	assert.Equal(t, 0, conn.capture.discards)
}

func TestPumpObserverSeesMetrics(t *testing.T) {
	s, conn := newReadySession(t)
	conn.capture.queue = []device.PeekResult{
		{Kind: device.PeekData, Data: constantBuffer(128, 0.5)},
	}

	limiter, err := dsp.NewLimiter(0.25)
	require.NoError(t, err)

	var got []Metrics
	obs := observerFunc(func(m Metrics, _ []float32) { got = append(got, m) })
	p := NewPump(s, limiter, nil, obs)

	require.NoError(t, p.step())
	require.Len(t, got, 1)

	m := got[0]
	assert.Equal(t, 128, m.Samples)
	assert.InDelta(t, 0.5, m.InputPeak, 1e-6)
	assert.InDelta(t, 0.5, m.Gain, 1e-6)
	assert.InDelta(t, 0.25, m.OutputPeak, 1e-6)
}

type observerFunc func(Metrics, []float32)

func (f observerFunc) Observe(m Metrics, samples []float32) { f(m, samples) }

type failingTap struct{ calls int }

func (f *failingTap) Write(p []byte) (int, error) {
	f.calls++
	return 0, errors.New("tap broken")
}

func TestPumpTapFailureDoesNotAbort(t *testing.T) {
	s, conn := newReadySession(t)
	conn.capture.queue = []device.PeekResult{
		{Kind: device.PeekData, Data: constantBuffer(64, 0.1)},
		{Kind: device.PeekData, Data: constantBuffer(64, 0.1)},
	}

	limiter, err := dsp.NewLimiter(0.5)
	require.NoError(t, err)
	tap := &failingTap{}
	p := NewPump(s, limiter, tap)

	require.NoError(t, p.step())
	require.NoError(t, p.step())
	assert.Equal(t, 1, tap.calls, "a failing tap is dropped after the first error")
	assert.Len(t, conn.playback.writes, 2)
}

func TestPumpBlockingPollProcessesAudio(t *testing.T) {
	// A blocking session must behave exactly like a busy-polling one: the
	// handshake completes, Advance is driven in blocking mode, and audio
	// flows from capture to playback.
	conn := newFakeConn()
	s := NewSession(conn, testFormat(), 1024, true)
	require.NoError(t, s.Open())

	conn.capture.queue = []device.PeekResult{
		{Kind: device.PeekData, Data: constantBuffer(64, 0.1)},
	}

	p := newTestPump(t, s, 0.5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn.playback.onWrite = func([]byte) { cancel() }

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("blocking session did not move any audio")
	}

	assert.True(t, conn.lastBlocking, "the pump must advance in the session's poll mode")
	require.Len(t, conn.playback.writes, 1)
	assert.False(t, conn.capture.IsCorked())
	assert.False(t, conn.playback.IsCorked())
}

func TestPumpRunStopsOnCancel(t *testing.T) {
	s, _ := newReadySession(t)
	p := newTestPump(t, s, 0.5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestPumpRunAbortsOnStreamFailure(t *testing.T) {
	s, conn := newReadySession(t)
	p := newTestPump(t, s, 0.5)

	conn.capture.state = device.StreamFailed

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := p.Run(ctx)
	require.ErrorIs(t, err, ErrStreamAborted)
}
