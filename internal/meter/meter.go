// SPDX-License-Identifier: MIT
// Package meter broadcasts limiter telemetry to WebSocket clients: per
// buffer the input peak, the applied gain, the output peak and a magnitude
// spectrum of what actually reached the playback stream.
package meter

import (
	"time"

	"hush/internal/audio"
)

// spectrumSize is the number of processed samples folded into each
// telemetry spectrum.
const spectrumSize = 256

// minSendInterval caps the telemetry rate so a busy pump cannot flood
// clients. The meter enforces it before any spectrum work, so frames above
// the rate cost nothing on the pump thread.
const minSendInterval = 50 * time.Millisecond

// Transport delivers telemetry frames. Implementations must be safe to
// call from the pump thread alongside their own connection handling.
type Transport interface {
	Send(v any) error
	Close() error
}

// Frame is one telemetry datum as serialized to clients.
type Frame struct {
	Samples    int       `json:"samples"`
	InputPeak  float32   `json:"input_peak"`
	Gain       float32   `json:"gain"`
	OutputPeak float32   `json:"output_peak"`
	ElapsedUS  int64     `json:"elapsed_us"`
	Spectrum   []float64 `json:"spectrum,omitempty"`
}

// Meter observes the pump and forwards frames to its transport. It runs on
// the pump thread, so Observe does no blocking work of its own; the
// transport decides what to drop.
type Meter struct {
	transport Transport
	spectrum  *Spectrum
	stride    int
	lastSend  time.Time
}

// New builds a meter serving WebSocket clients on the given port. stride
// is the channel count of the interleaved stream; the spectrum follows the
// first channel.
func New(port string, stride int) *Meter {
	return &Meter{
		transport: NewWebSocketTransport(port),
		spectrum:  NewSpectrum(spectrumSize),
		stride:    stride,
	}
}

// NewWithTransport is New with an explicit transport, used in tests.
func NewWithTransport(t Transport, stride int) *Meter {
	return &Meter{
		transport: t,
		spectrum:  NewSpectrum(spectrumSize),
		stride:    stride,
	}
}

// Observe implements audio.Observer. Frames above the broadcast rate are
// dropped up front, before the spectrum is computed.
func (m *Meter) Observe(metrics audio.Metrics, samples []float32) {
	now := time.Now()
	if now.Sub(m.lastSend) < minSendInterval {
		return
	}
	m.lastSend = now

	frame := Frame{
		Samples:    metrics.Samples,
		InputPeak:  metrics.InputPeak,
		Gain:       metrics.Gain,
		OutputPeak: metrics.OutputPeak,
		ElapsedUS:  metrics.Elapsed.Microseconds(),
		Spectrum:   m.spectrum.Magnitudes(samples, m.stride),
	}

	// Send failures are the transport's problem; telemetry never takes
	// the pipeline down.
	_ = m.transport.Send(frame)
}

// Close shuts the transport down.
func (m *Meter) Close() error {
	return m.transport.Close()
}
