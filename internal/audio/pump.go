// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"
	"io"
	"time"

	"hush/internal/device"
	"hush/internal/dsp"
	"hush/internal/log"
)

// Metrics describes one pumped buffer for observers.
type Metrics struct {
	Samples    int           // samples moved this iteration
	InputPeak  float32       // max |sample| before limiting
	Gain       float32       // smallest gain applied across the buffer's chunks
	OutputPeak float32       // max |sample| after limiting
	Elapsed    time.Duration // processing time for the iteration
}

// Observer receives per-iteration metrics together with the processed
// samples. Implementations must not block; they run on the pump thread.
type Observer interface {
	Observe(m Metrics, samples []float32)
}

// Pump is the steady-state loop: advance the event loop, read captured
// audio, limit it chunk by chunk, write it to playback, discard the input.
// Performance Critical (Hot Path):
// - All buffers are pre-allocated and reused across iterations
// - One Peek/Write/Discard triple per iteration, strictly FIFO
type Pump struct {
	session *Session
	limiter *dsp.Limiter

	observers []Observer
	tap       io.Writer // optional sink for the processed byte stream

	samples []float32
	out     []byte

	primed bool // playback uncorked after the first write
}

// NewPump wires a session and a limiter together. tap may be nil; observers
// are optional.
func NewPump(session *Session, limiter *dsp.Limiter, tap io.Writer, observers ...Observer) *Pump {
	frag := session.SamplesPerFragment()
	return &Pump{
		session:   session,
		limiter:   limiter,
		observers: observers,
		tap:       tap,
		samples:   make([]float32, 0, 4*frag),
		out:       make([]byte, 0, 4*frag*dsp.SampleBytes),
	}
}

// Run loops until the context is canceled or a fatal condition is
// observed. Cancellation returns nil; everything else is an error that the
// caller should treat as terminal for the process.
func (p *Pump) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if out := p.session.Advance(); out != device.OutcomeSuccess {
			return fmt.Errorf("%w: event loop returned %s", ErrConnAborted, out)
		}
		if err := p.session.CheckStreams(); err != nil {
			return err
		}
		if err := p.step(); err != nil {
			return err
		}
	}
}

// step handles one unit of available capture data.
func (p *Pump) step() error {
	capture := p.session.Capture()

	// Deferred start: open the capture tap as soon as the loop is
	// running. Playback stays corked until the first processed buffer
	// has been queued.
	if capture.IsCorked() {
		if err := capture.Uncork(); err != nil {
			return fmt.Errorf("uncorking capture stream: %w", err)
		}
	}

	res := capture.Peek()
	switch res.Kind {
	case device.PeekEmpty:
		return nil

	case device.PeekHole:
		// A gap in the input is not an error: drop it and keep the
		// stream position moving. Nothing is written this tick.
		log.Debugf("capture hole: %d bytes", res.HoleBytes)
		if err := capture.Discard(); err != nil {
			return fmt.Errorf("discarding capture hole: %w", err)
		}
		return nil

	case device.PeekData:
		return p.process(res.Data)

	default:
		return fmt.Errorf("unexpected peek result %d", res.Kind)
	}
}

func (p *Pump) process(data []byte) error {
	start := time.Now()

	samples, err := dsp.DecodeTo(p.samples[:0], data)
	if err != nil {
		// Malformed capture bytes mean the I/O layer broke its
		// contract; dropping them would desynchronize the stream
		// positions, so abort instead.
		return err
	}
	p.samples = samples

	inPeak := peak(samples)

	// Partition into fixed-size chunks; the remainder at the end of the
	// buffer is processed as a short final chunk.
	minGain := float32(1)
	for off := 0; off < len(samples); off += dsp.DefaultChunkSamples {
		end := off + dsp.DefaultChunkSamples
		if end > len(samples) {
			end = len(samples)
		}
		if gain := p.limiter.Apply(samples[off:end]); gain < minGain {
			minGain = gain
		}
	}

	p.out = dsp.EncodeTo(p.out[:0], samples)

	playback := p.session.Playback()
	if err := playback.Write(p.out); err != nil {
		return fmt.Errorf("writing playback stream: %w", err)
	}
	if !p.primed {
		// First processed buffer is queued; audio start is tied to
		// data availability, not a timer.
		if err := playback.Uncork(); err != nil {
			return fmt.Errorf("uncorking playback stream: %w", err)
		}
		p.primed = true
	}

	// The input is released only after its processed counterpart has
	// been written, preserving FIFO correspondence.
	if err := p.session.Capture().Discard(); err != nil {
		return fmt.Errorf("discarding capture data: %w", err)
	}

	if p.tap != nil {
		// The tap is supplemental; a failing recorder must not take
		// the session down.
		if _, err := p.tap.Write(p.out); err != nil {
			log.Warnf("output tap write failed: %v", err)
			p.tap = nil
		}
	}

	elapsed := time.Since(start)
	if len(p.observers) > 0 {
		m := Metrics{
			Samples:    len(samples),
			InputPeak:  inPeak,
			Gain:       minGain,
			OutputPeak: peak(samples),
			Elapsed:    elapsed,
		}
		for _, o := range p.observers {
			o.Observe(m, samples)
		}
	}

	log.Debugf("pumped %d samples, gain %.4f, took %s", len(samples), minGain, elapsed)
	return nil
}

func peak(samples []float32) float32 {
	var m float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > m {
			m = s
		}
	}
	return m
}
