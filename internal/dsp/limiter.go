// SPDX-License-Identifier: MIT
package dsp

import "fmt"

const (
	// DefaultChunkSamples is the number of samples folded into one peak
	// observation. Kept well below the stream buffer size so the gain can
	// react within a single pumped buffer.
	DefaultChunkSamples = 64

	// DefaultWindowSlots is the number of per-chunk peaks the limiter
	// remembers when estimating recent loudness.
	DefaultWindowSlots = 128
)

// Limiter attenuates audio so that neither the instantaneous chunk peak nor
// the recent weighted loudness exceeds the configured ceiling. It never
// boosts: the computed gain is always in (0, 1].
//
// The loudness estimate weights the remembered peaks by recency, so one loud
// sample inside a quiet passage is capped without dragging the gain down for
// long, while a sustained loud passage is held at the ceiling by its trailing
// average. The gradual weighting keeps consecutive gain values close together
// and avoids audible pumping.
type Limiter struct {
	ceiling  float32
	window   *Window
	lastGain float32
}

// NewLimiter builds a limiter for the given volume ceiling in (0, 1] with
// the default chunk and window sizes.
func NewLimiter(ceiling float32) (*Limiter, error) {
	return NewLimiterSize(ceiling, DefaultWindowSlots)
}

// NewLimiterSize is NewLimiter with an explicit window capacity.
func NewLimiterSize(ceiling float32, windowSlots int) (*Limiter, error) {
	if !(ceiling > 0 && ceiling <= 1) {
		return nil, fmt.Errorf("dsp: volume ceiling %v outside (0, 1]", ceiling)
	}
	return &Limiter{
		ceiling:  ceiling,
		window:   NewWindow(windowSlots),
		lastGain: 1,
	}, nil
}

// Ceiling returns the configured volume ceiling.
func (l *Limiter) Ceiling() float32 { return l.ceiling }

// LastGain returns the gain applied to the most recent chunk, 1 before any
// audio has been processed.
func (l *Limiter) LastGain() float32 { return l.lastGain }

// Apply computes the gain for one chunk, scales the chunk in place, and
// returns the gain. The chunk length is normally DefaultChunkSamples but a
// short final chunk at the end of a buffer is processed the same way.
func (l *Limiter) Apply(chunk []float32) float32 {
	gain := l.gain(chunk)
	if gain != 1 {
		for i := range chunk {
			chunk[i] *= gain
		}
	}
	return gain
}

func (l *Limiter) gain(chunk []float32) float32 {
	var peak float32
	for _, s := range chunk {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	l.window.Append(peak)

	// Recency-weighted loudness: position i of the oldest-to-newest
	// traversal carries weight i/N, normalized by N/2, the weight sum a
	// uniformly loud signal would accumulate over a full window.
	n := float64(l.window.Cap())
	var sum float64
	l.window.Each(func(i int, v float32) {
		sum += float64(v) * float64(i) / n
	})
	loudness := float32(sum / (n * 0.5))

	// The ceiling is the floor of the denominator, so division is safe and
	// the gain never exceeds 1.
	denom := l.ceiling
	if loudness > denom {
		denom = loudness
	}
	if peak > denom {
		denom = peak
	}

	l.lastGain = l.ceiling / denom
	return l.lastGain
}
