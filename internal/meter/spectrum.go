// SPDX-License-Identifier: MIT
package meter

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum computes magnitude spectra of the processed signal for the
// telemetry feed. Buffers are pre-allocated; Magnitudes reuses its output
// slice, so callers must consume it before the next call.
type Spectrum struct {
	size   int
	fft    *fourier.FFT
	window []float64 // Hann coefficients
	input  []float64
	coeffs []complex128
	mags   []float64
}

// NewSpectrum creates a spectrum analyzer over size input samples. Size
// must be a power of two.
func NewSpectrum(size int) *Spectrum {
	if size <= 0 || size&(size-1) != 0 {
		panic("meter: spectrum size must be a power of 2")
	}

	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}

	outputSize := size/2 + 1
	return &Spectrum{
		size:   size,
		fft:    fourier.NewFFT(size),
		window: window,
		input:  make([]float64, size),
		coeffs: make([]complex128, outputSize),
		mags:   make([]float64, outputSize),
	}
}

// Magnitudes windows one channel of the interleaved samples (taking every
// stride-th value) and returns the magnitude of each frequency bin. Short
// inputs are zero-padded.
func (s *Spectrum) Magnitudes(samples []float32, stride int) []float64 {
	if stride < 1 {
		stride = 1
	}
	for i := 0; i < s.size; i++ {
		idx := i * stride
		if idx < len(samples) {
			s.input[i] = float64(samples[idx]) * s.window[i]
		} else {
			s.input[i] = 0
		}
	}

	s.fft.Coefficients(s.coeffs, s.input)
	for i, c := range s.coeffs {
		s.mags[i] = cmplx.Abs(c)
	}
	return s.mags
}

// BinFrequency returns the center frequency in Hz of bin i at the given
// sample rate.
func (s *Spectrum) BinFrequency(i int, sampleRate float64) float64 {
	if i < 0 || i >= len(s.coeffs) {
		return 0
	}
	return s.fft.Freq(i) * sampleRate
}
