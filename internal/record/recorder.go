// SPDX-License-Identifier: MIT
// Package record taps the processed output stream into a WAV file. The
// recorder implements io.Writer over the pipeline's raw float32 bytes and
// stores them as 32-bit PCM, so a capture of what actually reached the
// listener can be inspected offline.
package record

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"hush/internal/dsp"
)

const bitDepth = 32

// Recorder writes the processed byte stream to a WAV file. It is driven
// from the single pump thread; Close must be called after the pump has
// stopped.
type Recorder struct {
	file    *os.File
	enc     *wav.Encoder
	buf     *audio.IntBuffer
	samples []float32
}

// Create opens path for writing and prepares a 32-bit PCM encoder matching
// the pipeline format.
func Create(path string, sampleRate float64, channels int) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating recording file: %w", err)
	}

	return &Recorder{
		file: file,
		enc:  wav.NewEncoder(file, int(sampleRate), bitDepth, channels, 1),
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  int(sampleRate),
			},
		},
	}, nil
}

// Write appends raw little-endian float32 bytes to the file. Implements
// io.Writer so the pump can use the recorder as its output tap.
func (r *Recorder) Write(p []byte) (int, error) {
	samples, err := dsp.DecodeTo(r.samples[:0], p)
	if err != nil {
		return 0, err
	}
	r.samples = samples

	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]
	for i, s := range samples {
		r.buf.Data[i] = pcm32(s)
	}

	if err := r.enc.Write(r.buf); err != nil {
		return 0, fmt.Errorf("writing WAV data: %w", err)
	}
	return len(p), nil
}

// Close finalizes the WAV header and closes the file.
func (r *Recorder) Close() error {
	if err := r.enc.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// pcm32 converts a float sample in [-1, 1] to a 32-bit PCM value, clamping
// anything outside the range.
func pcm32(s float32) int {
	if s >= 1 {
		return math.MaxInt32
	}
	if s <= -1 {
		return math.MinInt32
	}
	return int(float64(s) * math.MaxInt32)
}
