// SPDX-License-Identifier: MIT
package dsp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// SampleBytes is the wire size of one sample: 32-bit IEEE-754 float,
// little-endian, as exchanged with the audio server.
const SampleBytes = 4

// ErrMalformedBuffer is returned when a byte buffer cannot be split into
// whole samples. This indicates a contract violation by the I/O layer and
// must abort the session; dropping the trailing bytes would silently
// desynchronize the capture and playback positions.
var ErrMalformedBuffer = errors.New("dsp: buffer length is not a multiple of the sample width")

// Decode interprets buf as consecutive little-endian float32 samples.
func Decode(buf []byte) ([]float32, error) {
	return DecodeTo(nil, buf)
}

// DecodeTo appends the samples decoded from buf to dst and returns the
// extended slice. Passing dst[:0] with retained capacity keeps the pump
// loop allocation-free once warmed up.
func DecodeTo(dst []float32, buf []byte) ([]float32, error) {
	if len(buf)%SampleBytes != 0 {
		return dst, fmt.Errorf("%w: %d bytes", ErrMalformedBuffer, len(buf))
	}
	for i := 0; i < len(buf); i += SampleBytes {
		bits := binary.LittleEndian.Uint32(buf[i:])
		dst = append(dst, math.Float32frombits(bits))
	}
	return dst, nil
}

// Encode serializes samples as little-endian float32 bytes.
func Encode(samples []float32) []byte {
	return EncodeTo(nil, samples)
}

// EncodeTo appends the encoded form of samples to dst and returns the
// extended slice.
func EncodeTo(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		var b [SampleBytes]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(s))
		dst = append(dst, b[:]...)
	}
	return dst
}
