// SPDX-License-Identifier: MIT
package dsp

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodeKnownValues(t *testing.T) {
	tests := []struct {
		desc string
		buf  []byte
		want []float32
	}{
		{"Empty buffer", nil, nil},
		{"Zero sample", []byte{0x00, 0x00, 0x00, 0x00}, []float32{0}},
		{"Unity sample", []byte{0x00, 0x00, 0x80, 0x3f}, []float32{1}},
		{"Negative unity", []byte{0x00, 0x00, 0x80, 0xbf}, []float32{-1}},
		{"Half", []byte{0x00, 0x00, 0x00, 0x3f}, []float32{0.5}},
		{"Two samples", []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x00, 0xbf}, []float32{1, -0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := Decode(tt.buf)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Decoded length: got %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Sample %d: got %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDecodeMalformedBuffer(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 7, 1023} {
		buf := make([]byte, n)
		if _, err := Decode(buf); !errors.Is(err, ErrMalformedBuffer) {
			t.Errorf("Decode of %d bytes: got %v, want ErrMalformedBuffer", n, err)
		}
	}
}

func TestCodecRoundTrip(t *testing.T) {
	// Deterministic pseudo-random bytes; every 4-byte group is a valid
	// float32 pattern apart from possible NaNs, so avoid exponent 0xff.
	buf := make([]byte, 4096)
	seed := uint32(0x2545f491)
	for i := range buf {
		seed = seed*1664525 + 1013904223
		b := byte(seed >> 24)
		if i%4 == 3 {
			b &= 0x3f // keep exponents finite
		}
		buf[i] = b
	}

	samples, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got := Encode(samples); !bytes.Equal(got, buf) {
		t.Error("Round trip did not reproduce the original bytes")
	}
}

func TestCodecHotPathAllocations(t *testing.T) {
	raw := Encode(make([]float32, 1024))
	samples := make([]float32, 0, 1024)
	out := make([]byte, 0, len(raw))

	allocs := testing.AllocsPerRun(100, func() {
		var err error
		samples, err = DecodeTo(samples[:0], raw)
		if err != nil {
			t.Fatal(err)
		}
		out = EncodeTo(out[:0], samples)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations with warmed buffers, got %.1f", allocs)
	}
}

func BenchmarkCodecHotPath(b *testing.B) {
	raw := Encode(make([]float32, 1024))
	samples := make([]float32, 0, 1024)
	out := make([]byte, 0, len(raw))

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		samples, _ = DecodeTo(samples[:0], raw)
		out = EncodeTo(out[:0], samples)
	}
}
