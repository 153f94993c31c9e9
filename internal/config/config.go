// SPDX-License-Identifier: MIT
package config

import "fmt"

// Core configuration constants that define the boundaries and defaults
// for the loopback pipeline.
const (
	// Default values for the pipeline configuration
	DefaultChannels        = 2           // Stereo loopback
	DefaultInputDeviceID   = MinDeviceID // System default capture device
	DefaultOutputDeviceID  = MinDeviceID // System default playback device
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultFramesPerBuffer = 1024        // Frames exchanged per stream fragment
	DefaultLowLatency      = true        // Loopback wants tight scheduling
	DefaultBlockingPoll    = false       // Busy-poll the event loop
	DefaultRecordOutput    = false       // Don't tap the processed stream
	DefaultOutputFile      = ""          // Auto-generated filename
	DefaultMeterPort       = ""          // Telemetry disabled
	DefaultLogLevel        = "info"
	DefaultCommand         = ""          // No one-off command

	// Hardware and processing limits
	MinDeviceID   = -1     // -1 selects the system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MaxChannels   = 8
	MaxFrames     = 8192 // Maximum frames per stream fragment
)

// Config holds all runtime options for the loopback pipeline. It is built
// from defaults, optionally a YAML file, and command line flags, in that
// order of precedence (lowest first).
type Config struct {
	// VolumeCap is the volume ceiling in (0, 1]. Required; there is no
	// safe value to assume on someone's ears.
	VolumeCap float64 `yaml:"volume"`

	// Audio Device Settings
	InputDevice     int     `yaml:"input_device"`
	OutputDevice    int     `yaml:"output_device"`
	Channels        int     `yaml:"channels"`
	SampleRate      float64 `yaml:"sample_rate"`
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	LowLatency      bool    `yaml:"low_latency"`

	// Pump behavior
	BlockingPoll bool `yaml:"blocking_poll"` // Suspend in Advance instead of busy-polling

	// Output taps
	RecordOutput bool   `yaml:"record_output"` // Record the processed stream to a WAV file
	OutputFile   string `yaml:"output_file"`
	MeterPort    string `yaml:"meter_port"` // WebSocket telemetry port, empty disables

	// Diagnostics
	LogLevel string `yaml:"log_level"`
	Verbose  bool   `yaml:"-"`

	// Command is a one-off command to execute instead of the pipeline
	Command string `yaml:"-"`
	// Run is set when the pipeline should actually start
	Run bool `yaml:"-"`
}

// NewConfig creates a Config populated with defaults. VolumeCap is left at
// zero and fails validation until the user provides it.
func NewConfig() *Config {
	return &Config{
		InputDevice:     DefaultInputDeviceID,
		OutputDevice:    DefaultOutputDeviceID,
		Channels:        DefaultChannels,
		SampleRate:      DefaultSampleRate,
		FramesPerBuffer: DefaultFramesPerBuffer,
		LowLatency:      DefaultLowLatency,
		BlockingPoll:    DefaultBlockingPoll,
		RecordOutput:    DefaultRecordOutput,
		OutputFile:      DefaultOutputFile,
		MeterPort:       DefaultMeterPort,
		LogLevel:        DefaultLogLevel,
		Command:         DefaultCommand,
	}
}

// Validate rejects configurations the pipeline must not start with. It runs
// before any audio resource is acquired.
func (c *Config) Validate() error {
	if !(c.VolumeCap > 0 && c.VolumeCap <= 1) {
		return fmt.Errorf("volume must be in (0.0, 1.0], got %v", c.VolumeCap)
	}
	if c.SampleRate < MinSampleRate || c.SampleRate > MaxSampleRate {
		return fmt.Errorf("sample rate %v outside [%d, %d] Hz", c.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Channels < 1 || c.Channels > MaxChannels {
		return fmt.Errorf("channel count %d outside [1, %d]", c.Channels, MaxChannels)
	}
	if c.FramesPerBuffer < 1 || c.FramesPerBuffer > MaxFrames {
		return fmt.Errorf("frames per buffer %d outside [1, %d]", c.FramesPerBuffer, MaxFrames)
	}
	if c.RecordOutput && c.OutputFile == "" {
		return fmt.Errorf("recording requested without an output file")
	}
	return nil
}
