// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with pointer fields so a YAML file can set any
// subset of options without clobbering defaults for the rest.
type fileConfig struct {
	VolumeCap       *float64 `yaml:"volume"`
	InputDevice     *int     `yaml:"input_device"`
	OutputDevice    *int     `yaml:"output_device"`
	Channels        *int     `yaml:"channels"`
	SampleRate      *float64 `yaml:"sample_rate"`
	FramesPerBuffer *int     `yaml:"frames_per_buffer"`
	LowLatency      *bool    `yaml:"low_latency"`
	BlockingPoll    *bool    `yaml:"blocking_poll"`
	RecordOutput    *bool    `yaml:"record_output"`
	OutputFile      *string  `yaml:"output_file"`
	MeterPort       *string  `yaml:"meter_port"`
	LogLevel        *string  `yaml:"log_level"`
}

// ApplyFile overlays options from a YAML file onto c. Only keys present in
// the file are touched, so the expected layering is: defaults, then file,
// then explicit command line flags on top.
func (c *Config) ApplyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if fc.VolumeCap != nil {
		c.VolumeCap = *fc.VolumeCap
	}
	if fc.InputDevice != nil {
		c.InputDevice = *fc.InputDevice
	}
	if fc.OutputDevice != nil {
		c.OutputDevice = *fc.OutputDevice
	}
	if fc.Channels != nil {
		c.Channels = *fc.Channels
	}
	if fc.SampleRate != nil {
		c.SampleRate = *fc.SampleRate
	}
	if fc.FramesPerBuffer != nil {
		c.FramesPerBuffer = *fc.FramesPerBuffer
	}
	if fc.LowLatency != nil {
		c.LowLatency = *fc.LowLatency
	}
	if fc.BlockingPoll != nil {
		c.BlockingPoll = *fc.BlockingPoll
	}
	if fc.RecordOutput != nil {
		c.RecordOutput = *fc.RecordOutput
	}
	if fc.OutputFile != nil {
		c.OutputFile = *fc.OutputFile
	}
	if fc.MeterPort != nil {
		c.MeterPort = *fc.MeterPort
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	return nil
}
