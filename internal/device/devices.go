// SPDX-License-Identifier: MIT
package device

import (
	"fmt"
	"io"
	"os"

	"github.com/gordonklaus/portaudio"
)

// DefaultDeviceID selects the system default device for a role.
const DefaultDeviceID = -1

// Initialize sets up the PortAudio subsystem. Must be called before any
// other device operation and paired with Terminate.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate shuts the PortAudio subsystem down.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// HostDevices returns every device PortAudio knows about.
func HostDevices() ([]*portaudio.DeviceInfo, error) {
	return portaudio.Devices()
}

func inputDevice(id int) (*portaudio.DeviceInfo, error) {
	if id == DefaultDeviceID {
		return portaudio.DefaultInputDevice()
	}
	dev, err := deviceByID(id)
	if err != nil {
		return nil, err
	}
	if dev.MaxInputChannels == 0 {
		return nil, fmt.Errorf("device %d (%s) has no input channels", id, dev.Name)
	}
	return dev, nil
}

func outputDevice(id int) (*portaudio.DeviceInfo, error) {
	if id == DefaultDeviceID {
		return portaudio.DefaultOutputDevice()
	}
	dev, err := deviceByID(id)
	if err != nil {
		return nil, err
	}
	if dev.MaxOutputChannels == 0 {
		return nil, fmt.Errorf("device %d (%s) has no output channels", id, dev.Name)
	}
	return dev, nil
}

func deviceByID(id int) (*portaudio.DeviceInfo, error) {
	devices, err := HostDevices()
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", id)
	}
	return devices[id], nil
}

// ListDevices prints every available device with its direction, channel
// counts, default sample rate and latency range.
func ListDevices() error {
	devices, err := HostDevices()
	if err != nil {
		return err
	}

	fmt.Printf("\nAvailable Audio Devices\n\n")

	for i, dev := range devices {
		printDevice(os.Stdout, i, dev)
	}

	return nil
}

// printDevice writes one device entry. Latencies are reported per
// direction, so an output-only device shows its output latencies instead
// of meaningless input ones.
func printDevice(w io.Writer, id int, dev *portaudio.DeviceInfo) {
	deviceType := ""
	switch {
	case dev.MaxInputChannels > 0 && dev.MaxOutputChannels > 0:
		deviceType = "Input/Output"
	case dev.MaxInputChannels > 0:
		deviceType = "Input"
	case dev.MaxOutputChannels > 0:
		deviceType = "Output"
	}

	fmt.Fprintf(w, "[%d] %s (%s)\n", id, dev.Name, deviceType)
	fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n",
		dev.MaxInputChannels, dev.MaxOutputChannels)
	fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", dev.DefaultSampleRate)
	if dev.MaxInputChannels > 0 {
		fmt.Fprintf(w, "    Input latency: Low=%.2fms, High=%.2fms\n",
			dev.DefaultLowInputLatency.Seconds()*1000,
			dev.DefaultHighInputLatency.Seconds()*1000)
	}
	if dev.MaxOutputChannels > 0 {
		fmt.Fprintf(w, "    Output latency: Low=%.2fms, High=%.2fms\n",
			dev.DefaultLowOutputLatency.Seconds()*1000,
			dev.DefaultHighOutputLatency.Seconds()*1000)
	}
	fmt.Fprintln(w)
}
