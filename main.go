package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"hush/cmd"
	"hush/internal/audio"
	"hush/internal/device"
	"hush/internal/dsp"
	"hush/internal/log"
	"hush/internal/meter"
	"hush/internal/record"
)

// main is the entry point for the loopback limiter. The program flow is
// divided into three phases:
//
// 1. Startup Phase (Cold Path):
//   - Parse command line arguments and validate the configuration
//   - Initialize PortAudio
//   - Execute one-off commands if requested
//   - Connect the session and run the readiness handshake
//
// 2. Pump Phase (Hot Path):
//   - Run the single-threaded pump loop until a fatal condition
//     or a termination signal
//
// 3. Shutdown Phase (Cold Path):
//   - Finalize the recording if active
//   - Close telemetry and audio resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Configuration errors must exit before any audio resource is
	// acquired, so arguments are parsed before PortAudio comes up.
	cfg, err := cmd.ParseArgs()
	if err != nil {
		log.Fatalf("%v", err)
	}

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}
	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}

	// Limit OS threads: one for the pump loop, one for everything else
	// (signals, telemetry, device callbacks are driven natively).
	runtime.GOMAXPROCS(2)

	if !cfg.Run && cfg.Command == "" {
		return
	}

	if err := device.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}
	defer device.Terminate()

	if cfg.Command == "list" {
		if err := device.ListDevices(); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	format := device.Format{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	}

	conn, err := device.Connect(format, cfg.InputDevice, cfg.OutputDevice, cfg.LowLatency)
	if err != nil {
		log.Fatalf("%v", err)
	}

	session := audio.NewSession(conn, format, cfg.FramesPerBuffer, cfg.BlockingPoll)
	if err := session.Open(); err != nil {
		log.Fatalf("%v", err)
	}

	limiter, err := dsp.NewLimiter(float32(cfg.VolumeCap))
	if err != nil {
		log.Fatalf("%v", err)
	}

	var observers []audio.Observer
	var levelMeter *meter.Meter
	if cfg.MeterPort != "" {
		levelMeter = meter.New(cfg.MeterPort, cfg.Channels)
		observers = append(observers, levelMeter)
	}

	var recorder *record.Recorder
	if cfg.RecordOutput {
		recorder, err = record.Create(cfg.OutputFile, cfg.SampleRate, cfg.Channels)
		if err != nil {
			log.Fatalf("%v", err)
		}
	}

	// The tap stays a nil interface when recording is off; assigning the
	// typed pointer unconditionally would defeat the pump's nil check.
	var tap io.Writer
	if recorder != nil {
		tap = recorder
	}

	pump := audio.NewPump(session, limiter, tap, observers...)

	// ==================== PUMP PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("limiting to %.3f, press Ctrl-C to stop", cfg.VolumeCap)
	runErr := pump.Run(ctx)

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if recorder != nil {
		if err := recorder.Close(); err != nil {
			log.Errorf("closing recording: %v", err)
		} else {
			log.Infof("recording saved to %s", cfg.OutputFile)
		}
	}
	if levelMeter != nil {
		if err := levelMeter.Close(); err != nil {
			log.Errorf("closing meter: %v", err)
		}
	}
	if err := session.Close(); err != nil {
		log.Errorf("closing session: %v", err)
	}

	if runErr != nil {
		device.Terminate()
		log.Fatalf("%v", runErr)
	}
}
