package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"hush/internal/config"
	"hush/pkg/build"
)

// ParseArgs builds the runtime configuration from defaults, an optional
// YAML config file, and command line flags, in that order of precedence.
func ParseArgs() (*config.Config, error) {
	buildInfo := build.Get()
	options := config.NewConfig()

	var configFile string

	rootCmd := &cobra.Command{
		Use:   buildInfo.Name,
		Short: "Real-time loopback volume limiter",
		Long: "Captures live audio from an input device, caps sudden loud passages " +
			"with an adaptive gain limiter, and plays the result back with minimal latency.",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				// Flags must win over the file: re-apply every flag
				// the user set explicitly after the overlay.
				flagged := *options
				if err := options.ApplyFile(configFile); err != nil {
					return err
				}
				if cmd.Flags().Changed("volume") {
					options.VolumeCap = flagged.VolumeCap
				}
				if cmd.Flags().Changed("input-device") {
					options.InputDevice = flagged.InputDevice
				}
				if cmd.Flags().Changed("output-device") {
					options.OutputDevice = flagged.OutputDevice
				}
				if cmd.Flags().Changed("channels") {
					options.Channels = flagged.Channels
				}
				if cmd.Flags().Changed("sample-rate") {
					options.SampleRate = flagged.SampleRate
				}
				if cmd.Flags().Changed("frames-per-buffer") {
					options.FramesPerBuffer = flagged.FramesPerBuffer
				}
				if cmd.Flags().Changed("low-latency") {
					options.LowLatency = flagged.LowLatency
				}
				if cmd.Flags().Changed("blocking") {
					options.BlockingPoll = flagged.BlockingPoll
				}
				if cmd.Flags().Changed("record") {
					options.RecordOutput = flagged.RecordOutput
				}
				if cmd.Flags().Changed("output") {
					options.OutputFile = flagged.OutputFile
				}
				if cmd.Flags().Changed("meter-port") {
					options.MeterPort = flagged.MeterPort
				}
				if cmd.Flags().Changed("log-level") {
					options.LogLevel = flagged.LogLevel
				}
			}
			if options.RecordOutput && options.OutputFile == "" {
				options.OutputFile = "hush-" +
					time.Now().UTC().Format("02-01-2006-150405") + ".wav"
			}
			if err := options.Validate(); err != nil {
				return err
			}
			options.Run = true
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "list"
			options.Run = false
		},
	}
	rootCmd.AddCommand(listCmd)

	// The one required option: the volume ceiling.
	rootCmd.Flags().Float64VarP(&options.VolumeCap, "volume", "V", 0,
		"Volume ceiling in (0.0, 1.0], e.g. 0.06. Required.")
	rootCmd.MarkFlagRequired("volume")

	// Audio Device Configuration
	rootCmd.Flags().IntVarP(&options.InputDevice, "input-device", "d", config.DefaultInputDeviceID,
		"Capture device ID. Use the 'list' command to see available devices.")
	rootCmd.Flags().IntVarP(&options.OutputDevice, "output-device", "D", config.DefaultOutputDeviceID,
		"Playback device ID. Use the 'list' command to see available devices.")
	rootCmd.Flags().IntVarP(&options.Channels, "channels", "c", config.DefaultChannels,
		"Number of channels (1=mono, 2=stereo)")
	rootCmd.Flags().Float64VarP(&options.SampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	rootCmd.Flags().IntVarP(&options.FramesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per stream fragment (affects latency)")
	rootCmd.Flags().BoolVarP(&options.LowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Pump Configuration
	rootCmd.Flags().BoolVar(&options.BlockingPoll, "blocking", config.DefaultBlockingPoll,
		"Suspend in the event loop instead of busy-polling (lower CPU, coarser timing)")

	// Output taps
	rootCmd.Flags().BoolVarP(&options.RecordOutput, "record", "r", config.DefaultRecordOutput,
		"Record the processed output stream to a WAV file")
	rootCmd.Flags().StringVarP(&options.OutputFile, "output", "o", config.DefaultOutputFile,
		"Output file name. Default is hush-MM-DD-YYYY-HHMMSS.wav")
	rootCmd.Flags().StringVar(&options.MeterPort, "meter-port", config.DefaultMeterPort,
		"Serve limiter telemetry to WebSocket clients on this port")

	// Debug Configuration
	rootCmd.Flags().StringVar(&options.LogLevel, "log-level", config.DefaultLogLevel,
		"Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output (same as --log-level debug)")
	rootCmd.Flags().StringVar(&configFile, "config", "",
		"YAML config file; explicit flags override its values")

	// Execute the CLI
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}
