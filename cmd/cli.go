// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"phono/internal/config"
	"phono/internal/decode"
	"phono/pkg/build"
)

// Options is the result of command line parsing: the effective configuration
// plus the files to play, or a one-off command to execute instead.
type Options struct {
	Config  *config.Config
	Files   []string
	Command string // "" for playback, "list" for device listing
}

// ParseArgs parses os.Args into Options. Flag values override the
// configuration file, which overrides built-in defaults.
func ParseArgs() (*Options, error) {
	buildInfo := build.GetBuildFlags()
	opts := &Options{}

	var (
		configPath      string
		deviceID        int
		framesPerBuffer int
		lowLatency      bool
		volume          float64
		verbose         bool
		monitorOn       bool
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name + " [files...]",
		Short:         "Gapless audio player (" + strings.Join(decode.Extensions(), ", ") + ")",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("device") {
				cfg.Audio.OutputDevice = deviceID
			}
			if cmd.Flags().Changed("frames-per-buffer") {
				cfg.Audio.FramesPerBuffer = framesPerBuffer
			}
			if cmd.Flags().Changed("low-latency") {
				cfg.Audio.LowLatency = lowLatency
			}
			if cmd.Flags().Changed("volume") {
				cfg.Audio.Volume = volume
			}
			if cmd.Flags().Changed("monitor") {
				cfg.Monitor.Enabled = monitorOn
			}
			if verbose {
				cfg.Debug = true
				cfg.LogLevel = "debug"
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			opts.Config = cfg
			opts.Files = args
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio output devices",
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration file")
	rootCmd.PersistentFlags().IntVarP(&deviceID, "device", "d", config.DefaultOutputDevice,
		"Output device ID. Use 'list' to see available devices.")
	rootCmd.PersistentFlags().IntVarP(&framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per device buffer (affects latency)")
	rootCmd.PersistentFlags().BoolVarP(&lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Request low latency settings from the output device")
	rootCmd.PersistentFlags().Float64Var(&volume, "volume", config.DefaultVolume,
		"Playback volume, 0.0-1.0")
	rootCmd.PersistentFlags().BoolVar(&monitorOn, "monitor", false,
		"Publish playback analysis snapshots (level, spectrum, position)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return opts, nil
}
