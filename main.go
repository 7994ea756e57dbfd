// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"phono/cmd"
	"phono/internal/config"
	"phono/internal/decode"
	"phono/internal/device"
	"phono/internal/log"
	"phono/internal/monitor"
	"phono/internal/player"
	"phono/internal/transport"
	"phono/pkg/build"
)

// main wires the playback pipeline together:
//
//  1. Startup: build info, PortAudio, CLI arguments, configuration.
//  2. Playback: decoders are opened and enqueued, the output stream pulls
//     audio through the player until the queue drains or a signal arrives.
//  3. Shutdown: monitor, player and device resources are released in order.
func main() {
	build.Initialize()

	opts, err := cmd.ParseArgs()
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := device.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}
	defer device.Terminate()

	if opts.Command == "list" {
		if err := listDevices(); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	// Help or version output already handled by the CLI.
	if opts.Config == nil {
		return
	}
	cfg := opts.Config

	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}
	if cfg.Debug {
		log.SetLevel(log.LevelDebug)
	}

	if len(opts.Files) == 0 {
		fmt.Fprintf(os.Stderr, "no files to play, try '%s --help'\n", build.GetBuildFlags().Name)
		os.Exit(1)
	}

	if err := run(cfg, opts.Files); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(cfg *config.Config, files []string) error {
	finished := make(chan struct{})

	var namesMu sync.Mutex
	names := make(map[decode.Decoder]string)
	nameOf := func(d decode.Decoder) string {
		namesMu.Lock()
		defer namesMu.Unlock()
		return names[d]
	}

	// RenderingStarted fires on the audio callback thread, which must not
	// write to stdout. Hand the announcement to a goroutine instead.
	announce := make(chan decode.Decoder, 4)
	go func() {
		for d := range announce {
			fmt.Printf("Playing: %s\n", nameOf(d))
		}
	}()

	events := player.Events{
		RenderingStarted: func(d decode.Decoder) {
			select {
			case announce <- d:
			default:
			}
		},
		DecodingError: func(d decode.Decoder, err error) {
			log.Errorf("decoding %s: %v", nameOf(d), err)
		},
		PlaybackFinished: func() {
			close(finished)
		},
	}

	out := device.NewOutput(cfg.Audio)
	p := player.New(out, events)
	out.SetRenderer(p)
	out.SetNotifier(p)
	defer p.Close()

	if err := p.SetVolume(float32(cfg.Audio.Volume)); err != nil {
		return err
	}

	var mon *monitor.Monitor
	if cfg.Monitor.Enabled {
		mon = monitor.New(cfg.Monitor.FFTSize, time.Duration(cfg.Monitor.Interval), monitorSinks(cfg.Monitor))
		p.SetRenderTap(mon)
		mon.Start()
		defer mon.Stop()
	}

	enqueued := 0
	for _, path := range files {
		dec, err := decode.Open(path)
		if err != nil {
			log.Errorf("skipping %s: %v", path, err)
			continue
		}
		namesMu.Lock()
		names[dec] = path
		namesMu.Unlock()
		if err := p.Enqueue(dec); err != nil {
			log.Errorf("skipping %s: %v", path, err)
			dec.Close()
			continue
		}
		enqueued++
	}
	if enqueued == 0 {
		return fmt.Errorf("none of the %d files could be queued", len(files))
	}

	if err := p.Play(); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-finished:
	case s := <-sig:
		log.Infof("received %s, stopping", s)
	}
	return nil
}

func monitorSinks(cfg config.MonitorConfig) []transport.Transport {
	var sinks []transport.Transport
	if cfg.WSEnabled {
		sinks = append(sinks, transport.NewWebSocketTransport(cfg.WSAddr))
	}
	if cfg.UDPEnabled {
		udp, err := transport.NewUDPTransport(cfg.UDPTarget)
		if err != nil {
			log.Warnf("udp monitor sink disabled: %v", err)
		} else {
			sinks = append(sinks, udp)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, transport.NewLoggingTransport())
	}
	return sinks
}

func listDevices() error {
	devices, err := device.ListOutputDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No output devices found.")
		return nil
	}

	fmt.Println("Available output devices:")
	for _, d := range devices {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		fmt.Printf("%s [%2d] %-40s %s (%d ch, %.0f Hz)\n",
			marker, d.ID, d.Name, d.HostAPI, d.MaxOutputChannels, d.DefaultSampleRate)
	}
	return nil
}
