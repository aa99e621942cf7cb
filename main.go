package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"callsight/audio"
	"callsight/insight"
	"callsight/log"
	"callsight/playback"
	"callsight/session"
	"callsight/shutdown"
	"callsight/timeline"
	"callsight/transport"
	"callsight/waveform"
)

var version = "dev"

var shutdownOnce sync.Once

func gracefulShutdown(rec *session.Recorder) {
	shutdownOnce.Do(func() {
		if rec != nil {
			rec.Stop()
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func main() {
	endpointFlag := flag.String("endpoint", "ws://localhost:8000/ws/analysis", "Analysis backend websocket endpoint")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	playFlag := flag.String("play", "", "Review a recorded call: WAV file provides the playback clock")
	demoFlag := flag.Bool("demo", false, "Review the bundled demo call")
	inputFlag := flag.String("input", "", "Feed a WAV file as the capture source instead of a microphone")
	windowFlag := flag.Duration("window", waveform.DefaultWindow, "Scrolling waveform window")
	novadFlag := flag.Bool("novad", false, "Disable voice detection and the no-voice warning")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("callsight %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *playFlag != "" || *demoFlag {
		runReview(*playFlag)
		return
	}
	runLive(*endpointFlag, *deviceFlag, *setupFlag, *inputFlag, *windowFlag, *novadFlag, *tuiFlag)
}

func runLive(endpoint, deviceName string, setup bool, input string, window time.Duration, novad, tui bool) {
	var (
		ctx audio.Context
		err error
	)
	if input != "" {
		ctx, err = audio.NewFakeContext(input)
	} else {
		ctx, err = audio.NewContext()
	}
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	var selected *audio.DeviceInfo
	if deviceName != "" {
		if devices, err := ctx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == deviceName {
					selected = &devices[i]
					break
				}
			}
		}
		if selected == nil {
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using default\n", deviceName)
		}
	} else if setup && input == "" {
		selected, err = audio.SelectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\n", err)
			fmt.Fprintln(os.Stderr, "Falling back to default device")
			selected = nil
		}
	}

	capture, err := ctx.NewCapture(selected, audio.CaptureConfig{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer capture.Close()

	idx := timeline.NewIndex(nil) // no playback target in live mode
	dial := transport.Endpoint(endpoint)

	var sink session.Sink
	if tui {
		sink = &teaSink{idx: idx}
	} else {
		sink = &consoleSink{idx: idx}
	}

	rec := session.NewRecorder(capture, dial, sink, window)
	if novad {
		rec.DisableVoiceDetection()
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown(rec)
	}()

	if !tui {
		// Headless: capture until interrupted.
		if err := rec.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		select {}
	}

	cmds := make(chan uiCommand, 8)
	tuiMu.Lock()
	tuiProgram = NewTUIProgram(modeLive, idx, cmds)
	tuiMu.Unlock()

	go func() {
		for cmd := range cmds {
			if cmd != cmdToggle {
				continue
			}
			if rec.State() == session.StateIdle {
				if err := rec.Start(); err != nil && !errors.Is(err, session.ErrBusy) {
					tuiSend(SessionErrorMsg{Err: err})
				}
			} else {
				rec.Stop()
			}
		}
	}()

	go func() {
		// Let the program come up before the first sends.
		time.Sleep(50 * time.Millisecond)
		tuiSend(DeviceLineMsg{Text: deviceLineText(selected)})
	}()

	if _, err := tuiProgram.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		os.Exit(1)
	}
	gracefulShutdown(rec)
}

// runReview plays back a recorded call against its analysis timeline.
// The bundled demo dataset supplies transcript and insights; a WAV file,
// when given, supplies the real audio clock.
func runReview(wavPath string) {
	player := playback.New()
	defer player.Close()

	idx := timeline.NewIndex(player)

	cmds := make(chan uiCommand, 8)
	tuiMu.Lock()
	tuiProgram = NewTUIProgram(modeReview, idx, cmds)
	tuiMu.Unlock()

	player.OnReady(func(d float64) { tuiSend(PlaybackReadyMsg{Duration: d}) })
	player.OnTime(func(pos float64) { tuiSend(PlaybackTickMsg{Position: pos}) })
	player.OnFinish(func() { tuiSend(PlaybackFinishedMsg{}) })

	snap := demoCall()
	idx.Update(snap.Segments)

	go func() {
		time.Sleep(50 * time.Millisecond)
		tuiSend(SnapshotMsg{Snap: snap})

		if wavPath != "" {
			if err := player.Load(wavPath); err != nil {
				tuiSend(SessionErrorMsg{Err: err})
				return
			}
		} else {
			player.LoadDuration(demoCallDuration)
		}
		player.Play()
	}()

	go func() {
		for cmd := range cmds {
			switch cmd {
			case cmdToggle:
				if player.Playing() {
					player.Pause()
				} else {
					player.Play()
				}
			case cmdSeekBack:
				idx.Seek(player.Position() - seekStep.Seconds())
			case cmdSeekForward:
				idx.Seek(player.Position() + seekStep.Seconds())
			case cmdNextSegment:
				if seg, ok := nextSegment(snap.Segments, player.Position(), +1); ok {
					idx.Seek(seg.StartTime)
				}
			case cmdPrevSegment:
				if seg, ok := nextSegment(snap.Segments, player.Position(), -1); ok {
					idx.Seek(seg.StartTime)
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown(nil)
	}()

	if _, err := tuiProgram.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		os.Exit(1)
	}
	gracefulShutdown(nil)
}

// nextSegment finds the closest segment boundary in the given direction,
// with a little slack so repeated presses keep moving.
func nextSegment(segs []insight.Segment, pos float64, dir int) (insight.Segment, bool) {
	if dir > 0 {
		for _, seg := range segs {
			if seg.StartTime > pos+0.01 {
				return seg, true
			}
		}
	} else {
		for i := len(segs) - 1; i >= 0; i-- {
			if segs[i].StartTime < pos-0.5 {
				return segs[i], true
			}
		}
	}
	return insight.Segment{}, false
}
