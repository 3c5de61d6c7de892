package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/koji/shadertoyrec/internal/config"
	"github.com/koji/shadertoyrec/internal/detector"
	"github.com/koji/shadertoyrec/internal/devtools"
	"github.com/koji/shadertoyrec/internal/diaglog"
	"github.com/koji/shadertoyrec/internal/ipc"
	"github.com/koji/shadertoyrec/internal/pidfile"
	"github.com/koji/shadertoyrec/internal/recorder"
	"github.com/koji/shadertoyrec/internal/statemachine"
	"github.com/koji/shadertoyrec/internal/validation"
)

const logPrefix = "[shadertoyrec-core]"

var (
	// Version is set at build time via -ldflags "-X main.Version=..."
	Version = "dev"

	outLog *log.Logger
	errLog *log.Logger

	// Logging counters
	noPageLogCounter int
)

func main() {
	// --export-diag subcommand: read log, write bundle, exit.
	if len(os.Args) > 1 && os.Args[1] == "--export-diag" {
		logPath := os.Getenv("SHADERTOYREC_LOG_PATH")
		if logPath == "" {
			logPath = "/tmp/shadertoyrec-debug.log"
		}
		diaglog.Version = Version
		path, n, err := diaglog.Export(logPath, ".")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			if os.IsNotExist(err) {
				fmt.Fprintln(os.Stderr, "hint: run with SHADERTOYREC_DEBUG=true to enable logging")
				os.Exit(1)
			}
			os.Exit(2)
		}
		fmt.Printf("Wrote: %s (%d lines)\n", path, n)
		os.Exit(0)
	}

	// Recover from any panics and log them
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC in shadertoyrec-core: %v\n", r)
			if errLog != nil {
				errLog.Printf("PANIC: %v", r)
			}
			os.Exit(1)
		}
	}()

	// Initialize logging
	if err := initLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	outLog.Println("===========================================")
	outLog.Println("Starting ShaderToy Recorder Core v" + Version + "...")
	outLog.Printf("PID: %d", os.Getpid())
	outLog.Printf("Timestamp: %s", time.Now().Format(time.RFC3339))
	outLog.Println("===========================================")

	// Check for duplicate instances
	pidFilePath := pidfile.GetPIDFilePath("shadertoyrec-core")
	outLog.Printf("Checking PID file: %s", pidFilePath)
	pf, err := pidfile.New(pidFilePath)
	if err != nil {
		errLog.Printf("Failed to create PID file: %v", err)
		errLog.Println("Another instance of shadertoyrec-core may already be running.")
		errLog.Printf("If you're sure no other instance is running, remove: %s", pidFilePath)
		os.Exit(1)
	}
	defer func() {
		outLog.Println("Cleaning up before exit...")
		if err := pf.Remove(); err != nil {
			errLog.Printf("Warning: failed to remove PID file: %v", err)
		}
	}()
	outLog.Printf("PID file created: %s (PID %d)", pidFilePath, os.Getpid())

	// Load configuration
	outLog.Println("[STARTUP] Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		errLog.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}
	outLog.Printf("[STARTUP] Loaded config: %d rules, poll_interval=%ds, %dfps @ %d bps",
		len(cfg.Rules), cfg.PollInterval, cfg.FrameRate, cfg.VideoBitRate)

	// Init diaglog
	logPath := os.Getenv("SHADERTOYREC_LOG_PATH")
	if logPath == "" {
		logPath = "/tmp/shadertoyrec-debug.log"
	}
	diagLogger, diagErr := diaglog.New(logPath)
	if diagErr != nil {
		errLog.Printf("[STARTUP] WARNING: could not open diagnostic log at %s: %v (continuing)", logPath, diagErr)
		diagLogger = diaglog.NewNoOp()
	}
	defer func() { _ = diagLogger.Close() }()
	diaglog.Version = Version

	// Probe the browser DevTools endpoint
	outLog.Printf("[STARTUP] Probing browser DevTools endpoint at %s...", cfg.DevToolsURL)
	browserConnected := false
	if info, err := devtools.Version(cfg.DevToolsURL); err != nil {
		errLog.Printf("[STARTUP] Browser DevTools endpoint not reachable: %v", err)
		errLog.Println("Please start a Chromium-based browser with remote debugging:")
		errLog.Println("  1. Quit the browser completely")
		errLog.Println("  2. Relaunch with --remote-debugging-port=9222")
		errLog.Println("  3. Open a shader page")
		errLog.Println("Continuing; detection will recover once the endpoint is up.")
	} else {
		browserConnected = true
		outLog.Printf("[STARTUP] Connected to %s (DevTools protocol %s)", info.Browser, info.ProtocolVersion)

		healthCheck := validation.CheckBrowserHealth(info.Browser, info.ProtocolVersion)
		outLog.Printf("[STARTUP] Browser Health: %s", healthCheck.Message)
		if !healthCheck.OK {
			errLog.Println("[STARTUP] WARNING: browser compatibility check found issues:")
			for _, issue := range healthCheck.Issues {
				errLog.Printf("  - %s", issue)
			}
			errLog.Println("")
			errLog.Println("Suggested fixes:")
			for _, fix := range healthCheck.Fixes {
				errLog.Printf("  - %s", fix)
			}
			errLog.Println("")
			errLog.Println("Continuing anyway, but recording may not work properly.")
		}
	}

	// Initialize state machine
	outLog.Println("[STARTUP] Initializing state machine...")
	sm := statemachine.New(cfg.StopThreshold)
	outLog.Printf("[STARTUP] State machine initialized (stop_threshold=%d)", cfg.StopThreshold)

	// Initialize recorder
	outLog.Println("[STARTUP] Initializing canvas recorder...")
	rec := recorder.NewCanvasRecorder(cfg, Version)
	rec.SetLogger(diagLogger)
	rec.OnCompleted(func(res recorder.RecordingResult) {
		if res.Err != nil {
			errLog.Printf("Recording %s finished with error: %v", res.SessionID, res.Err)
			setLastError(res.Err.Error())
			return
		}
		outLog.Printf("Recording saved: %s (%s, %d chunks, %s)",
			res.OutputPath, res.Profile, res.ChunkCount, res.Duration.Round(time.Second))
		setLastAction("artifact_saved: " + filepath.Base(res.OutputPath))
	})

	// Initialize page detector
	pageDetector := detector.NewPageDetector(cfg)

	// Create status directory and write initial status
	outLog.Println("[STARTUP] Writing initial status...")
	if err := writeStatus(sm, &detector.DetectionState{}, rec, browserConnected); err != nil {
		errLog.Printf("Failed to write initial status: %v", err)
	}

	// Start command file watcher
	outLog.Println("[STARTUP] Starting command file watcher...")
	go watchCommands(sm, rec, pageDetector)

	// Main detection loop
	ticker := time.NewTicker(time.Duration(cfg.PollInterval) * time.Second)
	defer ticker.Stop()

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	outLog.Println("[STARTUP] Signal handlers registered (SIGINT, SIGTERM)")

	outLog.Printf("[STARTUP] Starting detection loop (polling every %ds)...", cfg.PollInterval)
	outLog.Println("===========================================")
	outLog.Println("[RUNNING] ShaderToy Recorder Core is running and monitoring")

	for {
		select {
		case <-ticker.C:
			detectionState, err := pageDetector.Detect()
			if err != nil {
				errLog.Printf("Detection error: %v", err)
				detectionState = &detector.DetectionState{EvaluatedAt: time.Now()}
			}

			logDetectionResult(detectionState)

			// A recording whose page went away cannot continue; debounced
			// through the state machine so one slow poll doesn't kill it.
			if sm.ProcessDetection(*detectionState) {
				outLog.Printf("Page gone for %d consecutive polls - stopping recording", sm.GetAbsenceStreak())
				handleStopRecording(sm, rec, "page_closed")
			}

			if err := writeStatus(sm, detectionState, rec, err == nil); err != nil {
				errLog.Printf("Failed to write status: %v", err)
			}

		case <-sigChan:
			outLog.Println("===========================================")
			outLog.Printf("[SHUTDOWN] Received shutdown signal at %s", time.Now().Format(time.RFC3339))

			if sm.IsRecording() {
				outLog.Println("[SHUTDOWN] Recording is active - stopping before shutdown...")
				handleStopRecording(sm, rec, "daemon_shutdown")
				// Give finalization a moment so accumulated chunks are saved.
				time.Sleep(2 * time.Second)
			}

			outLog.Println("[SHUTDOWN] Shutting down gracefully")
			outLog.Println("===========================================")
			return
		}
	}
}

// handleStartRecording resolves the detected page's surface and starts a
// capture session.
func handleStartRecording(sm *statemachine.StateMachine, rec *recorder.CanvasRecorder, det *detector.DetectionState) {
	if !det.PageDetected {
		errLog.Println("Cannot start recording: no compatible page detected")
		setLastError("no compatible page detected")
		return
	}

	outLog.Printf("Starting recording (rule=%s, surface=%s, url=%s)",
		det.RuleName, det.SurfaceID, det.TargetURL)

	if err := rec.Start(*det); err != nil {
		errLog.Printf("Failed to start recording: %v", err)
		setLastError(err.Error())
		return
	}

	sm.StartRecording(det.RuleName)
	setLastAction("recording_started")
	outLog.Printf("Recording started successfully (rule=%s, title=%q)", det.RuleName, det.TargetTitle)
}

// handleStopRecording requests session termination. Artifact assembly happens
// asynchronously; the OnCompleted callback reports the outcome.
func handleStopRecording(sm *statemachine.StateMachine, rec *recorder.CanvasRecorder, reason string) {
	if !sm.IsRecording() {
		// A stop with nothing recording is a reported no-op, not a silent one.
		errLog.Printf("Stop request ignored: no recording in progress (reason=%s)", reason)
		setLastAction("stop_ignored: no recording in progress")
		return
	}
	duration := sm.RecordingDuration()
	outLog.Printf("Stopping recording after %s (reason=%s)", duration.Round(time.Second), reason)

	if err := rec.Stop(reason); err != nil {
		errLog.Printf("Failed to stop recording: %v", err)
		setLastError(err.Error())
		return
	}

	sm.StopRecording()
	setLastAction("recording_stopped: " + reason)
	outLog.Println("Stop requested; finalizing in background")
}

// logDetectionResult logs detection details for debugging
func logDetectionResult(state *detector.DetectionState) {
	if state.PageDetected {
		outLog.Printf("Detection: PAGE DETECTED (rule=%s, surface=%s, title=%q, url=%s)",
			state.RuleName, state.SurfaceID, state.TargetTitle, state.TargetURL)
		noPageLogCounter = 0
	} else {
		// Log "no page" every 20 polls to reduce spam
		noPageLogCounter++
		if noPageLogCounter >= 20 {
			outLog.Println("Detection: NO COMPATIBLE PAGE")
			noPageLogCounter = 0
		}
	}
}

var (
	lastAction string
	lastError  string
)

func setLastAction(action string) { lastAction = action }
func setLastError(msg string)     { lastError = msg }

// writeStatus updates the status.json file
func writeStatus(sm *statemachine.StateMachine, detection *detector.DetectionState, rec *recorder.CanvasRecorder, browserConnected bool) error {
	rs := rec.GetState()

	status := ipc.StatusSnapshot{
		RecordingState:   ipc.StateStopped,
		PageDetected:     detection.PageDetected,
		PageURL:          detection.TargetURL,
		PageTitle:        detection.TargetTitle,
		BrowserConnected: browserConnected,
		LastArtifact:     rs.OutputPath,
		LastAction:       lastAction,
		LastError:        lastError,
		Timestamp:        time.Now(),
	}
	if rs.Recording {
		status.RecordingState = ipc.StateRecording
		start := rs.StartTime
		status.RecordingStartTime = &start
	}

	return ipc.WriteStatus(&status)
}

// watchCommands monitors cmd.txt for manual control commands
func watchCommands(sm *statemachine.StateMachine, rec *recorder.CanvasRecorder, pageDetector *detector.PageDetector) {
	cmdPath := filepath.Join(ipc.CacheDir(), "cmd.txt")
	cmdDir := filepath.Dir(cmdPath)

	// Try to use fsnotify for efficient file watching
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		errLog.Printf("fsnotify not available, falling back to polling: %v", err)
		watchCommandsWithPolling(cmdPath, sm, rec, pageDetector)
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			errLog.Printf("Failed to close watcher: %v", err)
		}
	}()

	if err := watcher.Add(cmdDir); err != nil {
		errLog.Printf("Failed to watch command directory, falling back to polling: %v", err)
		watchCommandsWithPolling(cmdPath, sm, rec, pageDetector)
		return
	}

	outLog.Println("Command watcher started (using fsnotify)")

	// Fallback polling ticker in case fsnotify misses events
	pollTicker := time.NewTicker(1 * time.Second)
	defer pollTicker.Stop()

	lastCheckTime := time.Now()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				outLog.Println("fsnotify watcher closed, switching to polling")
				watchCommandsWithPolling(cmdPath, sm, rec, pageDetector)
				return
			}

			if event.Name == cmdPath && (event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create) {
				// Small delay to ensure write is complete
				time.Sleep(50 * time.Millisecond)

				cmd, err := ipc.ReadCommand()
				if err != nil || cmd == "" {
					continue
				}

				handleCommand(cmd, sm, rec, pageDetector)
				lastCheckTime = time.Now()
			}

		case <-pollTicker.C:
			if fileInfo, err := os.Stat(cmdPath); err == nil {
				if fileInfo.ModTime().After(lastCheckTime) {
					time.Sleep(50 * time.Millisecond)

					cmd, err := ipc.ReadCommand()
					if err == nil && cmd != "" {
						handleCommand(cmd, sm, rec, pageDetector)
						lastCheckTime = time.Now()
					}
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				outLog.Println("fsnotify error channel closed, switching to polling")
				watchCommandsWithPolling(cmdPath, sm, rec, pageDetector)
				return
			}
			errLog.Printf("File watcher error: %v", err)
		}
	}
}

// watchCommandsWithPolling is a pure polling-based fallback for command monitoring
func watchCommandsWithPolling(cmdPath string, sm *statemachine.StateMachine, rec *recorder.CanvasRecorder, pageDetector *detector.PageDetector) {
	outLog.Println("Command watcher started (using polling fallback, 1s interval)")

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	lastCheckTime := time.Now()

	for range ticker.C {
		fileInfo, err := os.Stat(cmdPath)
		if err != nil {
			continue // File doesn't exist yet, keep polling
		}

		if fileInfo.ModTime().After(lastCheckTime) {
			time.Sleep(50 * time.Millisecond)

			cmd, err := ipc.ReadCommand()
			if err == nil && cmd != "" {
				handleCommand(cmd, sm, rec, pageDetector)
			}
			lastCheckTime = time.Now()
		}
	}
}

// handleCommand processes manual control commands
func handleCommand(cmd ipc.Command, sm *statemachine.StateMachine, rec *recorder.CanvasRecorder, pageDetector *detector.PageDetector) {
	outLog.Printf("Received command: %s", cmd)

	switch cmd {
	case ipc.CmdStart:
		startFromCommand(sm, rec, pageDetector)

	case ipc.CmdStop:
		handleStopRecording(sm, rec, "user_stop")

	case ipc.CmdToggle:
		if sm.IsRecording() {
			handleStopRecording(sm, rec, "user_stop")
		} else {
			startFromCommand(sm, rec, pageDetector)
		}

	case ipc.CmdQuit:
		outLog.Println("Quit command received - shutting down")
		if sm.IsRecording() {
			handleStopRecording(sm, rec, "daemon_shutdown")
			time.Sleep(2 * time.Second)
		}
		os.Exit(0)

	default:
		errLog.Printf("Unknown command: %s", cmd)
	}
}

// startFromCommand re-detects the page right before starting so the surface
// resolve runs against the current target, not a stale poll.
func startFromCommand(sm *statemachine.StateMachine, rec *recorder.CanvasRecorder, pageDetector *detector.PageDetector) {
	if sm.IsRecording() {
		errLog.Println("Start command ignored: already recording")
		return
	}
	det, err := pageDetector.Detect()
	if err != nil {
		errLog.Printf("Start command failed, detection error: %v", err)
		setLastError(err.Error())
		return
	}
	handleStartRecording(sm, rec, det)
}

// initLogging sets up log files with rotation support
func initLogging() error {
	logDir := "/tmp"

	// Rotate logs if they exceed 10MB
	outLogPath := filepath.Join(logDir, "shadertoyrec-core.out.log")
	errLogPath := filepath.Join(logDir, "shadertoyrec-core.err.log")

	if err := rotateLogIfNeeded(outLogPath, 10*1024*1024); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rotate out log: %v\n", err)
	}

	if err := rotateLogIfNeeded(errLogPath, 10*1024*1024); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rotate err log: %v\n", err)
	}

	outFile, err := os.OpenFile(outLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	errFile, err := os.OpenFile(errLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	outLog = log.New(outFile, logPrefix+" ", log.LstdFlags)
	errLog = log.New(errFile, logPrefix+" ERROR: ", log.LstdFlags)

	return nil
}

// rotateLogIfNeeded rotates a log file if it exceeds maxSize bytes
func rotateLogIfNeeded(logPath string, maxSize int64) error {
	info, err := os.Stat(logPath)
	if os.IsNotExist(err) {
		return nil // Log doesn't exist yet
	}
	if err != nil {
		return err
	}

	if info.Size() < maxSize {
		return nil // Log is under size limit
	}

	// Rotate: rename current log to .old, removing previous .old
	oldPath := logPath + ".old"
	if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove old log: %w", err)
	}

	if err := os.Rename(logPath, oldPath); err != nil {
		return err
	}

	return nil
}
