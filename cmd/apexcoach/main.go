// ApexCoach is a real-time driving coach for sim racing. It compares live
// telemetry against a reference "superlap" and speaks short corrections
// while you drive.
//
// Usage:
//
//	apexcoach [-verbose] [-quiet] [-replay DIR] [-superlap ID] [-speed N]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"

	"github.com/hammamikhairi/apexcoach/internal/advice"
	"github.com/hammamikhairi/apexcoach/internal/audio"
	"github.com/hammamikhairi/apexcoach/internal/coach"
	"github.com/hammamikhairi/apexcoach/internal/console"
	"github.com/hammamikhairi/apexcoach/internal/display"
	"github.com/hammamikhairi/apexcoach/internal/domain"
	"github.com/hammamikhairi/apexcoach/internal/logger"
	"github.com/hammamikhairi/apexcoach/internal/replay"
	"github.com/hammamikhairi/apexcoach/internal/session"
	"github.com/hammamikhairi/apexcoach/internal/superlap"
	"github.com/hammamikhairi/apexcoach/internal/tts"
)

func main() {
	_ = godotenv.Load()

	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", ".apex-logs/apex.log", "file to write logs to (use \"stderr\" to log to console)")
	dataDir := flag.String("data-dir", ".apex-data", "directory holding recorded telemetry sessions")
	replayDir := flag.String("replay", "", "session directory to replay (default: newest under -data-dir)")
	refLap := flag.String("superlap", "", "superlap to coach against (default: the built-in demo lap)")
	speed := flag.Float64("speed", 1.0, "replay speed multiplier")
	loop := flag.Bool("loop", false, "restart the replay when it finishes")
	noSpeech := flag.Bool("no-speech", false, "disable spoken advice even if the ElevenLabs key is set")
	diskCache := flag.Bool("disk-cache", true, "persist TTS audio cache to disk (reads from disk even when false)")
	cacheDir := flag.String("cache-dir", ".apex-cache", "directory for persistent TTS and superlap caches")
	noAI := flag.Bool("no-ai", false, "use the built-in rule advisor even if the OpenAI key is set")
	volumeFile := flag.String("volume-file", ".apex-data/volume.json", "file persisting the playback volume")
	listSessions := flag.Bool("sessions", false, "list recorded sessions and exit")
	flag.Parse()

	// Configure logger.
	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	// Direct logs to a rotating file by default so the dashboard stays clean.
	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		logOut = logger.RotatingWriter(logLevel, *logFile)
	}

	// Redirect Go's default log package to the same output so third-party
	// libraries don't write over the dashboard.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	if *listSessions {
		showSessions(*dataDir)
		return
	}

	// Set up context, cancelled when the UI quits.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire the audio pipeline: persisted volume, gain stage, playback queue.
	volume := audio.NewVolumeStore(*volumeFile, log)
	amp := audio.NewAmplifier(log)

	var sink audio.Sink
	if player, err := audio.NewPlayer(log); err != nil {
		log.Warn("audio device init failed, falling back to the system player: %v", err)
	} else {
		sink = player
	}

	manager := audio.NewManager(amp, volume, sink, log)
	manager.Start()
	defer manager.Close()

	// Pick the superlap source. With backend credentials the remote source
	// is wrapped in a disk cache; otherwise the embedded demo lap serves.
	var source domain.SuperlapSource
	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_KEY")
	if supabaseURL != "" && supabaseKey != "" {
		remote := superlap.NewSupabaseSource(supabaseURL, supabaseKey, log)
		cached := superlap.NewCachedSource(remote, filepath.Join(*cacheDir, "superlaps"), log)
		if err := cached.Cull(64 << 20); err != nil {
			log.Warn("superlap cache cull: %v", err)
		}
		source = cached
		log.Info("superlap backend enabled (cache at %s)", *cacheDir)
	} else {
		source = superlap.NewStaticSource(log)
		log.Info("superlap backend disabled: set SUPABASE_URL and SUPABASE_KEY env vars to enable")
	}

	// The rule advisor always works; the LLM advisor takes over when a key
	// is present.
	rules := advice.NewRuleGenerator(log)
	var advisor domain.AdviceGenerator = rules
	usingRules := true

	openaiKey := os.Getenv(advice.EnvAPIKey)
	if openaiKey != "" && !*noAI {
		advisor = advice.NewGenerator(advice.NewClient(openaiKey, log), log)
		usingRules = false
		log.Info("AI advisor enabled (model=%s)", advice.DefaultModel)
	} else if !*noAI {
		log.Info("AI advisor disabled: set %s env var to enable", advice.EnvAPIKey)
	}

	// Build the speaker. Without a TTS key advice still shows on screen,
	// it just isn't spoken.
	var spokenAdvice domain.Speaker = tts.NewNoOpSpeaker(log)

	elevenKey := os.Getenv(tts.EnvAPIKey)
	if elevenKey != "" && !*noSpeech {
		ttsClient := tts.NewClient(elevenKey, log)
		ttsCache := tts.NewCache(ttsClient.Voice(), filepath.Join(*cacheDir, "tts"), *diskCache, log)
		speaker := tts.NewSpeaker(ttsClient, manager, ttsCache, log)
		if usingRules {
			// The rule advisor draws from a fixed phrase set, so every
			// line can be synthesized before the session starts.
			speaker.Prefetch(ctx, rules.Phrases()...)
		}
		spokenAdvice = speaker
		log.Info("TTS enabled (voice=%s)", ttsClient.Voice())
	} else if !*noSpeech {
		log.Info("TTS disabled: set %s env var to enable", tts.EnvAPIKey)
	}

	mute := &muteSpeaker{inner: spokenAdvice}
	store := session.NewMemoryStore(log)

	// The dashboard polls this closure from the Bubble Tea goroutine. The
	// coach and replay engine are assigned below, before the UI starts.
	var (
		aiCoach   *coach.Coach
		replayEng *replay.Engine
		started   time.Time
	)
	statusFn := func() display.Status {
		if aiCoach == nil || replayEng == nil {
			return display.Status{}
		}
		cs := aiCoach.Status()
		ri := replayEng.Info()
		st := display.Status{
			Active:       cs.SuperlapLoaded,
			Track:        ri.Track,
			Car:          ri.Car,
			Lap:          ri.CurrentLap + 1,
			Laps:         ri.Laps,
			Position:     cs.Position,
			Delta:        cs.Delta,
			Volume:       volume.Volume(),
			Muted:        mute.Muted(),
			Speaking:     cs.Playing,
			ReplaySpeed:  ri.Speed,
			ReplayPaused: ri.Paused,
		}
		if !started.IsZero() {
			st.Elapsed = time.Since(started)
		}
		return st
	}

	ui := display.NewUI(statusFn)
	notifier := console.NewCLINotifier(log, ui.Printf)

	aiCoach = coach.New(source, advisor, mute, store, log, coach.WithNotifier(notifier))

	replayEng = replay.New(func(snap domain.TelemetrySnapshot) {
		aiCoach.ProcessTelemetry(ctx, snap)
	}, log,
		replay.WithSpeed(*speed),
		replay.WithLoop(*loop),
		replay.WithLapFunc(func(lapNumber int, lapTime float64) {
			ui.PrintHint(fmt.Sprintf("lap %d done in %.1fs", lapNumber+1, lapTime))
		}),
	)

	// Find a session to replay, generating the demo one on first run.
	sessionDir := *replayDir
	if sessionDir == "" {
		sessionDir = pickSession(*dataDir, log)
	}
	if sessionDir == "" {
		fmt.Fprintf(os.Stderr, "error: no recorded sessions under %s\n", *dataDir)
		os.Exit(1)
	}
	if err := replayEng.LoadSession(sessionDir); err != nil {
		fmt.Fprintf(os.Stderr, "error: loading session %s: %v\n", sessionDir, err)
		os.Exit(1)
	}

	if err := aiCoach.LoadSuperlap(ctx, *refLap); err != nil {
		fmt.Fprintf(os.Stderr, "warning: superlap unavailable, replaying without coaching: %v\n", err)
	} else {
		ri := replayEng.Info()
		aiCoach.SetSessionMeta(ri.Track, ri.Car)
	}

	// Build the CLI app.
	app := &cliApp{
		coach:   aiCoach,
		parser:  console.NewParser(log),
		replay:  replayEng,
		manager: manager,
		volume:  volume,
		speaker: mute,
		ui:      ui,
		log:     log,
		dataDir: *dataDir,
	}

	started = time.Now()

	ri := replayEng.Info()
	fmt.Println(display.RenderBanner())
	fmt.Println(display.BannerStyle.Render(fmt.Sprintf("  %s / %s: %d laps at %.1fx.", ri.Track, ri.Car, ri.Laps, ri.Speed)))
	fmt.Println(display.BannerStyle.Render("  Type 'help' for commands, 'quit' to exit."))
	fmt.Println()

	// Run app logic in a background goroutine.
	go func() {
		ui.WaitReady()
		app.run(ctx)
		ui.Quit()
	}()

	// Bubble Tea owns the terminal; Run blocks until quit.
	if err := ui.Run(); err != nil {
		log.Error("display: %v", err)
	}
	cancel()
	replayEng.Stop()
	app.finish(context.Background())
}

// muteSpeaker gates spoken advice behind a toggle. The gain stage passes
// audio through untouched at multipliers of 1.0 and below, so muting drops
// advice before synthesis rather than zeroing the volume.
type muteSpeaker struct {
	inner domain.Speaker
	muted atomic.Bool
}

var _ domain.Speaker = (*muteSpeaker)(nil)

func (m *muteSpeaker) Speak(ctx context.Context, text string, interrupt bool) bool {
	if m.muted.Load() {
		return false
	}
	return m.inner.Speak(ctx, text, interrupt)
}

func (m *muteSpeaker) Playing() bool { return m.inner.Playing() }

func (m *muteSpeaker) Muted() bool { return m.muted.Load() }

func (m *muteSpeaker) SetMuted(v bool) { m.muted.Store(v) }

type cliApp struct {
	coach   *coach.Coach
	parser  *console.Parser
	replay  *replay.Engine
	manager *audio.Manager
	volume  *audio.VolumeStore
	speaker *muteSpeaker
	ui      *display.UI
	log     *logger.Logger
	dataDir string

	finishOnce sync.Once
}

func (a *cliApp) run(ctx context.Context) {
	if st := a.coach.Status(); st.SuperlapLoaded {
		a.ui.PrintInfo(fmt.Sprintf("Superlap loaded: %d reference points.", st.SuperlapSize))
	} else {
		a.ui.PrintUrgent("No superlap loaded. Replay runs without coaching.")
	}

	if err := a.replay.Start(ctx); err != nil {
		a.ui.PrintUrgent(fmt.Sprintf("Replay failed to start: %v", err))
	} else {
		go a.watchReplay(ctx)
	}
	a.ui.Println("")

	uiCh := a.ui.InputChan()
	for {
		select {
		case <-ctx.Done():
			return
		case input, ok := <-uiCh:
			if !ok {
				return
			}
			input = strings.TrimSpace(input)
			if input == "" {
				continue
			}
			cmd := a.parser.Parse(input)
			a.log.Debug("command: %s (value=%v, raw=%q)", cmd.Type, cmd.Value, cmd.Raw)
			a.handleCommand(ctx, cmd)
		}
	}
}

// watchReplay closes the coaching session out when the replay finishes on
// its own instead of being stopped.
func (a *cliApp) watchReplay(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.replay.Playing() {
				a.ui.PrintInfo("Replay finished.")
				a.finish(ctx)
				return
			}
		}
	}
}

func (a *cliApp) handleCommand(ctx context.Context, cmd console.Command) {
	switch cmd.Type {
	case console.CommandVolume:
		a.setVolume(cmd.Value)
	case console.CommandMute:
		a.toggleMute()
	case console.CommandPause:
		a.pause()
	case console.CommandResume:
		a.resume()
	case console.CommandSpeed:
		a.setSpeed(cmd.Value)
	case console.CommandStatus:
		a.status()
	case console.CommandSessions:
		a.sessions()
	case console.CommandHelp:
		a.showHelp()
	case console.CommandQuit:
		a.quit(ctx)
	default:
		a.ui.PrintHint(fmt.Sprintf("Didn't catch that (%q). Type 'help' for commands.", cmd.Raw))
	}
}

func (a *cliApp) setVolume(v float64) {
	applied := a.volume.Set(v)
	if a.speaker.Muted() {
		a.speaker.SetMuted(false)
		a.ui.PrintInfo(fmt.Sprintf("Volume %.2f, unmuted.", applied))
		return
	}
	a.ui.PrintInfo(fmt.Sprintf("Volume %.2f.", applied))
}

func (a *cliApp) toggleMute() {
	if a.speaker.Muted() {
		a.speaker.SetMuted(false)
		a.ui.PrintInfo("Spoken advice on.")
		return
	}
	a.speaker.SetMuted(true)
	a.manager.Interrupt()
	a.ui.PrintInfo("Spoken advice off.")
}

func (a *cliApp) pause() {
	if !a.replay.Playing() {
		a.ui.PrintHint("Nothing is playing.")
		return
	}
	a.replay.Pause()
	a.ui.PrintInfo("Replay paused.")
}

func (a *cliApp) resume() {
	if !a.replay.Playing() {
		a.ui.PrintHint("Nothing is playing.")
		return
	}
	a.replay.Resume()
	a.ui.PrintInfo("Replay resumed.")
}

func (a *cliApp) setSpeed(v float64) {
	applied := a.replay.SetSpeed(v)
	a.ui.PrintInfo(fmt.Sprintf("Replay speed %.1fx.", applied))
}

func (a *cliApp) status() {
	cs := a.coach.Status()
	ri := a.replay.Info()

	if sess := a.coach.Session(); sess != nil {
		a.ui.PrintInfo(fmt.Sprintf("Session:  %s (%s)", sess.ID[:8], sess.Status))
	}
	a.ui.PrintInfo(fmt.Sprintf("Replay:   %s / %s, lap %d/%d at %.1fx", ri.Track, ri.Car, ri.CurrentLap+1, ri.Laps, ri.Speed))
	if cs.SuperlapLoaded {
		a.ui.PrintInfo(fmt.Sprintf("Superlap: %d points, pos %.1f%%, delta %+.1f km/h", cs.SuperlapSize, cs.Position*100, cs.Delta.Speed))
	} else {
		a.ui.PrintHint("Superlap: not loaded")
	}
	a.ui.PrintInfo(fmt.Sprintf("Ticks:    %d", cs.Ticks))
	if cs.LastAdvice != nil {
		a.ui.PrintAdvice(fmt.Sprintf("Last advice at %.1f%%: %s", cs.LastAdvice.TrackPosition*100, cs.LastAdvice.Text))
	} else {
		a.ui.PrintHint("No advice issued yet.")
	}
	if a.speaker.Muted() {
		a.ui.PrintHint(fmt.Sprintf("Audio:    muted (volume %.2f)", a.volume.Volume()))
	} else {
		a.ui.PrintHint(fmt.Sprintf("Audio:    volume %.2f, %d clips queued", a.volume.Volume(), a.manager.QueueLen()))
	}
}

func (a *cliApp) sessions() {
	dirs, err := replay.Sessions(a.dataDir)
	if err != nil {
		a.ui.PrintUrgent(fmt.Sprintf("Error listing sessions: %v", err))
		return
	}
	if len(dirs) == 0 {
		a.ui.PrintHint(fmt.Sprintf("No recorded sessions under %s.", a.dataDir))
		return
	}
	a.ui.PrintInfo("Recorded sessions (newest first):")
	for _, d := range dirs {
		a.ui.PrintInfo("  " + filepath.Base(d))
	}
	a.ui.PrintHint("Restart with -replay <dir> to coach a different one.")
}

func (a *cliApp) showHelp() {
	for _, line := range strings.Split(console.Help(), "\n") {
		a.ui.PrintInfo(line)
	}
}

func (a *cliApp) quit(ctx context.Context) {
	a.replay.Stop()
	a.finish(ctx)
	// Brief pause so the summary lands before the screen tears down.
	time.Sleep(300 * time.Millisecond)
	a.ui.Quit()
}

// categoryLadder orders the summary rows from most to least severe.
var categoryLadder = []domain.AdviceCategory{
	domain.CriticalSpeedLoss,
	domain.HighPriority,
	domain.MediumPriority,
	domain.LowPriority,
}

// finish closes the coaching session exactly once and prints its summary.
// Safe to call from both the quit path and the replay watcher.
func (a *cliApp) finish(ctx context.Context) {
	a.finishOnce.Do(func() {
		sess := a.coach.Finish(ctx)
		if sess == nil {
			return
		}
		a.ui.Println("")
		a.ui.PrintInfo(fmt.Sprintf("Session %s finished after %s.", sess.ID[:8], formatDuration(sess.EndedAt.Sub(sess.StartedAt))))
		a.ui.PrintInfo(fmt.Sprintf("Ticks: %d, advice given: %d", sess.Ticks, sess.TotalAdvice()))
		for _, cat := range categoryLadder {
			if n := sess.AdviceCounts[cat]; n > 0 {
				a.ui.PrintHint(fmt.Sprintf("  %-20s %d", cat.String(), n))
			}
		}
	})
}

// ── session discovery ────────────────────────────────────────────

// pickSession returns the newest recorded session under root, generating
// a demo session on first run so the coach works out of the box.
func pickSession(root string, log *logger.Logger) string {
	dirs, err := replay.Sessions(root)
	if err == nil && len(dirs) > 0 {
		return dirs[0]
	}

	log.Info("no recorded sessions under %s, generating the demo session", root)
	dir, err := writeDemoSession(root, log)
	if err != nil {
		log.Error("generating demo session: %v", err)
		return ""
	}
	return dir
}

// writeDemoSession records two laps of an imperfect drive around the
// built-in demo superlap: a slow sinusoidal speed error everywhere, plus
// one big mistake on the second lap's back straight.
func writeDemoSession(root string, log *logger.Logger) (string, error) {
	var demo *domain.Superlap
	for _, lap := range superlap.NewStaticSource(log).List() {
		if lap.ID == superlap.DemoSuperlapID {
			demo = lap
		}
	}
	if demo == nil || len(demo.Points) == 0 {
		return "", fmt.Errorf("no demo superlap available")
	}

	dir := filepath.Join(root, fmt.Sprintf("session_%s", time.Now().Format("20060102_150405")))
	rec, err := replay.NewRecorder(dir, demo.TrackName, demo.CarName, "demo", log)
	if err != nil {
		return "", err
	}

	const (
		laps     = 2
		substeps = 6 // reference points are 240/lap, telemetry runs ~60 Hz
		dt       = 1.0 / 60.0
	)
	ts := time.Now().Add(-10 * time.Minute)
	for lap := 0; lap < laps; lap++ {
		for i := range demo.Points {
			base := demo.Points[i]
			next := demo.Points[(i+1)%len(demo.Points)]
			for s := 0; s < substeps; s++ {
				f := float64(s) / substeps

				pos := lerpPosition(base.TrackPosition, next.TrackPosition, f)
				factor := 0.94 + 0.03*math.Sin(2*math.Pi*(3*pos+0.5*float64(lap)))
				if lap == 1 && pos > 0.70 && pos < 0.80 {
					factor -= 0.12
				}

				rec.Add(domain.TelemetrySnapshot{
					TrackPosition: pos,
					Speed:         lerp(base.Speed, next.Speed, f) * factor,
					Throttle:      lerp(base.Throttle, next.Throttle, f) * 0.9,
					Brake:         math.Min(1, lerp(base.Brake, next.Brake, f)*1.2),
					Steering:      lerp(base.Steering, next.Steering, f),
					Timestamp:     ts,
				})
				ts = ts.Add(time.Duration(dt * float64(time.Second)))
			}
		}
	}
	if err := rec.Close(); err != nil {
		return "", err
	}
	return dir, nil
}

// showSessions lists recorded sessions without starting the UI.
func showSessions(root string) {
	dirs, err := replay.Sessions(root)
	if err != nil || len(dirs) == 0 {
		fmt.Printf("no recorded sessions under %s\n", root)
		return
	}
	fmt.Printf("recorded sessions under %s (newest first):\n", root)
	for _, d := range dirs {
		fmt.Printf("  %s\n", filepath.Base(d))
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

func lerp(a, b, f float64) float64 { return a + (b-a)*f }

// lerpPosition interpolates lap progress, handling the wrap at the
// start/finish line.
func lerpPosition(a, b, f float64) float64 {
	if b < a {
		b += 1.0
	}
	return math.Mod(a+(b-a)*f, 1.0)
}
