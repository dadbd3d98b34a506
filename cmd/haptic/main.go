package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ayusman/haptic/internal/app"
	"github.com/ayusman/haptic/internal/capture"
	"github.com/ayusman/haptic/internal/command"
	"github.com/ayusman/haptic/internal/config"
	"github.com/ayusman/haptic/internal/detector"
	"github.com/ayusman/haptic/internal/gemini"
	"github.com/ayusman/haptic/internal/log"
	"github.com/ayusman/haptic/internal/motion"
	"github.com/ayusman/haptic/internal/server"
	"github.com/ayusman/haptic/internal/store"
	"github.com/ayusman/haptic/internal/transport"
	"github.com/ayusman/haptic/internal/tray"
)

// commandLogKeep bounds the command log.
const commandLogKeep = 1000

var (
	configPath = flag.String("config", "", "Path to a JSON config file")
	addr       = flag.String("addr", "", "Listen address (overrides config)")
	detectorID = flag.String("detector", "", "Detector backend: auto, gemini, mediapipe or mock")
	noCamera   = flag.Bool("no-camera", false, "Serve the API without starting the camera pipeline")
	withTray   = flag.Bool("tray", false, "Show the system tray menu")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "haptic: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *detectorID != "" {
		cfg.Detector = *detectorID
	}
	if *withTray {
		cfg.Tray = true
	}

	log.Init(cfg.LogLevel)
	logger := log.L()

	if err := run(cfg, logger); err != nil {
		logger.Error("haptic exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.NewWithLogger(filepath.Join(cfg.DataDir, "haptic.db"), logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var client *gemini.Client
	if cfg.GeminiAPIKey != "" {
		client, err = gemini.New(gemini.Config{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: cfg.DetectTimeout.Std(),
		})
		if err != nil {
			return fmt.Errorf("gemini client: %w", err)
		}
	}

	det, err := newDetector(cfg, client)
	if err != nil {
		return err
	}

	opts := []command.Option{
		command.WithLogger(logger),
		command.WithRefineTimeout(cfg.RefineTimeout.Std()),
	}
	if cfg.Refine && client != nil {
		opts = append(opts, command.WithRefiner(command.NewGeminiRefiner(client, logger)))
	}
	resolver := command.NewResolver(nil, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := transport.NewHub(logger)
	commands := st.Commands()

	frames := capture.NewFrameBuffer()
	a := app.New(app.Config{
		Detector:       det,
		Resolver:       resolver,
		Publisher:      hub,
		Bindings:       st.Bindings(),
		Log:            commands,
		Objects:        st.Objects(),
		CameraID:       cfg.CameraID,
		Frames:         frames,
		IdleFPS:        cfg.IdleFPS,
		ActiveFPS:      cfg.ActiveFPS,
		SceneThreshold: cfg.SceneThreshold,
		DetectTimeout:  cfg.DetectTimeout.Std(),
		Tracker: motion.Config{
			Threshold:   cfg.MotionThreshold,
			HistorySize: cfg.HistorySize,
		},
		Logger: logger,
	})
	defer a.Close()

	hub.OnRelay(func(data json.RawMessage) {
		var cmd command.Command
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.Action == "" {
			logger.Debug("relayed payload is not a command", "payload", string(data))
			return
		}
		a.LogCommand(&cmd)
	})

	settings := st.Settings()
	a.SetEnabled(settings.Bool(store.SettingTrackingEnabled, false))

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		logger.Info("serving static files", "dir", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		App:       a,
		Hub:       hub,
		Frames:    frames,
		Specs:     resolver.Specs(),
		Logger:    log.Component("server"),
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	if !*noCamera {
		if err := a.Start(); err != nil {
			logger.Warn("camera unavailable, serving API only", "camera", cfg.CameraID, "error", err)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := commands.Prune(commandLogKeep); err != nil {
					logger.Warn("pruning command log", "error", err)
				} else if n > 0 {
					logger.Debug("pruned command log", "removed", n)
				}
			}
		}
	}()

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Addr, "detector", cfg.Detector, "tracking", a.IsEnabled())
		errc <- srv.ListenAndServe(ctx, cfg.Addr)
		stop()
	}()

	if cfg.Tray {
		t := newTray(ctx, a, settings, hub, cfg.Addr, stop, logger)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// The tray owns the main goroutine until Quit.
		t.Run()
		stop()
	}

	err = <-errc
	wg.Wait()
	return err
}

func newDetector(cfg *config.Config, client *gemini.Client) (detector.Detector, error) {
	dcfg := detector.Config{
		MaxObjects:    cfg.MaxObjects,
		MinConfidence: cfg.MinConfidence,
		Timeout:       cfg.DetectTimeout.Std(),
	}

	switch cfg.Detector {
	case config.DetectorGemini:
		return detector.NewGeminiDetector(client, dcfg, log.L()), nil
	case config.DetectorMediaPipe:
		d, err := detector.NewMediaPipeDetector(dcfg)
		if err != nil {
			return nil, fmt.Errorf("mediapipe detector: %w", err)
		}
		return d, nil
	case config.DetectorMock:
		return demoDetector(), nil
	}

	if client != nil {
		return detector.NewGeminiDetector(client, dcfg, log.L()), nil
	}
	log.L().Warn("no " + config.EnvGeminiAPIKey + " set, using demo objects")
	return demoDetector(), nil
}

func demoDetector() *detector.MockDetector {
	d := detector.NewMockDetector()
	d.SetPoints(detector.DemoPoints())
	return d
}

func newTray(ctx context.Context, a *app.App, settings *store.SettingsRepository, hub *transport.Hub, addr string, quit func(), logger *slog.Logger) *tray.Tray {
	t := tray.New(a.IsEnabled())

	t.OnToggle(func(enabled bool) {
		a.SetEnabled(enabled)
		if err := settings.SetBool(store.SettingTrackingEnabled, enabled); err != nil {
			logger.Warn("saving tracking setting", "error", err)
		}
		hub.Emit(transport.EventTracking, map[string]bool{"enabled": enabled})
	})
	t.OnReset(a.Reset)
	t.OnSettings(func() {
		if err := openBrowser(settingsURL(addr)); err != nil {
			logger.Warn("opening settings", "error", err)
		}
	})
	t.OnQuit(quit)
	a.OnCommand(t.SetLastCommand)

	// The HTTP API can toggle tracking too.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.SetEnabled(a.IsEnabled())
			}
		}
	}()
	return t
}

func settingsURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir returns the first existing web directory among "web", "../web",
// "../../web" and <dataDir>/web, or "" if there is none.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
