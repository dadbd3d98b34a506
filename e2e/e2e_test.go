package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/haptic/internal/app"
	"github.com/ayusman/haptic/internal/capture"
	"github.com/ayusman/haptic/internal/command"
	"github.com/ayusman/haptic/internal/config"
	"github.com/ayusman/haptic/internal/daemon"
	"github.com/ayusman/haptic/internal/detector"
	"github.com/ayusman/haptic/internal/gemini"
	"github.com/ayusman/haptic/internal/log"
	"github.com/ayusman/haptic/internal/motion"
	"github.com/ayusman/haptic/internal/plugin"
	"github.com/ayusman/haptic/internal/server"
	"github.com/ayusman/haptic/internal/store"
	"github.com/ayusman/haptic/internal/transport"
)

// fakeGemini serves generateContent from fixture files. Requests with an
// image get the next detection answer (the last one repeats); text-only
// requests are refinements.
type fakeGemini struct {
	mu         sync.Mutex
	detections []string
	refine     string
	refineFail bool
	detects    int
	refines    int
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return string(data)
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Contents []struct {
			Parts []map[string]json.RawMessage `json:"parts"`
		} `json:"contents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Contents) == 0 {
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
		return
	}

	hasImage := false
	for _, p := range body.Contents[0].Parts {
		if _, ok := p["inline_data"]; ok {
			hasImage = true
		}
	}

	f.mu.Lock()
	var text string
	if hasImage {
		i := min(f.detects, len(f.detections)-1)
		text = f.detections[i]
		f.detects++
	} else {
		f.refines++
		if f.refineFail {
			f.mu.Unlock()
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"overloaded","code":503}}`))
			return
		}
		text = f.refine
	}
	f.mu.Unlock()

	json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
}

func (f *fakeGemini) counts() (detects, refines int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detects, f.refines
}

// recorderPlugin installs a shell plugin that appends every request it gets
// to a JSON-lines file and reports success.
func recorderPlugin(t *testing.T, actions ...string) (pluginDir, out string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	pluginDir = t.TempDir()
	dir := filepath.Join(pluginDir, "recorder")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	out = filepath.Join(t.TempDir(), "requests.jsonl")

	manifest, _ := json.Marshal(plugin.Manifest{
		Name:       "recorder",
		Version:    "1.0.0",
		Executable: "recorder.sh",
		Actions:    actions,
	})
	if err := os.WriteFile(filepath.Join(dir, plugin.ManifestFile), manifest, 0644); err != nil {
		t.Fatal(err)
	}

	script := fmt.Sprintf("#!/bin/sh\ncat >> %q\necho >> %q\necho '{\"success\":true}'\n", out, out)
	if err := os.WriteFile(filepath.Join(dir, "recorder.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return pluginDir, out
}

func readRequests(t *testing.T, path string) []plugin.Request {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var reqs []plugin.Request
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var req plugin.Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			t.Fatalf("bad request line %q: %v", line, err)
		}
		reqs = append(reqs, req)
	}
	return reqs
}

type system struct {
	cfg    *config.Config
	gemini *fakeGemini
	store  *store.Store
	hub    *transport.Hub
	app    *app.App
	daemon *daemon.Daemon
	api    *httptest.Server
	out    string
}

// startSystem wires the server side and a desktop daemon the way the two
// binaries do, with Gemini replaced by fixtures.
func startSystem(t *testing.T, fake *fakeGemini) *system {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	t.Setenv(config.EnvDataDir, t.TempDir())
	cfg, err := config.Load(filepath.Join("..", "testdata", "config.json"))
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	geminiSrv := httptest.NewServer(fake)
	t.Cleanup(geminiSrv.Close)

	client, err := gemini.New(gemini.Config{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: geminiSrv.URL,
		Model:   cfg.GeminiModel,
	})
	if err != nil {
		t.Fatalf("gemini.New() error = %v", err)
	}

	st, err := store.New(filepath.Join(cfg.DataDir, "haptic.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := transport.NewHub(log.Discard())
	go hub.Run(ctx)

	opts := []command.Option{command.WithLogger(log.Discard()), command.WithRefineTimeout(cfg.RefineTimeout.Std())}
	if cfg.Refine {
		opts = append(opts, command.WithRefiner(command.NewGeminiRefiner(client, log.Discard())))
	}

	a := app.New(app.Config{
		Detector: detector.NewGeminiDetector(client, detector.Config{
			MaxObjects:    cfg.MaxObjects,
			MinConfidence: cfg.MinConfidence,
			Timeout:       cfg.DetectTimeout.Std(),
		}, log.Discard()),
		Resolver:  command.NewResolver(nil, opts...),
		Publisher: hub,
		Bindings:  st.Bindings(),
		Log:       st.Commands(),
		Objects:   st.Objects(),
		Camera:    capture.NewMockCamera(nil, false),
		Tracker:   motion.Config{Threshold: cfg.MotionThreshold, HistorySize: cfg.HistorySize},
		Logger:    log.Discard(),
	})
	t.Cleanup(func() { a.Close() })

	api := httptest.NewServer(server.New(server.Config{
		Store:  st,
		App:    a,
		Hub:    hub,
		Frames: capture.NewFrameBuffer(),
		Logger: log.Discard(),
	}))
	t.Cleanup(api.Close)

	pluginDir, out := recorderPlugin(t, command.ActionAdjustVolume, command.ActionTabSwitch)
	plugins := plugin.NewManager(pluginDir, log.Discard())
	if err := plugins.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	d := daemon.New(daemon.Config{
		ServerURL:      "ws" + strings.TrimPrefix(api.URL, "http") + "/ws",
		ReconnectDelay: cfg.ReconnectDelay.Std(),
		PluginConfig:   cfg.Plugins,
		Logger:         log.Discard(),
	}, plugins, plugin.NewExecutor(cfg.PluginTimeout.Std()))
	go d.Run(ctx)

	waitFor(t, "daemon to register", func() bool { return hub.DesktopCount() == 1 })

	return &system{cfg: cfg, gemini: fake, store: st, hub: hub, app: a, daemon: d, api: api, out: out}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (s *system) do(t *testing.T, method, path, contentType string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.api.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.api.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s status = %d, want %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want)
	}
}

// frame runs one camera frame through detection and tracking.
func (s *system) frame(t *testing.T) []*command.Command {
	t.Helper()
	ctx := context.Background()
	points, err := s.app.Detect(ctx, []byte{0xff, 0xd8, 0xff, 0xd9})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	cmds, err := s.app.ProcessFrame(ctx, points)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	return cmds
}

// setUp binds "coffee mug:up", registers the desk and turns tracking on.
func (s *system) setUp(t *testing.T) {
	t.Helper()

	resp := s.do(t, http.MethodPost, "/api/bindings", "application/json",
		[]byte(`{"object_label":"Coffee Mug","gesture_key":"up","command":"volume_up"}`))
	expectStatus(t, resp, http.StatusCreated)

	resp = s.do(t, http.MethodPost, "/api/objects/register", "image/jpeg", []byte{0xff, 0xd8, 0xff, 0xd9})
	expectStatus(t, resp, http.StatusOK)
	var reg struct {
		Detected []detector.DetectedPoint `json:"detected"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if len(reg.Detected) != 2 {
		t.Fatalf("expected the low-confidence object to be dropped, got %d objects", len(reg.Detected))
	}

	objects, err := s.store.Objects().List()
	if err != nil {
		t.Fatalf("Objects().List() error = %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("expected 2 registered objects, got %d", len(objects))
	}

	resp = s.do(t, http.MethodPost, "/api/tracking", "application/json", []byte(`{"enabled":true}`))
	expectStatus(t, resp, http.StatusOK)
	if !s.app.IsEnabled() {
		t.Fatal("tracking should be enabled")
	}
}

func TestE2E_ObjectGestureReachesPlugin(t *testing.T) {
	fake := &fakeGemini{
		detections: []string{
			fixture(t, "gemini/desk_register.txt"),
			fixture(t, "gemini/desk_register.txt"),
			fixture(t, "gemini/desk_mug_raised.txt"),
		},
		refine: fixture(t, "gemini/refine_double.txt"),
	}
	sys := startSystem(t, fake)
	sys.setUp(t)

	if cmds := sys.frame(t); len(cmds) != 0 {
		t.Fatalf("first tracked frame should only seed positions, got %d commands", len(cmds))
	}

	cmds := sys.frame(t)
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command for the raised mug, got %d", len(cmds))
	}
	if cmds[0].Name != "volume_up" || cmds[0].Value != 2 || cmds[0].Intensity != 0.6 {
		t.Errorf("refined command = %+v, want volume_up with value 2 and intensity 0.6", cmds[0])
	}

	waitFor(t, "plugin to run", func() bool { return len(readRequests(t, sys.out)) == 1 })
	got := readRequests(t, sys.out)[0]
	if got.Action != command.ActionAdjustVolume || got.Value != 2 || got.Direction != string(command.DirectionUp) {
		t.Errorf("plugin request = %+v", got)
	}
	if got.ObjectLabel != "coffee mug" || got.Command != "volume_up" {
		t.Errorf("plugin request metadata = %+v", got)
	}
	if string(got.Config) != `{"simulate":true}` {
		t.Errorf("plugin config = %s", got.Config)
	}

	resp := sys.do(t, http.MethodGet, "/api/commands/history", "", nil)
	expectStatus(t, resp, http.StatusOK)
	var hist struct {
		Commands []store.CommandRecord `json:"commands"`
	}
	json.NewDecoder(resp.Body).Decode(&hist)
	if len(hist.Commands) != 1 || hist.Commands[0].Command != "volume_up" || hist.Commands[0].Value != 2 {
		t.Errorf("history = %+v", hist.Commands)
	}

	detects, refines := fake.counts()
	if detects != 3 || refines != 1 {
		t.Errorf("gemini calls: %d detections, %d refinements", detects, refines)
	}
	if s := sys.daemon.Stats(); s.Executed != 1 || s.Failed != 0 {
		t.Errorf("daemon stats = %+v", s)
	}
}

func TestE2E_RefinerDownUsesLocalValues(t *testing.T) {
	fake := &fakeGemini{
		detections: []string{
			fixture(t, "gemini/desk_register.txt"),
			fixture(t, "gemini/desk_register.txt"),
			fixture(t, "gemini/desk_mug_raised.txt"),
		},
		refineFail: true,
	}
	sys := startSystem(t, fake)
	sys.setUp(t)

	sys.frame(t)
	cmds := sys.frame(t)
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
	// Magnitude 80 gives intensity 0.8 and multiplier ceil(2.4) = 3.
	if cmds[0].Value != 3 || cmds[0].Intensity != 0.8 {
		t.Errorf("local command = %+v, want value 3 and intensity 0.8", cmds[0])
	}

	waitFor(t, "plugin to run", func() bool { return len(readRequests(t, sys.out)) == 1 })
	if got := readRequests(t, sys.out)[0]; got.Value != 3 {
		t.Errorf("plugin value = %d, want 3", got.Value)
	}
}

func TestE2E_TrackingOffSendsNothing(t *testing.T) {
	fake := &fakeGemini{
		detections: []string{
			fixture(t, "gemini/desk_register.txt"),
			fixture(t, "gemini/desk_register.txt"),
			fixture(t, "gemini/desk_mug_raised.txt"),
		},
		refine: fixture(t, "gemini/refine_double.txt"),
	}
	sys := startSystem(t, fake)
	sys.setUp(t)

	resp := sys.do(t, http.MethodPost, "/api/tracking", "application/json", []byte(`{"enabled":false}`))
	expectStatus(t, resp, http.StatusOK)
	if sys.store.Settings().Bool(store.SettingTrackingEnabled, true) {
		t.Error("disabled tracking should be persisted")
	}

	sys.frame(t)
	if cmds := sys.frame(t); len(cmds) != 0 {
		t.Fatalf("expected no commands while tracking is off, got %d", len(cmds))
	}

	// Manual commands still reach the desktop.
	resp = sys.do(t, http.MethodPost, "/api/send-command", "application/json", []byte(`{"command":"next_tab"}`))
	expectStatus(t, resp, http.StatusAccepted)

	waitFor(t, "manual command", func() bool { return len(readRequests(t, sys.out)) == 1 })
	if got := readRequests(t, sys.out)[0]; got.Action != command.ActionTabSwitch || got.Command != "next_tab" {
		t.Errorf("plugin request = %+v", got)
	}
}

func TestE2E_UnhandledActionIsCounted(t *testing.T) {
	fake := &fakeGemini{detections: []string{fixture(t, "gemini/desk_register.txt")}}
	sys := startSystem(t, fake)

	resp := sys.do(t, http.MethodPost, "/api/send-command", "application/json", []byte(`{"command":"scroll_up"}`))
	expectStatus(t, resp, http.StatusAccepted)

	waitFor(t, "daemon to drop the command", func() bool { return sys.daemon.Stats().Unhandled == 1 })
	if reqs := readRequests(t, sys.out); len(reqs) != 0 {
		t.Errorf("recorder should not see scroll, got %d requests", len(reqs))
	}
}
