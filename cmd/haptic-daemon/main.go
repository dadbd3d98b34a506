package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ayusman/haptic/internal/config"
	"github.com/ayusman/haptic/internal/daemon"
	"github.com/ayusman/haptic/internal/log"
	"github.com/ayusman/haptic/internal/plugin"
)

var (
	configPath = flag.String("config", "", "Path to a JSON config file")
	serverURL  = flag.String("server", "", "WebSocket URL of the haptic server (overrides config)")
	pluginDir  = flag.String("plugins", "", "Plugin directory (overrides config)")
	list       = flag.Bool("list", false, "List discovered plugins and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "haptic-daemon: %v\n", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *pluginDir != "" {
		cfg.PluginDir = *pluginDir
	}

	log.Init(cfg.LogLevel)
	logger := log.L()

	plugins := plugin.NewManager(cfg.PluginDir, logger)
	if err := plugins.Discover(); err != nil {
		logger.Error("plugin discovery failed", "dir", cfg.PluginDir, "error", err)
		os.Exit(1)
	}

	if *list {
		for _, p := range plugins.List() {
			fmt.Printf("%-16s %-8s %s\n", p.Manifest.Name, p.Manifest.Version, strings.Join(p.Manifest.Actions, ", "))
		}
		return
	}

	found := plugins.List()
	if len(found) == 0 {
		logger.Warn("no plugins found, commands will be dropped", "dir", cfg.PluginDir)
	}
	for _, p := range found {
		logger.Info("plugin loaded", "name", p.Manifest.Name, "actions", p.Manifest.Actions)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// SIGHUP rescans the plugin directory.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := plugins.Discover(); err != nil {
					logger.Warn("plugin rescan failed", "error", err)
				} else {
					logger.Info("plugins rescanned", "count", len(plugins.List()))
				}
			}
		}
	}()

	d := daemon.New(daemon.Config{
		ServerURL:      cfg.ServerURL,
		ReconnectDelay: cfg.ReconnectDelay.Std(),
		PluginConfig:   cfg.Plugins,
		Logger:         logger,
	}, plugins, plugin.NewExecutor(cfg.PluginTimeout.Std()))

	logger.Info("desktop daemon starting", "server", cfg.ServerURL, "plugins", cfg.PluginDir)
	if err := d.Run(ctx); err != nil {
		logger.Error("daemon stopped", "error", err)
		os.Exit(1)
	}

	s := d.Stats()
	logger.Info("desktop daemon stopped", "received", s.Received, "executed", s.Executed, "failed", s.Failed, "unhandled", s.Unhandled)
}
