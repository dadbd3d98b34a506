// Package daemon is the desktop side of haptic. It connects to the server as
// a desktop client and carries out each motion command through the plugin
// that handles its action.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ayusman/haptic/internal/command"
	"github.com/ayusman/haptic/internal/plugin"
	"github.com/ayusman/haptic/internal/transport"
)

// DefaultReconnectDelay is the pause between connection attempts.
const DefaultReconnectDelay = 5 * time.Second

// Router finds the plugin for an action.
type Router interface {
	ForAction(action string) (*plugin.Plugin, error)
}

// Runner executes a plugin request.
type Runner interface {
	Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error)
}

// Config holds daemon configuration.
type Config struct {
	ServerURL      string
	ReconnectDelay time.Duration
	// PluginConfig is passed to a plugin with every request, keyed by plugin name.
	PluginConfig map[string]json.RawMessage
	Logger       *slog.Logger
}

// Stats counts what the daemon has done since it started.
type Stats struct {
	Connected bool  `json:"connected"`
	Connects  int64 `json:"connects"`
	Received  int64 `json:"received"`
	Executed  int64 `json:"executed"`
	Failed    int64 `json:"failed"`
	Unhandled int64 `json:"unhandled"`
}

// Daemon relays motion commands from the server to plugins.
type Daemon struct {
	config Config
	router Router
	runner Runner
	logger *slog.Logger

	connected atomic.Bool
	connects  atomic.Int64
	received  atomic.Int64
	executed  atomic.Int64
	failed    atomic.Int64
	unhandled atomic.Int64
}

// New creates a Daemon.
func New(config Config, router Router, runner Runner) *Daemon {
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = DefaultReconnectDelay
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Daemon{
		config: config,
		router: router,
		runner: runner,
		logger: config.Logger.With("component", "daemon"),
	}
}

// Run connects and serves until ctx is cancelled, reconnecting after every
// failure or disconnect.
func (d *Daemon) Run(ctx context.Context) error {
	for {
		err := d.session(ctx)
		if ctx.Err() != nil {
			return nil
		}

		d.logger.Warn("disconnected from server, retrying",
			"url", d.config.ServerURL,
			"error", err,
			"retry_in", d.config.ReconnectDelay,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d.config.ReconnectDelay):
		}
	}
}

// session serves one connection until it drops.
func (d *Daemon) session(ctx context.Context) error {
	conn, err := transport.Dial(ctx, d.config.ServerURL, transport.RoleDesktop)
	if err != nil {
		return err
	}
	defer conn.Close()

	d.connected.Store(true)
	defer d.connected.Store(false)
	d.connects.Add(1)
	d.logger.Info("connected to server", "url", d.config.ServerURL)

	for {
		env, err := conn.Next(ctx)
		if err != nil {
			return err
		}

		switch env.Event {
		case transport.EventMotionCommand:
			d.received.Add(1)
			var cmd command.Command
			if err := json.Unmarshal(env.Data, &cmd); err != nil {
				d.logger.Warn("bad motion_command payload", "error", err)
				continue
			}
			if _, err := d.Handle(ctx, &cmd); err != nil {
				d.logger.Warn("command failed", "action", cmd.Action, "error", err)
			}

		case transport.EventDesktopConnected, transport.EventDesktopDisconnected, transport.EventTracking:
			d.logger.Debug("server event", "event", env.Event)
		}
	}
}

// Handle executes cmd through the plugin that lists its action.
func (d *Daemon) Handle(ctx context.Context, cmd *command.Command) (*plugin.Response, error) {
	p, err := d.router.ForAction(cmd.Action)
	if err != nil {
		if errors.Is(err, plugin.ErrNoHandler) {
			d.unhandled.Add(1)
		} else {
			d.failed.Add(1)
		}
		return nil, err
	}

	resp, err := d.runner.Execute(ctx, p, plugin.NewRequest(cmd, d.config.PluginConfig[p.Manifest.Name]))
	if err != nil {
		d.failed.Add(1)
		return nil, fmt.Errorf("plugin %s: %w", p.Manifest.Name, err)
	}
	if !resp.Success {
		d.failed.Add(1)
		return resp, fmt.Errorf("plugin %s: %s", p.Manifest.Name, resp.Error)
	}

	d.executed.Add(1)
	d.logger.Info("command executed",
		"action", cmd.Action,
		"value", cmd.Value,
		"intensity", cmd.Intensity,
		"plugin", p.Manifest.Name,
	)
	return resp, nil
}

// Stats returns a snapshot of the daemon counters.
func (d *Daemon) Stats() Stats {
	return Stats{
		Connected: d.connected.Load(),
		Connects:  d.connects.Load(),
		Received:  d.received.Load(),
		Executed:  d.executed.Load(),
		Failed:    d.failed.Load(),
		Unhandled: d.unhandled.Load(),
	}
}
