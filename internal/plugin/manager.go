package plugin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

var (
	// ErrPluginNotFound is returned when a requested plugin cannot be found.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrNoHandler is returned when no plugin lists an action.
	ErrNoHandler = errors.New("no plugin handles action")
)

// Manager manages plugin discovery and access.
type Manager struct {
	pluginDir string
	logger    *slog.Logger

	mu      sync.RWMutex
	plugins map[string]*Plugin
	actions map[string]*Plugin
}

// NewManager creates a new plugin Manager with the given plugin directory.
func NewManager(pluginDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		pluginDir: pluginDir,
		logger:    logger.With("component", "plugin"),
		plugins:   make(map[string]*Plugin),
		actions:   make(map[string]*Plugin),
	}
}

// Discover scans the plugin directory for plugin.json files and loads them.
// Each subdirectory in the plugin directory is expected to be a plugin with a plugin.json manifest.
// When two plugins list the same action, the one whose name sorts first wins.
func (m *Manager) Discover() error {
	plugins := make(map[string]*Plugin)
	actions := make(map[string]*Plugin)

	info, err := os.Stat(m.pluginDir)
	if os.IsNotExist(err) {
		m.swap(plugins, actions)
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		m.swap(plugins, actions)
		return nil
	}

	entries, err := os.ReadDir(m.pluginDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pluginPath := filepath.Join(m.pluginDir, entry.Name())
		manifestPath := filepath.Join(pluginPath, ManifestFile)

		manifestData, err := os.ReadFile(manifestPath)
		if err != nil {
			if !os.IsNotExist(err) {
				m.logger.Warn("skipping unreadable plugin", "path", pluginPath, "error", err)
			}
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(manifestData, &manifest); err != nil {
			m.logger.Warn("skipping plugin with invalid manifest", "path", manifestPath, "error", err)
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			m.logger.Warn("skipping plugin without name or executable", "path", manifestPath)
			continue
		}

		plugins[manifest.Name] = &Plugin{
			Manifest:   manifest,
			Path:       pluginPath,
			Executable: filepath.Join(pluginPath, manifest.Executable),
		}
	}

	names := make([]string, 0, len(plugins))
	for name := range plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := plugins[name]
		for _, action := range p.Manifest.Actions {
			if owner, ok := actions[action]; ok {
				m.logger.Warn("action claimed by two plugins", "action", action, "using", owner.Manifest.Name, "ignoring", name)
				continue
			}
			actions[action] = p
		}
	}

	m.swap(plugins, actions)
	m.logger.Info("plugins discovered", "dir", m.pluginDir, "plugins", len(plugins), "actions", len(actions))
	return nil
}

func (m *Manager) swap(plugins, actions map[string]*Plugin) {
	m.mu.Lock()
	m.plugins = plugins
	m.actions = actions
	m.mu.Unlock()
}

// Get returns a plugin by name.
// Returns ErrPluginNotFound if the plugin does not exist.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugin, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}

	return plugin, nil
}

// ForAction returns the plugin that handles action.
func (m *Manager) ForAction(action string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugin, ok := m.actions[action]
	if !ok {
		return nil, ErrNoHandler
	}
	return plugin, nil
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, plugin := range m.plugins {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})

	return plugins
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
