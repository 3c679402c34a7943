// Package file is a TOML-backed configuration store. It holds the sidecar
// defaults and named curation rule packs, and can watch its file for edits
// so a long-running sidecar picks up rule-pack changes without a restart.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/logger"
)

// SidecarConfig are the serve defaults. Flags override them.
type SidecarConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	TokenMode string `toml:"token_mode"`
}

// RulePack is a named, ordered curation rule list.
type RulePack struct {
	Name        string                `toml:"name"`
	Description string                `toml:"description"`
	Rules       []domain.CurationRule `toml:"rule"`
}

// Config is the full configuration file shape.
type Config struct {
	Sidecar   SidecarConfig `toml:"sidecar"`
	RulePacks []RulePack    `toml:"rulepack"`
}

// defaults returns the built-in configuration.
func defaults() Config {
	return Config{
		Sidecar: SidecarConfig{
			Host:      "127.0.0.1",
			Port:      8765,
			TokenMode: "auto",
		},
	}
}

// ConfigStore loads and watches one TOML configuration file.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	config   Config

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewConfigStore loads configuration from configPath. An empty path means
// ~/.agrafes/config.toml; a missing file yields the defaults.
func NewConfigStore(configPath string) (*ConfigStore, error) {
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		configPath = filepath.Join(home, ".agrafes", "config.toml")
	}

	s := &ConfigStore{
		filePath: configPath,
		config:   defaults(),
	}
	if err := s.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return s, nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// Load re-reads the file. Missing files keep the defaults and return
// os.ErrNotExist.
func (s *ConfigStore) Load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	config := defaults()
	if err := toml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing %s: %w", s.filePath, err)
	}

	s.mu.Lock()
	s.config = config
	s.mu.Unlock()
	return nil
}

// Config returns a snapshot of the current configuration.
func (s *ConfigStore) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// RulePack returns a named rule pack.
func (s *ConfigStore) RulePack(name string) (*RulePack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.config.RulePacks {
		if s.config.RulePacks[i].Name == name {
			pack := s.config.RulePacks[i]
			return &pack, nil
		}
	}
	return nil, fmt.Errorf("rule pack %q: %w", name, domain.ErrNotFound)
}

// Watch reloads the configuration whenever the file changes. onReload (may
// be nil) runs after each successful reload. Stops when Close is called.
func (s *ConfigStore) Watch(onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	// Watch the directory: editors replace files, which drops a watch on
	// the file itself.
	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching config directory: %w", err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.filePath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := s.Load(); err != nil {
					logger.Warn("config reload failed: %v", err)
					continue
				}
				logger.Info("config reloaded from %s", s.filePath)
				if onReload != nil {
					onReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error: %v", err)
			case <-s.done:
				return
			}
		}
	}()

	return nil
}

// Close stops the watcher, if any.
func (s *ConfigStore) Close() error {
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	if s.watcher != nil {
		err := s.watcher.Close()
		s.watcher = nil
		return err
	}
	return nil
}
