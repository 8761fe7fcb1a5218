package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/telemetry"
)

// Store publishes the current configuration. Readers always see a complete
// Config; writers swap the whole value.
type Store struct {
	current atomic.Pointer[Config]

	mu        sync.Mutex
	listeners map[int]func(Config)
	nextID    int
}

// NewStore returns a store holding cfg.
func NewStore(cfg Config) *Store {
	s := &Store{listeners: make(map[int]func(Config))}
	cfg = cfg.Normalized()
	s.current.Store(&cfg)
	return s
}

// Load returns the current configuration. A nil store yields the defaults.
func (s *Store) Load() Config {
	if s == nil {
		return Default()
	}
	if cfg := s.current.Load(); cfg != nil {
		return *cfg
	}
	return Default()
}

// Replace swaps in cfg and notifies subscribers.
func (s *Store) Replace(cfg Config) {
	if s == nil {
		return
	}
	cfg = cfg.Normalized()
	s.current.Store(&cfg)

	s.mu.Lock()
	listeners := make([]func(Config), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
}

// Subscribe registers fn to run after every Replace. The returned func
// unregisters it.
func (s *Store) Subscribe(fn func(Config)) (cancel func()) {
	if s == nil || fn == nil {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Watch reloads path into store whenever the file is written, until ctx is
// cancelled. Parse failures are logged and the previous config stays live.
// The parent directory is watched so editors that replace the file are
// handled.
func Watch(ctx context.Context, path string, store *Store, logger telemetry.Logger) error {
	if logger == nil {
		logger = telemetry.Discard
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(target)
			if err != nil {
				logger.Printf("config reload failed: %v", err)
				continue
			}
			store.Replace(cfg)
			logger.Printf("config reloaded from %s", target)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Printf("config watcher error: %v", err)
		}
	}
}
