package medialib

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Prefs is the client state kept between sessions.
type Prefs struct {
	// BannerDismissed hides the cloud storage banner. It only holds while
	// some provider is connected.
	BannerDismissed bool `yaml:"banner_dismissed"`
}

// Derive applies the connection state to stored preferences: the banner flag
// is reset once no provider is connected.
func Derive(stored Prefs, conns []CloudConnection) Prefs {
	if !anyConnected(conns) {
		stored.BannerDismissed = false
	}

	return stored
}

// Preferences owns Prefs and persists them as YAML. An empty path keeps them
// in memory only.
type Preferences struct {
	path string

	mu    sync.Mutex
	prefs Prefs
}

func LoadPreferences(path string) (*Preferences, error) {
	p := &Preferences{path: path}
	if path == "" {
		return p, nil
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences, %w", err)
	}

	if err := yaml.Unmarshal(b, &p.prefs); err != nil {
		return nil, fmt.Errorf("failed to parse preferences %s, %w", path, err)
	}

	return p, nil
}

func (p *Preferences) Get() Prefs {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.prefs
}

func (p *Preferences) DismissBanner() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.prefs.BannerDismissed {
		return nil
	}

	next := p.prefs
	next.BannerDismissed = true

	return p.set(next)
}

// Sync derives the preferences from conns and persists them when they
// changed.
func (p *Preferences) Sync(conns []CloudConnection) (Prefs, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := Derive(p.prefs, conns)
	if next == p.prefs {
		return next, nil
	}

	return next, p.set(next)
}

// BannerVisible reports whether the cloud banner should be shown for conns.
func (p *Preferences) BannerVisible(conns []CloudConnection) bool {
	return anyConnected(conns) && !Derive(p.Get(), conns).BannerDismissed
}

func (p *Preferences) set(next Prefs) error {
	if p.path != "" {
		if err := writePrefs(p.path, next); err != nil {
			return err
		}
	}

	p.prefs = next
	return nil
}

func writePrefs(path string, prefs Prefs) error {
	b, err := yaml.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences, %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory, %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("failed to write preferences, %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write preferences, %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write preferences, %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save preferences, %w", err)
	}

	return nil
}
