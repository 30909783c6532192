package ports

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"toolshed/internal/models"
	"toolshed/internal/store"
)

// Preferences is the user's record of what each port is meant for, saved as
// a JSON object keyed by port number.
type Preferences struct {
	mu    sync.RWMutex
	path  string
	prefs map[int]models.PortPreference
}

// DefaultPreferencesPath returns the fallback read when path does not exist:
// preferences.json becomes preferences.default.json.
func DefaultPreferencesPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".default" + ext
}

// OpenPreferences loads the preferences at path, falling back to the default
// file next to it, and to no preferences when neither exists.
func OpenPreferences(path string) (*Preferences, error) {
	p := &Preferences{path: path, prefs: make(map[int]models.PortPreference)}

	for _, candidate := range []string{path, DefaultPreferencesPath(path)} {
		err := store.ReadJSON(candidate, &p.prefs)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load preferences: %w", err)
		}
		break
	}
	if p.prefs == nil {
		p.prefs = make(map[int]models.PortPreference)
	}
	return p, nil
}

func (p *Preferences) All() map[int]models.PortPreference {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.prefs)
}

// Replace swaps the whole set of preferences and saves it.
func (p *Preferences) Replace(prefs map[int]models.PortPreference) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := maps.Clone(prefs)
	if next == nil {
		next = make(map[int]models.PortPreference)
	}
	if err := store.WriteJSON(p.path, next); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	p.prefs = next
	return nil
}

func (p *Preferences) Set(port int, pref models.PortPreference) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := maps.Clone(p.prefs)
	next[port] = pref
	if err := store.WriteJSON(p.path, next); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	p.prefs = next
	return nil
}

// Delete removes the preference for port. Removing a port without one is
// not an error.
func (p *Preferences) Delete(port int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := maps.Clone(p.prefs)
	delete(next, port)
	if err := store.WriteJSON(p.path, next); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	p.prefs = next
	return nil
}
