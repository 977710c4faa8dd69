// Package storage provides file-backed persistence for the dashboard's local
// state: favorite market IDs, per-market price history, resolution history,
// and user settings. Everything lives in a single JSON file written
// atomically (temp file plus rename), so a crash mid-write never corrupts
// the previous good copy.
//
// Load failures fall back to documented defaults rather than propagating:
// local state is a convenience, and an unreadable file must never stop the
// dashboard from starting.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rewired-gh/polywatch/internal/logger"
	"github.com/rewired-gh/polywatch/internal/models"
)

const fileVersion = "1.0"

// persistenceFile is the on-disk layout. The four sections map to the four
// logical keys of the dashboard's persisted state.
type persistenceFile struct {
	Version           string                         `json:"version"`
	SavedAt           time.Time                      `json:"saved_at"`
	Favorites         []string                       `json:"favorites"`
	PriceHistory      map[string][]models.PricePoint `json:"price_history"`
	ResolutionHistory []models.ResolvedMarket        `json:"resolution_history"`
	Settings          *models.Settings               `json:"settings,omitempty"`
}

// Store holds the persisted state and rewrites the whole backing file on
// every mutation. Callers treat save errors as non-fatal and keep running
// on the in-memory copy.
type Store struct {
	mu              sync.Mutex
	filePath        string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
	state           persistenceFile
}

// Open creates a Store bound to filePath and loads any existing state.
// If filePath is empty, an OS-appropriate tmp directory is used. A missing
// file starts fresh; a corrupt one is logged and replaced on the next save.
func Open(filePath string, filePermissions, dirPermissions os.FileMode) *Store {
	if filePath == "" {
		filePath = filepath.Join(os.TempDir(), "polywatch", "state.json")
	}

	s := &Store{
		filePath:        filePath,
		filePermissions: filePermissions,
		dirPermissions:  dirPermissions,
		state:           persistenceFile{Version: fileVersion},
	}
	s.load()
	return s
}

func (s *Store) load() {
	// Clean up any stale temp file from a previous crash.
	tempPath := s.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		logger.Warn("Cannot read state file %s, starting fresh: %v", s.filePath, err)
		return
	}

	var loaded persistenceFile
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger.Warn("Corrupt state file %s, starting fresh: %v", s.filePath, err)
		return
	}
	loaded.Version = fileVersion
	s.state = loaded
}

// save writes the full state atomically. Callers hold s.mu.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), s.dirPermissions); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	s.state.Version = fileVersion
	s.state.SavedAt = time.Now()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write to temporary file first (atomic write)
	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, s.filePermissions); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tempPath, s.filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

// Favorites returns the persisted favorite market IDs.
func (s *Store) Favorites() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.state.Favorites))
	copy(out, s.state.Favorites)
	return out
}

// SaveFavorites replaces the favorites set and persists.
func (s *Store) SaveFavorites(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Favorites = append([]string(nil), ids...)
	return s.save()
}

// PriceHistory returns the persisted per-market price series.
func (s *Store) PriceHistory() map[string][]models.PricePoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]models.PricePoint, len(s.state.PriceHistory))
	for id, points := range s.state.PriceHistory {
		out[id] = append([]models.PricePoint(nil), points...)
	}
	return out
}

// SavePriceHistory replaces the full price-history map and persists.
func (s *Store) SavePriceHistory(series map[string][]models.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.PriceHistory = series
	return s.save()
}

// ResolutionHistory returns the persisted resolved-market summaries,
// newest first.
func (s *Store) ResolutionHistory() []models.ResolvedMarket {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.ResolvedMarket(nil), s.state.ResolutionHistory...)
}

// SaveResolutionHistory replaces the resolution history and persists.
func (s *Store) SaveResolutionHistory(entries []models.ResolvedMarket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.ResolutionHistory = append([]models.ResolvedMarket(nil), entries...)
	return s.save()
}

// Settings returns the persisted settings, or the defaults when none were
// ever saved.
func (s *Store) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Settings == nil {
		return models.DefaultSettings()
	}
	return *s.state.Settings
}

// SaveSettings replaces the settings and persists.
func (s *Store) SaveSettings(settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Settings = &settings
	return s.save()
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.filePath
}
