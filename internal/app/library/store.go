// Package library provides durable named track collections per tenant.
package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/hatobus/tunebox/internal/domain/track"
)

var (
	// ErrCollectionExists is returned when creating a collection that already exists.
	ErrCollectionExists = errors.New("collection already exists")
	// ErrCollectionNotFound is returned when a named collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrDuplicateTrack is returned when adding a track whose URI is already in the collection.
	ErrDuplicateTrack = errors.New("track already in collection")
	// ErrIndexOutOfRange is returned when removing a track at an invalid index.
	ErrIndexOutOfRange = errors.New("track index out of range")
)

// Record is the persisted form of a track.
type Record struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	URI        string `json:"uri"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	ArtworkURL string `json:"artwork_url,omitempty"`
}

// RecordFromTrack converts a track into its persisted form.
func RecordFromTrack(t track.Track) Record {
	return Record{
		Title:      t.Title,
		Author:     t.Author,
		URI:        t.URI,
		DurationMs: t.Duration.Milliseconds(),
		ArtworkURL: t.ArtworkURL,
	}
}

// Track converts the record back into a track.
func (r Record) Track() track.Track {
	return track.Track{
		Title:      r.Title,
		Author:     r.Author,
		URI:        r.URI,
		Duration:   time.Duration(r.DurationMs) * time.Millisecond,
		ArtworkURL: r.ArtworkURL,
	}
}

// Store persists named track collections per tenant as JSON documents
// under a storage directory. Loads never fail the caller: a corrupted
// document is quarantined and replaced by an empty one. Saves are
// atomic (write-temp-then-rename).
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates a library store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create library directory")
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(tenant string) string {
	return filepath.Join(s.dir, fmt.Sprintf("library_%s.json", tenant))
}

// Load reads all collections for a tenant. A missing document yields an
// empty mapping. A corrupted document is copied to a .bak file, replaced
// with an empty one, and an empty mapping is returned.
func (s *Store) Load(tenant string) map[string][]Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(tenant)
}

func (s *Store) load(tenant string) map[string][]Record {
	path := s.path(tenant)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			zlog.Error().Msgf("failed to read library file: tenant=%s error=%v", tenant, err)
		}
		return map[string][]Record{}
	}

	var collections map[string][]Record
	if err := json.Unmarshal(data, &collections); err != nil {
		zlog.Error().Msgf("library file is corrupted: tenant=%s error=%v", tenant, err)
		s.quarantine(tenant, path)
		return map[string][]Record{}
	}
	if collections == nil {
		collections = map[string][]Record{}
	}
	return collections
}

// quarantine backs up a corrupted document and writes an empty one in
// its place so later saves start from a clean slate.
func (s *Store) quarantine(tenant, path string) {
	backup := path + ".bak"
	if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
		zlog.Error().Msgf("failed to remove stale library backup: tenant=%s error=%v", tenant, err)
	}
	if err := os.Rename(path, backup); err != nil {
		zlog.Error().Msgf("failed to back up corrupted library: tenant=%s error=%v", tenant, err)
		return
	}
	zlog.Info().Msgf("backed up corrupted library file: tenant=%s backup=%s", tenant, backup)

	if err := s.save(tenant, map[string][]Record{}); err != nil {
		zlog.Error().Msgf("failed to write replacement library file: tenant=%s error=%v", tenant, err)
	}
}

// Save writes all collections for a tenant atomically.
func (s *Store) Save(tenant string, collections map[string][]Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(tenant, collections)
}

func (s *Store) save(tenant string, collections map[string][]Record) error {
	if collections == nil {
		collections = map[string][]Record{}
	}

	data, err := json.MarshalIndent(collections, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode library")
	}

	path := s.path(tenant)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write library temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			zlog.Error().Msgf("failed to clean up library temp file: tenant=%s error=%v", tenant, rmErr)
		}
		return errors.Wrap(err, "failed to replace library file")
	}
	return nil
}

// Create adds a new empty collection.
func (s *Store) Create(tenant, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	collections := s.load(tenant)
	if _, ok := collections[name]; ok {
		return ErrCollectionExists
	}
	collections[name] = []Record{}
	return s.save(tenant, collections)
}

// Delete removes a collection and its tracks.
func (s *Store) Delete(tenant, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	collections := s.load(tenant)
	if _, ok := collections[name]; !ok {
		return ErrCollectionNotFound
	}
	delete(collections, name)
	return s.save(tenant, collections)
}

// AddTrack appends a track to a collection. Tracks with a URI already
// present in the collection are rejected.
func (s *Store) AddTrack(tenant, name string, t track.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	collections := s.load(tenant)
	records, ok := collections[name]
	if !ok {
		return ErrCollectionNotFound
	}

	rec := RecordFromTrack(t)
	if rec.URI != "" {
		for _, existing := range records {
			if existing.URI == rec.URI {
				return ErrDuplicateTrack
			}
		}
	}

	collections[name] = append(records, rec)
	return s.save(tenant, collections)
}

// RemoveTrack removes the track at index from a collection.
func (s *Store) RemoveTrack(tenant, name string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	collections := s.load(tenant)
	records, ok := collections[name]
	if !ok {
		return ErrCollectionNotFound
	}
	if index < 0 || index >= len(records) {
		return ErrIndexOutOfRange
	}

	collections[name] = append(records[:index], records[index+1:]...)
	return s.save(tenant, collections)
}

// Collection returns the tracks of a named collection in order.
func (s *Store) Collection(tenant, name string) ([]track.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.load(tenant)[name]
	if !ok {
		return nil, ErrCollectionNotFound
	}

	tracks := make([]track.Track, 0, len(records))
	for _, r := range records {
		tracks = append(tracks, r.Track())
	}
	return tracks, nil
}

// List returns collection names mapped to their track counts.
func (s *Store) List(tenant string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	collections := s.load(tenant)
	counts := make(map[string]int, len(collections))
	for name, records := range collections {
		counts[name] = len(records)
	}
	return counts
}
