package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"enricher/pkg/logger"
	"enricher/pkg/storage"
)

// TimeFormat is the layout of Checkpoint.LastUpdated.
const TimeFormat = "2006-01-02 15:04:05"

// Checkpoint is the persisted form of a processed-id set.
type Checkpoint struct {
	ProcessedIDs []string `json:"processed_ids"`
	LastUpdated  string   `json:"last_updated"`

	// ProcessedURLs is read from files written by older releases only.
	ProcessedURLs []string `json:"processed_urls,omitempty"`
}

// Info summarizes a checkpoint file.
type Info struct {
	Path         string    `json:"path"`
	Exists       bool      `json:"exists"`
	ProcessedIDs int       `json:"processed_ids"`
	LastUpdated  string    `json:"last_updated,omitempty"`
	ModTime      time.Time `json:"mod_time,omitempty"`
}

// Store persists the processed-id set of one output file.
type Store struct {
	path   string
	logger logger.Logger
	now    func() time.Time
}

// NewStore creates a store backed by path. A nil logger uses the global one.
func NewStore(path string, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{
		path:   path,
		logger: log.WithField("checkpoint", path),
		now:    time.Now,
	}
}

// PathFor returns the checkpoint location that belongs to an output file:
// profiles.json becomes profiles_progress.json.
func PathFor(output string) string {
	if strings.HasSuffix(output, ".json") {
		return strings.TrimSuffix(output, ".json") + "_progress.json"
	}
	return output + "_progress.json"
}

// Path returns the checkpoint file location.
func (s *Store) Path() string {
	return s.path
}

// LoadCheckpoint reads the raw checkpoint. It returns (nil, nil) when no
// checkpoint exists.
func (s *Store) LoadCheckpoint() (*Checkpoint, error) {
	var cp Checkpoint
	if err := storage.ReadJSON(s.path, &cp); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if len(cp.ProcessedIDs) == 0 && len(cp.ProcessedURLs) > 0 {
		cp.ProcessedIDs = cp.ProcessedURLs
	}
	cp.ProcessedURLs = nil
	return &cp, nil
}

// Load returns the processed set. A missing checkpoint is an empty set, and
// so is an unreadable one: progress is then recomputed from scratch.
func (s *Store) Load() *Set {
	cp, err := s.LoadCheckpoint()
	if err != nil {
		s.logger.WithError(err).Warn("Checkpoint unreadable, starting fresh")
		return NewSet()
	}
	if cp == nil {
		return NewSet()
	}

	set := NewSet(cp.ProcessedIDs...)
	s.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"processed":    set.Len(),
		"last_updated": cp.LastUpdated,
	})
	return set
}

// Save overwrites the checkpoint with the full set.
func (s *Store) Save(set *Set) error {
	ids := []string{}
	if set != nil {
		ids = set.IDs()
	}
	cp := Checkpoint{
		ProcessedIDs: ids,
		LastUpdated:  s.now().Format(TimeFormat),
	}
	if err := storage.WriteJSON(s.path, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	s.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"processed": len(ids),
	})
	return nil
}

// Delete removes the checkpoint file.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	s.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (s *Store) Exists() bool {
	return storage.Exists(s.path)
}

// Info describes the checkpoint without failing on corrupt data.
func (s *Store) Info() Info {
	info := Info{Path: s.path}
	stat, err := os.Stat(s.path)
	if err != nil {
		return info
	}
	info.Exists = true
	info.ModTime = stat.ModTime()

	cp, err := s.LoadCheckpoint()
	if err == nil && cp != nil {
		info.ProcessedIDs = NewSet(cp.ProcessedIDs...).Len()
		info.LastUpdated = cp.LastUpdated
	}
	return info
}

// Reset copies the checkpoint to a timestamped backup and deletes it. The
// backup path is empty when there was nothing to reset.
func (s *Store) Reset() (string, error) {
	if !s.Exists() {
		return "", nil
	}

	backup, err := storage.Backup(s.path, s.now())
	if err != nil {
		return "", fmt.Errorf("failed to back up checkpoint: %w", err)
	}
	if err := s.Delete(); err != nil {
		return backup, err
	}

	s.logger.WithField("backup", backup).Info("Checkpoint reset")
	return backup, nil
}
