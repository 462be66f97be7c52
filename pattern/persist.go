package pattern

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// snapshot is the persisted layout. Top-level section names are a stable
// contract: loaders ignore unknown extra fields, and a document missing
// the required sections (metadata, apiEndpoints) is treated as unusable.
type snapshot struct {
	Metadata         *Metadata           `json:"metadata"`
	BaselinePatterns []string            `json:"baselinePatterns"`
	APIEndpoints     map[string]*Pattern `json:"apiEndpoints"`
	SuccessMetrics   *Metrics            `json:"successMetrics"`
}

// Persist writes the store to disk: the previous snapshot is copied to a
// sibling backup first, then the file is overwritten atomically. Errors
// are returned for logging but the in-memory store stays authoritative;
// the next scheduled save retries.
func (s *Store) Persist() error {
	if s.cfg.Path == "" {
		return nil
	}

	s.mu.Lock()
	snap := snapshot{
		Metadata:         &Metadata{},
		BaselinePatterns: append([]string(nil), s.baselines...),
		APIEndpoints:     make(map[string]*Pattern, len(s.patterns)),
		SuccessMetrics:   &Metrics{},
	}
	*snap.Metadata = s.meta
	snap.Metadata.PatternCount = len(s.patterns)
	*snap.SuccessMetrics = s.metrics
	for k, p := range s.patterns {
		c := clone(p)
		snap.APIEndpoints[k] = &c
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("pattern: marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o755); err != nil {
		return fmt.Errorf("pattern: mkdir: %w", err)
	}

	// Backup before overwrite, so a failed write never loses the last
	// good snapshot.
	if prev, err := os.ReadFile(s.cfg.Path); err == nil {
		if err := os.WriteFile(s.backupPath(), prev, 0o644); err != nil {
			s.cfg.Logger.Warn("pattern: backup write failed", "error", err)
		}
	}

	tmp := s.cfg.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("pattern: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.cfg.Path); err != nil {
		return fmt.Errorf("pattern: replace snapshot: %w", err)
	}
	return nil
}

// load restores the store from disk. Fallback chain: snapshot file →
// backup copy → regenerated defaults. Never fails construction; an
// unusable snapshot with no usable backup only costs the learned state.
func (s *Store) load() {
	log := s.cfg.Logger

	if s.loadFile(s.cfg.Path) {
		return
	}
	log.Warn("pattern: snapshot unusable, trying backup", "path", s.cfg.Path)

	if s.loadFile(s.backupPath()) {
		log.Info("pattern: restored from backup", "path", s.backupPath())
		return
	}

	log.Warn("pattern: no usable snapshot, regenerating defaults")
	s.mu.Lock()
	s.patterns = make(map[string]*Pattern)
	s.metrics = Metrics{}
	s.meta = Metadata{Version: snapshotVersion, CreatedAt: time.Now().UTC()}
	s.mu.Unlock()
}

// loadFile attempts one snapshot file. Returns false when the file is
// absent, unparseable, or missing required sections.
func (s *Store) loadFile(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.cfg.Logger.Warn("pattern: snapshot parse failed", "path", path, "error", err)
		return false
	}
	if snap.Metadata == nil || snap.APIEndpoints == nil {
		s.cfg.Logger.Warn("pattern: snapshot missing required sections", "path", path)
		return false
	}

	s.mu.Lock()
	s.meta = *snap.Metadata
	s.meta.Version = snapshotVersion
	if snap.SuccessMetrics != nil {
		s.metrics = *snap.SuccessMetrics
	}
	s.patterns = make(map[string]*Pattern, len(snap.APIEndpoints))
	for k, p := range snap.APIEndpoints {
		if p == nil || k == "" {
			continue
		}
		p.Key = k
		if p.Kind == "" || p.Shape == "" {
			p.Kind, p.Shape = SplitKey(k)
		}
		// Counters invariant survives hand-edited or corrupted rows.
		if p.SuccessfulAttempts > p.TotalAttempts {
			p.SuccessfulAttempts = p.TotalAttempts
		}
		p.recompute()
		s.patterns[k] = p
	}
	// Baselines come from the vocabulary, not the snapshot: hand-curated
	// shapes are code-of-record in config, never learned state.
	s.mu.Unlock()

	s.cfg.Logger.Info("pattern: snapshot loaded", "path", path, "patterns", len(snap.APIEndpoints))
	return true
}

func (s *Store) backupPath() string {
	return s.cfg.Path + ".bak"
}
