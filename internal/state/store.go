// Package state owns the durable tracked-feed and contributor-stats
// mapping. One mutex serializes every read-modify-persist cycle: the feed
// poller and concurrently-invoked PR reviews share this store and a lost
// update here is a correctness bug, not a nicety.
package state

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Store holds the in-memory state and its backing file.
type Store struct {
	mu           sync.Mutex
	path         string
	feeds        map[string]TrackedFeed
	contributors map[string]ContributorStats
	logger       *zap.Logger
}

func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:         path,
		feeds:        make(map[string]TrackedFeed),
		contributors: make(map[string]ContributorStats),
		logger:       logger,
	}
}

// Load reads the persisted file. A missing or unreadable file resets to
// empty state; corruption is logged and never blocks startup. A legacy
// document whose root object is the feeds mapping itself (no wrapper keys)
// is migrated on read; the wrapper shape is written back on next persist.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("state file unreadable, starting empty", zap.String("path", s.path), zap.Error(err))
		}
		return
	}

	var doc fileState
	if err := json.Unmarshal(b, &doc); err == nil && (doc.Feeds != nil || doc.Contributors != nil) {
		if doc.Feeds != nil {
			s.feeds = doc.Feeds
		}
		if doc.Contributors != nil {
			s.contributors = doc.Contributors
		}
		return
	}

	// Legacy shape: the root object is the feeds mapping.
	var legacy map[string]TrackedFeed
	if err := json.Unmarshal(b, &legacy); err == nil && legacy != nil {
		// A wrapper document with null members is not a feeds mapping.
		delete(legacy, "feeds")
		delete(legacy, "contributors")
		s.feeds = legacy
		s.logger.Info("migrated legacy state file", zap.String("path", s.path), zap.Int("feeds", len(legacy)))
		return
	}

	s.logger.Warn("state file corrupt, starting empty", zap.String("path", s.path))
}

// persistLocked writes the full document via tmp+rename so readers never
// observe a partial write. Callers hold s.mu.
func (s *Store) persistLocked() error {
	doc := fileState{Feeds: s.feeds, Contributors: s.contributors}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Track inserts or overwrites a tracked feed and persists.
func (s *Store) Track(key string, f TrackedFeed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds[key] = f
	return s.persistLocked()
}

// Untrack removes a tracked feed; it reports whether the key existed.
func (s *Store) Untrack(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.feeds[key]; !ok {
		return false, nil
	}
	delete(s.feeds, key)
	return true, s.persistLocked()
}

// Feed returns one tracked feed by key.
func (s *Store) Feed(key string) (TrackedFeed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[key]
	return f, ok
}

// Feeds returns a snapshot copy of the tracked-feed mapping.
func (s *Store) Feeds() map[string]TrackedFeed {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]TrackedFeed, len(s.feeds))
	for k, v := range s.feeds {
		out[k] = v
	}
	return out
}

// AdvanceCursor moves a feed's cursor forward and persists. It is a no-op
// when the repo was untracked while its pass was in flight.
func (s *Store) AdvanceCursor(key, lastID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[key]
	if !ok {
		return nil
	}
	f.LastID = lastID
	s.feeds[key] = f
	return s.persistLocked()
}

// RecordReview increments an author's counters, globally and for repo,
// then persists. The record is created lazily on first attribution.
func (s *Store) RecordReview(author, repo string, additions, deletions int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.contributors[author]
	if c.Repos == nil {
		c.Repos = make(map[string]RepoStats)
	}
	c.TotalAdditions += additions
	c.TotalDeletions += deletions
	c.TotalChanges = c.TotalAdditions + c.TotalDeletions
	c.PRCount++

	r := c.Repos[repo]
	r.Additions += additions
	r.Deletions += deletions
	r.Changes = r.Additions + r.Deletions
	r.PRCount++
	c.Repos[repo] = r

	s.contributors[author] = c
	return s.persistLocked()
}

// Contributor returns a copy of one author's stats.
func (s *Store) Contributor(author string) (ContributorStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contributors[author]
	if !ok {
		return ContributorStats{}, false
	}
	return c.clone(), true
}

// Contributors returns a snapshot copy of every contributor record.
func (s *Store) Contributors() map[string]ContributorStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]ContributorStats, len(s.contributors))
	for k, v := range s.contributors {
		out[k] = v.clone()
	}
	return out
}
