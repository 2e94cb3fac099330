// Package leaderboard maintains per-contest standings as JSON snapshots
// on disk, with an optional Redis sorted-set mirror for fast reads.
package leaderboard

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"autojudge/pkg/errors"
	"autojudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Entry is one row of a contest leaderboard.
type Entry struct {
	Email string  `json:"email"`
	Score float64 `json:"score"`
}

// ScoreSource supplies the authoritative aggregate scores of a contest,
// used by Rebuild to reconstruct a snapshot from persistent state.
type ScoreSource interface {
	ContestScores(ctx context.Context, contestID int64) ([]Entry, error)
}

// Store reads and writes leaderboard snapshots. One snapshot file per
// contest, named <contestID>.lb, always sorted best first. All writes
// go through a temp file and a rename so readers never observe a
// partial snapshot.
type Store struct {
	dir    string
	source ScoreSource
	mirror *Mirror

	mu sync.Mutex
}

// NewStore creates a snapshot store rooted at dir. mirror may be nil.
func NewStore(dir string, source ScoreSource, mirror *Mirror) *Store {
	return &Store{dir: dir, source: source, mirror: mirror}
}

func (s *Store) path(contestID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.lb", contestID))
}

// Init writes an empty snapshot for a new contest.
func (s *Store) Init(ctx context.Context, contestID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, contestID, []Entry{})
}

// Load returns the current standings, best first. A contest with no
// snapshot yields LeaderboardNotInitialized; an unreadable snapshot
// yields LeaderboardCorrupt.
func (s *Store) Load(ctx context.Context, contestID int64) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(contestID)
}

func (s *Store) load(contestID int64) ([]Entry, error) {
	data, err := os.ReadFile(s.path(contestID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.LeaderboardNotInitialized,
				"no leaderboard snapshot for contest %d", contestID)
		}
		return nil, errors.Wrap(err, errors.LeaderboardCorrupt)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, errors.LeaderboardCorrupt,
			"leaderboard snapshot for contest %d is corrupt", contestID)
	}
	return entries, nil
}

func (s *Store) write(ctx context.Context, contestID int64, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, errors.InternalError)
	}

	tmp, err := os.CreateTemp(s.dir, fmt.Sprintf(".%d.lb.*", contestID))
	if err != nil {
		return errors.Wrap(err, errors.InternalError)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, errors.InternalError)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, errors.InternalError)
	}
	if err := os.Rename(tmp.Name(), s.path(contestID)); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, errors.InternalError)
	}

	if s.mirror != nil {
		// The snapshot file is the source of truth; mirror failures are
		// logged and tolerated.
		if err := s.mirror.Sync(ctx, contestID, entries); err != nil {
			logger.Warn(ctx, "leaderboard mirror sync failed",
				zap.Int64("contest_id", contestID),
				zap.Error(err))
		}
	}
	return nil
}

// Update sets a person's aggregate score and restores the ordering by
// bubbling the changed entry. Entries only move past strictly lower
// scores, so ties keep their existing order. A missing snapshot is
// treated as an empty board.
func (s *Store) Update(ctx context.Context, contestID int64, email string, score float64) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(contestID)
	if err != nil {
		if !errors.Is(err, errors.LeaderboardNotInitialized) {
			return nil, err
		}
		entries = []Entry{}
	}

	idx := -1
	for i := range entries {
		if entries[i].Email == email {
			idx = i
			break
		}
	}
	if idx == -1 {
		entries = append(entries, Entry{Email: email, Score: score})
		idx = len(entries) - 1
	} else {
		entries[idx].Score = score
	}

	for idx > 0 && entries[idx].Score > entries[idx-1].Score {
		entries[idx], entries[idx-1] = entries[idx-1], entries[idx]
		idx--
	}
	for idx < len(entries)-1 && entries[idx+1].Score > entries[idx].Score {
		entries[idx], entries[idx+1] = entries[idx+1], entries[idx]
		idx++
	}

	if err := s.write(ctx, contestID, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Rebuild discards the snapshot and reconstructs it from the
// authoritative aggregate scores.
func (s *Store) Rebuild(ctx context.Context, contestID int64) ([]Entry, error) {
	if s.source == nil {
		return nil, errors.New(errors.InternalError).WithMessage("no score source configured")
	}

	entries, err := s.source.ContestScores(ctx, contestID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if entries == nil {
		entries = []Entry{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(ctx, contestID, entries); err != nil {
		return nil, err
	}
	logger.Info(ctx, "leaderboard rebuilt",
		zap.Int64("contest_id", contestID),
		zap.Int("entries", len(entries)))
	return entries, nil
}

// ExportCSV writes the standings as rank,email,score rows with a header.
func (s *Store) ExportCSV(ctx context.Context, contestID int64, w io.Writer) error {
	entries, err := s.Load(ctx, contestID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"rank", "email", "score"}); err != nil {
		return errors.Wrap(err, errors.InternalError)
	}
	for i, entry := range entries {
		record := []string{
			strconv.Itoa(i + 1),
			entry.Email,
			strconv.FormatFloat(entry.Score, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, errors.InternalError)
		}
	}
	cw.Flush()
	return cw.Error()
}
