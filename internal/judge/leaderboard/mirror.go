package leaderboard

import (
	"context"
	"fmt"

	"autojudge/internal/common/cache"
)

// Mirror keeps a Redis sorted set per contest in step with the snapshot
// files, so API reads don't touch the filesystem.
type Mirror struct {
	cache cache.Cache
}

// NewMirror creates a leaderboard mirror backed by the given cache.
func NewMirror(c cache.Cache) *Mirror {
	return &Mirror{cache: c}
}

func mirrorKey(contestID int64) string {
	return fmt.Sprintf("leaderboard:%d", contestID)
}

// Sync replaces the contest's sorted set with the given standings.
func (m *Mirror) Sync(ctx context.Context, contestID int64, entries []Entry) error {
	key := mirrorKey(contestID)
	if err := m.cache.Del(ctx, key); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	members := make([]cache.ZMember, 0, len(entries))
	for _, entry := range entries {
		members = append(members, cache.ZMember{Score: entry.Score, Member: entry.Email})
	}
	return m.cache.ZAdd(ctx, key, members...)
}

// Top returns the best n standings from the mirror. Note that Redis
// orders ties lexicographically, unlike the snapshot which preserves
// insertion order, so the mirror serves display reads only.
func (m *Mirror) Top(ctx context.Context, contestID int64, n int64) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	members, err := m.cache.ZRevRangeWithScores(ctx, mirrorKey(contestID), 0, n-1)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(members))
	for _, member := range members {
		entries = append(entries, Entry{Email: member.Member, Score: member.Score})
	}
	return entries, nil
}

// Size returns the number of mirrored standings for a contest.
func (m *Mirror) Size(ctx context.Context, contestID int64) (int64, error) {
	return m.cache.ZCard(ctx, mirrorKey(contestID))
}
