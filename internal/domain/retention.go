package domain

import (
	"sort"
	"time"
)

// RetentionPolicy bounds the history by age and by count.
// Zero means unlimited on either axis. Pinned entries are exempt from both.
type RetentionPolicy struct {
	RetentionDays int
	MaxItems      int
}

// Normalize clamps negative bounds to zero (unlimited)
func (p RetentionPolicy) Normalize() RetentionPolicy {
	if p.RetentionDays < 0 {
		p.RetentionDays = 0
	}
	if p.MaxItems < 0 {
		p.MaxItems = 0
	}
	return p
}

// Cutoff returns the oldest createdAt an unpinned entry may have at now.
// The second value is false when there is no age bound.
func (p RetentionPolicy) Cutoff(now time.Time) (time.Time, bool) {
	days := p.Normalize().RetentionDays
	if days == 0 {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -days), true
}

// Evict applies the age phase then the count phase to entries, which are
// expected newest-first. Kept entries stay in input order unless the count
// phase runs, which re-sorts them by createdAt descending. Removed entries
// are returned in input order. The input slice is not modified.
func (p RetentionPolicy) Evict(entries []Entry, now time.Time) (kept, removed []Entry) {
	p = p.Normalize()

	live := make([]Entry, 0, len(entries))
	if cutoff, ok := p.Cutoff(now); ok {
		for _, e := range entries {
			if !e.Pinned && e.CreatedAt.Before(cutoff) {
				removed = append(removed, e)
				continue
			}
			live = append(live, e)
		}
	} else {
		live = append(live, entries...)
	}

	if p.MaxItems == 0 || len(live) <= p.MaxItems {
		return live, removed
	}

	var pinned int
	unpinned := make([]Entry, 0, len(live))
	for _, e := range live {
		if e.Pinned {
			pinned++
		} else {
			unpinned = append(unpinned, e)
		}
	}

	allowed := p.MaxItems - pinned
	if allowed < 0 {
		allowed = 0
	}

	// most-recent unpinned first
	sort.SliceStable(unpinned, func(i, j int) bool {
		return unpinned[i].CreatedAt.After(unpinned[j].CreatedAt)
	})
	keepIDs := make(map[string]struct{}, allowed)
	for _, e := range unpinned {
		if len(keepIDs) >= allowed {
			break
		}
		keepIDs[e.ID] = struct{}{}
	}

	kept = make([]Entry, 0, pinned+allowed)
	for _, e := range live {
		if _, ok := keepIDs[e.ID]; e.Pinned || ok {
			kept = append(kept, e)
			continue
		}
		removed = append(removed, e)
	}

	sortNewestFirst(kept)
	return kept, removed
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}
