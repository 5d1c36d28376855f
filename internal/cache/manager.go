package cache

import "time"

type Stats struct {
	EntryCount      int     `json:"entry_count"`
	PositiveEntries int     `json:"positive_entries"`
	NegativeEntries int     `json:"negative_entries"`
	ExpiredEntries  int     `json:"expired_entries"`
	Hits            uint64  `json:"hits"`
	Misses          uint64  `json:"misses"`
	NegativeHits    uint64  `json:"negative_hits"`
	Sets            uint64  `json:"sets"`
	NegativeSets    uint64  `json:"negative_sets"`
	Expirations     uint64  `json:"expirations"`
	Invalidations   uint64  `json:"invalidations"`
	HitRatio        float64 `json:"hit_ratio"`
	// NextExpiry is the earliest expiry among live entries, zero when empty.
	NextExpiry time.Time `json:"next_expiry"`
}

// Stats reports entry counts and lookup counters. Entries past their expiry
// that nobody has read yet are counted as expired, not evicted.
func (c *SignedURLCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stats := Stats{
		EntryCount:    len(c.entries),
		Hits:          c.counters.hits,
		Misses:        c.counters.misses,
		NegativeHits:  c.counters.negativeHits,
		Sets:          c.counters.sets,
		NegativeSets:  c.counters.negativeSets,
		Expirations:   c.counters.expirations,
		Invalidations: c.counters.invalidations,
	}

	for _, entry := range c.entries {
		switch {
		case !now.Before(entry.ExpiresAt):
			stats.ExpiredEntries++
			continue
		case entry.Negative:
			stats.NegativeEntries++
		default:
			stats.PositiveEntries++
		}
		if stats.NextExpiry.IsZero() || entry.ExpiresAt.Before(stats.NextExpiry) {
			stats.NextExpiry = entry.ExpiresAt
		}
	}

	if total := stats.Hits + stats.Misses + stats.NegativeHits; total > 0 {
		stats.HitRatio = float64(stats.Hits) / float64(total)
	}
	return stats
}
