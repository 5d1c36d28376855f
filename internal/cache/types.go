package cache

import "time"

// Entry is a cached signing outcome for one object key. A negative entry
// records a failed or denied signing attempt and carries no URL.
type Entry struct {
	URL       string
	ExpiresAt time.Time
	Negative  bool
}

// State is the result of a tri-state cache read.
type State int

const (
	// Absent means nothing usable is cached: resolve now.
	Absent State = iota
	// Fresh means a positive entry is cached and still valid.
	Fresh
	// Negative means a recent resolution failed: do not retry before ExpiresAt.
	Negative
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Negative:
		return "negative"
	default:
		return "absent"
	}
}

const (
	DefaultSkew        = 10 * time.Second
	DefaultNegativeTTL = 15 * time.Second
)
