package freshness

import "time"

// Urgency of an invalidation.
type Urgency int

const (
	// Soft marks the key stale; the next read starts the refresh.
	Soft Urgency = iota
	// Hard starts a fetch-and-replace immediately.
	Hard
)

func (u Urgency) String() string {
	if u == Hard {
		return "hard"
	}
	return "soft"
}

// ParseUrgency accepts "soft" and "hard"; anything else is rejected.
func ParseUrgency(s string) (Urgency, bool) {
	switch s {
	case "soft", "":
		return Soft, true
	case "hard":
		return Hard, true
	default:
		return Soft, false
	}
}

// Trigger names what caused a refresh. It only shows up in logs and updates.
type Trigger string

const (
	TriggerFirstLoad  Trigger = "first-load"
	TriggerRead       Trigger = "read"
	TriggerManual     Trigger = "manual"
	TriggerInterval   Trigger = "interval"
	TriggerForeground Trigger = "foreground"
	TriggerReconnect  Trigger = "reconnect"
	TriggerInvalidate Trigger = "invalidate"
	TriggerMutation   Trigger = "mutation"
	TriggerNavigation Trigger = "navigation"
)

// Policy tunes the staleness rules of one key.
type Policy struct {
	// DedupeWindow is how old a value may be before a read starts a
	// background revalidation.
	DedupeWindow time.Duration
	// EscalateAfter turns a soft navigation invalidation into a hard one when
	// the last successful refresh is older than this.
	EscalateAfter time.Duration
	// BackgroundRetries bounds the extra attempts of a background refresh.
	// Manual and first-load fetches are never retried.
	BackgroundRetries int
	// RefreshInterval schedules a background refresh. Zero disables it.
	RefreshInterval time.Duration
}

// DefaultPolicy mirrors the dashboard defaults.
func DefaultPolicy() Policy {
	return Policy{
		DedupeWindow:      5 * time.Second,
		EscalateAfter:     30 * time.Second,
		BackgroundRetries: 1,
		RefreshInterval:   5 * time.Minute,
	}
}

// State of a key, derived on demand.
type State int

const (
	Empty State = iota
	Fresh
	StaleServing
	Refreshing
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case StaleServing:
		return "stale-serving"
	case Refreshing:
		return "refreshing"
	default:
		return "empty"
	}
}

// Update is delivered to subscribers after every accepted refresh.
type Update struct {
	Key     string
	Seq     uint64
	Trigger Trigger
	At      time.Time
	Err     error
}
