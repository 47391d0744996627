package reconcile

import (
	"sort"
	"strings"
	"time"

	"alcyxob/workout-tracker/internal/domain"
)

// DefaultBurstWindow is the largest gap between two identical same-day
// sessions for them to count as one logical session.
const DefaultBurstWindow = 5 * time.Minute

// Discard rules.
const (
	RuleDuplicate = "duplicate"
	RuleSuperset  = "superset"
)

// Policy controls which same-day events are treated as the same logical session.
type Policy struct {
	// BurstWindow chains identical-type events whose consecutive timestamps are
	// at most this far apart. Zero or negative makes the whole day one burst.
	BurstWindow time.Duration `mapstructure:"burst_window" json:"burstWindow"`
	// CollapseSupersets discards an event whose types are contained in another
	// same-day event's types. Used for administrative cleanup.
	CollapseSupersets bool `mapstructure:"collapse_supersets" json:"collapseSupersets"`
}

// DefaultPolicy is the policy used when logging and rebuilding.
func DefaultPolicy() Policy {
	return Policy{BurstWindow: DefaultBurstWindow}
}

// CleanupPolicy is DefaultPolicy plus superset collapsing.
func CleanupPolicy() Policy {
	p := DefaultPolicy()
	p.CollapseSupersets = true
	return p
}

// later reports whether a wins over b: later timestamp, then larger ID.
func later(a, b *domain.SessionEvent) bool {
	if a.Timestamp() != b.Timestamp() {
		return a.Timestamp() > b.Timestamp()
	}
	return a.ID > b.ID
}

// sortChronological orders events by timestamp, then ID, ascending.
func sortChronological(events []domain.SessionEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return later(&events[j], &events[i])
	})
}

// typeSet returns the event's types with blanks and repeats removed, order kept.
func typeSet(e *domain.SessionEvent) []string {
	seen := make(map[string]bool, len(e.SessionTypes))
	out := make([]string, 0, len(e.SessionTypes))
	for _, t := range e.SessionTypes {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func signature(types []string) string {
	sorted := append([]string(nil), types...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x1f")
}

// subsetOf reports whether every element of a is in b.
func subsetOf(a, b []string) bool {
	in := make(map[string]bool, len(b))
	for _, t := range b {
		in[t] = true
	}
	for _, t := range a {
		if !in[t] {
			return false
		}
	}
	return true
}

// dominates reports whether b makes a redundant under superset collapsing:
// a's types are a proper subset of b's, or the sets are equal and b wins.
func dominates(b, a *domain.SessionEvent) bool {
	ta, tb := typeSet(a), typeSet(b)
	if !subsetOf(ta, tb) {
		return false
	}
	if len(ta) < len(tb) {
		return true
	}
	return later(b, a)
}
