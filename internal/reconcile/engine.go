// Package reconcile turns a raw, possibly duplicated session log into the
// retained event set and the day aggregates of a WeeklyDocument.
package reconcile

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"alcyxob/workout-tracker/internal/calendar"
	"alcyxob/workout-tracker/internal/domain"
	"alcyxob/workout-tracker/internal/weekly"
)

// Discard is an event dropped during deduplication.
type Discard struct {
	Event        domain.SessionEvent `json:"event"`
	DateISO      string              `json:"dateISO"`
	Rule         string              `json:"rule"`
	SupersededBy string              `json:"supersededBy"`
}

// Unplaceable is an event that could not be assigned to any day.
type Unplaceable struct {
	Event  domain.SessionEvent `json:"event"`
	Reason string              `json:"reason"`
}

// Err wraps domain.ErrUnplaceableSession with the event's ID and reason.
func (u Unplaceable) Err() error {
	return fmt.Errorf("%w: session %q: %s", domain.ErrUnplaceableSession, u.Event.ID, u.Reason)
}

// Result is the outcome of reconciling one week.
type Result struct {
	WeekOfISO   string                 `json:"weekOfISO"`
	Retained    []domain.SessionEvent  `json:"retained"`
	Discarded   []Discard              `json:"discarded"`
	Unplaceable []Unplaceable          `json:"unplaceable"`
	OutOfWeek   int                    `json:"outOfWeek"`
	Document    *domain.WeeklyDocument `json:"document"`
}

// Err joins every unplaceable-session error, or returns nil.
func (r *Result) Err() error {
	errs := make([]error, 0, len(r.Unplaceable))
	for _, u := range r.Unplaceable {
		errs = append(errs, u.Err())
	}
	return errors.Join(errs...)
}

// DiscardedIDs returns the IDs of every discarded event.
func (r *Result) DiscardedIDs() []string {
	ids := make([]string, 0, len(r.Discarded))
	for _, d := range r.Discarded {
		ids = append(ids, d.Event.ID)
	}
	return ids
}

// Engine applies a Policy. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	policy Policy
	loc    *time.Location
}

// NewEngine creates an engine. loc is used to derive a day from a timestamp
// when an event has no dateISO; nil means time.Local.
func NewEngine(policy Policy, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{policy: policy, loc: loc}
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// WithPolicy returns an engine sharing this one's location.
func (e *Engine) WithPolicy(p Policy) *Engine {
	return &Engine{policy: p, loc: e.loc}
}

// PlaceEvent returns the ISO day an event belongs to: its dateISO when that
// parses, otherwise the day of its timestamp.
func (e *Engine) PlaceEvent(ev *domain.SessionEvent) (string, error) {
	date, reason := e.place(ev)
	if reason != "" {
		return "", Unplaceable{Event: *ev, Reason: reason}.Err()
	}
	return date, nil
}

func (e *Engine) place(ev *domain.SessionEvent) (date string, reason string) {
	if ev.DateISO != "" {
		if t, err := calendar.ParseISODate(ev.DateISO, time.UTC); err == nil {
			return calendar.ToISODate(t), ""
		}
	}
	if ts := ev.Timestamp(); ts > 0 {
		return calendar.DateOfMillis(ts, e.loc), ""
	}
	if ev.DateISO != "" {
		return "", fmt.Sprintf("malformed dateISO %q and no timestamp", ev.DateISO)
	}
	return "", "no dateISO and no timestamp"
}

// DedupeDay resolves the events of a single day into the ones to keep and
// the ones to drop. Neither slice aliases the input.
func (e *Engine) DedupeDay(dateISO string, events []domain.SessionEvent) ([]domain.SessionEvent, []Discard) {
	sorted := append([]domain.SessionEvent(nil), events...)
	sortChronological(sorted)

	var discards []Discard

	// Identical type sets inside one burst: the last of each chain survives.
	groups := map[string][]int{}
	var order []string
	for i := range sorted {
		sig := signature(typeSet(&sorted[i]))
		if _, ok := groups[sig]; !ok {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], i)
	}

	keep := make([]bool, len(sorted))
	for _, sig := range order {
		idx := groups[sig]
		start := 0
		for k := 1; k <= len(idx); k++ {
			if k < len(idx) && e.sameBurst(&sorted[idx[k-1]], &sorted[idx[k]]) {
				continue
			}
			survivor := idx[k-1]
			keep[survivor] = true
			for _, j := range idx[start : k-1] {
				discards = append(discards, Discard{
					Event:        sorted[j],
					DateISO:      dateISO,
					Rule:         RuleDuplicate,
					SupersededBy: sorted[survivor].ID,
				})
			}
			start = k
		}
	}

	retained := make([]domain.SessionEvent, 0, len(sorted))
	for i := range sorted {
		if keep[i] {
			retained = append(retained, sorted[i])
		}
	}

	if e.policy.CollapseSupersets {
		var collapsed []Discard
		retained, collapsed = collapseSupersets(dateISO, retained)
		discards = append(discards, collapsed...)
	}
	return retained, discards
}

func (e *Engine) sameBurst(prev, next *domain.SessionEvent) bool {
	if e.policy.BurstWindow <= 0 {
		return true
	}
	gap := time.Duration(next.Timestamp()-prev.Timestamp()) * time.Millisecond
	return gap <= e.policy.BurstWindow
}

// collapseSupersets keeps only events no other event dominates. Each dropped
// event names the latest survivor that dominates it.
func collapseSupersets(dateISO string, events []domain.SessionEvent) ([]domain.SessionEvent, []Discard) {
	dominated := make([]bool, len(events))
	for i := range events {
		for j := range events {
			if i != j && dominates(&events[j], &events[i]) {
				dominated[i] = true
				break
			}
		}
	}

	var survivors []domain.SessionEvent
	for i := range events {
		if !dominated[i] {
			survivors = append(survivors, events[i])
		}
	}

	var discards []Discard
	for i := range events {
		if !dominated[i] {
			continue
		}
		by := ""
		for j := len(survivors) - 1; j >= 0; j-- {
			if dominates(&survivors[j], &events[i]) {
				by = survivors[j].ID
				break
			}
		}
		discards = append(discards, Discard{Event: events[i], DateISO: dateISO, Rule: RuleSuperset, SupersededBy: by})
	}
	return survivors, discards
}

// Aggregate folds the retained events of one day into a DayRecord.
func Aggregate(dateISO string, retained []domain.SessionEvent) domain.DayRecord {
	day := weekly.EmptyDay(dateISO)
	sorted := append([]domain.SessionEvent(nil), retained...)
	sortChronological(sorted)
	for i := range sorted {
		appendSession(&day, &sorted[i])
	}
	return day
}

func appendSession(day *domain.DayRecord, ev *domain.SessionEvent) {
	types := typeSet(ev)
	for _, t := range types {
		day.Types[t] = true
	}
	day.SessionsList = append(day.SessionsList, summaryOf(ev, types))
	day.SessionCount = len(day.SessionsList)
}

// insertSession adds ev at its chronological position in the day.
func insertSession(day *domain.DayRecord, ev *domain.SessionEvent) {
	types := typeSet(ev)
	for _, t := range types {
		day.Types[t] = true
	}
	ts := ev.Timestamp()
	pos := sort.Search(len(day.SessionsList), func(i int) bool {
		s := day.SessionsList[i]
		if s.CompletedAt != ts {
			return s.CompletedAt > ts
		}
		return s.SessionID > ev.ID
	})
	day.SessionsList = slices.Insert(day.SessionsList, pos, summaryOf(ev, types))
	day.SessionCount = len(day.SessionsList)
}

func summaryOf(ev *domain.SessionEvent, types []string) domain.SessionSummary {
	return domain.SessionSummary{SessionID: ev.ID, Types: types, CompletedAt: ev.Timestamp()}
}

// Reconcile rebuilds the week at weekKey from events. Events outside the week
// are counted and ignored; events with no derivable date are reported in
// Result.Unplaceable and never counted.
//
// Settings, weekNumber and per-day comments are carried over from prior when
// it is non-nil; non-nil fields of overrides take precedence over prior.
// The returned document is in canonical order by construction.
func (e *Engine) Reconcile(events []domain.SessionEvent, weekKey string, prior *domain.WeeklyDocument, overrides domain.WeekSettings) (*Result, error) {
	var base domain.WeekSettings
	if prior != nil {
		base = prior.Settings()
	}
	doc, err := weekly.DefaultWeekly(weekKey, base)
	if err != nil {
		return nil, err
	}
	weekly.ApplySettings(doc, overrides)

	res := &Result{WeekOfISO: weekKey, Document: doc}

	var buckets [calendar.DaysPerWeek][]domain.SessionEvent
	for _, ev := range events {
		date, reason := e.place(&ev)
		if reason != "" {
			res.Unplaceable = append(res.Unplaceable, Unplaceable{Event: ev, Reason: reason})
			continue
		}
		idx := calendar.DayIndex(weekKey, date)
		if idx < 0 {
			res.OutOfWeek++
			continue
		}
		ev.DateISO = date
		buckets[idx] = append(buckets[idx], ev)
	}

	for i := range doc.Days {
		date := doc.Days[i].DateISO
		retained, discarded := e.DedupeDay(date, buckets[i])
		doc.Days[i] = Aggregate(date, retained)
		res.Retained = append(res.Retained, retained...)
		res.Discarded = append(res.Discarded, discarded...)
	}
	sortChronological(res.Retained)

	if prior != nil {
		doc.UserID = prior.UserID
		doc.WeekNumber = prior.WeekNumber
		for _, pd := range prior.Days {
			idx := calendar.DayIndex(weekKey, pd.DateISO)
			if idx < 0 {
				continue
			}
			for t, note := range pd.Comments {
				doc.Days[idx].Comments[t] = note
			}
		}
	}
	return res, nil
}

// Fold adds one session to the matching day of a canonical document, in place,
// keeping the day's sessionsList ordered by completion time. No burst or
// superset policy is applied, so the stored count stays pre-dedupe until the
// next rebuild or dedupe of the week.
func Fold(doc *domain.WeeklyDocument, ev domain.SessionEvent, dateISO string) error {
	if !weekly.IsCanonicalOrder(doc) {
		return fmt.Errorf("%w: week %s is not in canonical order", domain.ErrMalformedWeek, doc.WeekOfISO)
	}
	weekKey := doc.Days[0].DateISO
	idx := calendar.DayIndex(weekKey, dateISO)
	if idx < 0 {
		return fmt.Errorf("%w: %s is not in week %s", domain.ErrOutOfRangeDate, dateISO, weekKey)
	}
	day := &doc.Days[idx]
	if day.Types == nil {
		day.Types = map[string]bool{}
	}
	insertSession(day, &ev)
	return nil
}
