package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/workout-tracker/internal/domain"
	"alcyxob/workout-tracker/internal/weekly"
)

func at(t *testing.T, s string) int64 {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC)
	require.NoError(t, err)
	return ts.UnixMilli()
}

func event(t *testing.T, id, date, clock string, types ...string) domain.SessionEvent {
	t.Helper()
	return domain.SessionEvent{
		ID:           id,
		DateISO:      date,
		SessionTypes: types,
		CompletedAt:  at(t, date+"T"+clock),
		Manual:       true,
	}
}

func ids(events []domain.SessionEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func newTestEngine(p Policy) *Engine {
	return NewEngine(p, time.UTC)
}

func TestDedupeDay_ManualBurstKeepsLatest(t *testing.T) {
	events := []domain.SessionEvent{
		event(t, "m2", "2025-09-23", "22:06:09", "Meditation"),
		event(t, "m3", "2025-09-23", "22:06:11", "Meditation"),
		event(t, "m1", "2025-09-23", "22:06:08", "Meditation"),
	}
	retained, discarded := newTestEngine(DefaultPolicy()).DedupeDay("2025-09-23", events)

	assert.Equal(t, []string{"m3"}, ids(retained))
	require.Len(t, discarded, 2)
	for _, d := range discarded {
		assert.Equal(t, RuleDuplicate, d.Rule)
		assert.Equal(t, "m3", d.SupersededBy)
	}
	assert.ElementsMatch(t, []string{"m1", "m2"}, []string{discarded[0].Event.ID, discarded[1].Event.ID})
}

func TestDedupeDay_TieBrokenByLargestID(t *testing.T) {
	events := []domain.SessionEvent{
		event(t, "b", "2025-09-23", "10:00:00", "Bike"),
		event(t, "c", "2025-09-23", "10:00:00", "Bike"),
		event(t, "a", "2025-09-23", "10:00:00", "Bike"),
	}
	retained, discarded := newTestEngine(DefaultPolicy()).DedupeDay("2025-09-23", events)
	assert.Equal(t, []string{"c"}, ids(retained))
	assert.Len(t, discarded, 2)
}

func TestDedupeDay_TypeOrderDoesNotMatter(t *testing.T) {
	events := []domain.SessionEvent{
		event(t, "a", "2025-09-29", "17:50:00", "Calves", "Bike"),
		event(t, "b", "2025-09-29", "17:50:30", "Bike", "Calves", "Bike"),
	}
	retained, _ := newTestEngine(DefaultPolicy()).DedupeDay("2025-09-29", events)
	assert.Equal(t, []string{"b"}, ids(retained))
}

func TestDedupeDay_SeparateBurstsAreDistinctSessions(t *testing.T) {
	events := []domain.SessionEvent{
		event(t, "am", "2025-09-23", "07:00:00", "Bike"),
		event(t, "am2", "2025-09-23", "07:01:00", "Bike"),
		event(t, "pm", "2025-09-23", "18:00:00", "Bike"),
	}
	retained, discarded := newTestEngine(DefaultPolicy()).DedupeDay("2025-09-23", events)
	assert.Equal(t, []string{"am2", "pm"}, ids(retained))
	require.Len(t, discarded, 1)
	assert.Equal(t, "am", discarded[0].Event.ID)
}

func TestDedupeDay_BurstsChain(t *testing.T) {
	// Each gap is within the window even though first and last are not.
	events := []domain.SessionEvent{
		event(t, "1", "2025-09-23", "07:00:00", "Bike"),
		event(t, "2", "2025-09-23", "07:04:00", "Bike"),
		event(t, "3", "2025-09-23", "07:08:00", "Bike"),
	}
	retained, _ := newTestEngine(DefaultPolicy()).DedupeDay("2025-09-23", events)
	assert.Equal(t, []string{"3"}, ids(retained))
}

func TestDedupeDay_WholeDayWindow(t *testing.T) {
	events := []domain.SessionEvent{
		event(t, "am", "2025-09-23", "07:00:00", "Bike"),
		event(t, "pm", "2025-09-23", "18:00:00", "Bike"),
	}
	retained, _ := newTestEngine(Policy{BurstWindow: 0}).DedupeDay("2025-09-23", events)
	assert.Equal(t, []string{"pm"}, ids(retained))
}

func TestDedupeDay_DisjointTypesAreNotDuplicates(t *testing.T) {
	events := []domain.SessionEvent{
		event(t, "bike", "2025-09-29", "17:50:00", "Bike"),
		event(t, "both", "2025-09-29", "17:51:12", "Calves", "Bike"),
	}
	retained, discarded := newTestEngine(DefaultPolicy()).DedupeDay("2025-09-29", events)
	assert.Equal(t, []string{"bike", "both"}, ids(retained))
	assert.Empty(t, discarded)
}

func TestDedupeDay_SupersetCollapse(t *testing.T) {
	events := []domain.SessionEvent{
		event(t, "bike", "2025-09-29", "17:50:00", "Bike"),
		event(t, "both", "2025-09-29", "17:51:12", "Calves", "Bike"),
	}
	retained, discarded := newTestEngine(CleanupPolicy()).DedupeDay("2025-09-29", events)
	assert.Equal(t, []string{"both"}, ids(retained))
	require.Len(t, discarded, 1)
	assert.Equal(t, Discard{Event: events[0], DateISO: "2025-09-29", Rule: RuleSuperset, SupersededBy: "both"}, discarded[0])
}

func TestDedupeDay_SupersetCollapseChain(t *testing.T) {
	events := []domain.SessionEvent{
		event(t, "one", "2025-09-29", "08:00:00", "Bike"),
		event(t, "two", "2025-09-29", "12:00:00", "Bike", "Calves"),
		event(t, "three", "2025-09-29", "09:00:00", "Bike", "Calves", "Resistance"),
		event(t, "other", "2025-09-29", "20:00:00", "Meditation"),
	}
	retained, discarded := newTestEngine(CleanupPolicy()).DedupeDay("2025-09-29", events)
	assert.Equal(t, []string{"three", "other"}, ids(retained))
	require.Len(t, discarded, 2)
	for _, d := range discarded {
		assert.Equal(t, "three", d.SupersededBy)
	}
}

func TestDedupeDay_SupersetCollapseEqualSetsOutsideBurst(t *testing.T) {
	events := []domain.SessionEvent{
		event(t, "am", "2025-09-23", "07:00:00", "Bike"),
		event(t, "pm", "2025-09-23", "18:00:00", "Bike"),
	}
	retained, discarded := newTestEngine(CleanupPolicy()).DedupeDay("2025-09-23", events)
	assert.Equal(t, []string{"pm"}, ids(retained))
	require.Len(t, discarded, 1)
	assert.Equal(t, RuleSuperset, discarded[0].Rule)
}

func TestAggregate_Empty(t *testing.T) {
	day := Aggregate("2025-09-25", nil)
	assert.Equal(t, "2025-09-25", day.DateISO)
	assert.Zero(t, day.SessionCount)
	assert.Empty(t, day.Types)
	assert.NotNil(t, day.Types)
	assert.Empty(t, day.SessionsList)
}

func TestAggregate_ChronologicalUnion(t *testing.T) {
	day := Aggregate("2025-09-23", []domain.SessionEvent{
		event(t, "late", "2025-09-23", "19:00:00", "Resistance", "Calves"),
		event(t, "early", "2025-09-23", "06:30:00", "Bike"),
	})
	assert.Equal(t, 2, day.SessionCount)
	assert.Equal(t, map[string]bool{"Bike": true, "Resistance": true, "Calves": true}, day.Types)
	assert.Equal(t, []domain.SessionSummary{
		{SessionID: "early", Types: []string{"Bike"}, CompletedAt: at(t, "2025-09-23T06:30:00")},
		{SessionID: "late", Types: []string{"Resistance", "Calves"}, CompletedAt: at(t, "2025-09-23T19:00:00")},
	}, day.SessionsList)
}

func TestReconcile_RebuildWeek(t *testing.T) {
	events := []domain.SessionEvent{
		event(t, "s1", "2025-09-23", "17:00:00", "Bike"),
		event(t, "s2", "2025-09-24", "18:00:00", "Resistance"),
		event(t, "s3", "2025-09-28", "10:00:00", "Calves", "Bike"),
		event(t, "next", "2025-09-29", "10:00:00", "Bike"),
	}
	res, err := newTestEngine(DefaultPolicy()).Reconcile(events, "2025-09-22", nil, domain.WeekSettings{})
	require.NoError(t, err)

	doc := res.Document
	require.True(t, weekly.IsCanonicalOrder(doc))
	assert.Equal(t, "2025-09-22", doc.WeekOfISO)
	assert.Equal(t, map[string]bool{"Bike": true}, doc.Days[1].Types)
	assert.Equal(t, map[string]bool{"Resistance": true}, doc.Days[2].Types)
	assert.Equal(t, map[string]bool{"Calves": true, "Bike": true}, doc.Days[6].Types)
	for _, i := range []int{0, 3, 4, 5} {
		assert.Empty(t, doc.Days[i].Types, "day %d", i)
		assert.Zero(t, doc.Days[i].SessionCount, "day %d", i)
	}
	assert.Equal(t, []string{"s1", "s2", "s3"}, ids(res.Retained))
	assert.Equal(t, 1, res.OutOfWeek)
	assert.Empty(t, res.Unplaceable)
	assert.NoError(t, res.Err())
}

func TestReconcile_PreservesSettingsAndComments(t *testing.T) {
	prior, err := weekly.DefaultWeekly("2025-09-22", domain.WeekSettings{
		Benchmarks:     map[string]int{"Bike": 4},
		CustomTypes:    []string{"Calves"},
		TypeCategories: map[string]string{"Calves": domain.CategoryResistance},
	})
	require.NoError(t, err)
	prior.UserID = "u1"
	prior.WeekNumber = 7
	prior.Days[1].Comments["Bike"] = "hills"
	prior.Days[3].Types["Bike"] = true // stale mark not backed by any session
	prior.Days[3].SessionCount = 2
	// Persisted out of order: comments must follow their date, not their index.
	prior.Days = append(prior.Days[2:], prior.Days[:2]...)

	events := []domain.SessionEvent{event(t, "s1", "2025-09-23", "17:00:00", "Bike")}
	res, err := newTestEngine(DefaultPolicy()).Reconcile(events, "2025-09-22", prior, domain.WeekSettings{})
	require.NoError(t, err)

	doc := res.Document
	assert.Equal(t, "u1", doc.UserID)
	assert.Equal(t, 7, doc.WeekNumber)
	assert.Equal(t, map[string]int{"Bike": 4}, doc.Benchmarks)
	assert.Equal(t, []string{"Calves"}, doc.CustomTypes)
	assert.Equal(t, map[string]string{"Calves": domain.CategoryResistance}, doc.TypeCategories)
	assert.Equal(t, "hills", doc.Days[1].Comments["Bike"])
	assert.Empty(t, doc.Days[3].Types)
	assert.Zero(t, doc.Days[3].SessionCount)
}

func TestReconcile_OverridesWin(t *testing.T) {
	prior, err := weekly.DefaultWeekly("2025-09-22", domain.WeekSettings{
		Benchmarks:  map[string]int{"Bike": 4},
		CustomTypes: []string{"Calves"},
	})
	require.NoError(t, err)

	res, err := newTestEngine(DefaultPolicy()).Reconcile(nil, "2025-09-22", prior, domain.WeekSettings{
		Benchmarks: map[string]int{"Bike": 5, "Resistance": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Bike": 5, "Resistance": 2}, res.Document.Benchmarks)
	assert.Equal(t, []string{"Calves"}, res.Document.CustomTypes)
}

func TestReconcile_UnplaceableIsReported(t *testing.T) {
	events := []domain.SessionEvent{
		{ID: "ghost", SessionTypes: []string{"Bike"}},
		{ID: "garbled", DateISO: "23/09/2025", SessionTypes: []string{"Bike"}},
		{ID: "derived", SessionTypes: []string{"Meditation"}, TS: at(t, "2025-09-25T21:00:00")},
	}
	res, err := newTestEngine(DefaultPolicy()).Reconcile(events, "2025-09-22", nil, domain.WeekSettings{})
	require.NoError(t, err)

	require.Len(t, res.Unplaceable, 2)
	assert.Equal(t, "ghost", res.Unplaceable[0].Event.ID)
	assert.Equal(t, "garbled", res.Unplaceable[1].Event.ID)
	assert.True(t, errors.Is(res.Err(), domain.ErrUnplaceableSession))

	assert.Equal(t, []string{"derived"}, ids(res.Retained))
	assert.Equal(t, "2025-09-25", res.Retained[0].DateISO)
	assert.Equal(t, map[string]bool{"Meditation": true}, res.Document.Days[3].Types)
	total := 0
	for _, d := range res.Document.Days {
		total += d.SessionCount
	}
	assert.Equal(t, 1, total)
}

func TestReconcile_InvalidWeekKey(t *testing.T) {
	_, err := newTestEngine(DefaultPolicy()).Reconcile(nil, "2025-09-23", nil, domain.WeekSettings{})
	assert.True(t, errors.Is(err, domain.ErrInvalidWeekKey))
}

func TestReconcile_DeterministicAcrossInputOrder(t *testing.T) {
	events := []domain.SessionEvent{
		event(t, "m1", "2025-09-23", "22:06:08", "Meditation"),
		event(t, "m2", "2025-09-23", "22:06:09", "Meditation"),
		event(t, "m3", "2025-09-23", "22:06:11", "Meditation"),
		event(t, "b", "2025-09-24", "07:00:00", "Bike"),
	}
	reversed := []domain.SessionEvent{events[3], events[2], events[1], events[0]}

	e := newTestEngine(DefaultPolicy())
	a, err := e.Reconcile(events, "2025-09-22", nil, domain.WeekSettings{})
	require.NoError(t, err)
	b, err := e.Reconcile(reversed, "2025-09-22", nil, domain.WeekSettings{})
	require.NoError(t, err)

	assert.Equal(t, a.Document, b.Document)
	assert.Equal(t, ids(a.Retained), ids(b.Retained))
	assert.Equal(t, []string{"m3", "b"}, ids(a.Retained))
}

func TestPlaceEvent(t *testing.T) {
	e := newTestEngine(DefaultPolicy())

	date, err := e.PlaceEvent(&domain.SessionEvent{ID: "x", DateISO: "2025-09-23"})
	require.NoError(t, err)
	assert.Equal(t, "2025-09-23", date)

	_, err = e.PlaceEvent(&domain.SessionEvent{ID: "y"})
	assert.True(t, errors.Is(err, domain.ErrUnplaceableSession))
	assert.Contains(t, err.Error(), `"y"`)
}

func TestFold(t *testing.T) {
	doc, err := weekly.DefaultWeekly("2025-09-22", domain.WeekSettings{})
	require.NoError(t, err)

	require.NoError(t, Fold(doc, event(t, "a", "2025-09-28", "10:00:00", "Bike"), "2025-09-28"))
	require.NoError(t, Fold(doc, event(t, "b", "2025-09-28", "11:00:00", "Calves", "Bike"), "2025-09-28"))
	assert.Equal(t, 2, doc.Days[6].SessionCount)
	assert.Equal(t, map[string]bool{"Bike": true, "Calves": true}, doc.Days[6].Types)

	err = Fold(doc, event(t, "c", "2025-09-29", "10:00:00", "Bike"), "2025-09-29")
	assert.True(t, errors.Is(err, domain.ErrOutOfRangeDate))

	doc.Days[0], doc.Days[1] = doc.Days[1], doc.Days[0]
	err = Fold(doc, event(t, "d", "2025-09-23", "10:00:00", "Bike"), "2025-09-23")
	assert.True(t, errors.Is(err, domain.ErrMalformedWeek))
}

func TestFold_KeepsSessionsChronological(t *testing.T) {
	doc, err := weekly.DefaultWeekly("2025-09-22", domain.WeekSettings{})
	require.NoError(t, err)

	require.NoError(t, Fold(doc, event(t, "evening", "2025-09-24", "18:00:00", "Bike"), "2025-09-24"))
	require.NoError(t, Fold(doc, event(t, "morning", "2025-09-24", "07:00:00", "Calves"), "2025-09-24"))
	require.NoError(t, Fold(doc, event(t, "noon", "2025-09-24", "12:00:00", "Resistance"), "2025-09-24"))

	day := doc.Days[2]
	assert.Equal(t, 3, day.SessionCount)
	got := make([]string, len(day.SessionsList))
	for i, s := range day.SessionsList {
		got[i] = s.SessionID
	}
	assert.Equal(t, []string{"morning", "noon", "evening"}, got)

	// Folding the same events must match a rebuild of them.
	rebuilt := Aggregate("2025-09-24", []domain.SessionEvent{
		event(t, "evening", "2025-09-24", "18:00:00", "Bike"),
		event(t, "morning", "2025-09-24", "07:00:00", "Calves"),
		event(t, "noon", "2025-09-24", "12:00:00", "Resistance"),
	})
	assert.Equal(t, rebuilt.SessionsList, day.SessionsList)
}
