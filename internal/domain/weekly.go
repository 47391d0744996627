package domain

import (
	"time"
)

// Default category labels used by the weekly grid.
const (
	CategoryCardio      = "Cardio"
	CategoryResistance  = "Resistance"
	CategorySkills      = "Skills"
	CategoryMindfulness = "Mindfulness"
)

// SessionSummary is the per-session projection kept inside a DayRecord.
type SessionSummary struct {
	SessionID   string   `bson:"sessionId,omitempty" json:"sessionId,omitempty"`
	Types       []string `bson:"types" json:"types"`
	CompletedAt int64    `bson:"completedAt,omitempty" json:"completedAt,omitempty"` // Epoch millis of the event
}

// DayRecord is one calendar day of a WeeklyDocument.
type DayRecord struct {
	DateISO      string            `bson:"dateISO" json:"dateISO"`
	Types        map[string]bool   `bson:"types" json:"types"`               // Truthy keys are the performed set
	SessionCount int               `bson:"sessionCount" json:"sessionCount"` // Always len(SessionsList) when consistent
	SessionsList []SessionSummary  `bson:"sessionsList" json:"sessionsList"` // Chronological
	Comments     map[string]string `bson:"comments" json:"comments"`         // Keyed by workout type
}

// PerformedTypes returns the keys of Types that are marked true.
func (d *DayRecord) PerformedTypes() []string {
	out := make([]string, 0, len(d.Types))
	for t, ok := range d.Types {
		if ok {
			out = append(out, t)
		}
	}
	return out
}

// WeeklyDocument is the cached aggregate of one user's week, keyed by its Monday.
type WeeklyDocument struct {
	UserID         string            `bson:"userId" json:"userId,omitempty"`
	WeekOfISO      string            `bson:"weekOfISO" json:"weekOfISO"`
	WeekNumber     int               `bson:"weekNumber" json:"weekNumber"`
	Days           []DayRecord       `bson:"days" json:"days"`
	Benchmarks     map[string]int    `bson:"benchmarks" json:"benchmarks"`
	CustomTypes    []string          `bson:"customTypes" json:"customTypes"`
	TypeCategories map[string]string `bson:"typeCategories" json:"typeCategories"`
	UpdatedAt      time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// WeekSettings is the configuration part of a WeeklyDocument that a rebuild must carry over.
type WeekSettings struct {
	Benchmarks     map[string]int    `json:"benchmarks,omitempty" yaml:"benchmarks,omitempty" mapstructure:"benchmarks"`
	CustomTypes    []string          `json:"customTypes,omitempty" yaml:"customTypes,omitempty" mapstructure:"custom_types"`
	TypeCategories map[string]string `json:"typeCategories,omitempty" yaml:"typeCategories,omitempty" mapstructure:"type_categories"`
}

// Settings extracts a deep copy of the document's settings.
func (w *WeeklyDocument) Settings() WeekSettings {
	return WeekSettings{
		Benchmarks:     copyIntMap(w.Benchmarks),
		CustomTypes:    copyStrings(w.CustomTypes),
		TypeCategories: copyStringMap(w.TypeCategories),
	}
}

// Clone returns a deep copy of the document.
func (w *WeeklyDocument) Clone() *WeeklyDocument {
	if w == nil {
		return nil
	}
	out := *w
	s := w.Settings()
	out.Benchmarks = s.Benchmarks
	out.CustomTypes = s.CustomTypes
	out.TypeCategories = s.TypeCategories
	if w.Days != nil {
		out.Days = make([]DayRecord, len(w.Days))
		for i, d := range w.Days {
			out.Days[i] = d.Clone()
		}
	}
	return &out
}

// Clone returns a deep copy of the day.
func (d DayRecord) Clone() DayRecord {
	out := d
	if d.Types != nil {
		out.Types = make(map[string]bool, len(d.Types))
		for k, v := range d.Types {
			out.Types[k] = v
		}
	}
	out.Comments = copyStringMap(d.Comments)
	if d.SessionsList != nil {
		out.SessionsList = make([]SessionSummary, len(d.SessionsList))
		for i, s := range d.SessionsList {
			out.SessionsList[i] = SessionSummary{SessionID: s.SessionID, Types: copyStrings(s.Types), CompletedAt: s.CompletedAt}
		}
	}
	return out
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func copyIntMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
