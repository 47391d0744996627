package domain

// SessionEvent is one logged workout session. Events are append-only: they are
// created by the logging flow and only ever deleted, never edited.
type SessionEvent struct {
	ID            string   `bson:"_id,omitempty" json:"id"`
	UserID        string   `bson:"userId" json:"userId,omitempty"`
	DateISO       string   `bson:"dateISO,omitempty" json:"dateISO,omitempty"`
	SessionTypes  []string `bson:"sessionTypes" json:"sessionTypes"`
	CompletedAt   int64    `bson:"completedAt,omitempty" json:"completedAt,omitempty"` // Epoch millis
	TS            int64    `bson:"ts,omitempty" json:"ts,omitempty"`                   // Legacy epoch millis
	Manual        bool     `bson:"manual" json:"manual"`
	ExerciseCount *int     `bson:"exerciseCount,omitempty" json:"exerciseCount,omitempty"`
}

// Timestamp returns the completion time in epoch millis, preferring CompletedAt over TS.
func (e *SessionEvent) Timestamp() int64 {
	if e.CompletedAt != 0 {
		return e.CompletedAt
	}
	return e.TS
}
