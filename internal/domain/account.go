package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageRole identifies who authored a thread message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// TrainingTopicKey is the fixed key for the singleton training thread.
// Diet threads are keyed by calendar date (YYYY-MM-DD) instead.
const TrainingTopicKey = "training"

// DietDateLayout is the calendar-date format used as a diet topic key.
const DietDateLayout = "2006-01-02"

// Account is the per-user aggregate. All core state (moderation counters,
// workout log, AI threads) is embedded in this single document so that every
// mutation can be expressed as a targeted field-path update.
type Account struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email string             `bson:"email,omitempty" json:"email,omitempty"`
	Phone string             `bson:"phone,omitempty" json:"phone,omitempty"` // Set only after out-of-band verification

	// --- Moderation ---
	Mistakes int  `bson:"mistakes" json:"mistakes"` // Consecutive off-domain violations, reset on compliance
	Ban      *Ban `bson:"ban,omitempty" json:"ban,omitempty"`

	// --- Workout sessions ---
	// Workouts is the append-only session log. ActiveWorkout is the explicit
	// Idle(nil)/Active(index) marker; activity is never inferred from the
	// last array element.
	Workouts      []SessionEntry `bson:"workouts" json:"workouts"`
	ActiveWorkout *int           `bson:"activeWorkout,omitempty" json:"activeWorkout,omitempty"`

	// --- AI threads ---
	Training []ProgramEntry `bson:"training" json:"training"` // Effectively a singleton slot
	Diets    []DietDay      `bson:"diets" json:"diets"`       // One entry per calendar date

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Ban is a temporary denial window for AI-assisted plan modification.
// Minutes is the duration that produced ExpiresAt; it is doubled on each
// repeat offense while the ban is active.
type Ban struct {
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
	Minutes   int       `bson:"minutes" json:"minutes"`
}

// ActiveAt reports whether the ban is still in force at the given instant.
func (b *Ban) ActiveAt(now time.Time) bool {
	return b != nil && b.ExpiresAt.After(now)
}

// SessionEntry is one record in the workout append-log. It is appended on
// start, mutated exactly once on end, then immutable.
type SessionEntry struct {
	StartedAt time.Time  `bson:"startedAt" json:"startedAt"`
	Active    bool       `bson:"active" json:"active"`
	Snapshot  WorkoutDay `bson:"snapshot" json:"snapshot"`
	Elapsed   *int64     `bson:"elapsed,omitempty" json:"elapsed,omitempty"` // Seconds, set on end
}

// WorkoutDay is the workout-day structure captured in a session snapshot.
type WorkoutDay struct {
	Name      string     `bson:"name,omitempty" json:"name,omitempty"`
	Exercises []Exercise `bson:"exercises" json:"exercises"`
}

// Exercise is one exercise within a workout day.
type Exercise struct {
	Name string     `bson:"name,omitempty" json:"name,omitempty"`
	Data []SetEntry `bson:"data" json:"data"`
}

// SetEntry holds the numeric leaves of one set. Pointers distinguish
// "missing" from zero so endSession can validate presence.
type SetEntry struct {
	Weight *float64 `bson:"weight" json:"weight"`
	Reps   *float64 `bson:"reps" json:"reps"`
}

// Message is one entry in a thread's ordered history.
type Message struct {
	Role    MessageRole `bson:"role" json:"role"`
	Content string      `bson:"content" json:"content"`
	At      time.Time   `bson:"at" json:"at"`
}

// ProgramEntry is the training thread: ordered history plus the current plan.
// Plan holds the raw accepted AI response (verbatim JSON) or is empty.
type ProgramEntry struct {
	History []Message `bson:"history" json:"history"`
	Plan    string    `bson:"plan,omitempty" json:"plan,omitempty"`
}

// DietDay is the diet thread for one calendar date. The first history message
// is always the fixed system seed.
type DietDay struct {
	Date    string    `bson:"date" json:"date"` // YYYY-MM-DD
	History []Message `bson:"history" json:"history"`
	Plan    string    `bson:"plan,omitempty" json:"plan,omitempty"` // Raw accepted JSON
}
