package webhook

import (
	"gorm.io/datatypes"
)

// Event names subscribers can register for.
const (
	EventWorkoutCreated = "workout.created"
	EventWorkoutUpdated = "workout.updated"
	EventPRSet          = "pr.set"
	EventResultAdded    = "result.added"
	EventRankingChanged = "ranking.changed"

	// EventTest is the synthetic event sent by the registration-time
	// endpoint check. Not subscribable.
	EventTest = "test"
)

// AllEvents is the closed set of subscribable event names.
var AllEvents = []string{
	EventWorkoutCreated,
	EventWorkoutUpdated,
	EventPRSet,
	EventResultAdded,
	EventRankingChanged,
}

// IsValidEvent reports whether name is a subscribable event.
func IsValidEvent(name string) bool {
	for _, e := range AllEvents {
		if e == name {
			return true
		}
	}
	return false
}

// ValidateEvents checks a requested subscription list against the
// closed set. Invalid entries are reported by value.
func ValidateEvents(requested []string) (valid bool, invalid []string) {
	for _, e := range requested {
		if !IsValidEvent(e) {
			invalid = append(invalid, e)
		}
	}
	return len(invalid) == 0, invalid
}

// Workout describes a logged training session.
type Workout struct {
	ID       string  `json:"id"`
	UserID   string  `json:"userId"`
	Type     string  `json:"type"`
	Distance float64 `json:"distance,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Date     string  `json:"date"`
}

// PRSet describes a new personal record for a track event.
type PRSet struct {
	UserID       string  `json:"userId"`
	Event        string  `json:"event"`
	Time         float64 `json:"time"`
	PreviousTime float64 `json:"previousTime"`
	Date         string  `json:"date"`
	MeetName     string  `json:"meetName"`
}

// ResultAdded describes an official meet result.
type ResultAdded struct {
	UserID   string  `json:"userId"`
	MeetName string  `json:"meetName"`
	Event    string  `json:"event"`
	Mark     float64 `json:"mark"`
	Place    int     `json:"place"`
	Date     string  `json:"date"`
}

// RankingChanged describes a movement in the rankings.
type RankingChanged struct {
	UserID       string `json:"userId"`
	Event        string `json:"event"`
	Scope        string `json:"scope"`
	PreviousRank int    `json:"previousRank"`
	NewRank      int    `json:"newRank"`
}

// BuildWorkoutCreatedPayload maps a workout into the wire payload.
func BuildWorkoutCreatedPayload(w Workout) datatypes.JSONMap {
	return datatypes.JSONMap{
		"userId":  w.UserID,
		"workout": workoutFields(w),
	}
}

// BuildWorkoutUpdatedPayload maps an edited workout into the wire payload.
func BuildWorkoutUpdatedPayload(w Workout) datatypes.JSONMap {
	return datatypes.JSONMap{
		"userId":  w.UserID,
		"workout": workoutFields(w),
	}
}

func workoutFields(w Workout) map[string]interface{} {
	return map[string]interface{}{
		"id":       w.ID,
		"type":     w.Type,
		"distance": w.Distance,
		"duration": w.Duration,
		"date":     w.Date,
	}
}

// BuildPRSetPayload maps a new PR into the wire payload. The derived
// improvement is previousTime - time (positive means faster).
func BuildPRSetPayload(p PRSet) datatypes.JSONMap {
	return datatypes.JSONMap{
		"userId": p.UserID,
		"pr": map[string]interface{}{
			"event":        p.Event,
			"time":         p.Time,
			"previousTime": p.PreviousTime,
			"improvement":  p.PreviousTime - p.Time,
			"date":         p.Date,
			"meetName":     p.MeetName,
		},
	}
}

// BuildResultAddedPayload maps a meet result into the wire payload.
func BuildResultAddedPayload(r ResultAdded) datatypes.JSONMap {
	return datatypes.JSONMap{
		"userId": r.UserID,
		"result": map[string]interface{}{
			"meetName": r.MeetName,
			"event":    r.Event,
			"mark":     r.Mark,
			"place":    r.Place,
			"date":     r.Date,
		},
	}
}

// BuildRankingChangedPayload maps a ranking movement into the wire
// payload. The derived change is previousRank - newRank (positive
// means the athlete moved up).
func BuildRankingChangedPayload(r RankingChanged) datatypes.JSONMap {
	return datatypes.JSONMap{
		"userId": r.UserID,
		"ranking": map[string]interface{}{
			"event":        r.Event,
			"scope":        r.Scope,
			"previousRank": r.PreviousRank,
			"newRank":      r.NewRank,
			"change":       r.PreviousRank - r.NewRank,
		},
	}
}
