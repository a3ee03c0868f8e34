package webhook

import (
	"math"
	"testing"
)

func TestBuildPRSetPayload_Improvement(t *testing.T) {
	t.Parallel()

	payload := BuildPRSetPayload(PRSet{
		UserID:       "u1",
		Event:        "100m",
		Time:         10.15,
		PreviousTime: 10.32,
		Date:         "2026-01-04",
		MeetName:     "Winter Classic",
	})

	if payload["userId"] != "u1" {
		t.Fatalf("userId = %v", payload["userId"])
	}
	pr, ok := payload["pr"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected pr object, got %T", payload["pr"])
	}
	improvement, ok := pr["improvement"].(float64)
	if !ok {
		t.Fatalf("expected float improvement, got %T", pr["improvement"])
	}
	if math.Abs(improvement-0.17) > 1e-9 {
		t.Fatalf("improvement = %v, want 0.17", improvement)
	}
	if pr["meetName"] != "Winter Classic" {
		t.Fatalf("meetName = %v", pr["meetName"])
	}
}

func TestBuildRankingChangedPayload_Change(t *testing.T) {
	t.Parallel()

	payload := BuildRankingChangedPayload(RankingChanged{
		UserID:       "u2",
		Event:        "200m",
		Scope:        "state",
		PreviousRank: 14,
		NewRank:      9,
	})

	ranking := payload["ranking"].(map[string]interface{})
	if ranking["change"] != 5 {
		t.Fatalf("change = %v, want 5 (moved up)", ranking["change"])
	}
}

func TestBuildWorkoutPayloads(t *testing.T) {
	t.Parallel()

	w := Workout{ID: "w1", UserID: "u3", Type: "tempo", Distance: 8000, Duration: 2400, Date: "2026-01-04"}

	created := BuildWorkoutCreatedPayload(w)
	updated := BuildWorkoutUpdatedPayload(w)
	for _, payload := range []map[string]interface{}{created, updated} {
		if payload["userId"] != "u3" {
			t.Fatalf("userId = %v", payload["userId"])
		}
		workout := payload["workout"].(map[string]interface{})
		if workout["id"] != "w1" || workout["type"] != "tempo" {
			t.Fatalf("unexpected workout fields: %v", workout)
		}
	}
}

func TestBuildResultAddedPayload(t *testing.T) {
	t.Parallel()

	payload := BuildResultAddedPayload(ResultAdded{
		UserID:   "u4",
		MeetName: "Regional Qualifier",
		Event:    "400m",
		Mark:     48.91,
		Place:    2,
		Date:     "2026-01-04",
	})

	result := payload["result"].(map[string]interface{})
	if result["place"] != 2 || result["event"] != "400m" {
		t.Fatalf("unexpected result fields: %v", result)
	}
}

func TestValidateEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		requested   []string
		wantValid   bool
		wantInvalid int
	}{
		{name: "empty", requested: nil, wantValid: true},
		{name: "all valid", requested: []string{EventPRSet, EventWorkoutCreated}, wantValid: true},
		{name: "test event not subscribable", requested: []string{EventTest}, wantValid: false, wantInvalid: 1},
		{name: "unknown", requested: []string{"meet.scheduled"}, wantValid: false, wantInvalid: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			valid, invalid := ValidateEvents(tt.requested)
			if valid != tt.wantValid {
				t.Fatalf("valid = %v, want %v", valid, tt.wantValid)
			}
			if len(invalid) != tt.wantInvalid {
				t.Fatalf("invalid = %v, want %d entries", invalid, tt.wantInvalid)
			}
		})
	}
}
