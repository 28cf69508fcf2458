package streak

import (
	"testing"

	"prepstreak/model"
)

func TestDeriveBadges(t *testing.T) {
	tests := []struct {
		name    string
		current int
		owned   []string
		want    []string
	}{
		{"below all thresholds", 6, nil, nil},
		{"week milestone", 7, nil, []string{BadgeZeroMissWeek}},
		{"week already owned", 12, []string{BadgeZeroMissWeek}, nil},
		{"both at thirty", 30, nil, []string{Badge30DayConsistency, BadgeZeroMissWeek}},
		{"thirty with week owned", 30, []string{BadgeZeroMissWeek}, []string{Badge30DayConsistency}},
		{"all owned", 90, []string{BadgeZeroMissWeek, Badge30DayConsistency}, nil},
		{"zero streak", 0, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := model.StreakState{Current: tt.current}
			got := DeriveBadges(state, tt.owned)
			if len(got) != len(tt.want) {
				t.Fatalf("DeriveBadges(current=%d) = %v, want %v", tt.current, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("badge[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDeriveBadgesDoesNotRederiveAfterReset(t *testing.T) {
	// Streak hit 7, reset, climbed back: the badge stays granted once.
	owned := []string{BadgeZeroMissWeek}
	got := DeriveBadges(model.StreakState{Current: 7, Max: 15}, owned)
	if len(got) != 0 {
		t.Errorf("re-derived already granted badges: %v", got)
	}
}
