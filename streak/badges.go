package streak

import "prepstreak/model"

// Badge labels awarded for streak milestones. Append-only: once granted a
// badge is never re-derived or removed, even if the streak later resets.
const (
	BadgeZeroMissWeek     = "Zero Miss Week"
	Badge30DayConsistency = "30 Day Consistency"

	zeroMissWeekThreshold = 7
	thirtyDayThreshold    = 30
)

// DeriveBadges returns the milestone badges newly earned by state that are
// not already in owned. The caller appends them to the user.
func DeriveBadges(state model.StreakState, owned []string) []string {
	has := make(map[string]bool, len(owned))
	for _, b := range owned {
		has[b] = true
	}

	var earned []string
	if state.Current >= thirtyDayThreshold && !has[Badge30DayConsistency] {
		earned = append(earned, Badge30DayConsistency)
	}
	if state.Current >= zeroMissWeekThreshold && !has[BadgeZeroMissWeek] {
		earned = append(earned, BadgeZeroMissWeek)
	}
	return earned
}
