package streak

import (
	"time"

	"prepstreak/daywindow"
	"prepstreak/model"
)

// Advance returns the streak state after a solved attempt on day.
//
// The decision is keyed entirely on lastActivityDate: if it already equals
// day this solve is a redundant second one and the state is unchanged, so
// current can grow by at most 1 per practice day. A day earlier than
// lastActivityDate is a backdated entry for a day the streak already
// covers and is likewise a no-op; lastActivityDate never moves backwards.
// Otherwise the streak continues from yesterday or restarts at 1. Max
// tracks the high water mark and never decreases.
func Advance(state model.StreakState, day time.Time) model.StreakState {
	if state.LastActivityDate != nil && !state.LastActivityDate.Before(day) {
		return state
	}

	yesterday := daywindow.AddDays(day, -1)
	if state.LastActivityDate != nil && daywindow.SameDay(*state.LastActivityDate, yesterday) {
		state.Current++
	} else {
		state.Current = 1
	}

	if state.Current > state.Max {
		state.Max = state.Current
	}

	last := day
	state.LastActivityDate = &last
	return state
}

// Broken reports whether the streak has lapsed as of day: at least one
// full practice day passed with no solved activity. Read-side only; the
// stored counter is reset lazily by the next Advance.
func Broken(state model.StreakState, day time.Time) bool {
	if state.Current == 0 || state.LastActivityDate == nil {
		return false
	}
	yesterday := daywindow.AddDays(day, -1)
	return state.LastActivityDate.Before(yesterday)
}

// Effective returns the streak as a caller should see it on day: the
// stored current, or 0 if the streak has already lapsed.
func Effective(state model.StreakState, day time.Time) model.StreakState {
	if Broken(state, day) {
		state.Current = 0
	}
	return state
}
