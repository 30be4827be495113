package workspace

import "time"

// DateKeyLayout is the YYYY-MM-DD key used for streak accounting.
// Keys are compared as whole UTC days.
const DateKeyLayout = "2006-01-02"

type ProgressSnapshot struct {
	StreakCount    int    `json:"streakCount"`
	BestStreak     int    `json:"bestStreak"`
	LastActiveDate string `json:"lastActiveDate,omitempty"`
}

// AdvanceStreak computes the streak counters that follow activity on
// todayKey. It is pure and total: an unparseable todayKey returns the
// input unchanged, as does a repeated same-day call. A one-day gap
// extends the streak, anything larger resets it to 1, and the best
// streak only ever ratchets upward.
func AdvanceStreak(snapshot ProgressSnapshot, todayKey string) ProgressSnapshot {
	today, err := time.ParseInLocation(DateKeyLayout, todayKey, time.UTC)
	if err != nil {
		return snapshot
	}

	count := 0
	last, lastErr := time.ParseInLocation(DateKeyLayout, snapshot.LastActiveDate, time.UTC)
	switch {
	case snapshot.LastActiveDate == "" || lastErr != nil:
		count = snapshot.StreakCount
		if count < 1 {
			count = 1
		}
	default:
		delta := int(today.Sub(last).Hours() / 24)
		switch {
		case delta <= 0:
			// Same day, or a backwards clock. Idempotent either way.
			return snapshot
		case delta == 1:
			count = snapshot.StreakCount + 1
		default:
			count = 1
		}
	}

	best := snapshot.BestStreak
	if count > best {
		best = count
	}
	return ProgressSnapshot{
		StreakCount:    count,
		BestStreak:     best,
		LastActiveDate: todayKey,
	}
}

// AddXP applies an XP delta, clamping at zero. Streak advancement is
// the caller's concern and only applies to positive deltas.
func AddXP(current, delta int) int {
	next := current + delta
	if next < 0 {
		return 0
	}
	return next
}

// DateKey formats t as a streak date key in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateKeyLayout)
}
