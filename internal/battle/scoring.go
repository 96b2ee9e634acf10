package battle

import "time"

const (
	CorrectPoints = 100
	MaxSpeedBonus = 100
)

// ScoreAnswer returns the points for an answer given after elapsed out of
// a round lasting limit. Wrong answers score nothing; right answers earn
// CorrectPoints plus a bonus proportional to the time left.
func ScoreAnswer(correct bool, elapsed, limit time.Duration) int {
	if !correct {
		return 0
	}
	if limit <= 0 {
		return CorrectPoints
	}
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := limit - elapsed
	if remaining <= 0 {
		return CorrectPoints
	}
	return CorrectPoints + int(int64(MaxSpeedBonus)*int64(remaining)/int64(limit))
}

// Elapsed measures how long after the reveal an answer arrived, clamped to
// the round limit.
func Elapsed(revealedAt *time.Time, at time.Time, limit time.Duration) time.Duration {
	if revealedAt == nil {
		return 0
	}
	d := at.Sub(*revealedAt)
	if d < 0 {
		return 0
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}
