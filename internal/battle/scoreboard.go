package battle

import "sort"

// RoundEntry is one line of a round's scoreboard.
type RoundEntry struct {
	ParticipantID string  `json:"participantId"`
	SessionID     string  `json:"-"`
	DisplayName   string  `json:"displayName"`
	TeamID        *string `json:"teamId,omitempty"`
	RoundScore    int     `json:"roundScore"`
	TotalScore    int     `json:"totalScore"`
	Answered      bool    `json:"answered"`
	IsCorrect     bool    `json:"isCorrect"`
}

// Standing is one line of the cumulative standings.
type Standing struct {
	Rank          int     `json:"rank"`
	ParticipantID string  `json:"participantId"`
	SessionID     string  `json:"-"`
	DisplayName   string  `json:"displayName"`
	TeamID        *string `json:"teamId,omitempty"`
	TotalScore    int     `json:"totalScore"`
	TotalTimeMS   int64   `json:"totalTimeMs"`
	Answered      int     `json:"answered"`
}

// TeamStanding is a team's score summed from its members' answers.
type TeamStanding struct {
	TeamID     string `json:"teamId"`
	Name       string `json:"name"`
	TotalScore int    `json:"totalScore"`
	Members    int    `json:"members"`
}

// ScoreRound lists every participant with their score for the round
// answers belong to and their running total, highest total first.
// Participants are expected in join order; ties keep that order.
func ScoreRound(participants []Participant, roundAnswers []Answer) []RoundEntry {
	bySession := make(map[string]Answer, len(roundAnswers))
	for _, a := range roundAnswers {
		bySession[a.SessionID] = a
	}

	entries := make([]RoundEntry, 0, len(participants))
	for _, p := range participants {
		e := RoundEntry{
			ParticipantID: p.ID,
			SessionID:     p.SessionID,
			DisplayName:   p.DisplayName,
			TeamID:        p.TeamID,
			TotalScore:    p.TotalScore,
		}
		if a, ok := bySession[p.SessionID]; ok {
			e.Answered = true
			e.IsCorrect = a.IsCorrect
			e.RoundScore = a.ScoreFinal
		}
		if e.TotalScore == 0 {
			e.TotalScore = e.RoundScore
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalScore > entries[j].TotalScore
	})
	return entries
}

// Standings ranks participants by total score, breaking ties by the summed
// answer time across the room (faster first). A participant with no
// recorded time sorts ahead of others on the same score.
func Standings(participants []Participant, roomAnswers []Answer) []Standing {
	type agg struct {
		timeMS   int64
		answered int
	}
	bySession := make(map[string]agg, len(participants))
	for _, a := range roomAnswers {
		s := bySession[a.SessionID]
		s.timeMS += a.ElapsedMS
		s.answered++
		bySession[a.SessionID] = s
	}

	out := make([]Standing, 0, len(participants))
	for _, p := range participants {
		s := bySession[p.SessionID]
		out = append(out, Standing{
			ParticipantID: p.ID,
			SessionID:     p.SessionID,
			DisplayName:   p.DisplayName,
			TeamID:        p.TeamID,
			TotalScore:    p.TotalScore,
			TotalTimeMS:   s.timeMS,
			Answered:      s.answered,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].TotalTimeMS < out[j].TotalTimeMS
	})
	rank(out)
	return out
}

// FinalStandings ranks participants by total score alone.
func FinalStandings(participants []Participant) []Standing {
	out := make([]Standing, 0, len(participants))
	for _, p := range participants {
		out = append(out, Standing{
			ParticipantID: p.ID,
			SessionID:     p.SessionID,
			DisplayName:   p.DisplayName,
			TeamID:        p.TeamID,
			TotalScore:    p.TotalScore,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalScore > out[j].TotalScore
	})
	rank(out)
	return out
}

// rank assigns 1-based positions, sharing a rank between entries whose
// score and time are equal.
func rank(s []Standing) {
	for i := range s {
		if i > 0 && s[i].TotalScore == s[i-1].TotalScore && s[i].TotalTimeMS == s[i-1].TotalTimeMS {
			s[i].Rank = s[i-1].Rank
			continue
		}
		s[i].Rank = i + 1
	}
}

// TeamStandings sums answer scores per team from the members' answers.
func TeamStandings(teams []Team, participants []Participant, roomAnswers []Answer) []TeamStanding {
	teamOf := make(map[string]string, len(participants))
	members := make(map[string]int, len(teams))
	for _, p := range participants {
		if p.TeamID != nil {
			teamOf[p.SessionID] = *p.TeamID
			members[*p.TeamID]++
		}
	}
	totals := make(map[string]int, len(teams))
	for _, a := range roomAnswers {
		if id, ok := teamOf[a.SessionID]; ok {
			totals[id] += a.ScoreFinal
		}
	}

	out := make([]TeamStanding, 0, len(teams))
	for _, t := range teams {
		out = append(out, TeamStanding{
			TeamID:     t.ID,
			Name:       t.Name,
			TotalScore: totals[t.ID],
			Members:    members[t.ID],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalScore > out[j].TotalScore
	})
	return out
}
