package match

import "sort"

// PlayerStats aggregates attributed actions for one player across the log.
type PlayerStats struct {
	PlayerID      string  `json:"playerId"`
	Positive      int     `json:"positive"`
	Negative      int     `json:"negative"`
	Total         int     `json:"total"`
	Participation float64 `json:"participation"`
}

// ReceptionPlayerStats holds the reception line for one player.
type ReceptionPlayerStats struct {
	PlayerID string  `json:"playerId"`
	Count    int     `json:"count"`
	Average  float64 `json:"average"`
}

// ReceptionStats is the team reception picture: the 0-4 rating
// distribution plus per-player averages.
type ReceptionStats struct {
	Distribution [5]int                 `json:"distribution"`
	TeamAverage  float64                `json:"teamAverage"`
	PerPlayer    []ReceptionPlayerStats `json:"perPlayer"`
}

// StreakStats carries the longest consecutive scoring run for each team.
type StreakStats struct {
	LongestUs       int `json:"longestUs"`
	LongestOpponent int `json:"longestOpponent"`
}

// SubstitutionRecord is a committed substitution with the score at the
// moment it happened.
type SubstitutionRecord struct {
	EventID     string   `json:"eventId"`
	SetNumber   int      `json:"setNumber"`
	Home        int      `json:"home"`
	Away        int      `json:"away"`
	OutPlayerID string   `json:"outPlayerId"`
	InPlayerID  string   `json:"inPlayerId"`
	Position    Position `json:"position,omitempty"`
	LiberoSwap  bool     `json:"liberoSwap,omitempty"`
}

// MatchAnalytics bundles every statistical projection over one match log.
type MatchAnalytics struct {
	PlayerStats   []PlayerStats        `json:"playerStats"`
	Reception     ReceptionStats       `json:"reception"`
	Streaks       StreakStats          `json:"streaks"`
	Substitutions []SubstitutionRecord `json:"substitutions"`
	Timeouts      []TimeoutRecord      `json:"timeouts"`
}

// TimeoutRecord is a timeout with the score at the moment it was called.
type TimeoutRecord struct {
	EventID   string    `json:"eventId"`
	SetNumber int       `json:"setNumber"`
	Home      int       `json:"home"`
	Away      int       `json:"away"`
	Side      CourtSide `json:"side"`
}

// CalculatePlayerStats folds the log into per-player positive/negative
// counts. Points attributed to a player and receptions rated 3 or 4 count
// positive; attributed errors and receptions rated 0 or 1 count negative.
// Participation is the player's share of all attributed actions.
func CalculatePlayerStats(events []Event) []PlayerStats {
	byPlayer := make(map[string]*PlayerStats)
	stats := func(playerID string) *PlayerStats {
		entry, ok := byPlayer[playerID]
		if !ok {
			entry = &PlayerStats{PlayerID: playerID}
			byPlayer[playerID] = entry
		}
		return entry
	}

	for _, ev := range events {
		switch ev.Type {
		case EventPointUs:
			if p := ev.Payload.Point; p != nil && p.PlayerID != "" {
				stats(p.PlayerID).Positive++
			}
		case EventPointOpponent:
			if p := ev.Payload.Point; p != nil && p.PlayerID != "" {
				stats(p.PlayerID).Negative++
			}
		case EventReceptionEval:
			p := ev.Payload.Reception
			if p == nil || p.PlayerID == "" {
				continue
			}
			switch {
			case p.Rating >= 3:
				stats(p.PlayerID).Positive++
			case p.Rating <= 1:
				stats(p.PlayerID).Negative++
			default:
				stats(p.PlayerID).Total++ // neutral touch still counts as participation
			}
		case EventFreeballSent, EventFreeball, EventFreeballReceived:
			if p := ev.Payload.Freeball; p != nil && p.PlayerID != "" {
				stats(p.PlayerID).Total++
			}
		}
	}

	grandTotal := 0
	for _, entry := range byPlayer {
		entry.Total += entry.Positive + entry.Negative
		grandTotal += entry.Total
	}

	result := make([]PlayerStats, 0, len(byPlayer))
	for _, entry := range byPlayer {
		if grandTotal > 0 {
			entry.Participation = float64(entry.Total) / float64(grandTotal) * 100
		}
		result = append(result, *entry)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Total != result[j].Total {
			return result[i].Total > result[j].Total
		}
		return result[i].PlayerID < result[j].PlayerID
	})
	return result
}

// CalculateReceptionStats folds RECEPTION_EVAL events into the rating
// distribution and per-player averages.
func CalculateReceptionStats(events []Event) ReceptionStats {
	var stats ReceptionStats
	sums := make(map[string]int)
	counts := make(map[string]int)
	teamSum := 0
	teamCount := 0

	for _, ev := range events {
		if ev.Type != EventReceptionEval {
			continue
		}
		p := ev.Payload.Reception
		if p == nil || p.Rating < 0 || p.Rating > 4 {
			continue
		}
		stats.Distribution[p.Rating]++
		teamSum += p.Rating
		teamCount++
		if p.PlayerID != "" {
			sums[p.PlayerID] += p.Rating
			counts[p.PlayerID]++
		}
	}

	if teamCount > 0 {
		stats.TeamAverage = float64(teamSum) / float64(teamCount)
	}
	for playerID, count := range counts {
		stats.PerPlayer = append(stats.PerPlayer, ReceptionPlayerStats{
			PlayerID: playerID,
			Count:    count,
			Average:  float64(sums[playerID]) / float64(count),
		})
	}
	sort.Slice(stats.PerPlayer, func(i, j int) bool {
		return stats.PerPlayer[i].PlayerID < stats.PerPlayer[j].PlayerID
	})
	return stats
}

// LongestScoringStreaks returns the longest consecutive point run for each
// team. Streaks do not carry across set boundaries.
func LongestScoringStreaks(events []Event) StreakStats {
	var stats StreakStats
	var current TeamRef
	run := 0

	flush := func() {
		switch current {
		case TeamUs:
			if run > stats.LongestUs {
				stats.LongestUs = run
			}
		case TeamOpponent:
			if run > stats.LongestOpponent {
				stats.LongestOpponent = run
			}
		}
		run = 0
		current = ""
	}

	for _, ev := range events {
		switch ev.Type {
		case EventPointUs:
			if current != TeamUs {
				flush()
				current = TeamUs
			}
			run++
		case EventPointOpponent:
			if current != TeamOpponent {
				flush()
				current = TeamOpponent
			}
			run++
		case EventSetStart, EventSetEnd, EventSetLineup:
			flush()
		}
	}
	flush()
	return stats
}

// ExtractSubstitutions walks the log and returns every substitution with
// the set and score at the moment it happened.
func ExtractSubstitutions(events []Event, ourSide CourtSide, initialOnCourt map[Position]string) []SubstitutionRecord {
	var records []SubstitutionRecord
	acc := newAccumulator(ourSide, initialOnCourt, nil)
	for _, ev := range events {
		if ev.Type == EventSubstitution && ev.Payload.Substitution != nil {
			p := ev.Payload.Substitution
			records = append(records, SubstitutionRecord{
				EventID:     ev.ID,
				SetNumber:   acc.state.CurrentSet,
				Home:        acc.state.HomeScore,
				Away:        acc.state.AwayScore,
				OutPlayerID: p.OutPlayerID,
				InPlayerID:  p.InPlayerID,
				Position:    p.Position,
				LiberoSwap:  p.IsLiberoSwap,
			})
		}
		acc.apply(ev)
	}
	return records
}

// ExtractTimeouts walks the log and returns every timeout with the set and
// score at the moment it was called.
func ExtractTimeouts(events []Event, ourSide CourtSide, initialOnCourt map[Position]string) []TimeoutRecord {
	var records []TimeoutRecord
	acc := newAccumulator(ourSide, initialOnCourt, nil)
	for _, ev := range events {
		if ev.Type == EventTimeout && ev.Payload.Timeout != nil {
			records = append(records, TimeoutRecord{
				EventID:   ev.ID,
				SetNumber: acc.state.CurrentSet,
				Home:      acc.state.HomeScore,
				Away:      acc.state.AwayScore,
				Side:      ev.Payload.Timeout.Side,
			})
		}
		acc.apply(ev)
	}
	return records
}
