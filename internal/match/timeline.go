package match

import (
	"fmt"
	"time"
)

// TimelineEntry is one chronological line of the match, carrying the set
// and score immediately after its event applied.
type TimelineEntry struct {
	Index       int       `json:"index"`
	EventID     string    `json:"eventId"`
	Type        EventType `json:"type"`
	SetNumber   int       `json:"setNumber"`
	Home        int       `json:"home"`
	Away        int       `json:"away"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// BuildTimeline folds the log once, snapshotting set and score after every
// event, and renders one human-readable entry per event. It never mutates
// or reorders the underlying log.
func BuildTimeline(events []Event, ourSide CourtSide, initialOnCourt map[Position]string, roster map[string]Player) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(events))
	acc := newAccumulator(ourSide, initialOnCourt, nil)
	for i, ev := range events {
		setNumber := acc.state.CurrentSet
		acc.apply(ev)
		entry := TimelineEntry{
			Index:       i,
			EventID:     ev.ID,
			Type:        ev.Type,
			SetNumber:   setNumber,
			Home:        acc.state.HomeScore,
			Away:        acc.state.AwayScore,
			Timestamp:   ev.Timestamp,
			Description: describeEvent(ev, roster),
		}
		// A set-closing event reports the final score of the set it closed,
		// not the reset counters of the next one.
		if summary := acc.state.LastFinishedSetSummary; summary != nil && summary.SetNumber == setNumber {
			entry.Home = summary.Home
			entry.Away = summary.Away
		}
		entries = append(entries, entry)
	}
	return entries
}

func describeEvent(ev Event, roster map[string]Player) string {
	switch ev.Type {
	case EventSetLineup:
		if p := ev.Payload.Lineup; p != nil {
			return fmt.Sprintf("Alineación del set %d", p.SetNumber)
		}
		return "Alineación"
	case EventSetServiceChoice:
		if p := ev.Payload.ServiceChoice; p != nil {
			if p.Serving == TeamUs {
				return fmt.Sprintf("Saque inicial nuestro en el set %d", p.SetNumber)
			}
			return fmt.Sprintf("Saque inicial rival en el set %d", p.SetNumber)
		}
		return "Elección de saque"
	case EventSetStart:
		if p := ev.Payload.Set; p != nil {
			return fmt.Sprintf("Comienza el set %d", p.SetNumber)
		}
		return "Comienza el set"
	case EventSetEnd:
		if p := ev.Payload.Set; p != nil {
			return fmt.Sprintf("Final del set %d", p.SetNumber)
		}
		return "Final del set"
	case EventPointUs:
		return "Punto nuestro" + pointDetail(ev.Payload.Point, roster)
	case EventPointOpponent:
		return "Punto rival" + pointDetail(ev.Payload.Point, roster)
	case EventSubstitution:
		p := ev.Payload.Substitution
		if p == nil {
			return "Cambio"
		}
		if p.IsLiberoSwap {
			return fmt.Sprintf("Cambio de líbero: entra %s por %s",
				playerLabel(roster, p.InPlayerID), playerLabel(roster, p.OutPlayerID))
		}
		return fmt.Sprintf("Cambio: entra %s por %s",
			playerLabel(roster, p.InPlayerID), playerLabel(roster, p.OutPlayerID))
	case EventTimeout:
		if p := ev.Payload.Timeout; p != nil {
			return fmt.Sprintf("Tiempo muerto (%s)", p.Side)
		}
		return "Tiempo muerto"
	case EventReceptionEval:
		if p := ev.Payload.Reception; p != nil {
			return fmt.Sprintf("Recepción de %s valorada %d",
				playerLabel(roster, p.PlayerID), p.Rating)
		}
		return "Recepción"
	case EventFreeballSent:
		return "Freeball enviado" + freeballDetail(ev.Payload.Freeball, roster)
	case EventFreeballReceived:
		return "Freeball recibido" + freeballDetail(ev.Payload.Freeball, roster)
	case EventFreeball:
		return "Freeball" + freeballDetail(ev.Payload.Freeball, roster)
	default:
		return string(ev.Type)
	}
}

func pointDetail(p *PointPayload, roster map[string]Player) string {
	if p == nil {
		return ""
	}
	detail := ""
	if p.Reason != "" {
		detail = " (" + p.Reason + ")"
	}
	if p.PlayerID != "" {
		detail += " de " + playerLabel(roster, p.PlayerID)
	}
	return detail
}

func freeballDetail(p *FreeballPayload, roster map[string]Player) string {
	if p == nil || p.PlayerID == "" {
		return ""
	}
	return " por " + playerLabel(roster, p.PlayerID)
}

func playerLabel(roster map[string]Player, playerID string) string {
	if player, ok := roster[playerID]; ok {
		if player.Number > 0 {
			return fmt.Sprintf("#%d %s", player.Number, player.Name)
		}
		return player.Name
	}
	return playerID
}
