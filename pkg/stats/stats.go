// Package stats derives the aggregate dashboard numbers from the
// current filtered message set. Stats are recomputed wholesale on every
// successful reconciliation, never patched incrementally.
package stats

import (
	"fmt"
	"time"

	"leadsync/pkg/models"
)

// BusinessHours bounds the in-hours window; messages on weekends or
// outside [Open, Close) count as out-of-hours.
type BusinessHours struct {
	Open  int
	Close int
}

// minutesPerAutomatedReply is the assumed handling time an automated
// reply saves a human attendant.
const minutesPerAutomatedReply = 2

// Compute builds Stats from the filtered message set plus the current
// assignment lists.
func Compute(msgs []models.Message, automationIDs, humanIDs []string, hours BusinessHours) models.Stats {
	var s models.Stats
	chats := map[string]struct{}{}
	var automatedReplies, humanReplies, automatedTotal int

	for _, m := range msgs {
		chats[m.ChatID] = struct{}{}
		if m.Role() != "user" {
			if m.IsAutomated() {
				automatedReplies++
			} else {
				humanReplies++
			}
		}
		if m.IsAutomated() {
			automatedTotal++
		}
		if m.Timestamp > 0 {
			t := time.UnixMilli(m.Timestamp)
			hr := t.Hour()
			s.HourlyVolume[hr]++
			wd := t.Weekday()
			if wd == time.Saturday || wd == time.Sunday || hr < hours.Open || hr >= hours.Close {
				s.OutOfHours++
			}
		}
	}

	s.TotalChats = len(chats)
	s.TotalMessages = len(msgs)
	if total := automatedReplies + humanReplies; total > 0 {
		s.AutomationRate = int(float64(automatedReplies)/float64(total)*100 + 0.5)
	}
	s.TimeSaved = formatMinutes(automatedTotal * minutesPerAutomatedReply)
	return s
}

func formatMinutes(min int) string {
	if min < 60 {
		return fmt.Sprintf("%d min", min)
	}
	return fmt.Sprintf("%dh %dm", min/60, min%60)
}
