package report

import (
	"fmt"
	"strings"
	"time"

	"comply/internal/platform/webhook"
)

// WeekOf returns the Monday-to-Monday period containing t, in UTC.
func WeekOf(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -daysSinceMonday)
	return start, start.AddDate(0, 0, 7)
}

// ComposeDigest turns a snapshot and its at-risk tasks into the webhook card.
// Pure so the layout can be tested without a channel.
func ComposeDigest(workspaceName string, snap Snapshot, atRisk []AtRiskTask, periodStart time.Time) webhook.Card {
	var text strings.Builder
	if len(atRisk) == 0 {
		text.WriteString("No tasks are overdue or due in the next 7 days.")
	} else {
		fmt.Fprintf(&text, "%d task(s) need attention:\n\n", len(atRisk))
		for _, t := range atRisk {
			due := "no due date"
			if t.DueDate != nil {
				due = t.DueDate.Format("02 Jan 2006")
			}
			marker := "due"
			if t.Overdue {
				marker = "OVERDUE"
			}
			fmt.Fprintf(&text, "- %s %s (%s) - %s, %s %s\n",
				t.ComplianceID, t.Title, t.EntityName, t.OwnerName, marker, due)
		}
	}

	return webhook.Card{
		Title: fmt.Sprintf("Weekly compliance digest - %s (week of %s)",
			workspaceName, periodStart.Format("02 Jan 2006")),
		Text: text.String(),
		Facts: []webhook.CardFact{
			{Name: "Pending", Value: fmt.Sprintf("%d", snap.Pending)},
			{Name: "Due in 7 days", Value: fmt.Sprintf("%d", snap.DueSoon)},
			{Name: "Overdue", Value: fmt.Sprintf("%d", snap.Overdue)},
			{Name: "Completed", Value: fmt.Sprintf("%d", snap.Completed)},
			{Name: "Skipped", Value: fmt.Sprintf("%d", snap.Skipped)},
		},
	}
}
