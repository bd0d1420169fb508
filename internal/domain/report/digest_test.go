package report

import (
	"strings"
	"testing"
	"time"
)

func TestWeekOf(t *testing.T) {
	// Wednesday 2026-03-11.
	wednesday := time.Date(2026, 3, 11, 15, 30, 0, 0, time.UTC)
	start, end := WeekOf(wednesday)
	if start != time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("week start = %v", start)
	}
	if end != time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("week end = %v", end)
	}

	// A Monday belongs to its own week.
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	start, _ = WeekOf(monday)
	if start != monday {
		t.Fatalf("monday week start = %v", start)
	}

	// Sunday rolls back to the previous Monday.
	sunday := time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC)
	start, _ = WeekOf(sunday)
	if start != time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("sunday week start = %v", start)
	}
}

func TestComposeDigestEmpty(t *testing.T) {
	card := ComposeDigest("Acme", Snapshot{Pending: 3}, nil, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	if !strings.Contains(card.Title, "Acme") || !strings.Contains(card.Title, "09 Mar 2026") {
		t.Fatalf("title = %q", card.Title)
	}
	if !strings.Contains(card.Text, "No tasks are overdue") {
		t.Fatalf("text = %q", card.Text)
	}
	if len(card.Facts) != 5 {
		t.Fatalf("facts = %d", len(card.Facts))
	}
	if card.Facts[0].Name != "Pending" || card.Facts[0].Value != "3" {
		t.Fatalf("pending fact = %+v", card.Facts[0])
	}
}

func TestComposeDigestAtRisk(t *testing.T) {
	due := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	card := ComposeDigest("Acme", Snapshot{}, []AtRiskTask{
		{ComplianceID: "C-001", Title: "File returns", EntityName: "HQ", OwnerName: "Priya", DueDate: &due, Overdue: true},
		{ComplianceID: "C-002", Title: "Renew licence", EntityName: "Plant 2", OwnerName: "Anil"},
	}, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))

	if !strings.Contains(card.Text, "2 task(s) need attention") {
		t.Fatalf("text = %q", card.Text)
	}
	if !strings.Contains(card.Text, "C-001") || !strings.Contains(card.Text, "OVERDUE 05 Mar 2026") {
		t.Fatalf("overdue line missing: %q", card.Text)
	}
	if !strings.Contains(card.Text, "no due date") {
		t.Fatalf("expected no-due-date marker: %q", card.Text)
	}
	// Chat clients render the card as plain text; stay in ASCII.
	for _, r := range card.Title + card.Text {
		if r > 127 {
			t.Fatalf("non-ascii rune %q in digest", r)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate(short) = %q", got)
	}
	if got := truncate("abcdefghij", 8); got != "abcde..." {
		t.Fatalf("truncate = %q", got)
	}
	// Multi-byte text must be cut on rune boundaries.
	if got := truncate("ßßßßßßßßßß", 8); got != "ßßßßß..." {
		t.Fatalf("truncate utf8 = %q", got)
	}
	if got := truncate("ßßßß", 8); got != "ßßßß" {
		t.Fatalf("truncate utf8 short = %q", got)
	}
}
