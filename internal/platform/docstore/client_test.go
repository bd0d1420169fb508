package docstore

import (
	"testing"
	"time"
)

func TestFolderPathIsDeterministic(t *testing.T) {
	when := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	got := FolderPath("ComplianceEvidence", "Acme GmbH", "TAX-042", when)
	want := "ComplianceEvidence/Acme GmbH/2026/03/TAX-042"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if again := FolderPath("ComplianceEvidence", "Acme GmbH", "TAX-042", when); again != got {
		t.Fatalf("expected deterministic path, got %q then %q", got, again)
	}
}

func TestFolderPathSanitizesSegments(t *testing.T) {
	when := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	got := FolderPath("Base", "../etc/passwd", "C:1?", when)
	want := "Base/--etc-passwd/2026/01/C-1-"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFolderPathEmptySegmentFallsBack(t *testing.T) {
	when := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	got := FolderPath("Base", "  ", "CID", when)
	want := "Base/unknown/2026/01/CID"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
