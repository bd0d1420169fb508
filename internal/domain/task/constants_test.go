package task

import "testing"

func TestMapFrequency(t *testing.T) {
	cases := map[string]string{
		"Monthly":     FrequencyMonthly,
		"quarterly":   FrequencyQuarterly,
		"Half-Yearly": FrequencyHalfYearly,
		"Annually":    FrequencyAnnually,
		"yearly":      FrequencyAnnually,
		"One Time":    FrequencyOneTime,
	}
	for raw, want := range cases {
		got := MapFrequency(raw)
		if got == nil || *got != want {
			t.Fatalf("MapFrequency(%q) = %v, want %q", raw, got, want)
		}
	}
	if got := MapFrequency("fortnightly"); got != nil {
		t.Fatalf("expected unrecognized frequency to map to absent, got %q", *got)
	}
	if got := MapFrequency(""); got != nil {
		t.Fatalf("expected empty frequency to map to absent, got %q", *got)
	}
}

func TestMapImpact(t *testing.T) {
	if got := MapImpact(" High "); got == nil || *got != ImpactHigh {
		t.Fatalf("MapImpact High = %v", got)
	}
	if got := MapImpact("critical"); got != nil {
		t.Fatalf("expected unrecognized impact to map to absent, got %q", *got)
	}
}

func TestMapStatusDefaultsToPending(t *testing.T) {
	cases := map[string]string{
		"Completed": StatusCompleted,
		"complete":  StatusCompleted,
		"DONE":      StatusCompleted,
		"Skipped":   StatusSkipped,
		"skip":      StatusSkipped,
		"Pending":   StatusPending,
		"whatever":  StatusPending,
		"":          StatusPending,
	}
	for raw, want := range cases {
		if got := MapStatus(raw); got != want {
			t.Fatalf("MapStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}
