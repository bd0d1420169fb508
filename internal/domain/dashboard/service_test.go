package dashboard

import (
	"testing"

	"comply/internal/domain/report"
)

func TestFoldCompletionRate(t *testing.T) {
	summary := Fold(report.Snapshot{Pending: 2, Completed: 6, Skipped: 2}, nil, nil, nil, nil)
	if summary.CompletionRate != 0.6 {
		t.Fatalf("completion rate = %v, want 0.6", summary.CompletionRate)
	}
}

func TestFoldNoTasks(t *testing.T) {
	summary := Fold(report.Snapshot{}, nil, nil, nil, nil)
	if summary.CompletionRate != 0 {
		t.Fatalf("completion rate = %v, want 0", summary.CompletionRate)
	}
	if summary.MyPending != nil {
		t.Fatal("my pending should be absent by default")
	}
}
