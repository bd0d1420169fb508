package importer

import (
	"strings"
	"testing"
)

const goodHeader = "Compliance Id,Title,Name of Law,Department,Operating Unit,Owner,Reviewer,Current Due Date,Frequency,Status,Impact"

func TestParseHeaderCaseInsensitive(t *testing.T) {
	input := strings.ToUpper(goodHeader) + "\nC-001,File returns,Tax Act,Finance,HQ,owner@example.com,rev@example.com,2026-03-31,Monthly,Pending,High\n"
	rows, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if got := rows[0].Get(ColComplianceID); got != "C-001" {
		t.Fatalf("compliance id = %q", got)
	}
	if rows[0].RowNumber != 1 {
		t.Fatalf("row number = %d", rows[0].RowNumber)
	}
}

func TestParseMissingColumnsListed(t *testing.T) {
	input := "Compliance Id,Title,Owner\nC-001,File returns,owner@example.com\n"
	_, err := Parse(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected header error")
	}
	for _, want := range []string{ColLaw, ColDepartment, ColEntity, ColReviewer, ColDueDate, ColFrequency, ColStatus, ColImpact} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not name missing column %q", err.Error(), want)
		}
	}
	if strings.Contains(err.Error(), ColTitle+",") {
		t.Fatalf("error should not list present columns: %q", err.Error())
	}
}

func TestParseEmptyFile(t *testing.T) {
	if _, err := Parse(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestParseShortRecord(t *testing.T) {
	input := goodHeader + "\nC-002,Short row\n"
	rows, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := rows[0].Get(ColOwner); got != "" {
		t.Fatalf("expected empty owner for short record, got %q", got)
	}
}

func TestParseDueDate(t *testing.T) {
	for _, raw := range []string{"2026-03-31", "31/03/2026", "31-03-2026", "31-Mar-2026"} {
		parsed, err := ParseDueDate(raw)
		if err != nil || parsed == nil {
			t.Fatalf("ParseDueDate(%q): %v", raw, err)
		}
		if parsed.Year() != 2026 || parsed.Month() != 3 || parsed.Day() != 31 {
			t.Fatalf("ParseDueDate(%q) = %v", raw, parsed)
		}
	}
	if parsed, err := ParseDueDate("  "); err != nil || parsed != nil {
		t.Fatalf("expected blank date to be absent, got %v %v", parsed, err)
	}
	if _, err := ParseDueDate("31st March"); err == nil {
		t.Fatal("expected error for unrecognized date")
	}
}
