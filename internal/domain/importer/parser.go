package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// The upload template's eleven columns. Header matching is case-insensitive
// and order-insensitive; extra columns are ignored.
const (
	ColComplianceID = "compliance id"
	ColTitle        = "title"
	ColLaw          = "name of law"
	ColDepartment   = "department"
	ColEntity       = "operating unit"
	ColOwner        = "owner"
	ColReviewer     = "reviewer"
	ColDueDate      = "current due date"
	ColFrequency    = "frequency"
	ColStatus       = "status"
	ColImpact       = "impact"
)

var requiredColumns = []string{
	ColComplianceID, ColTitle, ColLaw, ColDepartment, ColEntity,
	ColOwner, ColReviewer, ColDueDate, ColFrequency, ColStatus, ColImpact,
}

// RawRow is one CSV data row keyed by normalized column name. RowNumber is
// 1-based counting data rows only.
type RawRow struct {
	RowNumber int
	Values    map[string]string
}

func (r RawRow) Get(column string) string {
	return strings.TrimSpace(r.Values[column])
}

// Parse reads the whole CSV, validating the header up front. A header missing
// any required column fails the entire file and names every missing column.
func Parse(reader io.Reader) ([]RawRow, error) {
	cr := csv.NewReader(reader)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	missing := make([]string, 0)
	for _, column := range requiredColumns {
		if _, ok := index[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv header is missing required columns: %s", strings.Join(missing, ", "))
	}

	rows := make([]RawRow, 0)
	for number := 1; ; number++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", number, err)
		}

		values := make(map[string]string, len(requiredColumns))
		for _, column := range requiredColumns {
			if pos := index[column]; pos < len(record) {
				values[column] = record[pos]
			}
		}
		rows = append(rows, RawRow{RowNumber: number, Values: values})
	}
	return rows, nil
}

var dueDateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006", "2-Jan-2006", "02-Jan-2006"}

// ParseDueDate accepts the date formats the template has shipped with over
// time. Empty means no due date.
func ParseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dueDateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", raw)
}
