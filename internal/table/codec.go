package table

import (
	"strings"

	"github.com/pepabo/dify-cron/internal/domain"
)

const (
	enabledTrue  = "TRUE"
	enabledFalse = "FALSE"
)

// Decode reads row from raw using header. Columns missing from the header,
// or cells missing from a short raw row, decode to their zero value.
func Decode(header Header, raw []string) domain.AppRow {
	cell := func(name string) string {
		i := header.Index(name)
		if i < 0 || i >= len(raw) {
			return ""
		}
		return raw[i]
	}

	return domain.AppRow{
		Enabled:     ParseEnabled(cell(ColumnEnabled)),
		ID:          cell(ColumnID),
		Name:        cell(ColumnName),
		Description: cell(ColumnDescription),
		APISecret:   cell(ColumnAPISecret),
		Schedule: domain.Schedule{
			Minute:     cell(ColumnMinute),
			Hour:       cell(ColumnHour),
			DayOfMonth: cell(ColumnDayOfMonth),
			Month:      cell(ColumnMonth),
			DayOfWeek:  cell(ColumnDayOfWeek),
		},
		Args:     cell(ColumnArgs),
		LastSync: cell(ColumnLastSync),
		LastRun:  cell(ColumnLastRun),
	}
}

// Encode lays row out in header order. Unknown columns are left empty.
func Encode(header Header, row domain.AppRow) []string {
	raw := make([]string, len(header))
	for i, col := range header {
		raw[i] = field(row, Canonical(col))
	}
	return raw
}

// DecodeAll decodes every raw row.
func DecodeAll(header Header, raws [][]string) []domain.AppRow {
	rows := make([]domain.AppRow, 0, len(raws))
	for _, raw := range raws {
		rows = append(rows, Decode(header, raw))
	}
	return rows
}

// EncodeAll encodes every row.
func EncodeAll(header Header, rows []domain.AppRow) [][]string {
	raws := make([][]string, 0, len(rows))
	for _, row := range rows {
		raws = append(raws, Encode(header, row))
	}
	return raws
}

func field(row domain.AppRow, column string) string {
	switch column {
	case ColumnEnabled:
		return FormatEnabled(row.Enabled)
	case ColumnID:
		return row.ID
	case ColumnName:
		return row.Name
	case ColumnDescription:
		return row.Description
	case ColumnAPISecret:
		return row.APISecret
	case ColumnMinute:
		return row.Schedule.Minute
	case ColumnHour:
		return row.Schedule.Hour
	case ColumnDayOfMonth:
		return row.Schedule.DayOfMonth
	case ColumnMonth:
		return row.Schedule.Month
	case ColumnDayOfWeek:
		return row.Schedule.DayOfWeek
	case ColumnArgs:
		return row.Args
	case ColumnLastSync:
		return row.LastSync
	case ColumnLastRun:
		return row.LastRun
	default:
		return ""
	}
}

// ParseEnabled interprets a checkbox-like cell. Anything unrecognised is false.
func ParseEnabled(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// FormatEnabled renders the Enabled cell.
func FormatEnabled(enabled bool) string {
	if enabled {
		return enabledTrue
	}
	return enabledFalse
}
