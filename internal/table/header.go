// Package table converts between raw table rows and domain.AppRow.
//
// A raw row is a slice of cell strings laid out according to a Header. The
// header is passed explicitly to every call so that users may reorder,
// remove or add columns without the codec holding any shared state.
package table

import "strings"

// Column names understood by the codec.
const (
	ColumnEnabled     = "Enabled"
	ColumnID          = "ID"
	ColumnName        = "Name"
	ColumnDescription = "Description"
	ColumnAPISecret   = "API Secret"
	ColumnMinute      = "Minute"
	ColumnHour        = "Hour"
	ColumnDayOfMonth  = "Day"
	ColumnMonth       = "Month"
	ColumnDayOfWeek   = "Day of Week"
	ColumnArgs        = "Args"
	ColumnLastSync    = "Last Sync"
	ColumnLastRun     = "Last Run"
)

// DefaultHeader is written to an empty table.
var DefaultHeader = Header{
	ColumnEnabled,
	ColumnID,
	ColumnName,
	ColumnDescription,
	ColumnAPISecret,
	ColumnMinute,
	ColumnHour,
	ColumnDayOfMonth,
	ColumnMonth,
	ColumnDayOfWeek,
	ColumnArgs,
	ColumnLastSync,
	ColumnLastRun,
}

// UserColumns are the columns a user may edit through the admin API.
var UserColumns = []string{
	ColumnEnabled,
	ColumnAPISecret,
	ColumnMinute,
	ColumnHour,
	ColumnDayOfMonth,
	ColumnMonth,
	ColumnDayOfWeek,
	ColumnArgs,
}

// Header is the ordered list of column names of a table.
type Header []string

// Index returns the position of the named column, or -1.
// Names are compared case-insensitively after trimming spaces.
func (h Header) Index(name string) int {
	name = strings.TrimSpace(name)
	for i, col := range h {
		if strings.EqualFold(strings.TrimSpace(col), name) {
			return i
		}
	}
	return -1
}

// Has reports whether the named column is present.
func (h Header) Has(name string) bool {
	return h.Index(name) >= 0
}

// Canonical returns the codec's spelling of name, or "" when name is not a
// known column.
func Canonical(name string) string {
	if i := DefaultHeader.Index(name); i >= 0 {
		return DefaultHeader[i]
	}
	return ""
}

// IsUserColumn reports whether name is a user-owned column.
func IsUserColumn(name string) bool {
	return Header(UserColumns).Has(name)
}
