package domain

import "time"

// TimestampLayout is the cell format used for LastSync and LastRun.
const TimestampLayout = "2006-01-02 15:04:05"

// Schedule holds the five cron fields of a row as the user typed them.
type Schedule struct {
	Minute     string
	Hour       string
	DayOfMonth string
	Month      string
	DayOfWeek  string
}

// AppRow is one persisted row of the apps table.
// ID, Name and Description are owned by the remote side; everything else
// except LastSync and LastRun is owned by the user.
type AppRow struct {
	Enabled     bool
	ID          string
	Name        string
	Description string
	APISecret   string
	Schedule    Schedule
	Args        string
	LastSync    string
	LastRun     string
}

// RemoteApp is an application as reported by Dify.
type RemoteApp struct {
	ID          string
	Name        string
	Description string
}

// FormatTimestamp renders t for a LastSync/LastRun cell.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
