// Package reconciler folds the remote Dify app list into the apps table.
//
// Remote-owned columns (name, description) are refreshed on every pass and
// user-owned columns (enabled flag, schedule, args) are carried over. Rows
// whose id no longer appears remotely are dropped, which is only safe
// because an empty remote list never reaches the merge.
package reconciler

import (
	"time"

	"github.com/pepabo/dify-cron/internal/domain"
)

// Result is the outcome of merging one remote list into the table.
type Result struct {
	Rows []domain.AppRow

	// Guarded is set when the remote list was empty and Rows is the
	// existing set, untouched.
	Guarded bool

	Created    []string
	Updated    []string
	Removed    []string
	Duplicates []string
}

// Reconcile returns the rows to persist after a sync at now.
func Reconcile(existing []domain.AppRow, remote []domain.RemoteApp, now time.Time) []domain.AppRow {
	return Merge(existing, remote, now).Rows
}

// Merge is Reconcile with a report of what changed.
//
// Output rows follow the order of remote. The API secret of a matched row is
// cleared on every pass and must be re-entered by hand. A remote id seen a
// second time is dropped and reported in Duplicates, so ids stay unique.
func Merge(existing []domain.AppRow, remote []domain.RemoteApp, now time.Time) Result {
	if len(remote) == 0 {
		return Result{Rows: existing, Guarded: true}
	}

	stamp := domain.FormatTimestamp(now)

	byID := make(map[string]domain.AppRow, len(existing))
	for _, row := range existing {
		if _, dup := byID[row.ID]; dup {
			continue
		}
		byID[row.ID] = row
	}

	var res Result
	res.Rows = make([]domain.AppRow, 0, len(remote))
	seen := make(map[string]bool, len(remote))

	for _, app := range remote {
		if seen[app.ID] {
			res.Duplicates = append(res.Duplicates, app.ID)
			continue
		}
		seen[app.ID] = true

		row, ok := byID[app.ID]
		if ok {
			delete(byID, app.ID)
			row.Name = app.Name
			row.Description = app.Description
			row.APISecret = ""
			row.LastSync = stamp
			res.Updated = append(res.Updated, app.ID)
		} else {
			row = domain.AppRow{
				ID:          app.ID,
				Name:        app.Name,
				Description: app.Description,
				LastSync:    stamp,
			}
			res.Created = append(res.Created, app.ID)
		}
		res.Rows = append(res.Rows, row)
	}

	for _, row := range existing {
		if _, left := byID[row.ID]; left {
			res.Removed = append(res.Removed, row.ID)
			delete(byID, row.ID)
		}
	}

	return res
}
