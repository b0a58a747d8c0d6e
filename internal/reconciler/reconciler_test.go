package reconciler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pepabo/dify-cron/internal/domain"
)

var syncTime = time.Date(2023, 1, 23, 14, 0, 0, 0, time.UTC)

const syncStamp = "2023-01-23 14:00:00"

func scheduleX() domain.Schedule {
	return domain.Schedule{Minute: "0", Hour: "9", DayOfMonth: "*", Month: "*", DayOfWeek: "1-5"}
}

func TestReconcile_EmptyRemoteKeepsExisting(t *testing.T) {
	existing := []domain.AppRow{
		{ID: "a1", Enabled: true, APISecret: "k", Schedule: scheduleX()},
		{ID: "b2", Name: "Other"},
	}

	got := Reconcile(existing, nil, syncTime)
	assert.Equal(t, existing, got)

	got = Reconcile(existing, []domain.RemoteApp{}, syncTime)
	assert.Equal(t, existing, got)

	res := Merge(existing, nil, syncTime)
	assert.True(t, res.Guarded)
	assert.Empty(t, res.Removed)
}

func TestReconcile_ExistingRowKeepsUserFields(t *testing.T) {
	existing := []domain.AppRow{{
		Enabled:     true,
		ID:          "a1",
		Name:        "Old",
		Description: "old description",
		APISecret:   "k",
		Schedule:    scheduleX(),
		Args:        `{"x":1}`,
		LastSync:    "2023-01-22 14:00:00",
		LastRun:     "2023-01-23 09:00:00",
	}}
	remote := []domain.RemoteApp{{ID: "a1", Name: "New", Description: "D"}}

	got := Reconcile(existing, remote, syncTime)

	require.Len(t, got, 1)
	assert.Equal(t, domain.AppRow{
		Enabled:     true,
		ID:          "a1",
		Name:        "New",
		Description: "D",
		APISecret:   "",
		Schedule:    scheduleX(),
		Args:        `{"x":1}`,
		LastSync:    syncStamp,
		LastRun:     "2023-01-23 09:00:00",
	}, got[0])
}

func TestReconcile_NewRowDefaults(t *testing.T) {
	got := Reconcile(nil, []domain.RemoteApp{{ID: "n1", Name: "Fresh", Description: "new"}}, syncTime)

	require.Len(t, got, 1)
	assert.Equal(t, domain.AppRow{
		ID:          "n1",
		Name:        "Fresh",
		Description: "new",
		LastSync:    syncStamp,
	}, got[0])
	assert.False(t, got[0].Enabled)
	assert.Equal(t, domain.Schedule{}, got[0].Schedule)
}

func TestReconcile_OrderFollowsRemoteAndDropsMissing(t *testing.T) {
	existing := []domain.AppRow{
		{ID: "a1", Enabled: true},
		{ID: "gone", Enabled: true},
		{ID: "b2"},
	}
	remote := []domain.RemoteApp{
		{ID: "c3", Name: "C"},
		{ID: "b2", Name: "B"},
		{ID: "a1", Name: "A"},
	}

	res := Merge(existing, remote, syncTime)

	ids := make([]string, 0, len(res.Rows))
	for _, r := range res.Rows {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"c3", "b2", "a1"}, ids)
	assert.True(t, res.Rows[2].Enabled)
	assert.Equal(t, []string{"c3"}, res.Created)
	assert.Equal(t, []string{"b2", "a1"}, res.Updated)
	assert.Equal(t, []string{"gone"}, res.Removed)
	assert.False(t, res.Guarded)
}

func TestReconcile_DuplicateRemoteIDsAreDropped(t *testing.T) {
	existing := []domain.AppRow{{ID: "a1", Enabled: true, Schedule: scheduleX()}}
	remote := []domain.RemoteApp{
		{ID: "a1", Name: "First"},
		{ID: "a1", Name: "Second"},
	}

	res := Merge(existing, remote, syncTime)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "First", res.Rows[0].Name)
	assert.True(t, res.Rows[0].Enabled)
	assert.Equal(t, []string{"a1"}, res.Duplicates)
}

func TestReconcile_DoesNotMutateInput(t *testing.T) {
	existing := []domain.AppRow{{ID: "a1", Name: "Old", APISecret: "k"}}
	Reconcile(existing, []domain.RemoteApp{{ID: "a1", Name: "New"}}, syncTime)

	assert.Equal(t, "Old", existing[0].Name)
	assert.Equal(t, "k", existing[0].APISecret)
}

func TestReconcile_TimestampUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	got := Reconcile(nil, []domain.RemoteApp{{ID: "a1"}}, syncTime.In(tokyo))

	assert.Equal(t, "2023-01-23 23:00:00", got[0].LastSync)
}
