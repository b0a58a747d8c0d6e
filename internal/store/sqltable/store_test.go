package sqltable

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pepabo/dify-cron/internal/domain"
	"github.com/pepabo/dify-cron/internal/table"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, dialect, err := Open("sqlite", ":memory:", PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(db, dialect, 5*time.Second)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seeded(t *testing.T, rows ...domain.AppRow) *Store {
	t.Helper()
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.EnsureHeader(ctx, table.DefaultHeader)
	require.NoError(t, err)
	require.NoError(t, s.WriteAllRows(ctx, table.EncodeAll(table.DefaultHeader, rows)))
	return s
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{in: "postgres", want: Postgres},
		{in: "PostgreSQL", want: Postgres},
		{in: "sqlite", want: SQLite},
		{in: " sqlite3 ", want: SQLite},
		{in: "mysql", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDialect(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownDialect)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "VALUES ($1, $2, $3)", Postgres.rebind("VALUES (?, ?, ?)"))
	assert.Equal(t, "VALUES (?, ?)", SQLite.rebind("VALUES (?, ?)"))
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestReadHeader_EmptyStore(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReadHeader(context.Background())
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestEnsureHeader_WritesOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	wrote, err := s.EnsureHeader(ctx, table.DefaultHeader)
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = s.EnsureHeader(ctx, table.Header{"Other"})
	require.NoError(t, err)
	assert.False(t, wrote)

	header, err := s.ReadHeader(ctx)
	require.NoError(t, err)
	assert.Equal(t, table.DefaultHeader, header)
}

func TestWriteAllRows_RoundTrip(t *testing.T) {
	rows := []domain.AppRow{
		{Enabled: true, ID: "a", Name: "Alpha", Args: `{"k":"v"}`, Schedule: domain.Schedule{Minute: "*/5"}},
		{ID: "b", Name: "Beta", Description: "quoted \"text\", commas"},
	}
	s := seeded(t, rows...)

	raws, err := s.ReadAllRows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rows, table.DecodeAll(table.DefaultHeader, raws))
}

func TestWriteAllRows_ReplacesEverything(t *testing.T) {
	s := seeded(t, domain.AppRow{ID: "a"}, domain.AppRow{ID: "b"}, domain.AppRow{ID: "c"})
	ctx := context.Background()

	require.NoError(t, s.WriteAllRows(ctx, table.EncodeAll(table.DefaultHeader, []domain.AppRow{{ID: "c"}})))

	raws, err := s.ReadAllRows(ctx)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "c", table.Decode(table.DefaultHeader, raws[0]).ID)
}

func TestWriteAllRows_KeepsRaggedRows(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	ragged := [][]string{{"TRUE", "a"}, {}, {"FALSE", "b", "n", "d", "", "", "", "", "", "", "", "", "", "extra"}}
	require.NoError(t, s.WriteAllRows(ctx, ragged))

	raws, err := s.ReadAllRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, ragged, raws)
}

func TestWriteAllRows_NoHeaderLeavesRowsUntouched(t *testing.T) {
	s := newTestStore(t)
	err := s.WriteAllRows(context.Background(), [][]string{{"x"}})
	assert.ErrorIs(t, err, ErrNoHeader)

	raws, err := s.ReadAllRows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestWriteAllRows_CanceledContextIsAtomic(t *testing.T) {
	s := seeded(t, domain.AppRow{ID: "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.WriteAllRows(ctx, table.EncodeAll(table.DefaultHeader, []domain.AppRow{{ID: "z"}}))
	require.Error(t, err)

	raws, err := s.ReadAllRows(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "a", table.Decode(table.DefaultHeader, raws[0]).ID)
}

func TestWriteCell(t *testing.T) {
	s := seeded(t, domain.AppRow{ID: "a"}, domain.AppRow{ID: "b"})
	ctx := context.Background()

	require.NoError(t, s.WriteCell(ctx, "b", table.ColumnLastRun, "2023-01-23 14:35:00"))
	require.NoError(t, s.WriteCell(ctx, "b", "enabled", "TRUE"))

	raws, err := s.ReadAllRows(ctx)
	require.NoError(t, err)
	rows := table.DecodeAll(table.DefaultHeader, raws)
	assert.Equal(t, "", rows[0].LastRun)
	assert.Equal(t, "2023-01-23 14:35:00", rows[1].LastRun)
	assert.True(t, rows[1].Enabled)
}

func TestWriteCell_ExtendsShortRow(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.WriteAllRows(ctx, [][]string{{"", "a"}}))

	require.NoError(t, s.WriteCell(ctx, "a", table.ColumnArgs, `{"x":1}`))

	raws, err := s.ReadAllRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, table.Decode(table.DefaultHeader, raws[0]).Args)
}

func TestWriteCell_Errors(t *testing.T) {
	s := seeded(t, domain.AppRow{ID: "a"})
	ctx := context.Background()

	assert.ErrorIs(t, s.WriteCell(ctx, "missing", table.ColumnLastRun, "x"), ErrRowNotFound)
	assert.ErrorIs(t, s.WriteCell(ctx, "a", "Nope", "x"), ErrUnknownColumn)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
