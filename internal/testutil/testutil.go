// Package testutil provides shared test helpers for dify-cron.
package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pepabo/dify-cron/internal/table"
)

// FakeClock provides deterministic time for testing.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewFakeClock creates a FakeClock set to the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// TestContext returns a context with a 5-second timeout.
// The context is cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ErrRowNotFound is returned by MemTable.WriteCell for an unknown row id.
var ErrRowNotFound = errors.New("row not found")

// MemTable is an in-memory table store. The Err fields, when set, are
// returned by the matching method.
type MemTable struct {
	mu     sync.Mutex
	header table.Header
	rows   [][]string

	ReadErr      error
	WriteErr     error
	WriteCellErr error

	Writes     int
	CellWrites int
}

// NewMemTable returns a MemTable holding a copy of header and rows.
func NewMemTable(header table.Header, rows [][]string) *MemTable {
	return &MemTable{header: append(table.Header{}, header...), rows: copyRows(rows)}
}

func (m *MemTable) ReadHeader(ctx context.Context) (table.Header, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return append(table.Header{}, m.header...), nil
}

func (m *MemTable) ReadAllRows(ctx context.Context) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return copyRows(m.rows), nil
}

func (m *MemTable) WriteAllRows(ctx context.Context, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Writes++
	m.rows = copyRows(rows)
	return nil
}

func (m *MemTable) WriteCell(ctx context.Context, rowID, column, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteCellErr != nil {
		return m.WriteCellErr
	}
	idCol := m.header.Index(table.ColumnID)
	col := m.header.Index(column)
	if idCol < 0 || col < 0 {
		return errors.New("unknown column " + column)
	}
	for _, row := range m.rows {
		if idCol < len(row) && row[idCol] == rowID {
			for len(row) <= col {
				row = append(row, "")
			}
			row[col] = value
			m.replace(rowID, idCol, row)
			m.CellWrites++
			return nil
		}
	}
	return ErrRowNotFound
}

func (m *MemTable) replace(rowID string, idCol int, row []string) {
	for i, r := range m.rows {
		if idCol < len(r) && r[idCol] == rowID {
			m.rows[i] = row
			return
		}
	}
}

// Rows returns a snapshot of the stored rows.
func (m *MemTable) Rows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRows(m.rows)
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
