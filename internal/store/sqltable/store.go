// Package sqltable persists the apps table in a SQL database.
//
// The table is stored as an ordered list of column names and an ordered
// list of rows whose cells are kept as a JSON array, so users may add,
// remove or reorder columns without a schema change. PostgreSQL (lib/pq)
// and SQLite (modernc.org/sqlite) are supported.
package sqltable

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pepabo/dify-cron/internal/table"
)

var (
	ErrRowNotFound    = errors.New("row not found")
	ErrUnknownColumn  = errors.New("unknown column")
	ErrNoHeader       = errors.New("table has no header")
	ErrUnknownDialect = errors.New("unknown database driver")
)

type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// ParseDialect maps a DATABASE_DRIVER value to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDialect, driver)
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

func (d Dialect) String() string {
	return d.DriverName()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store implements the table I/O used by the reconciler, the scheduler and
// the admin API.
type Store struct {
	db        *sql.DB
	dialect   Dialect
	opTimeout time.Duration
}

// New creates a Store. A positive opTimeout bounds every operation.
func New(db *sql.DB, dialect Dialect, opTimeout time.Duration) *Store {
	return &Store{db: db, dialect: dialect, opTimeout: opTimeout}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// EnsureHeader writes header if the table has none yet. An existing header
// is never touched. It reports whether the header was written.
func (s *Store) EnsureHeader(ctx context.Context, header table.Header) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, queryCountColumns).Scan(&n); err != nil {
		return false, fmt.Errorf("count columns: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	for i, name := range header {
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(queryInsertColumn), i, name); err != nil {
			return false, fmt.Errorf("insert column %q: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// ReadHeader returns the column names in order.
func (s *Store) ReadHeader(ctx context.Context) (table.Header, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return readHeader(ctx, s.db)
}

// ReadAllRows returns every row in order. Rows may be shorter or longer
// than the header.
func (s *Store) ReadAllRows(ctx context.Context) ([][]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, querySelectRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		cells, err := decodeCells(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, cells)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// WriteAllRows replaces every row in a single transaction.
func (s *Store) WriteAllRows(ctx context.Context, rows [][]string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	header, err := readHeader(ctx, tx)
	if err != nil {
		return err
	}
	idCol := header.Index(table.ColumnID)

	if _, err := tx.ExecContext(ctx, queryDeleteRows); err != nil {
		return fmt.Errorf("delete rows: %w", err)
	}

	insert := s.dialect.rebind(queryInsertRow)
	for i, cells := range rows {
		raw, err := encodeCells(cells)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert, i, cellAt(cells, idCol), raw); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// WriteCell sets one cell of the first row whose ID cell equals rowID.
// It returns ErrUnknownColumn or ErrRowNotFound when nothing matches.
func (s *Store) WriteCell(ctx context.Context, rowID, column, value string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	header, err := readHeader(ctx, tx)
	if err != nil {
		return err
	}
	col := header.Index(column)
	if col < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	idCol := header.Index(table.ColumnID)
	if idCol < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, table.ColumnID)
	}

	var (
		position int
		raw      string
	)
	err = tx.QueryRowContext(ctx, s.dialect.rebind(querySelectRowByKey), rowID).Scan(&position, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %q", ErrRowNotFound, rowID)
	}
	if err != nil {
		return err
	}

	cells, err := decodeCells(raw)
	if err != nil {
		return err
	}
	for len(cells) <= col {
		cells = append(cells, "")
	}
	cells[col] = value

	encoded, err := encodeCells(cells)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.dialect.rebind(queryUpdateRow), cellAt(cells, idCol), encoded, position); err != nil {
		return fmt.Errorf("update row: %w", err)
	}

	return tx.Commit()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readHeader(ctx context.Context, q queryer) (table.Header, error) {
	rows, err := q.QueryContext(ctx, querySelectColumns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var header table.Header
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		header = append(header, name)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, ErrNoHeader
	}

	return header, nil
}

func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

func encodeCells(cells []string) (string, error) {
	if cells == nil {
		cells = []string{}
	}
	b, err := json.Marshal(cells)
	if err != nil {
		return "", fmt.Errorf("encode cells: %w", err)
	}
	return string(b), nil
}

func decodeCells(raw string) ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return nil, fmt.Errorf("decode cells: %w", err)
	}
	return cells, nil
}
