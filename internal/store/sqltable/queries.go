package sqltable

// Queries are written with ? placeholders and rebound per dialect.

var schema = []string{
	`CREATE TABLE IF NOT EXISTS app_columns (
    position INTEGER PRIMARY KEY,
    name     TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS app_rows (
    position INTEGER PRIMARY KEY,
    row_key  TEXT NOT NULL,
    cells    TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS app_rows_row_key_idx ON app_rows (row_key)`,
}

const queryCountColumns = `SELECT COUNT(*) FROM app_columns`

const querySelectColumns = `
SELECT name FROM app_columns
ORDER BY position
`

const queryInsertColumn = `
INSERT INTO app_columns (position, name)
VALUES (?, ?)
`

const querySelectRows = `
SELECT cells FROM app_rows
ORDER BY position
`

const queryDeleteRows = `DELETE FROM app_rows`

const queryInsertRow = `
INSERT INTO app_rows (position, row_key, cells)
VALUES (?, ?, ?)
`

const querySelectRowByKey = `
SELECT position, cells FROM app_rows
WHERE row_key = ?
ORDER BY position
LIMIT 1
`

const queryUpdateRow = `
UPDATE app_rows
SET row_key = ?, cells = ?
WHERE position = ?
`
