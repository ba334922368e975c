package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/kundali/internal/chart"
)

// SQLiteStore persists charts in a single SQLite table. Input and output are
// stored as JSON documents next to a few columns used for listing.
type SQLiteStore struct {
	db *sqlx.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS charts (
	chart_id       TEXT PRIMARY KEY,
	created_at     TEXT NOT NULL,
	language       TEXT NOT NULL DEFAULT 'en',
	ascendant      INTEGER NOT NULL DEFAULT 0,
	mismatch_count INTEGER NOT NULL DEFAULT 0,
	input          TEXT NOT NULL,
	output         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS charts_created_at ON charts (created_at);
`

// createdAtLayout has a fixed width so created_at sorts lexically.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

type chartRow struct {
	ChartID       string `db:"chart_id"`
	CreatedAt     string `db:"created_at"`
	Language      string `db:"language"`
	Ascendant     int    `db:"ascendant"`
	MismatchCount int    `db:"mismatch_count"`
	Input         string `db:"input"`
	Output        string `db:"output"`
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, in chart.Input, out chart.Output) (Record, error) {
	rec := newRecord(in, out)
	row, err := toRow(rec)
	if err != nil {
		return Record{}, err
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO charts
		(chart_id, created_at, language, ascendant, mismatch_count, input, output)
		VALUES (:chart_id, :created_at, :language, :ascendant, :mismatch_count, :input, :output)`, row)
	if err != nil {
		return Record{}, fmt.Errorf("insert chart: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	var row chartRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM charts WHERE chart_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("select chart: %w", err)
	}
	return fromRow(row)
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT * FROM charts ORDER BY created_at DESC, chart_id ASC`
	var rows []chartRow
	var err error
	if limit > 0 {
		err = s.db.SelectContext(ctx, &rows, query+` LIMIT ?`, limit)
	} else {
		err = s.db.SelectContext(ctx, &rows, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list charts: %w", err)
	}
	recs := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM charts WHERE chart_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chart: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete chart: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func toRow(rec Record) (chartRow, error) {
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return chartRow{}, fmt.Errorf("encode input: %w", err)
	}
	output, err := json.Marshal(rec.Output)
	if err != nil {
		return chartRow{}, fmt.Errorf("encode output: %w", err)
	}
	return chartRow{
		ChartID:       rec.ID,
		CreatedAt:     rec.CreatedAt.UTC().Format(createdAtLayout),
		Language:      string(rec.Output.Language),
		Ascendant:     int(rec.Output.AscendantSignID),
		MismatchCount: len(rec.Output.Mismatches),
		Input:         string(input),
		Output:        string(output),
	}, nil
}

func fromRow(row chartRow) (Record, error) {
	rec := Record{ID: row.ChartID}
	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, row.CreatedAt); err != nil {
		return Record{}, fmt.Errorf("chart %s: created_at: %w", row.ChartID, err)
	}
	if err := json.Unmarshal([]byte(row.Input), &rec.Input); err != nil {
		return Record{}, fmt.Errorf("chart %s: input: %w", row.ChartID, err)
	}
	if err := json.Unmarshal([]byte(row.Output), &rec.Output); err != nil {
		return Record{}, fmt.Errorf("chart %s: output: %w", row.ChartID, err)
	}
	return rec, nil
}
