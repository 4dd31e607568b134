package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"SpinTrack/internal/domain/models"
	"SpinTrack/internal/domain/repository"
	"SpinTrack/internal/services/wheel"
	pkgch "SpinTrack/pkg/clickhouse"
)

// ClickHouseSpinStorage archives spins in a ReplacingMergeTree keyed by
// source and sequence, so a replayed spin collapses into one row.
type ClickHouseSpinStorage struct {
	client *pkgch.Client
	db     *sql.DB
	table  string
}

// NewClickHouseSpinStorage creates the storage on table in the client's
// database.
func NewClickHouseSpinStorage(client *pkgch.Client, table string) *ClickHouseSpinStorage {
	return &ClickHouseSpinStorage{
		client: client,
		db:     client.DB(),
		table:  qualify(client.Database(), table),
	}
}

var _ repository.SpinStorage = (*ClickHouseSpinStorage)(nil)

func qualify(database, table string) string {
	if database == "" || strings.Contains(table, ".") {
		return table
	}
	return database + "." + table
}

func spinsDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    observed_at DateTime64(3, 'UTC'),
    seq UInt64,
    number UInt8,
    source LowCardinality(String),
    color LowCardinality(String),
    dozen LowCardinality(String),
    col LowCardinality(String)
) ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMM(observed_at)
ORDER BY (source, observed_at, seq)`, table)
}

func (s *ClickHouseSpinStorage) Init(ctx context.Context) error {
	if err := s.client.InitSchema(ctx, spinsDDL(s.table)); err != nil {
		return fmt.Errorf("init spins table: %w", err)
	}
	return nil
}

func (s *ClickHouseSpinStorage) Store(ctx context.Context, sp *models.Spin) error {
	return s.StoreBatch(ctx, []*models.Spin{sp})
}

const insertColumns = "(observed_at, seq, number, source, color, dozen, col)"

func (s *ClickHouseSpinStorage) StoreBatch(ctx context.Context, spins []*models.Spin) error {
	const chunkSize = 2000
	for start := 0; start < len(spins); start += chunkSize {
		end := min(start+chunkSize, len(spins))
		q, args := buildInsert(s.table, spins[start:end])
		if len(args) == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert spins: %w", err)
		}
	}
	return nil
}

func buildInsert(table string, spins []*models.Spin) (string, []interface{}) {
	values := make([]string, 0, len(spins))
	args := make([]interface{}, 0, len(spins)*7)
	for _, sp := range spins {
		if sp == nil || !models.ValidNumber(sp.Number) {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			sp.ObservedAt.UTC(),
			uint64(sp.Seq),
			uint8(sp.Number),
			sp.Source,
			wheel.ColorOf(sp.Number),
			wheel.DozenOf(sp.Number),
			wheel.ColumnOf(sp.Number),
		)
	}
	return fmt.Sprintf("INSERT INTO %s %s VALUES %s", table, insertColumns, strings.Join(values, ",")), args
}

// Recent returns the newest spins, optionally for one source.
func (s *ClickHouseSpinStorage) Recent(ctx context.Context, source string, limit int) ([]*models.Spin, error) {
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf("SELECT number, source, seq, observed_at FROM %s FINAL", s.table)
	args := []interface{}{}
	if source != "" {
		q += " WHERE source = ?"
		args = append(args, source)
	}
	q += " ORDER BY observed_at DESC, seq DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query spins: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Spin, 0, limit)
	for rows.Next() {
		var (
			sp     models.Spin
			number uint8
			seq    uint64
		)
		if err := rows.Scan(&number, &sp.Source, &seq, &sp.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan spin: %w", err)
		}
		sp.Number, sp.Seq = int(number), int64(seq)
		out = append(out, &sp)
	}
	return out, rows.Err()
}

func (s *ClickHouseSpinStorage) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close is a no-op; the client is owned by the caller.
func (s *ClickHouseSpinStorage) Close() error {
	return nil
}
