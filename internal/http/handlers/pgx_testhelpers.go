package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"formu/internal/domain"
)

type SimpleRow struct {
	scan func(dest ...any) error
}

func NewSimpleRow(scanner func(dest ...any) error) SimpleRow {
	return SimpleRow{scan: scanner}
}

func (r SimpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type TestRowsBase struct{}

func (TestRowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (TestRowsBase) Conn() *pgx.Conn { return nil }

func (TestRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (TestRowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (TestRowsBase) RawValues() [][]byte { return nil }

// SliceRows serves pre-built result rows through the pgx.Rows interface.
type SliceRows struct {
	TestRowsBase
	Rows [][]any
	idx  int
}

func (r *SliceRows) Close() {}

func (r *SliceRows) Err() error { return nil }

func (r *SliceRows) Next() bool {
	if r.idx >= len(r.Rows) {
		return false
	}
	r.idx++
	return true
}

func (r *SliceRows) Scan(dest ...any) error {
	row := r.Rows[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d dest for %d values", len(dest), len(row))
	}
	for i, v := range row {
		if err := assign(dest[i], v); err != nil {
			return err
		}
	}
	return nil
}

func assign(dest, v any) error {
	switch d := dest.(type) {
	case *string:
		*d = v.(string)
	case *domain.Style:
		*d = v.(domain.Style)
	case *int:
		*d = v.(int)
	case *int64:
		*d = v.(int64)
	case *bool:
		*d = v.(bool)
	case *time.Time:
		*d = v.(time.Time)
	case **time.Time:
		if v == nil {
			*d = nil
		} else {
			t := v.(time.Time)
			*d = &t
		}
	case *[]byte:
		if v == nil {
			*d = nil
		} else {
			*d = v.([]byte)
		}
	default:
		return fmt.Errorf("scan: unsupported dest %T", dest)
	}
	return nil
}

// fakeSQL is a scriptable infra.SQLExecutor keyed on the inline query text.
type fakeSQL struct {
	rows    map[string]func(args ...any) SimpleRow
	execs   map[string]func(args ...any) (pgconn.CommandTag, error)
	queries map[string]func(args ...any) (pgx.Rows, error)
}

func newFakeSQL() *fakeSQL {
	return &fakeSQL{
		rows:    map[string]func(args ...any) SimpleRow{},
		execs:   map[string]func(args ...any) (pgconn.CommandTag, error){},
		queries: map[string]func(args ...any) (pgx.Rows, error){},
	}
}

func (f *fakeSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if fn, ok := f.execs[query]; ok {
		return fn(args...)
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected exec: %.40q", query)
}

func (f *fakeSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if fn, ok := f.rows[query]; ok {
		return fn(args...)
	}
	return NewSimpleRow(func(dest ...any) error {
		return fmt.Errorf("unexpected query row: %.40q", query)
	})
}

func (f *fakeSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if fn, ok := f.queries[query]; ok {
		return fn(args...)
	}
	return nil, fmt.Errorf("unexpected query: %.40q", query)
}
