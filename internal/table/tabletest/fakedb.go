// Package tabletest provides an in-memory table.Querier for tests.
package tabletest

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Call is one recorded statement.
type Call struct {
	SQL  string
	Args []any
}

// FakeDB returns canned rows for Query and a canned total for QueryRow.
type FakeDB struct {
	Fields   []string
	Data     [][]any
	Total    int64
	QueryErr error
	CountErr error

	mu      sync.Mutex
	Queries []Call
	Counts  []Call
}

// Query records the call and returns Data.
func (f *FakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.mu.Lock()
	f.Queries = append(f.Queries, Call{SQL: sql, Args: args})
	f.mu.Unlock()
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	return &rows{fields: f.Fields, data: f.Data}, nil
}

// QueryRow records the call and returns a row that scans Total.
func (f *FakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	f.Counts = append(f.Counts, Call{SQL: sql, Args: args})
	f.mu.Unlock()
	return row{total: f.Total, err: f.CountErr}
}

// CountCalls returns how many count statements ran.
func (f *FakeDB) CountCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Counts)
}

// LastQuery returns the most recent page statement.
func (f *FakeDB) LastQuery() Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Queries) == 0 {
		return Call{}
	}
	return f.Queries[len(f.Queries)-1]
}

type row struct {
	total int64
	err   error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != 1 {
		return errors.New("tabletest: count row scans one value")
	}
	p, ok := dest[0].(*int64)
	if !ok {
		return errors.New("tabletest: count row scans into *int64")
	}
	*p = r.total
	return nil
}

type rows struct {
	fields []string
	data   [][]any
	i      int
}

func (r *rows) Close()                        {}
func (r *rows) Err() error                    { return nil }
func (r *rows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *rows) RawValues() [][]byte           { return nil }
func (r *rows) Conn() *pgx.Conn               { return nil }

func (r *rows) FieldDescriptions() []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(r.fields))
	for i, f := range r.fields {
		out[i] = pgconn.FieldDescription{Name: f}
	}
	return out
}

func (r *rows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *rows) Values() ([]any, error) {
	return r.data[r.i-1], nil
}

func (r *rows) Scan(dest ...any) error {
	return errors.New("tabletest: use Values")
}
