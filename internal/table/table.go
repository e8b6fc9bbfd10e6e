// Package table runs a pluggable data source as a sortable, paginated table
// and renders the result as HTML, CSV or JSON.
package table

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/aura-webinar/webcast/internal/lang"
	"github.com/aura-webinar/webcast/pkg/cache"
	"github.com/aura-webinar/webcast/pkg/metrics"
	"github.com/aura-webinar/webcast/pkg/sqlq"
)

// ErrUnknownColumn is returned when a request sorts by a column that is missing or not sortable.
var ErrUnknownColumn = errors.New("unknown or unsortable column")

// Querier is the slice of *pgxpool.Pool the table needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Env is the request context a formatter may read.
type Env struct {
	CourseModuleID int64
	CourseID       int64
	ViewerID       int64
	Strings        lang.Strings
	// Base is the site root prefixed to generated links; empty keeps them relative.
	Base string
}

// FormatFunc renders one cell.
type FormatFunc func(env Env, row Row) string

// Column describes one table column.
type Column struct {
	Name string
	// HeaderKey is looked up in Env.Strings.
	HeaderKey string
	// SortExpr is the ORDER BY expression; empty means not sortable.
	SortExpr string
	// Format renders HTML; nil escapes the raw value.
	Format FormatFunc
	// Plain renders export text; nil uses the raw value.
	Plain    FormatFunc
	NoExport bool
}

// Source is a table data source: a query, its count and its columns.
type Source interface {
	UniqueID() string
	DescribeQuery() sqlq.Query
	CountQuery() (sqlq.Statement, error)
	Columns() []Column
}

// Request selects the sort order and page.
type Request struct {
	Sort string
	Desc bool
	// Page is zero-based.
	Page int
	// PerPage 0 returns every row.
	PerPage int
}

// Options tunes a Table.
type Options struct {
	// DefaultSort applies when Request.Sort is empty.
	DefaultSort string
	// Tiebreak is appended to every ORDER BY so paging is stable.
	Tiebreak string
	Cache    cache.Cache
	CountTTL time.Duration
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Table runs a Source.
type Table struct {
	src  Source
	opts Options
}

// New creates a table over src.
func New(src Source, opts Options) *Table {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Table{src: src, opts: opts}
}

// Result is one fetched page.
type Result struct {
	UniqueID string
	Columns  []Column
	Headers  []string
	Rows     []Row
	Cells    [][]string
	Total    int64
	Page     int
	PerPage  int
	Sort     string
	Desc     bool

	env Env
}

func (t *Table) column(name string) (Column, bool) {
	for _, c := range t.src.Columns() {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Fetch counts the rows, runs the requested page and formats every cell.
func (t *Table) Fetch(ctx context.Context, db Querier, env Env, req Request) (*Result, error) {
	if req.Page < 0 || req.PerPage < 0 {
		return nil, fmt.Errorf("invalid page %d/%d", req.Page, req.PerPage)
	}
	if req.Sort == "" {
		req.Sort = t.opts.DefaultSort
	}
	q := t.src.DescribeQuery().Clone()
	if req.Sort != "" {
		col, ok := t.column(req.Sort)
		if !ok || col.SortExpr == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, req.Sort)
		}
		for _, expr := range strings.Split(col.SortExpr, ",") {
			q.OrderBy = append(q.OrderBy, sqlq.Order{Expr: strings.TrimSpace(expr), Desc: req.Desc})
		}
	}
	if t.opts.Tiebreak != "" {
		q.OrderBy = append(q.OrderBy, sqlq.Order{Expr: t.opts.Tiebreak})
	}
	if req.PerPage > 0 {
		q.Limit = req.PerPage
		q.Offset = req.Page * req.PerPage
	}
	page, err := q.Build()
	if err != nil {
		return nil, err
	}

	total, err := t.count(ctx, db)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := db.Query(ctx, page.SQL, page.Args)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.src.UniqueID(), err)
	}
	list, err := collect(rows)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", t.src.UniqueID(), err)
	}
	t.opts.Metrics.ObserveQuery(t.src.UniqueID(), "page", time.Since(start))

	res := &Result{
		UniqueID: t.src.UniqueID(),
		Columns:  t.src.Columns(),
		Rows:     list,
		Total:    total,
		Page:     req.Page,
		PerPage:  req.PerPage,
		Sort:     req.Sort,
		Desc:     req.Desc,
		env:      env,
	}
	for _, c := range res.Columns {
		res.Headers = append(res.Headers, header(env, c))
	}
	for _, r := range list {
		cells := make([]string, len(res.Columns))
		for i, c := range res.Columns {
			cells[i] = formatHTML(env, c, r)
		}
		res.Cells = append(res.Cells, cells)
	}
	return res, nil
}

func collect(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()
	fds := rows.FieldDescriptions()
	var list []Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(fds))
		for i, fd := range fds {
			if i < len(vals) {
				row[fd.Name] = vals[i]
			}
		}
		list = append(list, row)
	}
	return list, rows.Err()
}

func (t *Table) count(ctx context.Context, db Querier) (int64, error) {
	st, err := t.src.CountQuery()
	if err != nil {
		return 0, err
	}
	key := "table:count:" + t.src.UniqueID() + ":" + statementKey(st)
	if t.opts.Cache != nil {
		if v, ok, err := t.opts.Cache.Get(ctx, key); err == nil && ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				t.opts.Metrics.CountCache(true)
				return n, nil
			}
		} else if err != nil {
			t.opts.Logger.Warn("count cache get", zap.String("table", t.src.UniqueID()), zap.Error(err))
		}
		t.opts.Metrics.CountCache(false)
	}

	start := time.Now()
	var total int64
	if err := db.QueryRow(ctx, st.SQL, st.Args).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.src.UniqueID(), err)
	}
	t.opts.Metrics.ObserveQuery(t.src.UniqueID(), "count", time.Since(start))

	if t.opts.Cache != nil && t.opts.CountTTL > 0 {
		if err := t.opts.Cache.Set(ctx, key, strconv.FormatInt(total, 10), t.opts.CountTTL); err != nil {
			t.opts.Logger.Warn("count cache set", zap.String("table", t.src.UniqueID()), zap.Error(err))
		}
	}
	return total, nil
}

// statementKey hashes SQL text and args; identical statements share a key.
func statementKey(st sqlq.Statement) string {
	names := make([]string, 0, len(st.Args))
	for k := range st.Args {
		names = append(names, k)
	}
	sort.Strings(names)
	d := xxhash.New()
	_, _ = d.WriteString(st.SQL)
	for _, k := range names {
		_, _ = d.WriteString(fmt.Sprintf("|%s=%v", k, st.Args[k]))
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

func header(env Env, c Column) string {
	key := c.HeaderKey
	if key == "" {
		key = c.Name
	}
	if env.Strings == nil {
		return key
	}
	return env.Strings.Get(key)
}

func formatHTML(env Env, c Column, r Row) string {
	if c.Format != nil {
		return c.Format(env, r)
	}
	return html.EscapeString(r.String(c.Name))
}

func formatPlain(env Env, c Column, r Row) string {
	if c.Plain != nil {
		return c.Plain(env, r)
	}
	return r.String(c.Name)
}
