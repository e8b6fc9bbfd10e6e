package table_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/webcast/internal/table"
	"github.com/aura-webinar/webcast/internal/table/tabletest"
	"github.com/aura-webinar/webcast/pkg/cache"
	"github.com/aura-webinar/webcast/pkg/metrics"
	"github.com/aura-webinar/webcast/pkg/sqlq"
	"github.com/aura-webinar/webcast/pkg/weburl"
)

type staticStrings map[string]string

func (s staticStrings) Get(key string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return "[[" + key + "]]"
}

type peopleSource struct {
	now int64
}

func (s peopleSource) UniqueID() string { return "people" }

func (s peopleSource) DescribeQuery() sqlq.Query {
	q := sqlq.Query{
		Distinct: true,
		Fields:   []string{"u.id", "u.firstname", "u.lastname", "u.email"},
		From:     sqlq.Table{Name: "users", Alias: "u"},
	}
	q.AddWhere("recent", "u.lastaccess > @now")
	q.Bind("now", s.now)
	return q
}

func (s peopleSource) CountQuery() (sqlq.Statement, error) {
	q := s.DescribeQuery()
	return q.Count()
}

func (s peopleSource) Columns() []table.Column {
	return []table.Column{
		{Name: "fullname", SortExpr: "u.lastname, u.firstname", Format: func(_ table.Env, r table.Row) string {
			return "<b>" + r.String("firstname") + "</b>"
		}, Plain: func(_ table.Env, r table.Row) string {
			return r.String("firstname") + " " + r.String("lastname")
		}},
		{Name: "email", SortExpr: "u.email"},
		{Name: "action", NoExport: true, Format: func(_ table.Env, _ table.Row) string { return "<a>x</a>" }},
	}
}

func newDB() *tabletest.FakeDB {
	return &tabletest.FakeDB{
		Fields: []string{"id", "firstname", "lastname", "email"},
		Data: [][]any{
			{int64(1), "Ada", "Lovelace", "=cmd|calc"},
			{int64(2), "Alan", "Turing", "alan@example.com"},
		},
		Total: 2,
	}
}

func env() table.Env {
	return table.Env{Strings: staticStrings{"fullname": "Full name", "email": "Email", "action": "Action", "page": "Page"}}
}

func TestFetch_BuildsPagedSortedStatement(t *testing.T) {
	db := newDB()
	tbl := table.New(peopleSource{now: 1000}, table.Options{Tiebreak: "u.id"})

	res, err := tbl.Fetch(context.Background(), db, env(), table.Request{Sort: "fullname", Desc: true, Page: 2, PerPage: 10})
	require.NoError(t, err)

	q := db.LastQuery()
	assert.True(t, strings.HasSuffix(q.SQL, "ORDER BY u.lastname DESC, u.firstname DESC, u.id ASC LIMIT 10 OFFSET 20"), q.SQL)
	require.Len(t, q.Args, 1)
	assert.Equal(t, pgx.NamedArgs{"now": int64(1000)}, q.Args[0])

	assert.Equal(t, int64(2), res.Total)
	assert.Equal(t, []string{"Full name", "Email", "Action"}, res.Headers)
	require.Len(t, res.Cells, 2)
	assert.Equal(t, []string{"<b>Ada</b>", "=cmd|calc", "<a>x</a>"}, res.Cells[0])
	assert.Equal(t, "alan@example.com", res.Cells[1][1])
}

func TestFetch_EscapesDefaultCells(t *testing.T) {
	db := newDB()
	db.Data = [][]any{{int64(1), "A", "B", "<script>"}}
	res, err := table.New(peopleSource{}, table.Options{}).Fetch(context.Background(), db, env(), table.Request{})
	require.NoError(t, err)
	assert.Equal(t, "&lt;script&gt;", res.Cells[0][1])
}

func TestFetch_RejectsUnknownSort(t *testing.T) {
	tbl := table.New(peopleSource{}, table.Options{})
	_, err := tbl.Fetch(context.Background(), newDB(), env(), table.Request{Sort: "action"})
	assert.ErrorIs(t, err, table.ErrUnknownColumn)
	_, err = tbl.Fetch(context.Background(), newDB(), env(), table.Request{Sort: "password"})
	assert.ErrorIs(t, err, table.ErrUnknownColumn)
}

func TestFetch_DefaultSortAndNoLimit(t *testing.T) {
	db := newDB()
	_, err := table.New(peopleSource{}, table.Options{DefaultSort: "email"}).Fetch(context.Background(), db, env(), table.Request{})
	require.NoError(t, err)
	sql := db.LastQuery().SQL
	assert.Contains(t, sql, "ORDER BY u.email ASC")
	assert.NotContains(t, sql, "LIMIT")
}

func TestFetch_PropagatesDatabaseErrors(t *testing.T) {
	db := newDB()
	db.QueryErr = errors.New("relation does not exist")
	_, err := table.New(peopleSource{}, table.Options{}).Fetch(context.Background(), db, env(), table.Request{})
	assert.ErrorContains(t, err, "relation does not exist")

	db = newDB()
	db.CountErr = errors.New("timeout")
	_, err = table.New(peopleSource{}, table.Options{}).Fetch(context.Background(), db, env(), table.Request{})
	assert.ErrorContains(t, err, "timeout")
}

func TestFetch_CachesCountPerStatement(t *testing.T) {
	db := newDB()
	tbl := table.New(peopleSource{now: 1000}, table.Options{Cache: cache.NewMemory(time.Minute), CountTTL: time.Minute, Metrics: metrics.New()})

	for i := 0; i < 3; i++ {
		_, err := tbl.Fetch(context.Background(), db, env(), table.Request{PerPage: 1, Page: i})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, db.CountCalls())

	other := table.New(peopleSource{now: 1100}, table.Options{Cache: cache.NewMemory(time.Minute), CountTTL: time.Minute})
	_, err := other.Fetch(context.Background(), db, env(), table.Request{})
	require.NoError(t, err)
	assert.Equal(t, 2, db.CountCalls())
}

func TestWriteCSV_SkipsNoExportAndSanitises(t *testing.T) {
	res, err := table.New(peopleSource{}, table.Options{}).Fetch(context.Background(), newDB(), env(), table.Request{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, res.WriteCSV(&buf))
	out := strings.TrimPrefix(buf.String(), "\xEF\xBB\xBF")
	assert.Equal(t, "Full name,Email\r\nAda Lovelace,'=cmd|calc\r\nAlan Turing,alan@example.com\r\n", out)
}

func TestWriteHTML(t *testing.T) {
	db := newDB()
	db.Total = 25
	res, err := table.New(peopleSource{}, table.Options{}).Fetch(context.Background(), db, env(), table.Request{Sort: "email", PerPage: 10, Page: 1})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, res.WriteHTML(&buf, weburl.New("/mod/webcast/user_activity.php", weburl.P("id", "5"))))
	out := buf.String()
	assert.Contains(t, out, `<table class="generaltable flexible" id="people">`)
	assert.Contains(t, out, `<td class="cell c0"><b>Ada</b></td>`)
	assert.Contains(t, out, `href="/mod/webcast/user_activity.php?id=5&amp;sort=email&amp;dir=desc"`)
	assert.Contains(t, out, `href="/mod/webcast/user_activity.php?id=5&amp;sort=fullname&amp;dir=asc"`)
	assert.Contains(t, out, `<strong>2</strong>`)
	assert.Contains(t, out, `page=2`)
	assert.NotContains(t, out, `sort=action`)
}

func TestWriteHTML_Empty(t *testing.T) {
	db := newDB()
	db.Data = nil
	db.Total = 0
	res, err := table.New(peopleSource{}, table.Options{}).Fetch(context.Background(), db, table.Env{Strings: staticStrings{"nothingtodisplay": "Nothing to display"}}, table.Request{})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, res.WriteHTML(&buf, nil))
	assert.Contains(t, buf.String(), "Nothing to display")
	assert.NotContains(t, buf.String(), "<table")
}

func TestView(t *testing.T) {
	res, err := table.New(peopleSource{}, table.Options{}).Fetch(context.Background(), newDB(), env(), table.Request{Sort: "email", Desc: true})
	require.NoError(t, err)
	v := res.View()
	assert.Equal(t, "people", v.ID)
	assert.Equal(t, "desc", v.Dir)
	assert.Equal(t, table.ColumnView{Name: "email", Header: "Email", Sortable: true}, v.Columns[1])
	assert.False(t, v.Columns[2].Sortable)
	assert.Equal(t, "alan@example.com", v.Rows[1]["email"])
}

func TestRowHelpers(t *testing.T) {
	r := table.Row{"a": int64(5), "b": nil, "c": "7", "d": int32(0), "e": "", "f": "x"}
	assert.Equal(t, int64(5), r.Int64("a"))
	assert.Equal(t, int64(7), r.Int64("c"))
	assert.Equal(t, "5", r.String("a"))
	assert.Equal(t, "", r.String("b"))
	assert.True(t, r.Empty("b"))
	assert.True(t, r.Empty("d"))
	assert.True(t, r.Empty("e"))
	assert.True(t, r.Empty("missing"))
	assert.False(t, r.Empty("a"))
	assert.False(t, r.Empty("f"))
}
