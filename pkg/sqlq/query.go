// Package sqlq builds parameterised SELECT statements from a structured descriptor
// (fields, joins, named predicates, named args) instead of concatenated fragments.
package sqlq

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrInvalidQuery is returned when a descriptor fails validation.
var ErrInvalidQuery = errors.New("invalid query")

// JoinKind is the SQL join keyword.
type JoinKind string

const (
	Inner JoinKind = "JOIN"
	Left  JoinKind = "LEFT JOIN"
)

// Table is a table reference with its alias.
type Table struct {
	Name  string
	Alias string
}

// Join attaches a table with an ON expression.
type Join struct {
	Kind  JoinKind
	Table Table
	On    string
}

// Predicate is one named WHERE condition. Predicates are ANDed in order.
type Predicate struct {
	Name string
	Expr string
}

// Order is one ORDER BY term.
type Order struct {
	Expr string
	Desc bool
}

// Statement is a ready-to-run SQL string and its named args.
type Statement struct {
	SQL  string
	Args pgx.NamedArgs
}

// Query describes a SELECT.
type Query struct {
	Distinct bool
	Fields   []string
	From     Table
	Joins    []Join
	Where    []Predicate
	Params   pgx.NamedArgs
	OrderBy  []Order
	Limit    int
	Offset   int
}

var (
	identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	fieldRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*\.[a-z_][a-z0-9_]*( AS [a-z_][a-z0-9_]*)?$`)
	paramRe = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)`)
)

// AddWhere appends a named predicate.
func (q *Query) AddWhere(name, expr string) {
	q.Where = append(q.Where, Predicate{Name: name, Expr: expr})
}

// Bind sets a named parameter.
func (q *Query) Bind(name string, value any) {
	if q.Params == nil {
		q.Params = pgx.NamedArgs{}
	}
	q.Params[name] = value
}

// Predicate returns the predicate with the given name.
func (q *Query) Predicate(name string) (Predicate, bool) {
	for _, p := range q.Where {
		if p.Name == name {
			return p, true
		}
	}
	return Predicate{}, false
}

// Clone returns a deep copy; paging a clone never touches the original.
func (q Query) Clone() Query {
	out := q
	out.Fields = append([]string(nil), q.Fields...)
	out.Joins = append([]Join(nil), q.Joins...)
	out.Where = append([]Predicate(nil), q.Where...)
	out.OrderBy = append([]Order(nil), q.OrderBy...)
	if q.Params != nil {
		out.Params = make(pgx.NamedArgs, len(q.Params))
		for k, v := range q.Params {
			out.Params[k] = v
		}
	}
	return out
}

// Validate checks identifiers, expressions and parameter bindings.
func (q *Query) Validate() error {
	if len(q.Fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidQuery)
	}
	for _, f := range q.Fields {
		if !fieldRe.MatchString(f) {
			return fmt.Errorf("%w: field %q", ErrInvalidQuery, f)
		}
	}
	if err := validTable(q.From); err != nil {
		return err
	}
	aliases := map[string]bool{q.From.Alias: true}
	for _, j := range q.Joins {
		if j.Kind != Inner && j.Kind != Left {
			return fmt.Errorf("%w: join kind %q", ErrInvalidQuery, j.Kind)
		}
		if err := validTable(j.Table); err != nil {
			return err
		}
		if aliases[j.Table.Alias] {
			return fmt.Errorf("%w: duplicate alias %q", ErrInvalidQuery, j.Table.Alias)
		}
		aliases[j.Table.Alias] = true
		if err := validExpr(j.On); err != nil {
			return err
		}
	}
	names := map[string]bool{}
	for _, p := range q.Where {
		if p.Name == "" || names[p.Name] {
			return fmt.Errorf("%w: predicate name %q", ErrInvalidQuery, p.Name)
		}
		names[p.Name] = true
		if err := validExpr(p.Expr); err != nil {
			return err
		}
	}
	for _, o := range q.OrderBy {
		if err := validExpr(o.Expr); err != nil {
			return err
		}
		if q.Distinct && !q.selects(o.Expr) {
			return fmt.Errorf("%w: order %q not in distinct select list", ErrInvalidQuery, o.Expr)
		}
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("%w: negative limit or offset", ErrInvalidQuery)
	}
	return q.validParams()
}

func (q *Query) selects(expr string) bool {
	for _, f := range q.Fields {
		if f == expr || strings.HasSuffix(f, " AS "+expr) {
			return true
		}
	}
	return false
}

func (q *Query) validParams() error {
	used := map[string]bool{}
	texts := []string{}
	for _, j := range q.Joins {
		texts = append(texts, j.On)
	}
	for _, p := range q.Where {
		texts = append(texts, p.Expr)
	}
	for _, t := range texts {
		for _, m := range paramRe.FindAllStringSubmatch(t, -1) {
			used[m[1]] = true
		}
	}
	var missing, unused []string
	for name := range used {
		if _, ok := q.Params[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range q.Params {
		if !used[name] {
			unused = append(unused, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: unbound params %s", ErrInvalidQuery, strings.Join(missing, ","))
	}
	if len(unused) > 0 {
		sort.Strings(unused)
		return fmt.Errorf("%w: unused params %s", ErrInvalidQuery, strings.Join(unused, ","))
	}
	return nil
}

func validTable(t Table) error {
	if !identRe.MatchString(t.Name) || !identRe.MatchString(t.Alias) {
		return fmt.Errorf("%w: table %q alias %q", ErrInvalidQuery, t.Name, t.Alias)
	}
	return nil
}

func validExpr(e string) error {
	if strings.TrimSpace(e) == "" || strings.ContainsAny(e, ";") || strings.Contains(e, "--") || strings.Contains(e, "/*") {
		return fmt.Errorf("%w: expression %q", ErrInvalidQuery, e)
	}
	return nil
}

func (q *Query) fromWhere() string {
	var b strings.Builder
	b.WriteString(" FROM ")
	b.WriteString(q.From.Name + " " + q.From.Alias)
	for _, j := range q.Joins {
		fmt.Fprintf(&b, " %s %s %s ON (%s)", j.Kind, j.Table.Name, j.Table.Alias, j.On)
	}
	if len(q.Where) > 0 {
		b.WriteString(" WHERE ")
		for i, p := range q.Where {
			if i > 0 {
				b.WriteString(" AND ")
			}
			b.WriteString("(" + p.Expr + ")")
		}
	}
	return b.String()
}

func (q *Query) selectList() string {
	s := "SELECT "
	if q.Distinct {
		s += "DISTINCT "
	}
	return s + strings.Join(q.Fields, ", ")
}

// Build validates the descriptor and renders the full statement.
func (q *Query) Build() (Statement, error) {
	if err := q.Validate(); err != nil {
		return Statement{}, err
	}
	var b strings.Builder
	b.WriteString(q.selectList())
	b.WriteString(q.fromWhere())
	if len(q.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range q.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(o.Expr)
			if o.Desc {
				b.WriteString(" DESC")
			} else {
				b.WriteString(" ASC")
			}
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.Offset)
	}
	return Statement{SQL: b.String(), Args: q.args()}, nil
}

// Count renders a row-count statement over the same FROM/WHERE.
// Distinct queries are counted through a subquery so duplicates collapse the same way.
func (q *Query) Count() (Statement, error) {
	if err := q.Validate(); err != nil {
		return Statement{}, err
	}
	var sql string
	if q.Distinct {
		sql = "SELECT COUNT(*) FROM (" + q.selectList() + q.fromWhere() + ") AS c"
	} else {
		sql = "SELECT COUNT(*)" + q.fromWhere()
	}
	return Statement{SQL: sql, Args: q.args()}, nil
}

func (q *Query) args() pgx.NamedArgs {
	out := make(pgx.NamedArgs, len(q.Params))
	for k, v := range q.Params {
		out[k] = v
	}
	return out
}
