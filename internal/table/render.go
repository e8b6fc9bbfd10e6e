package table

import (
	"embed"
	"encoding/csv"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/aura-webinar/webcast/pkg/weburl"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

var tmpl = template.Must(template.New("").Funcs(template.FuncMap{
	"mod": func(i int) int { return i % 2 },
}).ParseFS(templatesFS, "templates/*.gohtml"))

type headerView struct {
	Index   int
	Name    string
	Text    string
	SortURL string
	Active  bool
	Desc    bool
}

type pageLink struct {
	Label   string
	URL     string
	Current bool
}

type tableView struct {
	ID        string
	Empty     bool
	EmptyText string
	PageText  string
	Headers   []headerView
	Rows      [][]template.HTML
	Pages     []pageLink
}

// WriteHTML renders the page as an HTML table. Sort and page links extend pageURL.
func (r *Result) WriteHTML(w io.Writer, pageURL *weburl.URL) error {
	v := tableView{
		ID:        r.UniqueID,
		Empty:     len(r.Rows) == 0,
		EmptyText: r.text("nothingtodisplay"),
		PageText:  r.text("page"),
	}
	for i, c := range r.Columns {
		h := headerView{Index: i, Name: c.Name, Text: r.Headers[i]}
		if c.SortExpr != "" && pageURL != nil {
			desc := r.Sort == c.Name && !r.Desc
			u := pageURL.Clone().Set("sort", c.Name).Set("dir", dirParam(desc))
			h.SortURL = u.String()
			h.Active = r.Sort == c.Name
			h.Desc = r.Desc
		}
		v.Headers = append(v.Headers, h)
	}
	for _, cells := range r.Cells {
		row := make([]template.HTML, len(cells))
		for i, c := range cells {
			// Formatters return escaped markup.
			row[i] = template.HTML(c)
		}
		v.Rows = append(v.Rows, row)
	}
	if pageURL != nil && r.PerPage > 0 && r.Total > int64(r.PerPage) {
		pages := int((r.Total + int64(r.PerPage) - 1) / int64(r.PerPage))
		for p := 0; p < pages; p++ {
			u := pageURL.Clone().Set("page", strconv.Itoa(p))
			if r.Sort != "" {
				u.Set("sort", r.Sort).Set("dir", dirParam(r.Desc))
			}
			v.Pages = append(v.Pages, pageLink{Label: strconv.Itoa(p + 1), URL: u.String(), Current: p == r.Page})
		}
	}
	return tmpl.ExecuteTemplate(w, "table", v)
}

func dirParam(desc bool) string {
	if desc {
		return "desc"
	}
	return "asc"
}

func (r *Result) text(key string) string {
	if r.env.Strings == nil {
		return key
	}
	return r.env.Strings.Get(key)
}

// WriteCSV writes exportable columns as CSV with a UTF-8 BOM for spreadsheet apps.
func (r *Result) WriteCSV(w io.Writer) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	var cols []int
	var head []string
	for i, c := range r.Columns {
		if c.NoExport {
			continue
		}
		cols = append(cols, i)
		head = append(head, r.Headers[i])
	}
	if err := cw.Write(head); err != nil {
		return err
	}
	for _, row := range r.Rows {
		rec := make([]string, 0, len(cols))
		for _, i := range cols {
			rec = append(rec, sanitizeCSVField(formatPlain(r.env, r.Columns[i], row)))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// sanitizeCSVField neutralises values a spreadsheet would evaluate as formulas.
func sanitizeCSVField(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

// ColumnView is one column in the JSON view.
type ColumnView struct {
	Name     string `json:"name"`
	Header   string `json:"header"`
	Sortable bool   `json:"sortable"`
}

// View is the JSON shape of a page.
type View struct {
	ID      string              `json:"id"`
	Columns []ColumnView        `json:"columns"`
	Rows    []map[string]string `json:"rows"`
	Total   int64               `json:"total"`
	Page    int                 `json:"page"`
	PerPage int                 `json:"per_page"`
	Sort    string              `json:"sort,omitempty"`
	Dir     string              `json:"dir,omitempty"`
}

// View returns the page with formatted cells keyed by column name.
func (r *Result) View() View {
	v := View{ID: r.UniqueID, Total: r.Total, Page: r.Page, PerPage: r.PerPage, Sort: r.Sort, Rows: []map[string]string{}}
	if r.Sort != "" {
		v.Dir = dirParam(r.Desc)
	}
	for i, c := range r.Columns {
		v.Columns = append(v.Columns, ColumnView{Name: c.Name, Header: r.Headers[i], Sortable: c.SortExpr != ""})
	}
	for _, cells := range r.Cells {
		m := make(map[string]string, len(cells))
		for i, c := range cells {
			m[r.Columns[i].Name] = c
		}
		v.Rows = append(v.Rows, m)
	}
	return v
}
