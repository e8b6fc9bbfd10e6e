// Package useractivity is the webcast user activity report: enrolled users of a
// webcast's course joined with their attendance status.
package useractivity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aura-webinar/webcast/internal/enrol"
	"github.com/aura-webinar/webcast/internal/identity"
	"github.com/aura-webinar/webcast/internal/models"
	"github.com/aura-webinar/webcast/internal/table"
	"github.com/aura-webinar/webcast/pkg/sqlq"
)

// ErrUsage is returned when the report is constructed with missing or malformed input.
var ErrUsage = errors.New("useractivity: invalid usage")

// InstanceLookup resolves the enrolment instance ids of a course.
type InstanceLookup interface {
	InstanceIDs(ctx context.Context, courseID int64) ([]int64, error)
}

// Deps are the collaborators New needs.
type Deps struct {
	Instances InstanceLookup
	// Now defaults to time.Now.
	Now func() time.Time
}

// Options shape the query.
type Options struct {
	// Identity is the configured identity field list.
	Identity []string
	// CanViewIdentity is whether the viewer may see identity fields in the course.
	CanViewIdentity bool
	// RoundStep is the "now" snapshot granularity; zero means enrol.DefaultRoundStep.
	RoundStep time.Duration
	// GroupID restricts rows to members of one group when positive.
	GroupID int64
}

// Report is the table source for one webcast.
type Report struct {
	uniqueID string
	webcast  models.Webcast
	extra    []string
	query    sqlq.Query
	count    sqlq.Statement
}

// New resolves the course's enrolment instances and identity fields and
// assembles the report query and its count query. No rows are read.
func New(ctx context.Context, uniqueID string, webcast models.Webcast, opts Options, deps Deps) (*Report, error) {
	if uniqueID == "" {
		return nil, fmt.Errorf("%w: empty unique id", ErrUsage)
	}
	if webcast.ID <= 0 || webcast.Course <= 0 {
		return nil, fmt.Errorf("%w: webcast needs id and course", ErrUsage)
	}
	if deps.Instances == nil {
		return nil, fmt.Errorf("%w: no instance lookup", ErrUsage)
	}
	if err := identity.Validate(opts.Identity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.RoundStep <= 0 {
		opts.RoundStep = enrol.DefaultRoundStep
	}

	ids, err := deps.Instances.InstanceIDs(ctx, webcast.Course)
	if err != nil {
		return nil, fmt.Errorf("enrol instances for course %d: %w", webcast.Course, err)
	}
	if ids == nil {
		ids = []int64{}
	}

	extra := identity.ExtraFields(opts.Identity, opts.CanViewIdentity)
	fields := identity.PictureFields("u", append(append([]string{}, extra...), "lastaccess"))
	fields = append(fields, "status.timer_seconds", "status.starttime", "status.endtime")

	q := sqlq.Query{
		Distinct: true,
		Fields:   fields,
		From:     sqlq.Table{Name: "users", Alias: "u"},
		Joins: []sqlq.Join{
			{Kind: sqlq.Inner, Table: sqlq.Table{Name: "user_enrolments", Alias: "ue"}, On: "ue.userid = u.id AND ue.enrolid = ANY(@instanceids)"},
			{Kind: sqlq.Inner, Table: sqlq.Table{Name: "enrol", Alias: "e"}, On: "e.id = ue.enrolid"},
			{Kind: sqlq.Left, Table: sqlq.Table{Name: "webcast_userstatus", Alias: "status"}, On: "status.userid = u.id AND status.webcast_id = @webcastid"},
		},
	}
	if opts.GroupID > 0 {
		q.Joins = append(q.Joins, sqlq.Join{Kind: sqlq.Inner, Table: sqlq.Table{Name: "groups_members", Alias: "gm"}, On: "gm.userid = u.id AND gm.groupid = @groupid"})
		q.Bind("groupid", opts.GroupID)
	}

	now := enrol.RoundNow(deps.Now(), opts.RoundStep)
	q.AddWhere("active", "ue.status = @active")
	q.AddWhere("enabled", "e.status = @enabled")
	q.AddWhere("started", "ue.timestart < @now1")
	q.AddWhere("notended", "ue.timeend = 0 OR ue.timeend > @now2")
	q.Bind("instanceids", ids)
	q.Bind("active", enrol.StatusActive)
	q.Bind("enabled", enrol.InstanceEnabled)
	q.Bind("now1", now)
	q.Bind("now2", now)
	q.Bind("webcastid", webcast.ID)

	count, err := q.Count()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return &Report{uniqueID: uniqueID, webcast: webcast, extra: extra, query: q, count: count}, nil
}

// UniqueID identifies this table instance.
func (r *Report) UniqueID() string { return r.uniqueID }

// DescribeQuery returns a copy of the report query without order or limit.
func (r *Report) DescribeQuery() sqlq.Query { return r.query.Clone() }

// CountQuery returns the statement counting the report's rows.
func (r *Report) CountQuery() (sqlq.Statement, error) { return r.count, nil }

// Webcast returns the activity the report is built for.
func (r *Report) Webcast() models.Webcast { return r.webcast }

// Columns lists the report columns in display order.
func (r *Report) Columns() []table.Column {
	cols := []table.Column{
		{Name: "picture", HeaderKey: "userpic", Format: ColPicture, NoExport: true},
		{Name: "fullname", SortExpr: "u.lastname, u.firstname", Format: colFullName, Plain: plainFullName},
	}
	for _, f := range r.extra {
		cols = append(cols, table.Column{Name: f, SortExpr: "u." + f, Format: colText(f)})
	}
	return append(cols,
		table.Column{Name: "lastaccess", SortExpr: "u.lastaccess", Format: colLastAccess, Plain: colLastAccess},
		table.Column{Name: "present", SortExpr: "status.starttime", Format: ColPresent, Plain: ColPresent},
		table.Column{Name: "timer", SortExpr: "status.timer_seconds", Format: colTimer, Plain: colTimer},
		table.Column{Name: "action", Format: ColAction, NoExport: true},
	)
}

// TableOptions are the table defaults for this report.
func TableOptions() table.Options {
	return table.Options{DefaultSort: "fullname", Tiebreak: "u.id"}
}
