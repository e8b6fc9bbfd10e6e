package useractivity_test

import (
	"context"
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-webinar/webcast/internal/enrol"
	"github.com/aura-webinar/webcast/internal/lang"
	"github.com/aura-webinar/webcast/internal/models"
	"github.com/aura-webinar/webcast/internal/table"
	"github.com/aura-webinar/webcast/internal/useractivity"
	"github.com/aura-webinar/webcast/pkg/database"
)

// Runs against a real PostgreSQL when TEST_DATABASE_URL is set.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, database.PoolConfig{DSN: dsn}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool, zap.NewNop()))
	return pool
}

type fixture struct {
	pool   *pgxpool.Pool
	course int64
	ref    models.CourseModuleRef
	users  []int64
	tag    string
}

func (f *fixture) exec(t *testing.T, sql string, args ...any) int64 {
	t.Helper()
	var id int64
	require.NoError(t, f.pool.QueryRow(context.Background(), sql+" RETURNING id", args...).Scan(&id))
	return id
}

func (f *fixture) user(t *testing.T, lastname string) int64 {
	t.Helper()
	id := f.exec(t, `INSERT INTO users (username, firstname, lastname, email) VALUES ($1, 'U', $2, $3)`,
		f.tag+"-"+lastname, lastname, lastname+"@example.com")
	f.users = append(f.users, id)
	return id
}

func (f *fixture) enrol(t *testing.T, status int) int64 {
	t.Helper()
	return f.exec(t, `INSERT INTO enrol (courseid, enrol, status) VALUES ($1, 'manual', $2)`, f.course, status)
}

func (f *fixture) enrolUser(t *testing.T, enrolID, userID int64, status int, start, end int64) {
	t.Helper()
	f.exec(t, `INSERT INTO user_enrolments (enrolid, userid, status, timestart, timeend) VALUES ($1, $2, $3, $4, $5)`,
		enrolID, userID, status, start, end)
}

func newFixture(t *testing.T) *fixture {
	pool := testPool(t)
	f := &fixture{pool: pool, tag: fmt.Sprintf("ua%d", time.Now().UnixNano())}
	f.course = f.exec(t, `INSERT INTO courses (fullname) VALUES ($1)`, f.tag)
	webcastID := f.exec(t, `INSERT INTO webcast (course, name) VALUES ($1, 'Kick-off')`, f.course)
	cmid := f.exec(t, `INSERT INTO course_modules (course, module, instance) VALUES ($1, 'webcast', $2)`, f.course, webcastID)
	f.ref = models.CourseModuleRef{
		CM:      models.CourseModule{ID: cmid, Course: f.course, Instance: webcastID},
		Webcast: models.Webcast{ID: webcastID, Course: f.course, Name: "Kick-off"},
	}
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, f.course)
		_, _ = pool.Exec(ctx, `DELETE FROM users WHERE id = ANY($1)`, f.users)
	})
	return f
}

func TestReport_AgainstPostgres(t *testing.T) {
	f := newFixture(t)
	now := time.Unix(1_700_000_123, 0)
	n := now.Unix()

	enabled := f.enrol(t, enrol.InstanceEnabled)
	second := f.enrol(t, enrol.InstanceEnabled)
	disabled := f.enrol(t, enrol.InstanceDisabled)

	twice := f.user(t, "twice")
	f.enrolUser(t, enabled, twice, enrol.StatusActive, 0, 0)
	f.enrolUser(t, second, twice, enrol.StatusActive, 0, 0)
	f.exec(t, `INSERT INTO webcast_userstatus (webcast_id, userid, timer_seconds, starttime, endtime) VALUES ($1, $2, 75, $3, $4)`,
		f.ref.Webcast.ID, twice, n-600, n-525)

	open := f.user(t, "open")
	f.enrolUser(t, enabled, open, enrol.StatusActive, n-86400, 0)

	endsLater := f.user(t, "endslater")
	f.enrolUser(t, enabled, endsLater, enrol.StatusActive, n-86400, n+10)

	suspended := f.user(t, "suspended")
	f.enrolUser(t, enabled, suspended, enrol.StatusSuspended, 0, 0)

	viaDisabled := f.user(t, "viadisabled")
	f.enrolUser(t, disabled, viaDisabled, enrol.StatusActive, 0, 0)

	future := f.user(t, "future")
	f.enrolUser(t, enabled, future, enrol.StatusActive, n+1000, 0)

	expired := f.user(t, "expired")
	f.enrolUser(t, enabled, expired, enrol.StatusActive, 0, n-3600)

	justExpired := f.user(t, "justexpired")
	f.enrolUser(t, enabled, justExpired, enrol.StatusActive, 0, n-50)

	strings, err := lang.Load("en")
	require.NoError(t, err)
	svc := useractivity.NewService(useractivity.ServiceConfig{Identity: []string{"email"}}, useractivity.ServiceDeps{
		DB:        f.pool,
		Instances: enrol.NewCachedInstances(enrol.NewRepository(f.pool), time.Minute),
		Now:       func() time.Time { return now },
	})
	viewer := useractivity.Viewer{UserID: 1, CanViewIdentity: true, Strings: strings}

	res, err := svc.Fetch(context.Background(), f.ref, viewer, table.Request{})
	require.NoError(t, err)

	var got []string
	for _, r := range res.Rows {
		got = append(got, r.String("lastname"))
	}
	sort.Strings(got)
	assert.Equal(t, []string{"endslater", "open", "twice"}, got)
	assert.Equal(t, int64(len(res.Rows)), res.Total)

	for i, r := range res.Rows {
		present := res.Cells[i][len(res.Cells[i])-3]
		if r.String("lastname") == "twice" {
			assert.Equal(t, strings.Get("yes"), present)
			assert.Equal(t, "0:01:15", res.Cells[i][len(res.Cells[i])-2])
		} else {
			assert.Equal(t, strings.Get("no"), present)
		}
	}

	paged, err := svc.Fetch(context.Background(), f.ref, viewer, table.Request{Sort: "fullname", PerPage: 2, Page: 1})
	require.NoError(t, err)
	require.Len(t, paged.Rows, 1)
	assert.Equal(t, "twice", paged.Rows[0].String("lastname"))
	assert.Equal(t, int64(3), paged.Total)
}

func TestReport_AgainstPostgres_NoInstances(t *testing.T) {
	f := newFixture(t)
	strings, err := lang.Load("en")
	require.NoError(t, err)
	svc := useractivity.NewService(useractivity.ServiceConfig{}, useractivity.ServiceDeps{
		DB:        f.pool,
		Instances: enrol.NewCachedInstances(enrol.NewRepository(f.pool), time.Minute),
	})
	res, err := svc.Fetch(context.Background(), f.ref, useractivity.Viewer{Strings: strings}, table.Request{})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Zero(t, res.Total)
}
