package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/webcast/internal/middleware"
	"github.com/aura-webinar/webcast/internal/models"
	"github.com/aura-webinar/webcast/internal/table/tabletest"
	"github.com/aura-webinar/webcast/internal/useractivity"
	"github.com/aura-webinar/webcast/internal/webcasts"
	"github.com/aura-webinar/webcast/pkg/cache"
	"github.com/aura-webinar/webcast/pkg/metrics"
	"github.com/aura-webinar/webcast/pkg/queue"
)

var testRef = &models.CourseModuleRef{
	CM:      models.CourseModule{ID: 11, Course: 3, Instance: 5},
	Webcast: models.Webcast{ID: 5, Course: 3, Name: "Kick-off"},
}

type fakeModules struct{}

func (fakeModules) GetByCourseModule(_ context.Context, cmid int64) (*models.CourseModuleRef, error) {
	if cmid == testRef.CM.ID {
		return testRef, nil
	}
	return nil, webcasts.ErrNotFound
}

type instances struct{}

func (instances) InstanceIDs(context.Context, int64) ([]int64, error) { return []int64{10}, nil }

type fakeUploader struct {
	mu    sync.Mutex
	err   error
	files map[string]string
}

func (f *fakeUploader) Upload(_ context.Context, key, _, _ string, body io.Reader) error {
	if f.err != nil {
		return f.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files == nil {
		f.files = map[string]string{}
	}
	f.files[key] = string(b)
	return nil
}

func (f *fakeUploader) PresignDownload(_ context.Context, key string) (string, error) {
	return "https://exports.example.com/" + key + "?sig=1", nil
}

type fakeQueue struct {
	mu     sync.Mutex
	jobs   []*queue.Job
	dead   []*queue.Job
	cancel context.CancelFunc
}

func (q *fakeQueue) Enqueue(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Dequeue(context.Context) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		if q.cancel != nil {
			q.cancel()
		}
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *fakeQueue) Retry(_ context.Context, job *queue.Job) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	if job.Attempt >= queue.MaxRetries {
		q.dead = append(q.dead, job)
		return true, nil
	}
	q.jobs = append(q.jobs, job)
	return false, nil
}

func newProcessor(up *fakeUploader, q *fakeQueue, statuses *Statuses) *Processor {
	db := &tabletest.FakeDB{
		Fields: []string{"id", "picture", "firstname", "lastname", "imagealt", "email", "lastaccess", "timer_seconds", "starttime", "endtime"},
		Data: [][]any{
			{int64(42), int64(0), "Ada", "Lovelace", nil, "ada@example.com", int64(0), int64(60), int64(100), int64(160)},
		},
		Total: 1,
	}
	svc := useractivity.NewService(useractivity.ServiceConfig{Identity: []string{"email"}}, useractivity.ServiceDeps{
		DB:        db,
		Instances: instances{},
	})
	p := NewProcessor(fakeModules{}, svc, up, q, statuses, metrics.New(), nil)
	p.backoff = time.Millisecond
	return p
}

func exportJob(t *testing.T, cmid int64) *queue.Job {
	t.Helper()
	job, err := queue.NewExportJob(queue.ExportPayload{CourseModuleID: cmid, ViewerID: 2, CanViewIdentity: true, Lang: "en"})
	require.NoError(t, err)
	return job
}

func TestProcess_UploadsCSV(t *testing.T) {
	ctx := context.Background()
	up := &fakeUploader{}
	statuses := NewStatuses(cache.NewMemory(0))
	p := newProcessor(up, &fakeQueue{}, statuses)
	job := exportJob(t, 11)

	require.NoError(t, p.Process(ctx, job))

	key := "exports/5/" + job.ID + ".csv"
	require.Contains(t, up.files, key)
	body := up.files[key]
	assert.True(t, strings.HasPrefix(body, "\ufeffFull name,Email address,Last access,Present,Time online\r\n"))
	assert.Contains(t, body, "Ada Lovelace,ada@example.com,Never,Yes,0:01:00\r\n")

	st, ok, err := statuses.Get(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StateDone, st.State)
	assert.Equal(t, key, st.Key)
	assert.Equal(t, 1, st.Rows)
}

func TestProcess_UnknownModule(t *testing.T) {
	p := newProcessor(&fakeUploader{}, &fakeQueue{}, NewStatuses(cache.NewMemory(0)))
	err := p.Process(context.Background(), exportJob(t, 99))
	assert.ErrorIs(t, err, webcasts.ErrNotFound)
}

func TestRun_RetriesThenDeadLetters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	up := &fakeUploader{err: errors.New("s3 down")}
	q := &fakeQueue{cancel: cancel}
	statuses := NewStatuses(cache.NewMemory(0))
	p := newProcessor(up, q, statuses)
	job := exportJob(t, 11)
	require.NoError(t, q.Enqueue(ctx, job))

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	require.Len(t, q.dead, 1)
	assert.Equal(t, queue.MaxRetries, q.dead[0].Attempt)
	st, ok, err := statuses.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StateFailed, st.State)
	assert.Contains(t, st.Error, "s3 down")
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func router(h *Handler, userID int64, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	pre := func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextUserRole, role)
		c.Set(webcasts.ContextCourseModule, testRef)
		c.Set(webcasts.ContextCanViewIdentity, true)
	}
	r.POST("/api/webcasts/:cmid/useractivity/export", pre, h.Create)
	r.GET("/api/exports/:job", pre, h.Get)
	return r
}

type envelope struct {
	Success bool           `json:"success"`
	Data    StatusResponse `json:"data"`
}

func TestHandler_CreateAndPoll(t *testing.T) {
	ctx := context.Background()
	q := &fakeQueue{}
	up := &fakeUploader{}
	statuses := NewStatuses(cache.NewMemory(0))
	h := NewHandler(q, statuses, up, "en", nil)

	w := serve(router(h, 2, "user"), http.MethodPost, "/api/webcasts/11/useractivity/export?sort=timer&dir=desc")
	require.Equal(t, http.StatusAccepted, w.Code)
	var created envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, StateQueued, created.Data.State)
	require.Len(t, q.jobs, 1)
	payload, err := q.jobs[0].ExportPayload()
	require.NoError(t, err)
	assert.Equal(t, "timer", payload.Sort)
	assert.True(t, payload.Desc)
	assert.Equal(t, int64(2), payload.ViewerID)

	jobPath := "/api/exports/" + created.Data.JobID
	w = serve(router(h, 2, "user"), http.MethodGet, jobPath)
	require.Equal(t, http.StatusOK, w.Code)
	var polled envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &polled))
	assert.Equal(t, StateQueued, polled.Data.State)
	assert.Empty(t, polled.Data.URL)

	require.NoError(t, statuses.Put(ctx, Status{JobID: created.Data.JobID, State: StateDone, CourseModuleID: 11, ViewerID: 2, Key: "exports/5/x.csv", Rows: 3}))
	w = serve(router(h, 2, "user"), http.MethodGet, jobPath)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &polled))
	assert.Equal(t, "https://exports.example.com/exports/5/x.csv?sig=1", polled.Data.URL)
	assert.Equal(t, 3, polled.Data.Rows)

	assert.Equal(t, http.StatusForbidden, serve(router(h, 3, "user"), http.MethodGet, jobPath).Code)
	assert.Equal(t, http.StatusOK, serve(router(h, 3, "admin"), http.MethodGet, jobPath).Code)
	assert.Equal(t, http.StatusNotFound, serve(router(h, 2, "user"), http.MethodGet, "/api/exports/missing").Code)
}

func TestHandler_NoStorage(t *testing.T) {
	h := NewHandler(&fakeQueue{}, NewStatuses(cache.NewMemory(0)), nil, "en", nil)
	w := serve(router(h, 2, "user"), http.MethodPost, "/api/webcasts/11/useractivity/export")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
