package userstatus

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/webcast/internal/middleware"
	"github.com/aura-webinar/webcast/internal/models"
	"github.com/aura-webinar/webcast/internal/webcasts"
)

func TestAdvance(t *testing.T) {
	s := Advance(models.UserStatus{}, 1000, 90)
	assert.Equal(t, models.UserStatus{StartTime: 1000, EndTime: 1000}, s)

	s = Advance(s, 1060, 90)
	assert.Equal(t, int64(60), s.TimerSeconds)
	assert.Equal(t, int64(1060), s.EndTime)

	// A pause longer than the gap moves the end time but adds nothing.
	s = Advance(s, 2000, 90)
	assert.Equal(t, int64(60), s.TimerSeconds)
	assert.Equal(t, int64(2000), s.EndTime)

	// Out-of-order pings never move time backwards.
	s = Advance(s, 1990, 90)
	assert.Equal(t, int64(60), s.TimerSeconds)
	assert.Equal(t, int64(2000), s.EndTime)
	assert.Equal(t, int64(1000), s.StartTime)
}

type fakePinger struct {
	calls []int64
	err   error
}

func (f *fakePinger) Ping(_ context.Context, webcastID, userID, now, _ int64) (*models.UserStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, userID)
	return &models.UserStatus{WebcastID: webcastID, UserID: userID, StartTime: now, EndTime: now}, nil
}

type fakeEnrolments map[int64][]models.UserEnrolment

func (f fakeEnrolments) UserEnrolments(_ context.Context, _, userID int64) ([]models.UserEnrolment, error) {
	return f[userID], nil
}

func serve(h *Handler, ref *models.CourseModuleRef, userID int64) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/ping", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(webcasts.ContextCourseModule, ref)
	}, h.Ping)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ping", nil))
	return w
}

func TestPing(t *testing.T) {
	now := time.Unix(10_000, 0)
	enrolments := fakeEnrolments{
		1: {{UserID: 1, Status: 0, TimeStart: 100}},
		2: {{UserID: 2, Status: 1, TimeStart: 100}},
		3: {{UserID: 3, TimeStart: 100, TimeEnd: 9_000}},
	}
	store := &fakePinger{}
	h := NewHandler(store, enrolments, 0, nil)
	h.now = func() time.Time { return now }
	ref := &models.CourseModuleRef{CM: models.CourseModule{ID: 11}, Webcast: models.Webcast{ID: 5, Course: 3}}

	assert.Equal(t, http.StatusOK, serve(h, ref, 1).Code)
	assert.Equal(t, http.StatusForbidden, serve(h, ref, 2).Code, "suspended")
	assert.Equal(t, http.StatusForbidden, serve(h, ref, 3).Code, "expired")
	assert.Equal(t, http.StatusForbidden, serve(h, ref, 4).Code, "not enrolled")
	require.Equal(t, []int64{1}, store.calls)

	ended := *ref
	ended.Webcast.IsEnded = true
	assert.Equal(t, http.StatusConflict, serve(h, &ended, 1).Code)

	store.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, serve(h, ref, 1).Code)
}
