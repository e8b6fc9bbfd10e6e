package userstatus

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/webcast/internal/enrol"
	"github.com/aura-webinar/webcast/internal/middleware"
	"github.com/aura-webinar/webcast/internal/models"
	"github.com/aura-webinar/webcast/internal/webcasts"
	"github.com/aura-webinar/webcast/pkg/response"
)

// Pinger stores heartbeats.
type Pinger interface {
	Ping(ctx context.Context, webcastID, userID, now, maxGap int64) (*models.UserStatus, error)
}

// Enrolments lists a user's enrolments in a course.
type Enrolments interface {
	UserEnrolments(ctx context.Context, courseID, userID int64) ([]models.UserEnrolment, error)
}

// Handler handles POST /api/webcasts/:cmid/status/ping.
type Handler struct {
	store  Pinger
	enrol  Enrolments
	maxGap int64
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates an attendance handler. maxGap <= 0 uses DefaultMaxGap.
func NewHandler(store Pinger, enrolments Enrolments, maxGap int64, logger *zap.Logger) *Handler {
	if maxGap <= 0 {
		maxGap = DefaultMaxGap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, enrol: enrolments, maxGap: maxGap, now: time.Now, logger: logger}
}

// Ping records attendance for the authenticated, actively enrolled user.
func (h *Handler) Ping(c *gin.Context) {
	ref, ok := webcasts.CourseModule(c)
	if !ok {
		response.Internal(c, "course module not resolved")
		return
	}
	if ref.Webcast.IsEnded {
		response.Conflict(c, "webcast has ended")
		return
	}
	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	now := h.now().Unix()

	list, err := h.enrol.UserEnrolments(ctx, ref.Webcast.Course, userID)
	if err != nil {
		h.logger.Error("user enrolments", zap.Int64("course_id", ref.Webcast.Course), zap.Int64("user_id", userID), zap.Error(err))
		response.Internal(c, "failed to check enrolment")
		return
	}
	if !enrol.AnyActive(list, now) {
		response.Forbidden(c, "not enrolled in this course")
		return
	}

	status, err := h.store.Ping(ctx, ref.Webcast.ID, userID, now, h.maxGap)
	if err != nil {
		h.logger.Error("attendance ping", zap.Int64("webcast_id", ref.Webcast.ID), zap.Int64("user_id", userID), zap.Error(err))
		response.Internal(c, "failed to record attendance")
		return
	}
	response.OK(c, status)
}
