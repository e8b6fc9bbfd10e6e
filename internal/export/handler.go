package export

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/webcast/internal/middleware"
	"github.com/aura-webinar/webcast/internal/webcasts"
	"github.com/aura-webinar/webcast/pkg/queue"
	"github.com/aura-webinar/webcast/pkg/response"
)

// Enqueuer accepts new jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// Presigner issues download URLs for finished exports.
type Presigner interface {
	PresignDownload(ctx context.Context, key string) (string, error)
}

// Handler handles export requests and status polling.
type Handler struct {
	queue     Enqueuer
	statuses  *Statuses
	presigner Presigner
	lang      string
	logger    *zap.Logger
}

// NewHandler creates an export handler. A nil presigner means storage is not
// configured and new exports are refused.
func NewHandler(q Enqueuer, statuses *Statuses, presigner Presigner, lang string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{queue: q, statuses: statuses, presigner: presigner, lang: lang, logger: logger}
}

// StatusResponse is the body of GET /api/exports/:job.
type StatusResponse struct {
	JobID string `json:"job_id"`
	State string `json:"state"`
	CMID  int64  `json:"cmid"`
	Rows  int    `json:"rows,omitempty"`
	Error string `json:"error,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Create handles POST /api/webcasts/:cmid/useractivity/export.
func (h *Handler) Create(c *gin.Context) {
	if h.presigner == nil {
		response.ServiceUnavailable(c, "export storage is not configured")
		return
	}
	ref, ok := webcasts.CourseModule(c)
	if !ok {
		response.Internal(c, "course module not resolved")
		return
	}
	groupID, _ := strconv.ParseInt(c.Query("group"), 10, 64)
	payload := queue.ExportPayload{
		CourseModuleID:  ref.CM.ID,
		ViewerID:        middleware.UserID(c),
		CanViewIdentity: webcasts.CanViewIdentity(c),
		Sort:            c.Query("sort"),
		Desc:            c.Query("dir") == "desc",
		GroupID:         groupID,
		Lang:            h.lang,
	}
	job, err := queue.NewExportJob(payload)
	if err != nil {
		response.Internal(c, "failed to create export job")
		return
	}
	ctx := c.Request.Context()
	st := Status{JobID: job.ID, State: StateQueued, CourseModuleID: ref.CM.ID, ViewerID: payload.ViewerID}
	if err := h.statuses.Put(ctx, st); err != nil {
		h.logger.Error("export status", zap.String("job_id", job.ID), zap.Error(err))
		response.Internal(c, "failed to create export job")
		return
	}
	if err := h.queue.Enqueue(ctx, job); err != nil {
		h.logger.Error("enqueue export", zap.String("job_id", job.ID), zap.Int64("cmid", ref.CM.ID), zap.Error(err))
		response.Internal(c, "failed to enqueue export")
		return
	}
	response.Accepted(c, StatusResponse{JobID: job.ID, State: StateQueued, CMID: ref.CM.ID})
}

// Get handles GET /api/exports/:job.
func (h *Handler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	st, ok, err := h.statuses.Get(ctx, c.Param("job"))
	if err != nil {
		h.logger.Error("export status", zap.String("job_id", c.Param("job")), zap.Error(err))
		response.Internal(c, "failed to load export status")
		return
	}
	if !ok {
		response.NotFound(c, "export not found")
		return
	}
	if st.ViewerID != middleware.UserID(c) && !middleware.IsAdmin(c) {
		response.Forbidden(c, "not your export")
		return
	}
	out := StatusResponse{JobID: st.JobID, State: st.State, CMID: st.CourseModuleID, Rows: st.Rows, Error: st.Error}
	if st.State == StateDone && h.presigner != nil {
		url, err := h.presigner.PresignDownload(ctx, st.Key)
		if err != nil {
			h.logger.Error("presign export", zap.String("job_id", st.JobID), zap.Error(err))
			response.Internal(c, "failed to sign download url")
			return
		}
		out.URL = url
	}
	response.OK(c, out)
}
