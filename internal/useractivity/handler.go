package useractivity

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/webcast/internal/lang"
	"github.com/aura-webinar/webcast/internal/middleware"
	"github.com/aura-webinar/webcast/internal/models"
	"github.com/aura-webinar/webcast/internal/table"
	"github.com/aura-webinar/webcast/internal/webcasts"
	"github.com/aura-webinar/webcast/pkg/response"
	"github.com/aura-webinar/webcast/pkg/weburl"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

var pages = template.Must(template.ParseFS(templatesFS, "templates/*.gohtml"))

// StatusReader reads a user's attendance and chat.
type StatusReader interface {
	Get(ctx context.Context, webcastID, userID int64) (*models.UserStatus, error)
	ChatLog(ctx context.Context, webcastID, userID int64, limit int) ([]models.ChatMessage, error)
}

// UserReader loads one user.
type UserReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// Handler serves the user activity report and its detail views.
type Handler struct {
	svc     *Service
	status  StatusReader
	users   UserReader
	strings *lang.Bundle
	logger  *zap.Logger
}

// NewHandler creates a report handler.
func NewHandler(svc *Service, status StatusReader, users UserReader, strings *lang.Bundle, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, status: status, users: users, strings: strings, logger: logger}
}

func (h *Handler) viewer(c *gin.Context) Viewer {
	groupID, _ := strconv.ParseInt(c.Query("group"), 10, 64)
	return Viewer{
		UserID:          middleware.UserID(c),
		CanViewIdentity: webcasts.CanViewIdentity(c),
		Strings:         h.strings,
		GroupID:         groupID,
	}
}

// tableRequest reads sort, dir and page from the query string.
func tableRequest(c *gin.Context, perPage int) (table.Request, error) {
	req := table.Request{Sort: c.Query("sort"), Desc: c.Query("dir") == "desc", PerPage: perPage}
	if p := c.Query("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return req, fmt.Errorf("invalid page %q", p)
		}
		req.Page = n
	}
	return req, nil
}

func (h *Handler) fail(c *gin.Context, ref *models.CourseModuleRef, err error) {
	if errors.Is(err, table.ErrUnknownColumn) {
		response.BadRequest(c, err.Error())
		return
	}
	h.logger.Error("user activity", zap.Int64("cmid", ref.CM.ID), zap.Error(err))
	response.Internal(c, "failed to build report")
}

// Page handles GET /mod/webcast/user_activity.php: the report, its CSV download,
// or a per-user detail view when action is set.
func (h *Handler) Page(c *gin.Context) {
	ref, ok := webcasts.CourseModule(c)
	if !ok {
		response.Internal(c, "course module not resolved")
		return
	}
	if action := c.Query("action"); action != "" {
		h.detail(c, ref, action)
		return
	}

	csv := c.Query("download") == "csv"
	perPage := h.svc.PageSize()
	if csv {
		perPage = 0
	}
	req, err := tableRequest(c, perPage)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.Fetch(c.Request.Context(), *ref, h.viewer(c), req)
	if err != nil {
		h.fail(c, ref, err)
		return
	}

	if csv {
		var buf bytes.Buffer
		if err := res.WriteCSV(&buf); err != nil {
			h.fail(c, ref, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="webcast-%d-useractivity.csv"`, ref.Webcast.ID))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
		return
	}

	pageURL := weburl.New(ActivityPath, weburl.P("id", strconv.FormatInt(ref.CM.ID, 10)))
	if g := c.Query("group"); g != "" {
		pageURL.Set("group", g)
	}
	var body bytes.Buffer
	if err := res.WriteHTML(&body, pageURL); err != nil {
		h.fail(c, ref, err)
		return
	}
	download := pageURL.Clone().Set("download", "csv")
	if req.Sort != "" {
		download.Set("sort", req.Sort).Set("dir", c.DefaultQuery("dir", "asc"))
	}
	h.render(c, "page", pageView{
		Lang:        h.strings.Code(),
		Title:       ref.Webcast.Name,
		DownloadURL: download.String(),
		Body:        template.HTML(body.String()),
	})
}

type pageView struct {
	Lang        string
	Title       string
	DownloadURL string
	Body        template.HTML
}

type chatTimeView struct {
	Labels     map[string]string
	Start, End string
	Timer      string
}

type chatLine struct {
	Time string
	Text string
}

type chatLogView struct {
	Labels   map[string]string
	Messages []chatLine
}

func (h *Handler) labels(keys ...string) map[string]string {
	m := make(map[string]string, len(keys))
	for _, k := range keys {
		m[k] = h.strings.Get(k)
	}
	return m
}

func (h *Handler) stamp(ts int64) string {
	if ts <= 0 {
		return h.strings.Get("never")
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05")
}

func (h *Handler) detail(c *gin.Context, ref *models.CourseModuleRef, action string) {
	if action != ActionChatTime && action != ActionChatLog {
		response.BadRequest(c, "unknown action")
		return
	}
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		response.BadRequest(c, "invalid user id")
		return
	}
	ctx := c.Request.Context()
	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}

	var body bytes.Buffer
	var title string
	switch action {
	case ActionChatTime:
		title = h.strings.Get("chattime")
		st, err := h.status.Get(ctx, ref.Webcast.ID, userID)
		if err != nil {
			h.fail(c, ref, err)
			return
		}
		v := chatTimeView{Labels: h.labels("starttime", "endtime", "timer"), Start: h.stamp(0), End: h.stamp(0), Timer: FormatDuration(0)}
		if st != nil {
			v.Start, v.End, v.Timer = h.stamp(st.StartTime), h.stamp(st.EndTime), FormatDuration(st.TimerSeconds)
		}
		err = pages.ExecuteTemplate(&body, "chattime", v)
		if err != nil {
			h.fail(c, ref, err)
			return
		}
	case ActionChatLog:
		title = h.strings.Get("chatlog")
		msgs, err := h.status.ChatLog(ctx, ref.Webcast.ID, userID, 0)
		if err != nil {
			h.fail(c, ref, err)
			return
		}
		v := chatLogView{Labels: h.labels("nothingtodisplay")}
		for _, m := range msgs {
			v.Messages = append(v.Messages, chatLine{Time: h.stamp(m.Timestamp), Text: m.Message})
		}
		if err := pages.ExecuteTemplate(&body, "chatlog", v); err != nil {
			h.fail(c, ref, err)
			return
		}
	}

	h.render(c, "page", pageView{
		Lang:  h.strings.Code(),
		Title: ref.Webcast.Name + ": " + title + ": " + user.FullName(),
		Body:  template.HTML(body.String()),
	})
}

func (h *Handler) render(c *gin.Context, name string, v any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, v); err != nil {
		h.logger.Error("render", zap.String("template", name), zap.Error(err))
		response.Internal(c, "failed to render page")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// JSON handles GET /api/webcasts/:cmid/useractivity.
func (h *Handler) JSON(c *gin.Context) {
	ref, ok := webcasts.CourseModule(c)
	if !ok {
		response.Internal(c, "course module not resolved")
		return
	}
	perPage := h.svc.PageSize()
	if pp := c.Query("per_page"); pp != "" {
		n, err := strconv.Atoi(pp)
		if err != nil || n <= 0 || n > 500 {
			response.BadRequest(c, "invalid per_page")
			return
		}
		perPage = n
	}
	req, err := tableRequest(c, perPage)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.Fetch(c.Request.Context(), *ref, h.viewer(c), req)
	if err != nil {
		h.fail(c, ref, err)
		return
	}
	response.OK(c, res.View())
}
