package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/webcast/internal/lang"
	"github.com/aura-webinar/webcast/internal/models"
	"github.com/aura-webinar/webcast/internal/table"
	"github.com/aura-webinar/webcast/internal/useractivity"
	"github.com/aura-webinar/webcast/pkg/metrics"
	"github.com/aura-webinar/webcast/pkg/queue"
	"github.com/aura-webinar/webcast/pkg/storage"
)

// CourseModules resolves a course module to its webcast.
type CourseModules interface {
	GetByCourseModule(ctx context.Context, cmid int64) (*models.CourseModuleRef, error)
}

// Reports fetches a report page.
type Reports interface {
	Fetch(ctx context.Context, ref models.CourseModuleRef, v useractivity.Viewer, req table.Request) (*table.Result, error)
}

// Uploader stores a finished export.
type Uploader interface {
	Upload(ctx context.Context, key, contentType, filename string, body io.Reader) error
}

// JobQueue is the queue surface the worker loop needs.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (dead bool, err error)
}

// Processor runs report export jobs: fetch every row, write CSV, upload.
type Processor struct {
	modules  CourseModules
	reports  Reports
	uploader Uploader
	queue    JobQueue
	statuses *Statuses
	metrics  *metrics.Metrics
	logger   *zap.Logger
	backoff  time.Duration
}

// NewProcessor creates an export processor.
func NewProcessor(modules CourseModules, reports Reports, uploader Uploader, q JobQueue, statuses *Statuses, m *metrics.Metrics, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		modules:  modules,
		reports:  reports,
		uploader: uploader,
		queue:    q,
		statuses: statuses,
		metrics:  m,
		logger:   logger,
		backoff:  queue.RetryBackoff,
	}
}

// Process executes one export job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.ExportPayload()
	if err != nil {
		return err
	}
	st := Status{JobID: job.ID, State: StateRunning, CourseModuleID: payload.CourseModuleID, ViewerID: payload.ViewerID, Attempt: job.Attempt}
	p.putStatus(ctx, st)

	ref, err := p.modules.GetByCourseModule(ctx, payload.CourseModuleID)
	if err != nil {
		return fmt.Errorf("course module %d: %w", payload.CourseModuleID, err)
	}
	strings, err := lang.Load(payload.Lang)
	if err != nil {
		p.logger.Warn("export language", zap.String("lang", payload.Lang), zap.Error(err))
		if strings, err = lang.Load(lang.DefaultLanguage); err != nil {
			return err
		}
	}
	res, err := p.reports.Fetch(ctx, *ref, useractivity.Viewer{
		UserID:          payload.ViewerID,
		CanViewIdentity: payload.CanViewIdentity,
		Strings:         strings,
		GroupID:         payload.GroupID,
	}, table.Request{Sort: payload.Sort, Desc: payload.Desc})
	if err != nil {
		return fmt.Errorf("fetch report: %w", err)
	}

	var buf bytes.Buffer
	if err := res.WriteCSV(&buf); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	key := storage.ExportKey(ref.Webcast.ID, job.ID)
	filename := fmt.Sprintf("webcast-%d-useractivity.csv", ref.Webcast.ID)
	if err := p.uploader.Upload(ctx, key, "text/csv; charset=utf-8", filename, &buf); err != nil {
		return fmt.Errorf("upload export: %w", err)
	}

	st.State, st.Key, st.Rows = StateDone, key, len(res.Rows)
	p.putStatus(ctx, st)
	p.logger.Info("export completed", zap.String("job_id", job.ID), zap.String("s3_key", key), zap.Int("rows", st.Rows))
	return nil
}

func (p *Processor) putStatus(ctx context.Context, st Status) {
	if err := p.statuses.Put(ctx, st); err != nil {
		p.logger.Warn("export status", zap.String("job_id", st.JobID), zap.String("state", st.State), zap.Error(err))
	}
}

// handle processes one job and schedules a retry or dead-letters it on failure.
// It reports whether the job failed.
func (p *Processor) handle(ctx context.Context, job *queue.Job) bool {
	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := p.Process(ctx, job)
	if err == nil {
		p.metrics.ExportJob(StateDone)
		return false
	}
	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
	payload, _ := job.ExportPayload()
	st := Status{JobID: job.ID, CourseModuleID: payload.CourseModuleID, ViewerID: payload.ViewerID, Error: err.Error()}

	dead, reErr := p.queue.Retry(ctx, job)
	if reErr != nil {
		p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
		dead = true
	}
	st.Attempt = job.Attempt
	if dead {
		st.State = StateFailed
		p.metrics.ExportJob(StateFailed)
	} else {
		st.State = StateQueued
		p.metrics.ExportJob("retried")
	}
	p.putStatus(ctx, st)
	return true
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("export worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		if p.handle(ctx, job) {
			p.sleep(ctx)
		}
	}
}

func (p *Processor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
