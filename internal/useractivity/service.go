package useractivity

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/webcast/internal/enrol"
	"github.com/aura-webinar/webcast/internal/lang"
	"github.com/aura-webinar/webcast/internal/models"
	"github.com/aura-webinar/webcast/internal/table"
	"github.com/aura-webinar/webcast/pkg/cache"
	"github.com/aura-webinar/webcast/pkg/metrics"
)

// UniqueID is the table id of the report for one course module.
func UniqueID(cmid int64) string {
	return "webcast-useractivity-" + strconv.FormatInt(cmid, 10)
}

// ServiceConfig holds the report settings from configuration.
type ServiceConfig struct {
	Identity  []string
	RoundStep time.Duration
	PageSize  int
	// Base is the site root used in generated links.
	Base string
}

// ServiceDeps are the Service collaborators. Cache, Metrics, Logger and Now are optional.
type ServiceDeps struct {
	DB        table.Querier
	Instances InstanceLookup
	Cache     cache.Cache
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Now       func() time.Time
}

// Viewer is who the report is built for.
type Viewer struct {
	UserID          int64
	CanViewIdentity bool
	Strings         lang.Strings
	GroupID         int64
}

// Service builds and fetches user activity reports.
type Service struct {
	cfg  ServiceConfig
	deps ServiceDeps
}

// NewService creates a report service.
func NewService(cfg ServiceConfig, deps ServiceDeps) *Service {
	if cfg.RoundStep <= 0 {
		cfg.RoundStep = enrol.DefaultRoundStep
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 30
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{cfg: cfg, deps: deps}
}

// PageSize is the configured rows per page.
func (s *Service) PageSize() int { return s.cfg.PageSize }

// Report builds the report source for a course module.
func (s *Service) Report(ctx context.Context, ref models.CourseModuleRef, v Viewer) (*Report, error) {
	return New(ctx, UniqueID(ref.CM.ID), ref.Webcast, Options{
		Identity:        s.cfg.Identity,
		CanViewIdentity: v.CanViewIdentity,
		RoundStep:       s.cfg.RoundStep,
		GroupID:         v.GroupID,
	}, Deps{Instances: s.deps.Instances, Now: s.deps.Now})
}

// Env is the formatter environment for a course module and viewer.
func (s *Service) Env(ref models.CourseModuleRef, v Viewer) table.Env {
	return table.Env{
		CourseModuleID: ref.CM.ID,
		CourseID:       ref.Webcast.Course,
		ViewerID:       v.UserID,
		Strings:        v.Strings,
		Base:           s.cfg.Base,
	}
}

// Fetch builds the report and returns the requested page.
func (s *Service) Fetch(ctx context.Context, ref models.CourseModuleRef, v Viewer, req table.Request) (*table.Result, error) {
	r, err := s.Report(ctx, ref, v)
	if err != nil {
		return nil, err
	}
	opts := TableOptions()
	opts.Cache = s.deps.Cache
	opts.CountTTL = s.cfg.RoundStep
	opts.Metrics = s.deps.Metrics
	opts.Logger = s.deps.Logger
	res, err := table.New(r, opts).Fetch(ctx, s.deps.DB, s.Env(ref, v), req)
	if err != nil {
		s.deps.Logger.Error("user activity fetch",
			zap.Int64("cmid", ref.CM.ID),
			zap.Int64("webcast_id", ref.Webcast.ID),
			zap.Error(err),
		)
		return nil, err
	}
	return res, nil
}
