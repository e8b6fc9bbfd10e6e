package enrol

import (
	"context"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/aura-webinar/webcast/internal/models"
)

// InstanceLister is the lookup CachedInstances wraps.
type InstanceLister interface {
	InstancesByCourse(ctx context.Context, courseID int64, enabledOnly bool) ([]models.EnrolInstance, error)
}

// CachedInstances memoises instance id lookups per course in process memory.
type CachedInstances struct {
	src   InstanceLister
	store *gocache.Cache
}

// NewCachedInstances wraps src with a cache whose entries live for ttl.
func NewCachedInstances(src InstanceLister, ttl time.Duration) *CachedInstances {
	return &CachedInstances{src: src, store: gocache.New(ttl, 2*ttl)}
}

// InstanceIDs returns the ids of every enrolment instance in the course, enabled or not.
func (c *CachedInstances) InstanceIDs(ctx context.Context, courseID int64) ([]int64, error) {
	key := strconv.FormatInt(courseID, 10)
	if v, ok := c.store.Get(key); ok {
		return v.([]int64), nil
	}
	list, err := c.src.InstancesByCourse(ctx, courseID, false)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.ID)
	}
	c.store.SetDefault(key, ids)
	return ids, nil
}
