package enrol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/webcast/internal/models"
)

type fakeLister struct {
	calls     int
	instances []models.EnrolInstance
	err       error
	enabled   []bool
}

func (f *fakeLister) InstancesByCourse(_ context.Context, _ int64, enabledOnly bool) ([]models.EnrolInstance, error) {
	f.calls++
	f.enabled = append(f.enabled, enabledOnly)
	return f.instances, f.err
}

func TestCachedInstances_MemoisesPerCourse(t *testing.T) {
	src := &fakeLister{instances: []models.EnrolInstance{{ID: 3, Status: InstanceEnabled}, {ID: 7, Status: InstanceDisabled}}}
	c := NewCachedInstances(src, time.Minute)

	ids, err := c.InstanceIDs(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7}, ids)

	ids, err = c.InstanceIDs(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7}, ids)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, []bool{false}, src.enabled)

	_, err = c.InstanceIDs(context.Background(), 43)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestCachedInstances_EmptyCourse(t *testing.T) {
	c := NewCachedInstances(&fakeLister{}, time.Minute)
	ids, err := c.InstanceIDs(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestCachedInstances_ErrorNotCached(t *testing.T) {
	src := &fakeLister{err: errors.New("db down")}
	c := NewCachedInstances(src, time.Minute)
	_, err := c.InstanceIDs(context.Background(), 1)
	require.Error(t, err)
	_, err = c.InstanceIDs(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, 2, src.calls)
}
