package enrol

import (
	"time"

	"github.com/aura-webinar/webcast/internal/models"
)

// User enrolment status values.
const (
	StatusActive    = 0
	StatusSuspended = 1
)

// Enrolment instance status values.
const (
	InstanceEnabled  = 0
	InstanceDisabled = 1
)

// DefaultRoundStep is the granularity of the "now" snapshot bound into report queries.
const DefaultRoundStep = 100 * time.Second

// RoundNow floors t to a multiple of step and returns unix seconds.
// A shared, coarse snapshot keeps the statement text and args identical across nearby requests.
func RoundNow(t time.Time, step time.Duration) int64 {
	s := int64(step / time.Second)
	if s <= 1 {
		return t.Unix()
	}
	now := t.Unix()
	return now - now%s
}

// IsActive reports whether an enrolment grants access at now (unix seconds).
// It mirrors the report's SQL window: active status, enabled instance,
// started strictly before now and either open-ended or ending after now.
func IsActive(ue models.UserEnrolment, now int64) bool {
	if ue.Status != StatusActive || ue.InstanceStatus != InstanceEnabled {
		return false
	}
	if ue.TimeStart >= now {
		return false
	}
	return ue.TimeEnd == 0 || ue.TimeEnd > now
}

// AnyActive reports whether at least one of the enrolments is active at now.
func AnyActive(list []models.UserEnrolment, now int64) bool {
	for _, ue := range list {
		if IsActive(ue, now) {
			return true
		}
	}
	return false
}
