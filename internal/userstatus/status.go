// Package userstatus records webcast attendance: when a user was first and last
// seen and how long they stayed.
package userstatus

import (
	"github.com/aura-webinar/webcast/internal/models"
)

// DefaultMaxGap is the longest pause between pings still counted as attendance.
const DefaultMaxGap int64 = 90

// Advance applies one heartbeat at now to the status. The first ping sets the
// start time; later pings add the elapsed time when it is within maxGap.
func Advance(s models.UserStatus, now, maxGap int64) models.UserStatus {
	if s.StartTime == 0 {
		s.StartTime = now
		s.EndTime = now
		return s
	}
	if gap := now - s.EndTime; gap > 0 && gap <= maxGap {
		s.TimerSeconds += gap
	}
	if now > s.EndTime {
		s.EndTime = now
	}
	return s
}
