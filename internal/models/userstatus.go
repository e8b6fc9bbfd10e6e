package models

// UserStatus is the per-user attendance record of one webcast.
type UserStatus struct {
	ID           int64 `json:"id"`
	WebcastID    int64 `json:"webcast_id"`
	UserID       int64 `json:"userid"`
	TimerSeconds int64 `json:"timer_seconds"`
	StartTime    int64 `json:"starttime"`
	EndTime      int64 `json:"endtime"`
}

// ChatMessage is one chat line a user posted during a webcast.
type ChatMessage struct {
	ID        int64  `json:"id"`
	WebcastID int64  `json:"webcast_id"`
	UserID    int64  `json:"userid"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
