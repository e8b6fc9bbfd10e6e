package models

// Webcast is one webcast activity instance inside a course.
type Webcast struct {
	ID        int64  `json:"id"`
	Course    int64  `json:"course"`
	Name      string `json:"name"`
	Broadcast string `json:"broadcastkey,omitempty"`
	IsEnded   bool   `json:"is_ended"`
	TimeOpen  int64  `json:"timeopen"`
}

// CourseModule places an activity instance in a course.
type CourseModule struct {
	ID       int64 `json:"id"`
	Course   int64 `json:"course"`
	Instance int64 `json:"instance"`
}

// CourseModuleRef is a course module resolved together with its webcast.
type CourseModuleRef struct {
	CM      CourseModule `json:"cm"`
	Webcast Webcast      `json:"webcast"`
}
