package models

// EnrolInstance is a configured enrolment method of a course.
type EnrolInstance struct {
	ID       int64  `json:"id"`
	CourseID int64  `json:"courseid"`
	Enrol    string `json:"enrol"`
	Status   int    `json:"status"`
}

// UserEnrolment is a user's enrolment through one instance, joined with the instance status.
type UserEnrolment struct {
	ID             int64 `json:"id"`
	EnrolID        int64 `json:"enrolid"`
	UserID         int64 `json:"userid"`
	Status         int   `json:"status"`
	TimeStart      int64 `json:"timestart"`
	TimeEnd        int64 `json:"timeend"`
	InstanceStatus int   `json:"instance_status"`
}
