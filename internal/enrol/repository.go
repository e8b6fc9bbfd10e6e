package enrol

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/webcast/internal/models"
)

// Repository reads enrolment instances and user enrolments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an enrolment repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InstancesByCourse returns the course's enrolment instances ordered by sortorder.
// With enabledOnly false every instance is returned; status is then filtered by the caller.
func (r *Repository) InstancesByCourse(ctx context.Context, courseID int64, enabledOnly bool) ([]models.EnrolInstance, error) {
	q := `SELECT id, courseid, enrol, status FROM enrol WHERE courseid = $1`
	args := []interface{}{courseID}
	if enabledOnly {
		q += ` AND status = $2`
		args = append(args, InstanceEnabled)
	}
	rows, err := r.pool.Query(ctx, q+` ORDER BY sortorder, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.EnrolInstance
	for rows.Next() {
		var e models.EnrolInstance
		if err := rows.Scan(&e.ID, &e.CourseID, &e.Enrol, &e.Status); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// UserEnrolments returns every enrolment of a user in a course with the instance status attached.
func (r *Repository) UserEnrolments(ctx context.Context, courseID, userID int64) ([]models.UserEnrolment, error) {
	const q = `SELECT ue.id, ue.enrolid, ue.userid, ue.status, ue.timestart, ue.timeend, e.status
		FROM user_enrolments ue
		INNER JOIN enrol e ON e.id = ue.enrolid
		WHERE e.courseid = $1 AND ue.userid = $2`
	rows, err := r.pool.Query(ctx, q, courseID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserEnrolment
	for rows.Next() {
		var ue models.UserEnrolment
		if err := rows.Scan(&ue.ID, &ue.EnrolID, &ue.UserID, &ue.Status, &ue.TimeStart, &ue.TimeEnd, &ue.InstanceStatus); err != nil {
			return nil, err
		}
		list = append(list, ue)
	}
	return list, rows.Err()
}
