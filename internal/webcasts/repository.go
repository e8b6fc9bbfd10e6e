// Package webcasts resolves webcast course modules and guards access to their reports.
package webcasts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/webcast/internal/models"
)

// ErrNotFound is returned when a course module or webcast does not exist.
var ErrNotFound = errors.New("webcast not found")

// Repository handles webcast and course module lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a webcast repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByCourseModule returns the course module and its webcast.
func (r *Repository) GetByCourseModule(ctx context.Context, cmid int64) (*models.CourseModuleRef, error) {
	const q = `SELECT cm.id, cm.course, cm.instance, w.id, w.course, w.name, w.broadcastkey, w.is_ended, w.timeopen
		FROM course_modules cm
		JOIN webcast w ON w.id = cm.instance
		WHERE cm.id = $1 AND cm.module = 'webcast'`
	var ref models.CourseModuleRef
	err := r.pool.QueryRow(ctx, q, cmid).Scan(&ref.CM.ID, &ref.CM.Course, &ref.CM.Instance,
		&ref.Webcast.ID, &ref.Webcast.Course, &ref.Webcast.Name, &ref.Webcast.Broadcast, &ref.Webcast.IsEnded, &ref.Webcast.TimeOpen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: course module %d", ErrNotFound, cmid)
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// CourseRoles returns the role shortnames the user holds in the course.
func (r *Repository) CourseRoles(ctx context.Context, courseID, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT roleshortname FROM role_assignments WHERE courseid = $1 AND userid = $2 ORDER BY roleshortname`,
		courseID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
