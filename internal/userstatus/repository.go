package userstatus

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/webcast/internal/models"
)

// Repository handles webcast_userstatus and webcast_messages.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a user status repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the user's status for a webcast, or nil when they never attended.
func (r *Repository) Get(ctx context.Context, webcastID, userID int64) (*models.UserStatus, error) {
	const q = `SELECT id, webcast_id, userid, timer_seconds, starttime, endtime
		FROM webcast_userstatus WHERE webcast_id = $1 AND userid = $2`
	var s models.UserStatus
	err := r.pool.QueryRow(ctx, q, webcastID, userID).Scan(&s.ID, &s.WebcastID, &s.UserID, &s.TimerSeconds, &s.StartTime, &s.EndTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Ping records one attendance heartbeat at now and returns the updated status.
func (r *Repository) Ping(ctx context.Context, webcastID, userID, now, maxGap int64) (*models.UserStatus, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	s := models.UserStatus{WebcastID: webcastID, UserID: userID}
	err = tx.QueryRow(ctx,
		`SELECT id, timer_seconds, starttime, endtime FROM webcast_userstatus
		 WHERE webcast_id = $1 AND userid = $2 FOR UPDATE`,
		webcastID, userID).Scan(&s.ID, &s.TimerSeconds, &s.StartTime, &s.EndTime)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	s = Advance(s, now, maxGap)
	err = tx.QueryRow(ctx,
		`INSERT INTO webcast_userstatus (webcast_id, userid, timer_seconds, starttime, endtime)
		 VALUES (@webcastid, @userid, @timer, @start, @end)
		 ON CONFLICT (webcast_id, userid) DO UPDATE
		 SET timer_seconds = EXCLUDED.timer_seconds, starttime = EXCLUDED.starttime, endtime = EXCLUDED.endtime
		 RETURNING id`,
		pgx.NamedArgs{"webcastid": webcastID, "userid": userID, "timer": s.TimerSeconds, "start": s.StartTime, "end": s.EndTime},
	).Scan(&s.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}

// ChatLog returns the user's chat messages in a webcast, oldest first.
func (r *Repository) ChatLog(ctx context.Context, webcastID, userID int64, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, webcast_id, userid, message, timestamp FROM webcast_messages
		 WHERE webcast_id = $1 AND userid = $2 ORDER BY timestamp, id LIMIT $3`,
		webcastID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.WebcastID, &m.UserID, &m.Message, &m.Timestamp); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
