// Package audit records authentication events to Postgres.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	ActionSignup         = "signup"
	ActionLogin          = "login"
	ActionResetRequested = "password_reset_requested"
	ActionReset          = "password_reset"
	ActionPasswordChange = "password_change"
	ActionDeactivate     = "deactivate"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type Event struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Action  string    `json:"action"`
	UserID  string    `json:"userId,omitempty"`
	Email   string    `json:"email,omitempty"`
	Outcome string    `json:"outcome"`
	Detail  string    `json:"detail,omitempty"`
}

// Recorder writes to the auth_events table created by database.InitPostgresTables.
type Recorder struct {
	db  *sql.DB
	now func() time.Time
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// Record inserts e, filling ID and At when unset.
func (r *Recorder) Record(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_events (id, created_at, action, user_id, email, outcome, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.At, e.Action, nullable(e.UserID), nullable(e.Email), e.Outcome, nullable(e.Detail))
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

// Recent returns the newest events first, optionally for a single user.
func (r *Recorder) Recent(ctx context.Context, userID string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := `SELECT id, created_at, action, user_id, email, outcome, detail FROM auth_events`
	args := []interface{}{}
	if userID != "" {
		q += ` WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, userID, limit)
	} else {
		q += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query auth events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e                   Event
			user, email, detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.At, &e.Action, &user, &email, &e.Outcome, &detail); err != nil {
			return nil, fmt.Errorf("scan auth event: %w", err)
		}
		e.UserID, e.Email, e.Detail = user.String, email.String, detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
