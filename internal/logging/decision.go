package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// #region schema
const decisionSchema = `
CREATE TABLE IF NOT EXISTS decision_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT NOT NULL,
	iteration    INTEGER NOT NULL,
	decision     TEXT NOT NULL,
	reason       TEXT,
	quality      REAL NOT NULL,
	predicted    REAL NOT NULL,
	deltas_json  TEXT,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decision_log_session ON decision_log(session_id, iteration);
`

// EnsureSchema creates the decision_log table if it does not exist.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(decisionSchema); err != nil {
		return fmt.Errorf("decision log schema: %w", err)
	}
	return nil
}
// #endregion schema

// #region log-decision
// LogDecision writes a decision entry to the decision_log table.
func LogDecision(ctx context.Context, db *sql.DB, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO decision_log (session_id, iteration, decision, reason, quality, predicted, deltas_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.Iteration,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.Quality,
		entry.Predicted,
		nullIfEmpty(entry.DeltasJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}
// #endregion log-decision

// #region list-decisions
// ListDecisions returns the decision trail for one session, oldest first.
func ListDecisions(ctx context.Context, db *sql.DB, sessionID string) ([]DecisionEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT session_id, iteration, decision, reason, quality, predicted, deltas_json, created_at
		 FROM decision_log WHERE session_id = ? ORDER BY iteration, id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var entries []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var reason, deltas sql.NullString
		var createdStr string
		if err := rows.Scan(&e.SessionID, &e.Iteration, &e.Decision, &reason,
			&e.Quality, &e.Predicted, &deltas, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.Reason = reason.String
		e.DeltasJSON = deltas.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
// #endregion list-decisions

// #region decision-log
// DecisionLog binds the decision functions to one database.
type DecisionLog struct {
	db *sql.DB
}

// NewDecisionLog ensures the schema on db and returns a DecisionLog.
func NewDecisionLog(db *sql.DB) (*DecisionLog, error) {
	if err := EnsureSchema(db); err != nil {
		return nil, err
	}
	return &DecisionLog{db: db}, nil
}

func (l *DecisionLog) Log(ctx context.Context, entry DecisionEntry) error {
	return LogDecision(ctx, l.db, entry)
}

func (l *DecisionLog) List(ctx context.Context, sessionID string) ([]DecisionEntry, error) {
	return ListDecisions(ctx, l.db, sessionID)
}
// #endregion decision-log

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
