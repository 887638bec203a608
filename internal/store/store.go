package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS refinement_records (
	id                    TEXT PRIMARY KEY,
	session_id            TEXT NOT NULL,
	iteration             INTEGER NOT NULL,
	original_prompt       TEXT NOT NULL,
	refined_prompt        TEXT NOT NULL,
	quality_score         REAL NOT NULL,
	predicted_score       REAL NOT NULL,
	clarity_score         REAL NOT NULL,
	relevance_score       REAL NOT NULL,
	specificity_score     REAL NOT NULL,
	completeness_score    REAL NOT NULL,
	method                TEXT NOT NULL,
	feedback              TEXT,
	features_json         TEXT NOT NULL,
	converged             INTEGER NOT NULL DEFAULT 0,
	goals_json            TEXT,
	convergence_threshold REAL NOT NULL,
	max_iterations        INTEGER NOT NULL,
	prompt_tokens         INTEGER NOT NULL DEFAULT 0,
	created_at            TEXT NOT NULL,
	UNIQUE (session_id, iteration)
);

CREATE TABLE IF NOT EXISTS regression_metrics (
	session_id          TEXT PRIMARY KEY,
	method              TEXT NOT NULL,
	mse                 REAL NOT NULL,
	rmse                REAL NOT NULL,
	mae                 REAL NOT NULL,
	r_squared           REAL NOT NULL,
	training_data_size  INTEGER NOT NULL,
	status              TEXT NOT NULL,
	importance_json     TEXT,
	calculated_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_session ON refinement_records(session_id, iteration);
CREATE INDEX IF NOT EXISTS idx_metrics_method ON regression_metrics(method);
`
// #endregion schema

// #region store-struct
// Store persists refinement records and session metrics in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations. The pool is limited to
// one connection so ":memory:" databases stay shared and writers never race
// for the file lock.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("pragma busy: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (weights, logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region append-record
// AppendRecord inserts one iteration record. ID and CreatedAt are filled when
// empty.
func (s *Store) AppendRecord(ctx context.Context, rec *RefinementRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	featJSON, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	var goalsPtr interface{}
	if len(rec.Goals) > 0 {
		goalsJSON, err := json.Marshal(rec.Goals)
		if err != nil {
			return fmt.Errorf("marshal goals: %w", err)
		}
		goalsPtr = string(goalsJSON)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO refinement_records (id, session_id, iteration, original_prompt, refined_prompt,
			quality_score, predicted_score, clarity_score, relevance_score, specificity_score,
			completeness_score, method, feedback, features_json, converged, goals_json,
			convergence_threshold, max_iterations, prompt_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Iteration, rec.OriginalPrompt, rec.RefinedPrompt,
		rec.QualityScore, rec.PredictedScore, rec.ClarityScore, rec.RelevanceScore, rec.SpecificityScore,
		rec.CompletenessScore, rec.Method, rec.Feedback, string(featJSON), boolInt(rec.Converged), goalsPtr,
		rec.ConvergenceThreshold, rec.MaxIterations, rec.PromptTokens, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}
// #endregion append-record

// #region mark-converged
// MarkConverged flips the convergence flag on a session's terminal record.
func (s *Store) MarkConverged(ctx context.Context, sessionID string, iteration int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE refinement_records SET converged = 1 WHERE session_id = ? AND iteration = ?`,
		sessionID, iteration)
	if err != nil {
		return fmt.Errorf("mark converged: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark converged: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("mark converged %s/%d: %w", sessionID, iteration, sql.ErrNoRows)
	}
	return nil
}
// #endregion mark-converged

// #region record-queries
const recordColumns = `id, session_id, iteration, original_prompt, refined_prompt,
	quality_score, predicted_score, clarity_score, relevance_score, specificity_score,
	completeness_score, method, feedback, features_json, converged, goals_json,
	convergence_threshold, max_iterations, prompt_tokens, created_at`

// SessionRecords returns one session's records ordered by iteration.
func (s *Store) SessionRecords(ctx context.Context, sessionID string) ([]RefinementRecord, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM refinement_records WHERE session_id = ? ORDER BY iteration`, sessionID)
}

// AllRecords returns every record in insertion order. This is the historical
// dataset the predictors train on.
func (s *Store) AllRecords(ctx context.Context) ([]RefinementRecord, error) {
	return s.queryRecords(ctx, `SELECT `+recordColumns+` FROM refinement_records ORDER BY rowid`)
}

// ConvergedRecords returns the terminal records of converged sessions.
func (s *Store) ConvergedRecords(ctx context.Context) ([]RefinementRecord, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM refinement_records WHERE converged = 1 ORDER BY rowid`)
}

// HighQuality returns records scoring at least minScore, best first.
func (s *Store) HighQuality(ctx context.Context, minScore float64) ([]RefinementRecord, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM refinement_records WHERE quality_score >= ?
		 ORDER BY quality_score DESC, rowid`, minScore)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]RefinementRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []RefinementRecord
	for rows.Next() {
		var rec RefinementRecord
		var feedback, goalsJSON sql.NullString
		var featJSON, createdStr string
		var converged int

		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Iteration, &rec.OriginalPrompt, &rec.RefinedPrompt,
			&rec.QualityScore, &rec.PredictedScore, &rec.ClarityScore, &rec.RelevanceScore, &rec.SpecificityScore,
			&rec.CompletenessScore, &rec.Method, &feedback, &featJSON, &converged, &goalsJSON,
			&rec.ConvergenceThreshold, &rec.MaxIterations, &rec.PromptTokens, &createdStr); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Feedback = feedback.String
		rec.Converged = converged != 0
		if err := json.Unmarshal([]byte(featJSON), &rec.Features); err != nil {
			return nil, fmt.Errorf("unmarshal features: %w", err)
		}
		if goalsJSON.Valid {
			if err := json.Unmarshal([]byte(goalsJSON.String), &rec.Goals); err != nil {
				return nil, fmt.Errorf("unmarshal goals: %w", err)
			}
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion record-queries

// #region delete-session
// DeleteSession removes a session's records and metrics atomically and
// returns the number of records deleted.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM refinement_records WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM regression_metrics WHERE session_id = ?`, sessionID); err != nil {
		return 0, fmt.Errorf("delete metrics: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return res.RowsAffected()
}
// #endregion delete-session

// #region helpers
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
// #endregion helpers
