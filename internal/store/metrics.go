package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region save-metrics
// SaveMetrics stores (or replaces) the metrics row for a session.
func (s *Store) SaveMetrics(ctx context.Context, m RegressionMetrics) error {
	if m.CalculatedAt.IsZero() {
		m.CalculatedAt = time.Now().UTC()
	}
	var importancePtr interface{}
	if len(m.FeatureImportance) > 0 {
		b, err := json.Marshal(m.FeatureImportance)
		if err != nil {
			return fmt.Errorf("marshal importance: %w", err)
		}
		importancePtr = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO regression_metrics (session_id, method, mse, rmse, mae, r_squared,
			training_data_size, status, importance_json, calculated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			method = excluded.method, mse = excluded.mse, rmse = excluded.rmse, mae = excluded.mae,
			r_squared = excluded.r_squared, training_data_size = excluded.training_data_size,
			status = excluded.status, importance_json = excluded.importance_json,
			calculated_at = excluded.calculated_at`,
		m.SessionID, m.Method, m.MSE, m.RMSE, m.MAE, m.RSquared,
		m.TrainingDataSize, m.Status, importancePtr, m.CalculatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	return nil
}
// #endregion save-metrics

// #region session-metrics
// SessionMetrics returns the metrics row for a session.
func (s *Store) SessionMetrics(ctx context.Context, sessionID string) (RegressionMetrics, error) {
	var m RegressionMetrics
	var importance sql.NullString
	var calcStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, method, mse, rmse, mae, r_squared, training_data_size, status,
			importance_json, calculated_at
		 FROM regression_metrics WHERE session_id = ?`, sessionID,
	).Scan(&m.SessionID, &m.Method, &m.MSE, &m.RMSE, &m.MAE, &m.RSquared,
		&m.TrainingDataSize, &m.Status, &importance, &calcStr)
	if err != nil {
		return RegressionMetrics{}, fmt.Errorf("get metrics %s: %w", sessionID, err)
	}
	if importance.Valid {
		if err := json.Unmarshal([]byte(importance.String), &m.FeatureImportance); err != nil {
			return RegressionMetrics{}, fmt.Errorf("unmarshal importance: %w", err)
		}
	}
	m.CalculatedAt, _ = time.Parse(time.RFC3339Nano, calcStr)
	return m, nil
}
// #endregion session-metrics

// #region method-summary
// MetricsSummary averages successful session metrics per regression method.
// Sessions that ended with insufficient data are excluded.
func (s *Store) MetricsSummary(ctx context.Context) ([]MethodSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.method, COUNT(*), AVG(m.mse), AVG(m.rmse), AVG(m.mae), AVG(m.r_squared),
			COALESCE(AVG((SELECT r.quality_score FROM refinement_records r
				WHERE r.session_id = m.session_id ORDER BY r.iteration DESC LIMIT 1)), 0)
		FROM regression_metrics m
		WHERE m.status = ?
		GROUP BY m.method
		ORDER BY m.method`, StatusSuccess)
	if err != nil {
		return nil, fmt.Errorf("metrics summary: %w", err)
	}
	defer rows.Close()

	var out []MethodSummary
	for rows.Next() {
		var ms MethodSummary
		if err := rows.Scan(&ms.Method, &ms.Sessions, &ms.AvgMSE, &ms.AvgRMSE, &ms.AvgMAE,
			&ms.AvgRSquared, &ms.AvgFinalScore); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, ms)
	}
	return out, rows.Err()
}
// #endregion method-summary

// #region list-sessions
// ListSessions returns the most recent sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.session_id, MIN(r.original_prompt), MIN(r.method), COUNT(*), MAX(r.converged),
			(SELECT f.quality_score FROM refinement_records f
				WHERE f.session_id = r.session_id ORDER BY f.iteration ASC LIMIT 1),
			(SELECT l.quality_score FROM refinement_records l
				WHERE l.session_id = r.session_id ORDER BY l.iteration DESC LIMIT 1),
			MIN(r.created_at)
		FROM refinement_records r
		GROUP BY r.session_id
		ORDER BY MIN(r.rowid) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var ss SessionSummary
		var converged int
		var startedStr string
		if err := rows.Scan(&ss.SessionID, &ss.OriginalPrompt, &ss.Method, &ss.Iterations, &converged,
			&ss.InitialScore, &ss.FinalScore, &startedStr); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ss.Converged = converged != 0
		ss.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
		out = append(out, ss)
	}
	return out, rows.Err()
}
// #endregion list-sessions
