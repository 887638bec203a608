package weights

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// #region schema
const weightsSchema = `
CREATE TABLE IF NOT EXISTS feature_weights (
	feature_name  TEXT PRIMARY KEY,
	weight        REAL NOT NULL,
	update_count  INTEGER NOT NULL DEFAULT 0,
	min_weight    REAL NOT NULL,
	max_weight    REAL NOT NULL,
	last_updated  TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS weight_history (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	feature_name  TEXT NOT NULL,
	weight        REAL NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_weight_history_name ON weight_history(feature_name);
`

// upsert bodies share the clamp expression so the new weight is computed from
// the stored row inside a single statement.
const upsertAdjust = `
INSERT INTO feature_weights (feature_name, weight, update_count, min_weight, max_weight, last_updated, created_at)
VALUES (?1, ?2, 1, ?2, ?2, ?4, ?4)
ON CONFLICT(feature_name) DO UPDATE SET
	weight       = MIN(1.0, MAX(0.0, feature_weights.weight + ?3)),
	update_count = feature_weights.update_count + 1,
	min_weight   = MIN(feature_weights.min_weight, MIN(1.0, MAX(0.0, feature_weights.weight + ?3))),
	max_weight   = MAX(feature_weights.max_weight, MIN(1.0, MAX(0.0, feature_weights.weight + ?3))),
	last_updated = ?4
RETURNING weight, update_count, min_weight, max_weight, created_at`

const upsertSet = `
INSERT INTO feature_weights (feature_name, weight, update_count, min_weight, max_weight, last_updated, created_at)
VALUES (?1, ?2, 1, ?2, ?2, ?3, ?3)
ON CONFLICT(feature_name) DO UPDATE SET
	weight       = ?2,
	update_count = feature_weights.update_count + 1,
	min_weight   = MIN(feature_weights.min_weight, ?2),
	max_weight   = MAX(feature_weights.max_weight, ?2),
	last_updated = ?3
RETURNING weight, update_count, min_weight, max_weight, created_at`
// #endregion schema

// #region store-struct
// Store persists feature weights and their update statistics in SQLite.
// Writes to the same feature are serialized in-process; each write is a
// single upsert statement, so concurrent sessions never lose an update.
type Store struct {
	db    *sql.DB
	locks sync.Map // feature name -> *sync.Mutex
}

// NewStore creates the weight tables on db and returns a Store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(weightsSchema); err != nil {
		return nil, fmt.Errorf("weights schema: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion store-struct

// #region initialize
// Initialize merges the default table, every persisted weight, and overrides,
// in that order. Later sources win; overrides are clamped to [0, 1].
func (s *Store) Initialize(ctx context.Context, overrides map[string]float64) (map[string]float64, error) {
	merged := DefaultWeights()

	rows, err := s.db.QueryContext(ctx, `SELECT feature_name, weight FROM feature_weights`)
	if err != nil {
		return nil, fmt.Errorf("load weights: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var w float64
		if err := rows.Scan(&name, &w); err != nil {
			return nil, fmt.Errorf("scan weight: %w", err)
		}
		merged[name] = w
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load weights: %w", err)
	}

	for name, w := range overrides {
		merged[name] = Clamp(w)
	}
	return merged, nil
}
// #endregion initialize

// #region update
// Update stores newWeight (clamped) for name, bumping its update count and
// min/max window.
func (s *Store) Update(ctx context.Context, name string, newWeight float64) (Stat, error) {
	unlock := s.lock(name)
	defer unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.write(ctx, name, upsertSet, Clamp(newWeight), now)
}

// Adjust applies delta to the stored weight for name in one statement and
// returns the result. When no row exists yet the weight starts from seed.
func (s *Store) Adjust(ctx context.Context, name string, seed, delta float64) (Stat, error) {
	unlock := s.lock(name)
	defer unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.write(ctx, name, upsertAdjust, Clamp(seed+delta), delta, now)
}

func (s *Store) write(ctx context.Context, name, query string, args ...any) (Stat, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Stat{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	st := Stat{FeatureName: name}
	var createdStr string
	err = tx.QueryRowContext(ctx, query, append([]any{name}, args...)...).
		Scan(&st.Weight, &st.UpdateCount, &st.MinWeight, &st.MaxWeight, &createdStr)
	if err != nil {
		return Stat{}, fmt.Errorf("upsert weight %s: %w", name, err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO weight_history (feature_name, weight, created_at) VALUES (?, ?, ?)`,
		name, st.Weight, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Stat{}, fmt.Errorf("weight history %s: %w", name, err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT AVG(weight) FROM weight_history WHERE feature_name = ?`, name,
	).Scan(&st.AverageWeight); err != nil {
		return Stat{}, fmt.Errorf("average weight %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return Stat{}, fmt.Errorf("commit: %w", err)
	}
	st.LastUpdated = now
	st.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return st, nil
}

func (s *Store) lock(name string) func() {
	m, _ := s.locks.LoadOrStore(name, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
// #endregion update

// #region queries
const statColumns = `
	w.feature_name, w.weight, w.update_count, w.min_weight, w.max_weight,
	COALESCE((SELECT AVG(h.weight) FROM weight_history h WHERE h.feature_name = w.feature_name), w.weight),
	w.last_updated, w.created_at`

// Get returns the stat row for name. The second result is false when the
// feature has never been persisted.
func (s *Store) Get(ctx context.Context, name string) (Stat, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+statColumns+` FROM feature_weights w WHERE w.feature_name = ?`, name)
	if err != nil {
		return Stat{}, false, fmt.Errorf("get weight %s: %w", name, err)
	}
	stats, err := scanStats(rows)
	if err != nil || len(stats) == 0 {
		return Stat{}, false, err
	}
	return stats[0], true, nil
}

// List returns every persisted weight, heaviest first.
func (s *Store) List(ctx context.Context) ([]Stat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+statColumns+` FROM feature_weights w ORDER BY w.weight DESC, w.feature_name`)
	if err != nil {
		return nil, fmt.Errorf("list weights: %w", err)
	}
	return scanStats(rows)
}

// MostUpdated returns up to limit weights ordered by update count.
func (s *Store) MostUpdated(ctx context.Context, limit int) ([]Stat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+statColumns+` FROM feature_weights w ORDER BY w.update_count DESC, w.feature_name LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("most updated: %w", err)
	}
	return scanStats(rows)
}

func scanStats(rows *sql.Rows) ([]Stat, error) {
	defer rows.Close()
	var stats []Stat
	for rows.Next() {
		var st Stat
		var updatedStr, createdStr string
		if err := rows.Scan(&st.FeatureName, &st.Weight, &st.UpdateCount, &st.MinWeight,
			&st.MaxWeight, &st.AverageWeight, &updatedStr, &createdStr); err != nil {
			return nil, fmt.Errorf("scan weight: %w", err)
		}
		st.LastUpdated, _ = time.Parse(time.RFC3339Nano, updatedStr)
		st.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
// #endregion queries
