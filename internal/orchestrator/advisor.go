package orchestrator

// #region imports
import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/prompt-refiner/internal/regression"
	"github.com/danielpatrickdp/prompt-refiner/internal/store"
)

// #endregion

// #region advisor-struct

const (
	advisorMinSessions = 3
	advisorHalfLife    = 7 * 24 * time.Hour
)

// MethodAdvisor recommends a regression method from past session metrics.
// Each session's RMSE is weighted by exp(-age/halfLife); the method with the
// lowest weighted RMSE over at least three successful sessions wins.
type MethodAdvisor struct {
	db  *sql.DB
	now func() time.Time
}

// NewMethodAdvisor reads the regression_metrics table on db.
func NewMethodAdvisor(db *sql.DB) *MethodAdvisor {
	return &MethodAdvisor{db: db, now: time.Now}
}

// #endregion

// #region best-method

// Recommendation is the advisor's pick and its decay-weighted RMSE.
type Recommendation struct {
	Method   regression.Method
	RMSE     float64
	Sessions int
}

// Best returns the recommended method. ok is false when no method has enough
// successful sessions.
func (a *MethodAdvisor) Best(ctx context.Context) (rec Recommendation, ok bool, err error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT method, rmse, calculated_at FROM regression_metrics WHERE status = ?`,
		store.StatusSuccess,
	)
	if err != nil {
		return Recommendation{}, false, fmt.Errorf("advisor query: %w", err)
	}
	defer rows.Close()

	type accum struct {
		weightedSum float64
		totalWeight float64
		count       int
	}

	now := a.now()
	halfLife := advisorHalfLife.Hours()
	byMethod := make(map[regression.Method]*accum)

	for rows.Next() {
		var name, calcStr string
		var rmse float64
		if err := rows.Scan(&name, &rmse, &calcStr); err != nil {
			return Recommendation{}, false, fmt.Errorf("advisor scan: %w", err)
		}
		m, err := regression.ParseMethod(name)
		if err != nil {
			continue
		}
		calculatedAt, err := time.Parse(time.RFC3339Nano, calcStr)
		if err != nil {
			continue
		}
		w := math.Exp(-now.Sub(calculatedAt).Hours() / halfLife)

		acc, found := byMethod[m]
		if !found {
			acc = &accum{}
			byMethod[m] = acc
		}
		acc.weightedSum += rmse * w
		acc.totalWeight += w
		acc.count++
	}
	if err := rows.Err(); err != nil {
		return Recommendation{}, false, fmt.Errorf("advisor rows: %w", err)
	}

	// iterate in enum order so ties resolve deterministically
	for _, m := range regression.Methods {
		acc, found := byMethod[m]
		if !found || acc.count < advisorMinSessions || acc.totalWeight == 0 {
			continue
		}
		rmse := acc.weightedSum / acc.totalWeight
		if !ok || rmse < rec.RMSE {
			rec = Recommendation{Method: m, RMSE: rmse, Sessions: acc.count}
			ok = true
		}
	}
	return rec, ok, nil
}

// #endregion
