// Package postgres implements the persistence contracts over PostgreSQL
// using sqlx. Each repository applies a per-call timeout.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/quantforge/adaptive/internal/backtest"
	"github.com/quantforge/adaptive/internal/domain"
	"github.com/quantforge/adaptive/internal/learner"
	"github.com/quantforge/adaptive/internal/montecarlo"
	"github.com/quantforge/adaptive/internal/walkforward"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("not found")

// Connect opens a pool and applies the schema.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// ConfigRepo persists strategy configs.
type ConfigRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewConfigRepo creates a config repository.
func NewConfigRepo(db *sqlx.DB, timeout time.Duration) *ConfigRepo {
	return &ConfigRepo{db: db, timeout: timeout}
}

// Save inserts an immutable config; duplicate IDs are rejected.
func (r *ConfigRepo) Save(ctx context.Context, cfg domain.StrategyConfig) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	params, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO strategy_configs (id, name, version, derived_from, created_at, params)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`,
		cfg.ID, cfg.Name, cfg.Version, cfg.DerivedFrom, cfg.CreatedAt, params)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return fmt.Errorf("config %s already saved: configs are immutable", cfg.ID)
	}
	return err
}

// Get fetches one config by ID.
func (r *ConfigRepo) Get(ctx context.Context, id string) (*domain.StrategyConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var params []byte
	err := r.db.QueryRowContext(ctx, `SELECT params FROM strategy_configs WHERE id = $1`, id).Scan(&params)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("config %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var cfg domain.StrategyConfig
	if err := json.Unmarshal(params, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", id, err)
	}
	return &cfg, nil
}

// Lineage follows derived_from links back to the root, newest first.
func (r *ConfigRepo) Lineage(ctx context.Context, id string) ([]domain.StrategyConfig, error) {
	var chain []domain.StrategyConfig
	for id != "" {
		cfg, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) && len(chain) > 0 {
				break // lineage link points at a pruned ancestor
			}
			return nil, err
		}
		chain = append(chain, *cfg)
		id = cfg.DerivedFrom
	}
	return chain, nil
}

// BacktestRepo persists backtest runs.
type BacktestRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewBacktestRepo creates a backtest repository.
func NewBacktestRepo(db *sqlx.DB, timeout time.Duration) *BacktestRepo {
	return &BacktestRepo{db: db, timeout: timeout}
}

// Save upserts a run with its full payload.
func (r *BacktestRepo) Save(ctx context.Context, run *backtest.Run) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO backtest_runs (id, symbol, timeframe, status, range_from, range_to, error, started_at, ended_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, error = EXCLUDED.error,
			ended_at = EXCLUDED.ended_at, payload = EXCLUDED.payload`,
		run.ID, run.Symbol, run.Timeframe, run.Status, run.Range.From, run.Range.To,
		run.Error, run.StartedAt, run.EndedAt, payload)
	return err
}

// Get fetches one run by ID.
func (r *BacktestRepo) Get(ctx context.Context, id string) (*backtest.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM backtest_runs WHERE id = $1`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("backtest run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var run backtest.Run
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, fmt.Errorf("unmarshal run %s: %w", id, err)
	}
	return &run, nil
}

// ListBySymbol returns recent runs for a symbol, newest first.
func (r *BacktestRepo) ListBySymbol(ctx context.Context, symbol string, limit int) ([]*backtest.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT payload FROM backtest_runs WHERE symbol = $1
		ORDER BY started_at DESC LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*backtest.Run
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var run backtest.Run
		if err := json.Unmarshal(payload, &run); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// WalkForwardRepo persists walk-forward jobs.
type WalkForwardRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewWalkForwardRepo creates a walk-forward repository.
func NewWalkForwardRepo(db *sqlx.DB, timeout time.Duration) *WalkForwardRepo {
	return &WalkForwardRepo{db: db, timeout: timeout}
}

// Save upserts a job.
func (r *WalkForwardRepo) Save(ctx context.Context, job *walkforward.Job) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO walkforward_jobs (id, symbol, status, payload) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, payload = EXCLUDED.payload`,
		job.ID, job.Symbol, job.Status, payload)
	return err
}

// Get fetches one job by ID.
func (r *WalkForwardRepo) Get(ctx context.Context, id string) (*walkforward.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM walkforward_jobs WHERE id = $1`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("walk-forward job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var job walkforward.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

// MonteCarloRepo persists simulations (distributions only; trials are
// reproducible from the seed).
type MonteCarloRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewMonteCarloRepo creates a Monte Carlo repository.
func NewMonteCarloRepo(db *sqlx.DB, timeout time.Duration) *MonteCarloRepo {
	return &MonteCarloRepo{db: db, timeout: timeout}
}

// Save inserts a simulation.
func (r *MonteCarloRepo) Save(ctx context.Context, sim *montecarlo.Simulation) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(sim)
	if err != nil {
		return fmt.Errorf("marshal simulation: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO montecarlo_simulations (id, method, payload) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
		sim.ID, sim.Method, payload)
	return err
}

// Get fetches one simulation by ID.
func (r *MonteCarloRepo) Get(ctx context.Context, id string) (*montecarlo.Simulation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM montecarlo_simulations WHERE id = $1`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("simulation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var sim montecarlo.Simulation
	if err := json.Unmarshal(payload, &sim); err != nil {
		return nil, fmt.Errorf("unmarshal simulation %s: %w", id, err)
	}
	return &sim, nil
}

// AuditRepo is the durable audit log.
type AuditRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAuditRepo creates an audit repository.
func NewAuditRepo(db *sqlx.DB, timeout time.Duration) *AuditRepo {
	return &AuditRepo{db: db, timeout: timeout}
}

// Append inserts an entry. The log is append-only: no update path exists.
func (r *AuditRepo) Append(ctx context.Context, entry learner.AuditEntry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	m, err := json.Marshal(entry.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO config_audit_log (id, key, previous_config_id, new_config_id, outcome, reason, ts, metrics)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8)`,
		entry.ID, entry.Key.String(), entry.PreviousConfigID, entry.NewConfigID,
		entry.Outcome, entry.Reason, entry.Timestamp, m)
	return err
}

// List returns the history for key, oldest first.
func (r *AuditRepo) List(ctx context.Context, key learner.Key) ([]learner.AuditEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, key, COALESCE(previous_config_id, ''), COALESCE(new_config_id, ''), outcome, reason, ts, metrics
		FROM config_audit_log WHERE key = $1 ORDER BY ts`, key.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []learner.AuditEntry
	for rows.Next() {
		var e learner.AuditEntry
		var keyStr string
		var m []byte
		if err := rows.Scan(&e.ID, &keyStr, &e.PreviousConfigID, &e.NewConfigID, &e.Outcome, &e.Reason, &e.Timestamp, &m); err != nil {
			return nil, err
		}
		if i := strings.IndexByte(keyStr, '/'); i >= 0 {
			e.Key = learner.Key{Symbol: keyStr[:i], MarketType: keyStr[i+1:]}
		} else {
			e.Key = learner.Key{Symbol: keyStr}
		}
		if err := json.Unmarshal(m, &e.Metrics); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
