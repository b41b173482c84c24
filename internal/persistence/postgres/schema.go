package postgres

// Schema is the DDL for the engine's tables. Nested structures (trades,
// windows, distributions) are stored as jsonb documents; queries key by
// identity, which is all the core requires.
const Schema = `
CREATE TABLE IF NOT EXISTS strategy_configs (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    version      INT NOT NULL,
    derived_from TEXT,
    created_at   TIMESTAMPTZ NOT NULL,
    params       JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_runs (
    id         TEXT PRIMARY KEY,
    symbol     TEXT NOT NULL,
    timeframe  TEXT NOT NULL,
    status     TEXT NOT NULL,
    range_from TIMESTAMPTZ NOT NULL,
    range_to   TIMESTAMPTZ NOT NULL,
    error      TEXT NOT NULL DEFAULT '',
    started_at TIMESTAMPTZ NOT NULL,
    ended_at   TIMESTAMPTZ,
    payload    JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_backtest_runs_symbol ON backtest_runs (symbol, started_at DESC);

CREATE TABLE IF NOT EXISTS walkforward_jobs (
    id      TEXT PRIMARY KEY,
    symbol  TEXT NOT NULL,
    status  TEXT NOT NULL,
    payload JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS montecarlo_simulations (
    id      TEXT PRIMARY KEY,
    method  TEXT NOT NULL,
    payload JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS config_audit_log (
    id                 TEXT PRIMARY KEY,
    key                TEXT NOT NULL,
    previous_config_id TEXT,
    new_config_id      TEXT,
    outcome            TEXT NOT NULL,
    reason             TEXT NOT NULL,
    ts                 TIMESTAMPTZ NOT NULL,
    metrics            JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_config_audit_log_key ON config_audit_log (key, ts);
`
