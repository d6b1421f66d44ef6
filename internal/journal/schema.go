package journal

// Schema creates the journal tables. Money columns hold decimal strings.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	ticker TEXT NOT NULL,
	recorded_at TIMESTAMP NOT NULL,
	start_date TIMESTAMP NOT NULL,
	end_date TIMESTAMP NOT NULL,
	conditions TEXT NOT NULL,
	params TEXT NOT NULL,
	final_liquidity TEXT NOT NULL,
	total_contributions TEXT NOT NULL,
	total_profit TEXT NOT NULL,
	total_return REAL NOT NULL,
	total_trades INTEGER NOT NULL,
	win_rate REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	position_key INTEGER NOT NULL,
	ticker TEXT NOT NULL,
	entry_date TIMESTAMP NOT NULL,
	entry_price TEXT NOT NULL,
	shares INTEGER NOT NULL,
	partial_shares INTEGER NOT NULL,
	partial_price TEXT NOT NULL,
	exit_time TIMESTAMP NOT NULL,
	exit_price TEXT NOT NULL,
	exit_shares INTEGER NOT NULL,
	close_reason TEXT NOT NULL,
	cost TEXT NOT NULL,
	proceeds TEXT NOT NULL,
	profit TEXT NOT NULL,
	commission TEXT NOT NULL,
	return_pct REAL NOT NULL,
	hold_days INTEGER NOT NULL,
	win INTEGER NOT NULL,
	PRIMARY KEY (run_id, position_key)
);

CREATE INDEX IF NOT EXISTS idx_runs_ticker ON runs(ticker, recorded_at);
`
