package journal

const Schema = `
CREATE TABLE IF NOT EXISTS fills (
	fill_id INTEGER PRIMARY KEY,
	strategy_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	price REAL NOT NULL,
	base_price REAL NOT NULL,
	slippage REAL NOT NULL,
	commission REAL NOT NULL,
	position_after INTEGER NOT NULL,
	time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_strategy ON fills(strategy_id);
CREATE INDEX IF NOT EXISTS idx_fills_time ON fills(time);
`
