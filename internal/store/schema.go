package store

import "database/sql"

// createSchema creates the core tables if they do not exist. The primary
// keys carry the dedup invariants: one bar/indicator row per
// (symbol, timestamp, timeframe), one forecast per (symbol, timestamp),
// one entry signal per (symbol, timestamp).
func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS market_data (
			symbol    TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			open      REAL,
			high      REAL,
			low       REAL,
			close     REAL,
			volume    REAL,
			PRIMARY KEY (symbol, timestamp, timeframe)
		);

		CREATE TABLE IF NOT EXISTS technical_indicators (
			symbol        TEXT NOT NULL,
			timestamp     TEXT NOT NULL,
			timeframe     TEXT NOT NULL DEFAULT '5m',
			rsi_14        REAL,
			sma_50        REAL,
			sma_200       REAL,
			lower_bb      REAL,
			vwap          REAL,
			atr_14        REAL,
			volume_sma_20 REAL,
			PRIMARY KEY (symbol, timestamp, timeframe)
		);

		CREATE TABLE IF NOT EXISTS ai_predictions (
			id                       INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol                   TEXT NOT NULL,
			timestamp                TEXT NOT NULL,
			current_price            REAL,
			small_predicted_price    REAL,
			large_predicted_price    REAL,
			ensemble_predicted_price REAL,
			ensemble_pct_change      REAL,
			UNIQUE (symbol, timestamp)
		);

		CREATE TABLE IF NOT EXISTS trade_signals (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol      TEXT NOT NULL,
			timestamp   TEXT NOT NULL,
			signal_type TEXT,
			status      TEXT,
			size        REAL,
			atr         REAL,
			order_id    TEXT
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_signals_symbol_ts
			ON trade_signals (symbol, timestamp);
		CREATE INDEX IF NOT EXISTS idx_signals_status
			ON trade_signals (status);

		CREATE TABLE IF NOT EXISTS executed_trades (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol      TEXT NOT NULL,
			timestamp   TEXT NOT NULL,
			price       REAL,
			qty         REAL,
			side        TEXT,
			signal_type TEXT
		);

		CREATE TABLE IF NOT EXISTS system_logs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    TEXT NOT NULL,
			service_name TEXT NOT NULL,
			log_level    TEXT NOT NULL,
			message      TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS system_config (
			key   TEXT PRIMARY KEY,
			value TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_indicators_symbol_ts
			ON technical_indicators (symbol, timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_predictions_symbol_ts
			ON ai_predictions (symbol, timestamp DESC);
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT INTO system_config (key, value) VALUES ('sleep_mode', 'AUTO')
		ON CONFLICT (key) DO NOTHING`)
	return err
}
