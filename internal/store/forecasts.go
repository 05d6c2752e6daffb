package store

import (
	"database/sql"

	"deepquant/internal/model"
)

// UpsertForecasts writes a batch of forecast rows, replacing any prior
// forecast for the same (symbol, timestamp).
func (s *Store) UpsertForecasts(batch []model.Forecast) error {
	if len(batch) == 0 {
		return nil
	}
	return s.Tx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO ai_predictions
				(symbol, timestamp, current_price, small_predicted_price,
				 large_predicted_price, ensemble_predicted_price, ensemble_pct_change)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (symbol, timestamp) DO UPDATE SET
				current_price            = excluded.current_price,
				small_predicted_price    = excluded.small_predicted_price,
				large_predicted_price    = excluded.large_predicted_price,
				ensemble_predicted_price = excluded.ensemble_predicted_price,
				ensemble_pct_change      = excluded.ensemble_pct_change
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, f := range batch {
			if _, err := stmt.Exec(f.Symbol, model.FormatTime(f.Timestamp), f.CurrentPrice,
				f.SmallPredictedPrice, f.LargePredictedPrice,
				f.EnsemblePredictedPrice, f.EnsemblePctChange); err != nil {
				return err
			}
		}
		return nil
	})
}
