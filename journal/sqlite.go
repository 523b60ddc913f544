package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordFill(r FillRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fills
		(fill_id, strategy_id, symbol, action, quantity, price, base_price, slippage, commission, position_after, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.FillID, r.StrategyID, r.Symbol, r.Action, r.Quantity,
		r.Price, r.BasePrice, r.Slippage, r.Commission, r.Position, r.Time,
	)
	return err
}

// FillsForStrategy loads all recorded fills for one strategy in fill
// order. Used by the CLI for post-run reporting.
func (j *SQLiteJournal) FillsForStrategy(strategyID string) ([]FillRecord, error) {
	rows, err := j.db.Query(`
		SELECT fill_id, strategy_id, symbol, action, quantity, price, base_price, slippage, commission, position_after, time
		FROM fills WHERE strategy_id = ? ORDER BY fill_id`, strategyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var r FillRecord
		if err := rows.Scan(&r.FillID, &r.StrategyID, &r.Symbol, &r.Action, &r.Quantity,
			&r.Price, &r.BasePrice, &r.Slippage, &r.Commission, &r.Position, &r.Time); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
