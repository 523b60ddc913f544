package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	fills *csv.Writer
	file  *os.File
}

func NewCSV(path string) (*CSVJournal, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"fill_id", "strategy_id", "symbol", "action", "quantity", "price", "base_price", "slippage", "commission", "position_after", "time"}); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, err
	}

	return &CSVJournal{fills: w, file: f}, nil
}

func (j *CSVJournal) RecordFill(r FillRecord) error {
	err := j.fills.Write([]string{
		strconv.FormatUint(r.FillID, 10),
		r.StrategyID,
		r.Symbol,
		r.Action,
		strconv.FormatInt(r.Quantity, 10),
		f(r.Price),
		f(r.BasePrice),
		f(r.Slippage),
		f(r.Commission),
		strconv.FormatInt(r.Position, 10),
		r.Time.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	j.fills.Flush()
	return j.fills.Error()
}

func (j *CSVJournal) Close() error {
	j.fills.Flush()
	if err := j.fills.Error(); err != nil {
		return err
	}
	return j.file.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
