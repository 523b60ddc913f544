// Package replay feeds historical bars from a CSV file onto the bus,
// standing in for a live market-data collaborator.
package replay

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuanchen/stratsim/bus"
	"github.com/kuanchen/stratsim/market"
)

// Options controls how replay behaves.
type Options struct {
	// Symbol overrides the symbol column, and is required for files
	// without one.
	Symbol string

	// Interval pauses between rows so downstream queues keep up.
	// Zero publishes back-to-back.
	Interval time.Duration
}

// CSV replays bars from a CSV file, publishing each row to
// "md.bars.<SYMBOL>". It returns the number of bars published.
//
// Formats supported:
//
//  1. With symbol column:
//     time,symbol,open,high,low,close,volume
//
//  2. Without (requires Options.Symbol):
//     time,open,high,low,close,volume
//
// The volume column is optional in both. A leading header row is
// detected by its "time" cell and skipped.
func CSV(ctx context.Context, csvPath string, b *bus.Bus, opts Options) (int, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	firstRow, err := r.Read()
	if err != nil {
		return 0, err
	}

	published := 0
	hasHeader := len(firstRow) > 0 && strings.EqualFold(strings.TrimSpace(firstRow[0]), "time")
	if !hasHeader {
		if err := publishRow(b, firstRow, opts); err != nil {
			return 0, err
		}
		published++
	}

	for {
		select {
		case <-ctx.Done():
			return published, ctx.Err()
		default:
		}
		row, err := r.Read()
		if err == io.EOF {
			return published, nil
		}
		if err != nil {
			return published, err
		}
		if len(row) == 0 {
			continue
		}
		if opts.Interval > 0 && published > 0 {
			select {
			case <-ctx.Done():
				return published, ctx.Err()
			case <-time.After(opts.Interval):
			}
		}
		if err := publishRow(b, row, opts); err != nil {
			return published, err
		}
		published++
	}
}

func publishRow(b *bus.Bus, row []string, opts Options) error {
	bar, err := parseRow(row, opts.Symbol)
	if err != nil {
		return err
	}
	data, err := json.Marshal(bar)
	if err != nil {
		return err
	}
	return b.Publish("md.bars."+bar.Symbol, data)
}

func parseRow(row []string, symbol string) (market.Bar, error) {
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}

	// With a symbol column the second cell is not numeric.
	hasSymbol := len(row) >= 6 && !isNumeric(row[1])
	if !hasSymbol && symbol == "" {
		return market.Bar{}, fmt.Errorf("row has no symbol column and no symbol override: %v", row)
	}

	minCols := 5
	if hasSymbol {
		minCols = 6
	}
	if len(row) < minCols {
		return market.Bar{}, fmt.Errorf("bad row (need at least %d cols): %v", minCols, row)
	}

	var ts market.Timestamp
	if err := ts.Parse(row[0]); err != nil {
		return market.Bar{}, fmt.Errorf("bad time %q: %w", row[0], err)
	}

	idx := 1
	if hasSymbol {
		symbol = row[1]
		idx = 2
	}

	fields := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(row[idx+i], 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad price %q: %w", row[idx+i], err)
		}
		fields[i] = v
	}

	var volume int64
	if len(row) > idx+4 && row[idx+4] != "" {
		v, err := strconv.ParseInt(row[idx+4], 10, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad volume %q: %w", row[idx+4], err)
		}
		volume = v
	}

	return market.Bar{
		Symbol: symbol,
		Time:   ts,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: volume,
	}, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
