package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fills.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)
	defer j.Close()

	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	records := []FillRecord{
		{FillID: 1, StrategyID: "ma-1", Symbol: "SPY", Action: "BUY", Quantity: 100, Price: 470.55, BasePrice: 470.5, Slippage: 0.05, Commission: 1.0, Position: 100, Time: now},
		{FillID: 2, StrategyID: "ma-1", Symbol: "SPY", Action: "SELL", Quantity: 100, Price: 469.45, BasePrice: 469.5, Slippage: 0.05, Commission: 1.0, Position: 0, Time: now.Add(time.Minute)},
		{FillID: 3, StrategyID: "rsi-1", Symbol: "SPY", Action: "BUY", Quantity: 50, Price: 470.0, BasePrice: 470.0, Slippage: 0, Commission: 1.0, Position: 50, Time: now.Add(2 * time.Minute)},
	}
	for _, r := range records {
		require.NoError(t, j.RecordFill(r))
	}

	got, err := j.FillsForStrategy("ma-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].FillID)
	assert.Equal(t, "SELL", got[1].Action)
	assert.Equal(t, int64(0), got[1].Position)
	assert.InDelta(t, 470.55, got[0].Price, 1e-9)
}

func TestCSVJournalWritesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fills.csv")

	j, err := NewCSV(path)
	require.NoError(t, err)

	require.NoError(t, j.RecordFill(FillRecord{
		FillID: 1, StrategyID: "bh-1", Symbol: "SPY", Action: "BUY",
		Quantity: 100, Price: 470.0, BasePrice: 469.9, Slippage: 0.1,
		Commission: 1.0, Position: 100, Time: time.Now(),
	}))
	require.NoError(t, j.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fill_id,strategy_id")
	assert.Contains(t, string(data), "bh-1")
}
