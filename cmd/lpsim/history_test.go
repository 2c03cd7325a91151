package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/lpsim/internal/adapters/notify"
	"github.com/alejandrodnm/lpsim/internal/adapters/storage"
	"github.com/alejandrodnm/lpsim/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func savedRun(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Now().UTC().Add(-time.Hour)
	scenario := func(rangePct, ret float64, events int) *domain.ScenarioResult {
		r := &domain.ScenarioResult{RangePercent: rangePct, Rebalancing: true, RebalanceCount: events}
		r.Summary.TotalReturnPercent = ret
		for i := 0; i < events; i++ {
			r.Rebalances = append(r.Rebalances, domain.RebalanceEvent{
				Timestamp: now.Add(time.Duration(i) * time.Minute), Price: 0.0051,
				OldCenter: 0.005, NewCenter: 0.0051, ValueBefore: 10_000, CapitalAfter: 9_990,
			})
		}
		return r
	}

	report := &domain.RunReport{
		ID:          "5f2b7c1d-aaaa-4bbb-8ccc-000000000001",
		CreatedAt:   now,
		Pair:        "CAKE/BNB",
		Params:      domain.DefaultSimulationParams(),
		RangeWidths: []float64{2, 5, 150},
		Results: map[float64]*domain.ScenarioResult{
			2: scenario(2, 1.0, 4),
			5: scenario(5, 3.0, 2),
		},
		Failures: map[float64]error{150: domain.ErrInvalidRange},
	}
	require.NoError(t, db.SaveRun(context.Background(), report))
	return db
}

func TestRunHistory_ListOnly(t *testing.T) {
	db := savedRun(t)
	var buf bytes.Buffer

	err := runHistory(context.Background(), db, notify.NewConsoleWriter(&buf), historyOptions{Days: 7})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "5f2b7c1d")
	assert.NotContains(t, buf.String(), "rejected")
}

func TestRunHistory_RunDetailDefaultsToBestRange(t *testing.T) {
	db := savedRun(t)
	var buf bytes.Buffer

	err := runHistory(context.Background(), db, notify.NewConsoleWriter(&buf), historyOptions{Days: 7, RunID: "5f2b"})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "=== RUN 5f2b7c1d — CAKE/BNB ±5% ===")
	assert.Contains(t, out, "$9,990.00")
	assert.Contains(t, out, "±150%")
}

func TestRunHistory_ExplicitRange(t *testing.T) {
	db := savedRun(t)
	var buf bytes.Buffer

	err := runHistory(context.Background(), db, notify.NewConsoleWriter(&buf), historyOptions{Days: 7, RunID: "5f2b", RangePct: 2})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "=== RUN 5f2b7c1d — CAKE/BNB ±2% ===")
	assert.NotContains(t, buf.String(), "No rebalances")
}

func TestRunHistory_UnknownRun(t *testing.T) {
	db := savedRun(t)
	var buf bytes.Buffer

	err := runHistory(context.Background(), db, notify.NewConsoleWriter(&buf), historyOptions{Days: 7, RunID: "nope"})
	assert.Error(t, err)
}
