package instruments

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerforge/core"
)

func newDeltaHedgeLedger(t *testing.T) (*core.Ledger, time.Time, time.Time) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := core.New("deltahedge-ledger", start, core.Config{})
	l.RegisterWallet(core.SystemWallet)
	l.RegisterWallet("strategy")
	l.RegisterWallet("market")

	cash := core.NewUnit("USD", "US Dollar", core.KindCash, decimal.New(-1, 12), decimal.New(1, 12), 2, nil, nil)
	require.NoError(t, l.RegisterUnit(cash))
	underlying := core.NewUnit("ACME", "Acme Corp", core.KindStock, decimal.New(-1, 12), decimal.New(1, 12), 0, nil, nil)
	require.NoError(t, l.RegisterUnit(underlying))

	maturity := start.AddDate(0, 1, 0)
	hedgeState := map[string]any{
		"strategy_wallet":   "strategy",
		"market_wallet":     "market",
		"underlying":        "ACME",
		"currency":          "USD",
		"strike":            d("100"),
		"volatility":        d("0.2"),
		"risk_free_rate":    d("0.01"),
		"num_options":       decimal.NewFromInt(10),
		"option_multiplier": decimal.NewFromInt(100),
		"maturity":          maturity,
		"current_shares":    decimal.Zero,
		"cumulative_cash":   decimal.Zero,
		"rebalance_count":   decimal.Zero,
		"liquidated":        false,
	}
	hedge := core.NewUnit("HEDGE-1", "Delta hedge strategy", core.KindDeltaHedgeStrategy, decimal.New(-1, 12), decimal.New(1, 12), core.Unrounded, nil, hedgeState)
	require.NoError(t, l.RegisterUnit(hedge))

	return l, start, maturity
}

func TestDeltaHedgeRebalancesTowardTarget(t *testing.T) {
	l, start, _ := newDeltaHedgeLedger(t)
	prices := core.NewStaticPricingSource(map[string]decimal.Decimal{"ACME": d("110")})

	day2 := start.AddDate(0, 0, 1)
	_, result, err := l.ExecuteContract("HEDGE-1", "HEDGE-1", func(view core.LedgerView) core.PendingTransaction {
		return DeltaHedgeContract(view, "HEDGE-1", day2, prices)
	})
	require.NoError(t, err)
	assert.Equal(t, core.Applied, result)

	state, err := l.GetUnitState("HEDGE-1")
	require.NoError(t, err)
	shares := state["current_shares"].(decimal.Decimal)
	assert.True(t, shares.GreaterThan(decimal.Zero), "a rebalance that buys underlying moves current_shares toward a positive Black-Scholes delta")

	marketShares, err := l.GetBalance("market", "ACME")
	require.NoError(t, err)
	assert.True(t, marketShares.IsNegative(), "the strategy's purchase is funded from the market wallet's inventory")
}

func TestDeltaHedgeLiquidatesAtMaturity(t *testing.T) {
	l, start, maturity := newDeltaHedgeLedger(t)
	prices := core.NewStaticPricingSource(map[string]decimal.Decimal{"ACME": d("110")})

	_, _, err := l.ExecuteContract("HEDGE-1", "HEDGE-1", func(view core.LedgerView) core.PendingTransaction {
		return DeltaHedgeContract(view, "HEDGE-1", start.AddDate(0, 0, 1), prices)
	})
	require.NoError(t, err)

	_, result, err := l.ExecuteContract("HEDGE-1", "HEDGE-1", func(view core.LedgerView) core.PendingTransaction {
		return DeltaHedgeContract(view, "HEDGE-1", maturity, prices)
	})
	require.NoError(t, err)
	assert.Equal(t, core.Applied, result)

	state, err := l.GetUnitState("HEDGE-1")
	require.NoError(t, err)
	assert.True(t, state["liquidated"].(bool))
	assert.True(t, state["current_shares"].(decimal.Decimal).IsZero())
}

func TestCallDeltaMonotoneInSpot(t *testing.T) {
	low := CallDelta(80, 100, 0.5, 0.2, 0.01)
	high := CallDelta(120, 100, 0.5, 0.2, 0.01)
	assert.True(t, high > low, "a deeper in-the-money call has a higher delta")
	assert.True(t, low >= 0 && low <= 1)
	assert.True(t, high >= 0 && high <= 1)
}

func TestNewDeltaHedgeContractInjectsCustomDeltaFunction(t *testing.T) {
	l, start, _ := newDeltaHedgeLedger(t)
	prices := core.NewStaticPricingSource(map[string]decimal.Decimal{"ACME": d("110")})

	fixedDelta := func(spot, strike, yearsToMaturity, volatility, riskFreeRate float64) float64 {
		return 0.5
	}
	contract := NewDeltaHedgeContract(fixedDelta)

	_, result, err := l.ExecuteContract("HEDGE-1", "HEDGE-1", func(view core.LedgerView) core.PendingTransaction {
		return contract(view, "HEDGE-1", start.AddDate(0, 0, 1), prices)
	})
	require.NoError(t, err)
	assert.Equal(t, core.Applied, result)

	state, err := l.GetUnitState("HEDGE-1")
	require.NoError(t, err)
	shares := state["current_shares"].(decimal.Decimal)
	assert.True(t, shares.Equal(d("500")), "0.5 delta * 10 options * 100 multiplier")
}
