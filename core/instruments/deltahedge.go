package instruments

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"ledgerforge/core"
)

// MinTradeSize is the default rebalance threshold below which a
// delta-hedge strategy skips trading rather than pay transaction costs
// for a negligible adjustment.
var MinTradeSize = decimal.New(1, -4)

// CallDeltaFunc computes a European call's delta given spot, strike, time
// to maturity in years, volatility, and the risk-free rate. The pricing
// formula itself is an external collaborator (per spec §1, concrete
// pricing libraries are out of scope for the core); NewDeltaHedgeContract
// lets a caller inject any such function, and DeltaHedgeContract binds the
// package's own Black-Scholes reference implementation as a convenience
// default.
type CallDeltaFunc func(spot, strike, yearsToMaturity, volatility, riskFreeRate float64) float64

// DeltaHedgeContract rebalances a delta-hedge strategy toward the current
// Black-Scholes delta of its tracked option position, or liquidates the
// hedge entirely once maturity is reached. Equivalent to
// NewDeltaHedgeContract(CallDelta).
func DeltaHedgeContract(view core.LedgerView, symbol string, t time.Time, prices core.PricingSource) core.PendingTransaction {
	return NewDeltaHedgeContract(CallDelta)(view, symbol, t, prices)
}

// NewDeltaHedgeContract binds deltaFn as the pricing formula a delta-hedge
// strategy rebalances against, returning a Contract the lifecycle engine
// can register for core.KindDeltaHedgeStrategy.
func NewDeltaHedgeContract(deltaFn CallDeltaFunc) core.Contract {
	return func(view core.LedgerView, symbol string, t time.Time, prices core.PricingSource) core.PendingTransaction {
		return deltaHedgeContract(view, symbol, t, prices, deltaFn)
	}
}

func deltaHedgeContract(view core.LedgerView, symbol string, t time.Time, prices core.PricingSource, deltaFn CallDeltaFunc) core.PendingTransaction {
	state, err := view.GetUnitState(symbol)
	if err != nil {
		return core.EmptyPendingTransaction()
	}
	if getBool(state, "liquidated") {
		return core.EmptyPendingTransaction()
	}

	strategyWallet := getString(state, "strategy_wallet")
	marketWallet := getString(state, "market_wallet")
	underlying := getString(state, "underlying")
	currency := getString(state, "currency")
	currentShares := getDecimal(state, "current_shares")
	maturity := getTime(state, "maturity")

	spot, err := prices.Price(underlying, t)
	if err != nil {
		return core.EmptyPendingTransaction()
	}

	if !t.Before(maturity) {
		newState := cloneState(state)
		newState["current_shares"] = decimal.Zero
		newState["liquidated"] = true
		if currentShares.IsZero() {
			return core.PendingTransaction{StateUpdates: single(symbol, newState)}
		}
		cashMove, err := core.NewMove(marketWallet, strategyWallet, currency, currentShares.Abs().Mul(spot), symbol)
		if err != nil {
			return core.EmptyPendingTransaction()
		}
		sharesMove, err := core.NewMove(strategyWallet, marketWallet, underlying, currentShares.Abs(), symbol)
		if err != nil {
			return core.EmptyPendingTransaction()
		}
		return core.PendingTransaction{
			Moves:        []core.Move{cashMove, sharesMove},
			StateUpdates: single(symbol, newState),
		}
	}

	strike := getDecimal(state, "strike")
	volatility := getDecimal(state, "volatility")
	riskFreeRate := getDecimal(state, "risk_free_rate")
	numOptions := getDecimal(state, "num_options")
	multiplier := getDecimal(state, "option_multiplier")

	yearsToMaturity := maturity.Sub(t).Hours() / (24 * 365)
	if yearsToMaturity < 0 {
		yearsToMaturity = 0
	}

	delta := deltaFn(spotFloat(spot), spotFloat(strike), yearsToMaturity, spotFloat(volatility), spotFloat(riskFreeRate))
	target := decimal.NewFromFloat(delta).Mul(numOptions).Mul(multiplier)
	deltaShares := target.Sub(currentShares)

	minTrade := MinTradeSize
	if v, ok := state["min_trade_size"]; ok {
		if d, ok := v.(decimal.Decimal); ok {
			minTrade = d
		}
	}
	if deltaShares.Abs().LessThan(minTrade) {
		return core.EmptyPendingTransaction()
	}

	var moves []core.Move
	if deltaShares.IsPositive() {
		m1, err := core.NewMove(marketWallet, strategyWallet, underlying, deltaShares, symbol)
		if err != nil {
			return core.EmptyPendingTransaction()
		}
		m2, err := core.NewMove(strategyWallet, marketWallet, currency, deltaShares.Mul(spot), symbol)
		if err != nil {
			return core.EmptyPendingTransaction()
		}
		moves = []core.Move{m1, m2}
	} else {
		m1, err := core.NewMove(strategyWallet, marketWallet, underlying, deltaShares.Neg(), symbol)
		if err != nil {
			return core.EmptyPendingTransaction()
		}
		m2, err := core.NewMove(marketWallet, strategyWallet, currency, deltaShares.Neg().Mul(spot), symbol)
		if err != nil {
			return core.EmptyPendingTransaction()
		}
		moves = []core.Move{m1, m2}
	}

	newState := cloneState(state)
	newState["current_shares"] = target
	newState["cumulative_cash"] = getDecimal(state, "cumulative_cash").Sub(deltaShares.Mul(spot))
	newState["rebalance_count"] = getDecimal(state, "rebalance_count").Add(decimal.NewFromInt(1))

	return core.PendingTransaction{Moves: moves, StateUpdates: single(symbol, newState)}
}

func spotFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// CallDelta is the package's reference Black-Scholes delta for a European
// call: N(d1) with d1 = (ln(S/K) + (r + σ²/2)T) / (σ√T).
func CallDelta(spot, strike, yearsToMaturity, volatility, riskFreeRate float64) float64 {
	if yearsToMaturity <= 0 || volatility <= 0 {
		if spot > strike {
			return 1
		}
		return 0
	}
	d1 := (math.Log(spot/strike) + (riskFreeRate+0.5*volatility*volatility)*yearsToMaturity) /
		(volatility * math.Sqrt(yearsToMaturity))
	return normalCDF(d1)
}

func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}
