package performance

import (
	"math"

	"github.com/tradecore-lab/tradecore/internal/types"
)

// Metrics summarizes a finished run.
type Metrics struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital"`
	FinalEquity    float64 `yaml:"final_equity" json:"final_equity"`
	TotalReturn    float64 `yaml:"total_return" json:"total_return"`
	TotalReturnPct float64 `yaml:"total_return_pct" json:"total_return_pct"`
	RealizedPnL    float64 `yaml:"realized_pnl" json:"realized_pnl"`
	SharpeRatio    float64 `yaml:"sharpe_ratio" json:"sharpe_ratio"`
	MaxDrawdown    float64 `yaml:"max_drawdown" json:"max_drawdown"`
	MaxDrawdownPct float64 `yaml:"max_drawdown_pct" json:"max_drawdown_pct"`
	TotalFills     int     `yaml:"total_fills" json:"total_fills"`
	TotalOrders    int     `yaml:"total_orders" json:"total_orders"`
	Rejections     int     `yaml:"rejections" json:"rejections"`
	ClosedTrades   int     `yaml:"closed_trades" json:"closed_trades"`
	WinningTrades  int     `yaml:"winning_trades" json:"winning_trades"`
	LosingTrades   int     `yaml:"losing_trades" json:"losing_trades"`
	WinRate        float64 `yaml:"win_rate" json:"win_rate"`
	AvgWin         float64 `yaml:"avg_win" json:"avg_win"`
	AvgLoss        float64 `yaml:"avg_loss" json:"avg_loss"`
	ProfitFactor   float64 `yaml:"profit_factor" json:"profit_factor"`
}

// Input is everything the calculation consumes: the three logs of a run plus
// the balances.
type Input struct {
	InitialCapital float64
	FinalEquity    float64
	EquityCurve    []types.EquityPoint
	Fills          []types.Fill
	Rejections     []types.Rejection
	Orders         []types.Order
}

// Calculate derives the run metrics. Win/loss statistics come from replaying
// the fills with average-cost accounting, realizing P&L on every
// position-reducing fill.
func Calculate(input Input) Metrics {
	totalReturn := input.FinalEquity - input.InitialCapital

	totalReturnPct := 0.0
	if input.InitialCapital > 0 {
		totalReturnPct = totalReturn / input.InitialCapital * 100
	}

	closed := closedPnLs(input.Fills)

	var winning, losing int

	var grossProfit, grossLoss float64

	for _, pnl := range closed {
		switch {
		case pnl > 0:
			winning++
			grossProfit += pnl
		case pnl < 0:
			losing++
			grossLoss -= pnl
		}
	}

	winRate := 0.0
	if len(closed) > 0 {
		winRate = float64(winning) / float64(len(closed)) * 100
	}

	avgWin := 0.0
	if winning > 0 {
		avgWin = grossProfit / float64(winning)
	}

	avgLoss := 0.0
	if losing > 0 {
		avgLoss = grossLoss / float64(losing)
	}

	profitFactor := 0.0

	switch {
	case grossLoss > 0:
		profitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		profitFactor = grossProfit
	}

	realized := 0.0
	for _, pnl := range closed {
		realized += pnl
	}

	maxDrawdown, maxDrawdownPct := drawdown(input.InitialCapital, input.EquityCurve)

	return Metrics{
		InitialCapital: input.InitialCapital,
		FinalEquity:    input.FinalEquity,
		TotalReturn:    totalReturn,
		TotalReturnPct: totalReturnPct,
		RealizedPnL:    realized,
		SharpeRatio:    sharpe(input.EquityCurve),
		MaxDrawdown:    maxDrawdown,
		MaxDrawdownPct: maxDrawdownPct,
		TotalFills:     len(input.Fills),
		TotalOrders:    len(input.Orders),
		Rejections:     len(input.Rejections),
		ClosedTrades:   len(closed),
		WinningTrades:  winning,
		LosingTrades:   losing,
		WinRate:        winRate,
		AvgWin:         avgWin,
		AvgLoss:        avgLoss,
		ProfitFactor:   profitFactor,
	}
}

// closedPnLs replays fills per symbol with average-cost accounting and
// returns the P&L realized by each position-reducing fill.
func closedPnLs(fills []types.Fill) []float64 {
	type book struct {
		quantity float64
		avgCost  float64
	}

	books := make(map[string]*book)

	var pnls []float64

	for _, fill := range fills {
		b, ok := books[fill.Symbol]
		if !ok {
			b = &book{quantity: 0, avgCost: 0}
			books[fill.Symbol] = b
		}

		delta := fill.SignedQuantity()

		switch {
		case b.quantity == 0 || (b.quantity > 0) == (delta > 0):
			total := b.avgCost*math.Abs(b.quantity) + fill.Price*math.Abs(delta)
			b.quantity += delta
			b.avgCost = total / math.Abs(b.quantity)

		case math.Abs(delta) <= math.Abs(b.quantity):
			pnl := (fill.Price - b.avgCost) * math.Abs(delta)
			if b.quantity < 0 {
				pnl = -pnl
			}

			pnls = append(pnls, pnl)
			b.quantity += delta

			if b.quantity == 0 {
				b.avgCost = 0
			}

		default:
			pnl := (fill.Price - b.avgCost) * math.Abs(b.quantity)
			if b.quantity < 0 {
				pnl = -pnl
			}

			pnls = append(pnls, pnl)
			b.quantity += delta
			b.avgCost = fill.Price
		}
	}

	return pnls
}

// sharpe computes the ratio of mean to standard deviation of per-snapshot
// equity returns. No annualization is applied.
func sharpe(curve []types.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}

	var returns []float64

	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev > 0 {
			returns = append(returns, (curve[i].Equity-prev)/prev)
		}
	}

	if len(returns) == 0 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}

	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}

	variance /= float64(len(returns))

	if variance == 0 {
		return 0
	}

	return mean / math.Sqrt(variance)
}

// drawdown computes the largest peak-to-trough equity decline, absolute and
// as a percentage of the peak. The peak starts at the initial capital.
func drawdown(initialCapital float64, curve []types.EquityPoint) (float64, float64) {
	peak := initialCapital

	var maxDrawdown, maxDrawdownPct float64

	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}

		dd := peak - point.Equity
		if dd > maxDrawdown {
			maxDrawdown = dd

			if peak > 0 {
				maxDrawdownPct = dd / peak * 100
			}
		}
	}

	return maxDrawdown, maxDrawdownPct
}
