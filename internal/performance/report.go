package performance

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tradecore-lab/tradecore/pkg/errors"
)

// WriteStats writes the metrics to a yaml file.
func WriteStats(path string, metrics Metrics) error {
	data, err := yaml.Marshal(metrics)
	if err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to marshal stats", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to write stats", err)
	}

	return nil
}

// WriteReport writes a markdown summary of the run.
func WriteReport(path string, metrics Metrics) error {
	var b strings.Builder

	b.WriteString("# Run Report\n\n")
	b.WriteString("## Returns\n\n")
	fmt.Fprintf(&b, "| Initial capital | %.2f |\n", metrics.InitialCapital)
	fmt.Fprintf(&b, "|---|---|\n")
	fmt.Fprintf(&b, "| Final equity | %.2f |\n", metrics.FinalEquity)
	fmt.Fprintf(&b, "| Total return | %.2f (%.2f%%) |\n", metrics.TotalReturn, metrics.TotalReturnPct)
	fmt.Fprintf(&b, "| Realized P&L | %.2f |\n", metrics.RealizedPnL)
	fmt.Fprintf(&b, "| Sharpe ratio | %.4f |\n", metrics.SharpeRatio)
	fmt.Fprintf(&b, "| Max drawdown | %.2f (%.2f%%) |\n", metrics.MaxDrawdown, metrics.MaxDrawdownPct)
	b.WriteString("\n## Trading\n\n")
	fmt.Fprintf(&b, "| Orders | %d |\n", metrics.TotalOrders)
	fmt.Fprintf(&b, "|---|---|\n")
	fmt.Fprintf(&b, "| Fills | %d |\n", metrics.TotalFills)
	fmt.Fprintf(&b, "| Rejections | %d |\n", metrics.Rejections)
	fmt.Fprintf(&b, "| Closed trades | %d |\n", metrics.ClosedTrades)
	fmt.Fprintf(&b, "| Winning / losing | %d / %d |\n", metrics.WinningTrades, metrics.LosingTrades)
	fmt.Fprintf(&b, "| Win rate | %.2f%% |\n", metrics.WinRate)
	fmt.Fprintf(&b, "| Avg win / avg loss | %.2f / %.2f |\n", metrics.AvgWin, metrics.AvgLoss)
	fmt.Fprintf(&b, "| Profit factor | %.2f |\n", metrics.ProfitFactor)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to write report", err)
	}

	return nil
}
