package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/krxlab/stock-insight/internal/collectors"
	"github.com/krxlab/stock-insight/internal/models"
)

var (
	moversMarket   string
	moversCount    int
	moversLosers   bool
	moversMinValue int64
)

var moversCmd = &cobra.Command{
	Use:   "movers",
	Short: "Show today's biggest gainers or losers",
	Args:  cobra.NoArgs,
	RunE:  runMovers,
}

func init() {
	moversCmd.Flags().StringVar(&moversMarket, "market", models.MarketKOSPI, "market to rank: KOSPI or KOSDAQ")
	moversCmd.Flags().IntVar(&moversCount, "count", 10, "number of stocks to show")
	moversCmd.Flags().BoolVar(&moversLosers, "losers", false, "rank the biggest losers instead of gainers")
	moversCmd.Flags().Int64Var(&moversMinValue, "min-value", 0, "drop stocks trading below this value in KRW")
	rootCmd.AddCommand(moversCmd)
}

func runMovers(cmd *cobra.Command, args []string) error {
	if moversCount <= 0 {
		return fmt.Errorf("count must be positive")
	}
	market := strings.ToUpper(moversMarket)
	if market != models.MarketKOSPI && market != models.MarketKOSDAQ {
		return fmt.Errorf("unknown market %q", moversMarket)
	}

	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := collectors.NewClient(cfg.Collector.Timeout, cfg.Collector.RateLimit, cfg.Collector.Burst, logger)
	prices := collectors.NewPriceCollector(cfg.Collector.MarketBaseURL, client, nil, logger)

	stocks, err := prices.TopByChangeRate(cmd.Context(), market, moversCount, moversLosers, moversMinValue)
	if err != nil {
		return err
	}
	if len(stocks) == 0 {
		fmt.Println("no stocks matched")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tCLOSE\tCHANGE\tVALUE")
	for _, s := range stocks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%+.2f%%\t%s\n",
			s.Code, s.Name, s.Close.StringFixed(0), s.ChangeRate, formatTradingValue(s.TradingValue))
	}
	return w.Flush()
}

// formatTradingValue renders KRW amounts at a readable scale
func formatTradingValue(v int64) string {
	switch {
	case v >= 1e12:
		return fmt.Sprintf("%.1fT", float64(v)/1e12)
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", float64(v)/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", float64(v)/1e6)
	default:
		return fmt.Sprintf("%d", v)
	}
}
