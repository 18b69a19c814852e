package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/krxlab/stock-insight/internal/collectors"
	"github.com/krxlab/stock-insight/internal/models"
)

var (
	watchPriority int
	watchNotes    string
	watchAll      bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage the daily analysis watchlist",
}

var watchAddCmd = &cobra.Command{
	Use:   "add <code> [name]",
	Short: "Add a stock to the watchlist",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runWatchAdd,
}

var watchRemoveCmd = &cobra.Command{
	Use:   "remove <code>",
	Short: "Remove a stock from the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchRemove,
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watchlist entries",
	Args:  cobra.NoArgs,
	RunE:  runWatchList,
}

func init() {
	watchAddCmd.Flags().IntVar(&watchPriority, "priority", 1, "analysis priority, 1 is highest")
	watchAddCmd.Flags().StringVar(&watchNotes, "notes", "", "free-form note stored with the entry")
	watchListCmd.Flags().BoolVar(&watchAll, "all", false, "include disabled entries")
	watchCmd.AddCommand(watchAddCmd, watchRemoveCmd, watchListCmd)
	rootCmd.AddCommand(watchCmd)
}

func runWatchAdd(cmd *cobra.Command, args []string) error {
	code := args[0]
	if !collectors.IsValidCode(code) {
		return fmt.Errorf("invalid stock code %q: a six-digit code is required", code)
	}

	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var name string
	if len(args) > 1 {
		name = args[1]
	} else {
		// no name given; look the listing up so the watchlist stays readable
		client := collectors.NewClient(cfg.Collector.Timeout, cfg.Collector.RateLimit, cfg.Collector.Burst, logger)
		prices := collectors.NewPriceCollector(cfg.Collector.MarketBaseURL, client, nil, logger)
		info, err := prices.GetStockInfo(cmd.Context(), code)
		if err != nil {
			logger.Warn().Err(err).Str("code", code).Msg("could not resolve stock name")
		} else {
			name = info.Name
			if err := db.UpsertStock(info); err != nil {
				logger.Warn().Err(err).Str("code", code).Msg("failed to store stock info")
			}
		}
	}

	item := &models.WatchItem{
		Code:     code,
		Name:     name,
		Enabled:  true,
		Priority: watchPriority,
		Notes:    watchNotes,
	}
	if err := db.UpsertWatchItem(item); err != nil {
		return err
	}

	if name != "" {
		fmt.Printf("added %s (%s) to the watchlist\n", name, code)
	} else {
		fmt.Printf("added %s to the watchlist\n", code)
	}
	return nil
}

func runWatchRemove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteWatchItem(args[0]); err != nil {
		return err
	}
	fmt.Printf("removed %s from the watchlist\n", args[0])
	return nil
}

func runWatchList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	items, err := db.GetWatchlist(!watchAll)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("watchlist is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tPRIORITY\tENABLED\tCLOSE\tCHANGE\tRSI\tADDED")
	for _, item := range items {
		// latest stored bar and indicator snapshot; blank until collected
		var closePx, change, rsi string
		if price, err := db.GetLatestPrice(item.Code); err == nil {
			closePx = price.Close.StringFixed(0)
			if price.ChangeRate != nil {
				change = fmt.Sprintf("%+.2f%%", *price.ChangeRate)
			}
		}
		if ind, err := db.GetLatestIndicator(item.Code); err == nil && ind.RSI != nil {
			rsi = fmt.Sprintf("%.1f", *ind.RSI)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\t%s\t%s\t%s\n",
			item.Code, item.Name, item.Priority, item.Enabled,
			closePx, change, rsi, item.AddedAt.Format("2006-01-02"))
	}
	return w.Flush()
}
