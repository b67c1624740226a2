package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/kjannette/stockagg/internal/analytics"
	"github.com/kjannette/stockagg/internal/app"
	"github.com/kjannette/stockagg/internal/config"
	"github.com/kjannette/stockagg/internal/models"
)

// cli carries state shared by every subcommand.
type cli struct {
	useMock bool
	timeout time.Duration
	app     *app.App
	closed  bool
}

// run executes one CLI invocation. The app is closed whether or not the
// command succeeded.
func (c *cli) run(args []string, out io.Writer) error {
	defer c.close()

	root := c.rootCmd()
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	return root.Execute()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stockctl",
		Short:         "Query stock prices and correlations from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
	}
	root.PersistentFlags().BoolVar(&c.useMock, "mock", false, "use generated data instead of the exchange")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 30*time.Second, "overall request timeout")

	root.AddCommand(c.stocksCmd(), c.priceCmd(), c.correlateCmd())
	return root
}

func (c *cli) close() {
	if c.app != nil && !c.closed {
		c.app.Close()
		c.closed = true
	}
}

func (c *cli) setup(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.useMock {
		cfg.UseMockData = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

func (c *cli) stocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stocks",
		Short: "List the instruments the exchange knows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()

			list, origin, err := c.app.Stocks.ListStocks(ctx)
			if err != nil {
				return err
			}
			return renderStocks(cmd.OutOrStdout(), list, string(origin))
		},
	}
}

func (c *cli) priceCmd() *cobra.Command {
	var minutes int
	cmd := &cobra.Command{
		Use:   "price TICKER",
		Short: "Show the average price and history for one ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if minutes < 0 {
				return fmt.Errorf("--minutes must not be negative")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()

			agg, origin, err := c.app.Stocks.AveragePrice(ctx, args[0], minutes)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s average: %.4f (%d points, source: %s)\n", args[0], agg.AveragePrice, len(agg.PriceHistory), origin)
			return renderHistory(out, agg.PriceHistory)
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 0, "window in minutes (0 = latest price)")
	return cmd
}

func (c *cli) correlateCmd() *cobra.Command {
	var minutes int
	cmd := &cobra.Command{
		Use:   "correlate TICKER_A TICKER_B",
		Short: "Correlate two tickers over a window",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if minutes <= 0 {
				minutes = c.app.Config.DefaultCorrelationMinutes
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
			defer cancel()

			res, origin, err := c.app.Stocks.Correlation(ctx, args[0], args[1], minutes)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "correlation(%s, %s) over %d min: %.4f (source: %s)\n",
				args[0], args[1], minutes, analytics.RoundCoefficient(res.Coefficient), origin)
			return renderAggregates(out, []string{args[0], args[1]}, []models.StockAggregate{res.StockA, res.StockB})
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 0, "window in minutes (default from DEFAULT_CORRELATION_MINUTES)")
	return cmd
}

// --- output ---

func renderStocks(w io.Writer, list map[string]string, origin string) error {
	names := make([]string, 0, len(list))
	for name := range list {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Ticker", "Company"})

	var data [][]string
	for _, name := range names {
		data = append(data, []string{list[name], name})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d instruments (source: %s)\n", len(names), origin)
	return nil
}

func renderHistory(w io.Writer, history []models.PricePoint) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "Price", "Last Updated"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for i, p := range history {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(p.Price, 'f', 4, 64),
			p.LastUpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func renderAggregates(w io.Writer, tickers []string, aggs []models.StockAggregate) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Ticker", "Average", "Points"})

	var data [][]string
	for i, agg := range aggs {
		data = append(data, []string{
			tickers[i],
			strconv.FormatFloat(agg.AveragePrice, 'f', 4, 64),
			strconv.Itoa(len(agg.PriceHistory)),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
