package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"briefboard/internal/aggregate"
	"briefboard/internal/provider"
	"briefboard/internal/provider/finance"
	"briefboard/internal/provider/news"
)

func newHeadlinesCmd(c *cli) *cobra.Command {
	var p news.HeadlinesParams
	cmd := &cobra.Command{
		Use:   "headlines",
		Short: "Print top headlines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := c.app.News.TopHeadlines(cmd.Context(), p, c.fetchOptions()...)
			if err != nil {
				return err
			}
			return c.printArticles(page.Articles)
		},
	}
	cmd.Flags().StringVarP(&p.Query, "query", "q", "", "Keywords to match")
	cmd.Flags().StringVar(&p.Country, "country", "", "Two-letter country code (default us)")
	cmd.Flags().StringVar(&p.Category, "category", "", "Category, or all")
	cmd.Flags().StringVar(&p.Sources, "sources", "", "Comma-separated source ids")
	cmd.Flags().IntVar(&p.PageSize, "page-size", 0, "Number of articles")
	cmd.Flags().IntVar(&p.Page, "page", 0, "Result page")
	return cmd
}

func newSearchCmd(c *cli) *cobra.Command {
	var p news.SearchParams
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search recent articles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Query = strings.Join(args, " ")
			page, err := c.app.News.Search(cmd.Context(), p, c.fetchOptions()...)
			if err != nil {
				return err
			}
			return c.printArticles(page.Articles)
		},
	}
	cmd.Flags().StringVar(&p.From, "from", "", "Oldest publish date (default one day ago)")
	cmd.Flags().StringVar(&p.To, "to", "", "Newest publish date")
	cmd.Flags().StringVar(&p.Language, "language", "", "Language code (default en)")
	cmd.Flags().StringVar(&p.SortBy, "sort-by", "", "relevancy, popularity or publishedAt")
	cmd.Flags().StringVar(&p.Sources, "sources", "", "Comma-separated source ids")
	cmd.Flags().StringVar(&p.Domains, "domains", "", "Comma-separated domains")
	cmd.Flags().IntVar(&p.PageSize, "page-size", 0, "Number of articles")
	cmd.Flags().StringVar(&p.Category, "category", "", "Label assigned to the results")
	return cmd
}

func newSourcesCmd(c *cli) *cobra.Command {
	var (
		p       news.SourcesParams
		groupBy string
	)
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List news sources grouped by category, country or language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			by, err := aggregate.ParseGroupBy(groupBy)
			if err != nil {
				return err
			}
			sources, err := c.app.News.Sources(cmd.Context(), p, c.fetchOptions()...)
			if err != nil {
				return err
			}
			groups, err := aggregate.GroupSources(sources, by)
			if err != nil {
				return err
			}
			return c.printSourceGroups(groups)
		},
	}
	cmd.Flags().StringVar(&groupBy, "group-by", string(aggregate.ByCategory), "category, country or language")
	cmd.Flags().StringVar(&p.Country, "country", "", "Filter by country")
	cmd.Flags().StringVar(&p.Language, "language", "", "Filter by language")
	cmd.Flags().StringVar(&p.Category, "category", "", "Filter by category")
	return cmd
}

func newQuoteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "quote [SYMBOL...]",
		Short: "Print quotes; without symbols the configured watchlist is used",
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols := args
			if len(symbols) == 0 {
				symbols = c.app.Config.Finance.Watchlist
			}
			if len(symbols) == 1 {
				q, err := c.app.Finance.Quote(cmd.Context(), symbols[0], c.fetchOptions()...)
				if err != nil {
					return err
				}
				return c.printQuotes([]provider.Quote{q})
			}
			wl, err := c.app.Dashboard.Watchlist(cmd.Context(), symbols)
			if err != nil {
				return err
			}
			if err := c.printQuotes(wl.Quotes); err != nil {
				return err
			}
			for _, e := range wl.Errors {
				fmt.Fprintln(c.out, warnColor.Sprint(e.Target+": ")+e.Err.Error())
			}
			return nil
		},
	}
}

func newPriceCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "price SYMBOL",
		Short: "Print the latest price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.app.Finance.Price(cmd.Context(), args[0], c.fetchOptions()...)
			if err != nil {
				return err
			}
			if c.output() == outputJSON {
				return c.printJSON(p)
			}
			return c.printTable([]string{"Symbol", "Price"}, [][]string{{p.Symbol, p.Price.String()}})
		},
	}
}

func newSeriesCmd(c *cli) *cobra.Command {
	var p finance.TimeSeriesParams
	cmd := &cobra.Command{
		Use:   "series SYMBOL",
		Short: "Print OHLCV candles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Symbol = args[0]
			ts, err := c.app.Finance.TimeSeries(cmd.Context(), p, c.fetchOptions()...)
			if err != nil {
				return err
			}
			return c.printSeries(ts)
		},
	}
	cmd.Flags().StringVar(&p.Interval, "interval", finance.DefaultInterval, "Bar interval, e.g. 1min, 1h, 1day")
	cmd.Flags().IntVar(&p.OutputSize, "outputsize", finance.DefaultOutputSize, "Number of bars")
	cmd.Flags().StringVar(&p.StartDate, "start", "", "First bar date")
	cmd.Flags().StringVar(&p.EndDate, "end", "", "Last bar date")
	return cmd
}

func newMarketCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "market SYMBOL",
		Short: "Report whether the symbol's exchange is open",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.app.Finance.MarketState(cmd.Context(), args[0], c.fetchOptions()...)
			if err != nil {
				return err
			}
			if c.output() == outputJSON {
				return c.printJSON(st)
			}
			state := closedColor.Sprint("closed")
			if st.IsOpen {
				state = openColor.Sprint("open")
			}
			return c.printTable([]string{"Symbol", "Exchange", "State"}, [][]string{{st.Symbol, st.Exchange, state}})
		},
	}
}

func newHomeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "home",
		Short: "Print the home page carousel and category sections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, err := c.app.Dashboard.Home(cmd.Context())
			if err != nil {
				return err
			}
			if c.output() == outputJSON {
				return c.printJSON(home)
			}
			fmt.Fprintln(c.out, headingColor.Sprint("Top stories"))
			if err := c.printArticles(home.Carousel); err != nil {
				return err
			}
			for _, s := range home.Sections {
				fmt.Fprintln(c.out, headingColor.Sprint(strings.ToUpper(s.Category)))
				if err := c.printArticles(s.Articles); err != nil {
					return err
				}
			}
			for _, e := range home.Errors {
				fmt.Fprintln(c.out, warnColor.Sprint(e.Target+": ")+e.Err.Error())
			}
			return nil
		},
	}
}

func newLikesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "likes",
		Short: "List liked articles and their category counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := c.app.Likes()
			if err != nil {
				return err
			}
			list, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			counts, err := store.CountByCategory(cmd.Context())
			if err != nil {
				return err
			}
			if c.output() == outputJSON {
				return c.printJSON(map[string]any{"count": len(list), "articles": list, "by_category": counts})
			}
			if err := c.printArticles(list); err != nil {
				return err
			}
			rows := make([][]string, 0, len(counts))
			for _, cc := range counts {
				rows = append(rows, []string{cc.Category, strconv.Itoa(cc.Count)})
			}
			return c.printTable([]string{"Category", "Liked"}, rows)
		},
	}
}

func newCacheCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the response cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "keys",
			Short: "List cached request keys",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				if c.app.Cache == nil {
					return errNoCache
				}
				keys := c.app.Cache.Keys()
				if c.output() == outputJSON {
					return c.printJSON(keys)
				}
				rows := make([][]string, 0, len(keys))
				for _, k := range keys {
					e, _ := c.app.Cache.Entry(k)
					rows = append(rows, []string{k, formatMillis(e.StoredAt)})
				}
				return c.printTable([]string{"Key", "Stored"}, rows)
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached response",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if c.app.Cache == nil {
					return errNoCache
				}
				n := c.app.Cache.Len()
				if err := c.app.Cache.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Cleared %d cached responses.\n", n)
				return nil
			},
		},
	)
	return cmd
}
