package main

import (
	"encoding/json"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/shopspring/decimal"

	"briefboard/internal/aggregate"
	"briefboard/internal/provider"
)

const maxTitleWidth = 70

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	openColor    = color.New(color.FgGreen)
	closedColor  = color.New(color.FgHiBlack)
	upColor      = color.New(color.FgGreen)
	downColor    = color.New(color.FgRed)
)

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func (c *cli) printTable(headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(c.out)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func (c *cli) printArticles(articles []provider.Article) error {
	if c.output() == outputJSON {
		return c.printJSON(articles)
	}
	rows := make([][]string, 0, len(articles))
	for _, a := range articles {
		rows = append(rows, []string{
			a.PublishedAt.Format(time.DateTime),
			a.SourceName,
			truncateTitle(a.Title, maxTitleWidth),
			a.Category,
		})
	}
	return c.printTable([]string{"Published", "Source", "Title", "Category"}, rows)
}

func (c *cli) printSourceGroups(groups []aggregate.SourceGroup) error {
	if c.output() == outputJSON {
		return c.printJSON(groups)
	}
	var rows [][]string
	for _, g := range groups {
		key := g.Key
		if key == "" {
			key = aggregate.Uncategorized
		}
		for _, s := range g.Sources {
			rows = append(rows, []string{key, s.Name, s.Country, s.Language})
		}
	}
	return c.printTable([]string{"Group", "Source", "Country", "Language"}, rows)
}

func (c *cli) printQuotes(quotes []provider.Quote) error {
	if c.output() == outputJSON {
		return c.printJSON(quotes)
	}
	rows := make([][]string, 0, len(quotes))
	for _, q := range quotes {
		rows = append(rows, []string{
			q.Symbol,
			q.Name,
			q.Close.String(),
			colorChange(q.Change, q.Change.Decimal.String()),
			colorChange(q.PercentChange, q.PercentChange.Decimal.StringFixed(2)+"%"),
			q.Currency,
		})
	}
	return c.printTable([]string{"Symbol", "Name", "Close", "Change", "%", "Currency"}, rows)
}

func (c *cli) printSeries(ts provider.TimeSeries) error {
	if c.output() == outputJSON {
		return c.printJSON(ts)
	}
	rows := make([][]string, 0, len(ts.Values))
	for _, v := range ts.Values {
		rows = append(rows, []string{
			v.Time.Format(time.DateTime),
			v.Open.String(),
			v.High.String(),
			v.Low.String(),
			v.Close.String(),
			strconv.FormatInt(v.Volume, 10),
		})
	}
	return c.printTable([]string{"Time", "Open", "High", "Low", "Close", "Volume"}, rows)
}

func colorChange(d decimal.NullDecimal, s string) string {
	if !d.Valid {
		return "-"
	}
	switch d.Decimal.Sign() {
	case 1:
		return upColor.Sprint(s)
	case -1:
		return downColor.Sprint(s)
	}
	return s
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format(time.DateTime)
}

func truncateTitle(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
