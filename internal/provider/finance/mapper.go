package finance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"briefboard/internal/provider"
)

const marketOpen = "open"

var datetimeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

// MapTimeSeries normalizes a time series. Candle times are read in the
// exchange's timezone when the provider names one that loads.
func MapTimeSeries(raw RawTimeSeries) (provider.TimeSeries, error) {
	loc := location(raw.Meta.ExchangeTimezone)
	values := make([]provider.Candle, 0, len(raw.Values))
	for i, v := range raw.Values {
		c, err := mapCandle(v, loc)
		if err != nil {
			return provider.TimeSeries{}, fmt.Errorf("value %d: %w", i, err)
		}
		values = append(values, c)
	}
	return provider.TimeSeries{
		Symbol:   raw.Meta.Symbol,
		Interval: raw.Meta.Interval,
		Currency: raw.Meta.Currency,
		Exchange: raw.Meta.Exchange,
		Values:   values,
	}, nil
}

// MapCandle normalizes a single bar with its time read as UTC.
func MapCandle(raw RawCandle) (provider.Candle, error) {
	return mapCandle(raw, time.UTC)
}

func mapCandle(raw RawCandle, loc *time.Location) (provider.Candle, error) {
	var (
		c   provider.Candle
		err error
	)
	if c.Time, err = parseDatetime("datetime", raw.Datetime, loc); err != nil {
		return provider.Candle{}, err
	}
	p := fieldParser{}
	c.Open = p.decimal("open", raw.Open)
	c.High = p.decimal("high", raw.High)
	c.Low = p.decimal("low", raw.Low)
	c.Close = p.decimal("close", raw.Close)
	c.Volume = p.volume("volume", raw.Volume)
	if p.err != nil {
		return provider.Candle{}, p.err
	}
	return c, nil
}

// MapQuote normalizes a quote.
func MapQuote(raw RawQuote) (provider.Quote, error) {
	q := provider.Quote{
		Symbol:   raw.Symbol,
		Name:     raw.Name,
		Exchange: raw.Exchange,
		Currency: raw.Currency,
	}
	switch {
	case raw.Datetime != "":
		t, err := parseDatetime("datetime", raw.Datetime, time.UTC)
		if err != nil {
			return provider.Quote{}, err
		}
		q.Time = t
	case raw.Timestamp > 0:
		q.Time = time.Unix(raw.Timestamp, 0).UTC()
	}

	p := fieldParser{}
	q.Open = p.decimal("open", raw.Open)
	q.High = p.decimal("high", raw.High)
	q.Low = p.decimal("low", raw.Low)
	q.Close = p.decimal("close", raw.Close)
	q.PreviousClose = p.optionalDecimal("previous_close", raw.PreviousClose)
	q.Volume = p.volume("volume", raw.Volume)
	q.AverageVolume = p.optionalVolume("average_volume", raw.AverageVolume)
	q.Change = p.optionalDecimal("change", raw.Change)
	q.PercentChange = p.optionalDecimal("percent_change", raw.PercentChange)
	q.FiftyTwoWeekLow = p.optionalDecimal("fifty_two_week.low", raw.FiftyTwoWeek.Low)
	q.FiftyTwoWeekHigh = p.optionalDecimal("fifty_two_week.high", raw.FiftyTwoWeek.High)
	if p.err != nil {
		return provider.Quote{}, p.err
	}
	return q, nil
}

// MapMarketState normalizes a market state. The explicit is_market_open flag
// wins over the market_state string when both are present.
func MapMarketState(raw RawMarketState) provider.MarketState {
	open := strings.EqualFold(raw.MarketState, marketOpen)
	if raw.IsMarketOpen != nil {
		open = *raw.IsMarketOpen
	}
	exchange := raw.Exchange
	if exchange == "" {
		exchange = raw.Name
	}
	return provider.MarketState{Symbol: raw.Symbol, Exchange: exchange, IsOpen: open}
}

// MapPrice normalizes a price for symbol.
func MapPrice(symbol string, raw RawPrice) (provider.Price, error) {
	p := fieldParser{}
	price := p.decimal("price", raw.Price)
	if p.err != nil {
		return provider.Price{}, p.err
	}
	return provider.Price{Symbol: symbol, Price: price}, nil
}

// fieldParser keeps the first parse error so a mapping reads top to bottom.
// Required fields fail when empty; JSON null decodes to "" and counts as empty.
// Optional fields map an empty string to null.
type fieldParser struct {
	err error
}

func (p *fieldParser) decimal(field, s string) decimal.Decimal {
	if p.err != nil {
		return decimal.Zero
	}
	if s == "" {
		p.err = fmt.Errorf("parsing %s: missing value", field)
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		p.err = fmt.Errorf("parsing %s %q: %w", field, s, err)
		return decimal.Zero
	}
	return d
}

func (p *fieldParser) optionalDecimal(field, s string) decimal.NullDecimal {
	if p.err != nil || s == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(p.decimal(field, s))
}

func (p *fieldParser) volume(field, s string) int64 {
	if p.err != nil {
		return 0
	}
	if s == "" {
		p.err = fmt.Errorf("parsing %s: missing value", field)
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		p.err = fmt.Errorf("parsing %s %q: not an integer", field, s)
		return 0
	}
	return d.IntPart()
}

func (p *fieldParser) optionalVolume(field, s string) *int64 {
	if p.err != nil || s == "" {
		return nil
	}
	n := p.volume(field, s)
	if p.err != nil {
		return nil
	}
	return &n
}

func parseDatetime(field, s string, loc *time.Location) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing %s %q: unknown layout", field, s)
}

func location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
