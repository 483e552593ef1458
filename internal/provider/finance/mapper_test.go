package finance_test

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"briefboard/internal/provider/finance"
)

func TestMapCandle_ParsesStringNumbersExactly(t *testing.T) {
	t.Parallel()

	// Act
	c, err := finance.MapCandle(finance.RawCandle{
		Datetime: "2024-01-02",
		Open:     "1.5",
		High:     "2.0",
		Low:      "1.0",
		Close:    "1.8",
		Volume:   "100",
	})

	// Assert: decimals compare by value, not by string form
	require.NoError(t, err)
	require.True(t, c.Open.Equal(decimal.RequireFromString("1.5")))
	require.True(t, c.High.Equal(decimal.NewFromInt(2)))
	require.True(t, c.Low.Equal(decimal.NewFromInt(1)))
	require.True(t, c.Close.Equal(decimal.RequireFromString("1.8")))
	require.Equal(t, int64(100), c.Volume)
	require.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), c.Time)
}

func TestMapCandle_NonNumericFails(t *testing.T) {
	t.Parallel()

	_, err := finance.MapCandle(finance.RawCandle{Datetime: "2024-01-02", Open: "abc", Close: "1"})
	require.ErrorContains(t, err, "open")

	_, err = finance.MapCandle(finance.RawCandle{Datetime: "2024-01-02", Open: "1", High: "1", Low: "1", Close: "1", Volume: "12.5"})
	require.ErrorContains(t, err, "volume")
}

func TestMapCandle_MissingFieldFails(t *testing.T) {
	t.Parallel()

	// Arrange: "high" empty and "low" null, which decodes to ""
	body := `{"datetime":"2024-01-02","open":"1.5","high":"","low":null,"close":"1.8","volume":"100"}`
	var raw finance.RawCandle
	require.NoError(t, json.Unmarshal([]byte(body), &raw))

	// Act
	_, err := finance.MapCandle(raw)

	// Assert: the first missing field is reported, not mapped to zero
	require.ErrorContains(t, err, "parsing high: missing value")

	raw.High = "2.0"
	_, err = finance.MapCandle(raw)
	require.ErrorContains(t, err, "parsing low: missing value")
}

func TestMapCandle_IntegralDecimalVolume(t *testing.T) {
	t.Parallel()

	c, err := finance.MapCandle(finance.RawCandle{Datetime: "2024-01-02 15:30:00", Open: "1", High: "1", Low: "1", Close: "1", Volume: "100.0"})
	require.NoError(t, err)
	require.Equal(t, int64(100), c.Volume)
	require.Equal(t, 15, c.Time.Hour())
}

func TestMapTimeSeries_UsesExchangeTimezone(t *testing.T) {
	t.Parallel()

	raw := finance.RawTimeSeries{
		Meta: finance.RawMeta{Symbol: "AAPL", Interval: "1h", Currency: "USD", Exchange: "NASDAQ", ExchangeTimezone: "America/New_York"},
		Values: []finance.RawCandle{
			{Datetime: "2024-01-02 10:00:00", Open: "1", High: "1", Low: "1", Close: "1", Volume: "1"},
		},
	}
	ts, err := finance.MapTimeSeries(raw)
	require.NoError(t, err)
	require.Equal(t, "AAPL", ts.Symbol)
	require.Equal(t, "NASDAQ", ts.Exchange)
	require.Len(t, ts.Values, 1)
	require.Equal(t, "America/New_York", ts.Values[0].Time.Location().String())
}

func TestMapTimeSeries_FailsWholeSeries(t *testing.T) {
	t.Parallel()

	raw := finance.RawTimeSeries{Values: []finance.RawCandle{
		{Datetime: "2024-01-02", Open: "1", High: "1", Low: "1", Close: "1", Volume: "1"},
		{Datetime: "2024-01-01", Open: "1", High: "1", Low: "1", Close: "n/a", Volume: "1"},
	}}
	_, err := finance.MapTimeSeries(raw)
	require.ErrorContains(t, err, "value 1")
}

func TestMapQuote(t *testing.T) {
	t.Parallel()

	q, err := finance.MapQuote(finance.RawQuote{
		Symbol:        "AAPL",
		Name:          "Apple Inc",
		Exchange:      "NASDAQ",
		Currency:      "USD",
		Datetime:      "2024-01-02",
		Open:          "187.15",
		High:          "188.44",
		Low:           "183.89",
		Close:         "185.64",
		Volume:        "82488700",
		PreviousClose: "192.53",
		Change:        "-6.89",
		PercentChange: "-3.58",
		AverageVolume: "51000000",
		FiftyTwoWeek:  finance.RawFiftyTwoWeek{Low: "124.17", High: "199.62"},
	})
	require.NoError(t, err)
	require.Equal(t, "Apple Inc", q.Name)
	require.Equal(t, "-6.89", q.Change.Decimal.String())
	require.Equal(t, int64(82488700), q.Volume)
	require.NotNil(t, q.AverageVolume)
	require.Equal(t, int64(51000000), *q.AverageVolume)
	require.True(t, q.FiftyTwoWeekHigh.Valid)
	require.Equal(t, "199.62", q.FiftyTwoWeekHigh.Decimal.String())
}

func TestMapQuote_MissingRequiredFieldFails(t *testing.T) {
	t.Parallel()

	_, err := finance.MapQuote(finance.RawQuote{Symbol: "AAPL", Datetime: "2024-01-02"})
	require.ErrorContains(t, err, "parsing open: missing value")

	_, err = finance.MapQuote(finance.RawQuote{Symbol: "AAPL", Datetime: "2024-01-02", Open: "1", High: "1", Low: "1", Close: "1"})
	require.ErrorContains(t, err, "parsing volume: missing value")
}

func TestMapQuote_OptionalFieldsAreNull(t *testing.T) {
	t.Parallel()

	q, err := finance.MapQuote(finance.RawQuote{
		Symbol:   "AAPL",
		Datetime: "2024-01-02",
		Open:     "1",
		High:     "2",
		Low:      "1",
		Close:    "1.5",
		Volume:   "10",
	})
	require.NoError(t, err)
	require.False(t, q.PreviousClose.Valid)
	require.False(t, q.Change.Valid)
	require.False(t, q.FiftyTwoWeekLow.Valid)
	require.Nil(t, q.AverageVolume)

	b, err := json.Marshal(q)
	require.NoError(t, err)
	require.Contains(t, string(b), `"previous_close":null`)
	require.Contains(t, string(b), `"average_volume":null`)
}

func TestMapQuote_BadPercentChange(t *testing.T) {
	t.Parallel()

	_, err := finance.MapQuote(finance.RawQuote{
		Datetime:      "2024-01-02",
		Open:          "1",
		High:          "1",
		Low:           "1",
		Close:         "1",
		Volume:        "1",
		PercentChange: "--",
	})
	require.ErrorContains(t, err, "percent_change")
}

func TestMapMarketState(t *testing.T) {
	t.Parallel()

	require.True(t, finance.MapMarketState(finance.RawMarketState{Symbol: "AAPL", MarketState: "open"}).IsOpen)
	require.False(t, finance.MapMarketState(finance.RawMarketState{Symbol: "AAPL", MarketState: "closed"}).IsOpen)

	open := true
	ms := finance.MapMarketState(finance.RawMarketState{Name: "NASDAQ", IsMarketOpen: &open})
	require.True(t, ms.IsOpen)
	require.Equal(t, "NASDAQ", ms.Exchange)
}

func TestMapPrice(t *testing.T) {
	t.Parallel()

	p, err := finance.MapPrice("BTC/USD", finance.RawPrice{Price: "64123.50"})
	require.NoError(t, err)
	require.Equal(t, "BTC/USD", p.Symbol)
	require.True(t, p.Price.Equal(decimal.RequireFromString("64123.5")))

	_, err = finance.MapPrice("BTC/USD", finance.RawPrice{Price: "soon"})
	require.Error(t, err)
}
