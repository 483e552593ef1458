package provider

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategory labels articles whose request carried no category.
const DefaultCategory = "general"

// Article is the normalized shape of a news article, independent of the provider.
type Article struct {
	SourceID    string    `json:"source_id"`
	SourceName  string    `json:"source_name"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"image_url"`
	PublishedAt time.Time `json:"published_at"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
}

// ArticlePage is one page of articles as returned by a headlines or search call.
type ArticlePage struct {
	Status       string    `json:"status"`
	TotalResults int       `json:"total_results"`
	Articles     []Article `json:"articles"`
}

// Source is a news publisher known to the provider.
type Source struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Category    string `json:"category"`
	Language    string `json:"language"`
	Country     string `json:"country"`
}

// Candle is a single OHLCV bar of a time series.
type Candle struct {
	Time   time.Time       `json:"datetime"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// TimeSeries is a symbol's candles at a fixed interval, newest first as the provider returns them.
type TimeSeries struct {
	Symbol   string   `json:"symbol"`
	Interval string   `json:"interval"`
	Currency string   `json:"currency"`
	Exchange string   `json:"exchange"`
	Values   []Candle `json:"values"`
}

// Quote is the latest trading snapshot for a symbol. Fields the provider may
// omit are nullable and encode as null when absent.
type Quote struct {
	Symbol   string    `json:"symbol"`
	Name     string    `json:"name"`
	Exchange string    `json:"exchange"`
	Currency string    `json:"currency"`
	Time     time.Time `json:"datetime"`

	Open          decimal.Decimal     `json:"open"`
	High          decimal.Decimal     `json:"high"`
	Low           decimal.Decimal     `json:"low"`
	Close         decimal.Decimal     `json:"close"`
	PreviousClose decimal.NullDecimal `json:"previous_close"`

	Volume        int64  `json:"volume"`
	AverageVolume *int64 `json:"average_volume"`

	Change        decimal.NullDecimal `json:"change"`
	PercentChange decimal.NullDecimal `json:"percent_change"`

	FiftyTwoWeekLow  decimal.NullDecimal `json:"fifty_two_week_low"`
	FiftyTwoWeekHigh decimal.NullDecimal `json:"fifty_two_week_high"`
}

// MarketState reports whether the exchange of a symbol is currently trading.
type MarketState struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	IsOpen   bool   `json:"is_open"`
}

// Price is the latest traded price of a symbol.
type Price struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}
