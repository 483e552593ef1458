package finance

// RawMeta describes the instrument of a time series response.
type RawMeta struct {
	Symbol           string `json:"symbol"`
	Interval         string `json:"interval"`
	Currency         string `json:"currency"`
	ExchangeTimezone string `json:"exchange_timezone"`
	Exchange         string `json:"exchange"`
	MicCode          string `json:"mic_code"`
	Type             string `json:"type"`
}

// RawCandle is one OHLCV bar. The provider encodes every number as a string.
type RawCandle struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

// RawTimeSeries is the body of the time_series endpoint.
type RawTimeSeries struct {
	Meta    RawMeta     `json:"meta"`
	Values  []RawCandle `json:"values"`
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
}

// RawFiftyTwoWeek is the yearly range block of a quote.
type RawFiftyTwoWeek struct {
	Low  string `json:"low"`
	High string `json:"high"`
}

// RawQuote is the body of the quote endpoint.
type RawQuote struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Exchange      string          `json:"exchange"`
	Currency      string          `json:"currency"`
	Datetime      string          `json:"datetime"`
	Timestamp     int64           `json:"timestamp"`
	Open          string          `json:"open"`
	High          string          `json:"high"`
	Low           string          `json:"low"`
	Close         string          `json:"close"`
	Volume        string          `json:"volume"`
	PreviousClose string          `json:"previous_close"`
	Change        string          `json:"change"`
	PercentChange string          `json:"percent_change"`
	AverageVolume string          `json:"average_volume"`
	FiftyTwoWeek  RawFiftyTwoWeek `json:"fifty_two_week"`
	Status        string          `json:"status"`
}

// RawMarketState is the body of the market_state endpoint, or one element of
// it when the provider answers with a list of exchanges.
type RawMarketState struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Exchange     string `json:"exchange"`
	MarketState  string `json:"market_state"`
	IsMarketOpen *bool  `json:"is_market_open"`
	Status       string `json:"status"`
}

// RawPrice is the body of the price endpoint.
type RawPrice struct {
	Price string `json:"price"`
}
