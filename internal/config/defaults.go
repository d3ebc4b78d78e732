package config

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "live"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":9981"
	}

	if c.Market.Symbol == "" {
		c.Market.Symbol = "BTCUSDT"
	}
	if c.Market.Interval == "" {
		c.Market.Interval = "1h"
	}
	if c.Market.Lookback <= 0 {
		c.Market.Lookback = 120
	}
	if c.Market.OrderBookTop <= 0 {
		c.Market.OrderBookTop = 5
	}
	if c.Market.RESTBaseURL == "" {
		c.Market.RESTBaseURL = "https://api.binance.com"
	}
	if c.Market.Retry.MaxAttempts <= 0 {
		c.Market.Retry.MaxAttempts = 3
	}
	if c.Market.Retry.BaseDelayMS <= 0 {
		c.Market.Retry.BaseDelayMS = 800
	}
	if c.Market.Retry.MaxDelayMS <= 0 {
		c.Market.Retry.MaxDelayMS = 8000
	}
	if c.Market.BreakerTrips <= 0 {
		c.Market.BreakerTrips = 5
	}
	if c.Market.BreakerExpiry <= 0 {
		c.Market.BreakerExpiry = 120
	}

	if c.Exchange.MinNotionalUSD <= 0 {
		// Binance spot floor for most USDT pairs.
		c.Exchange.MinNotionalUSD = 10
	}
	if c.Exchange.TimeoutSeconds <= 0 {
		c.Exchange.TimeoutSeconds = 15
	}

	if c.Oracle.APIURL == "" {
		c.Oracle.APIURL = "https://api.openai.com/v1"
	}
	if c.Oracle.Model == "" {
		c.Oracle.Model = "gpt-4o"
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = 60
	}
	if c.Oracle.MaxRetries <= 0 {
		c.Oracle.MaxRetries = 2
	}

	if c.Trading.ConfidenceFloor <= 0 {
		c.Trading.ConfidenceFloor = 70
	}

	if c.Sentiment.APIURL == "" {
		c.Sentiment.APIURL = "https://api.alternative.me/fng/"
	}
	if c.Sentiment.TimeoutSeconds <= 0 {
		c.Sentiment.TimeoutSeconds = 10
	}

	if c.Schedule.DecisionInterval == "" {
		c.Schedule.DecisionInterval = "1h"
	}
	if c.Schedule.ReflectionHourUTC < 0 || c.Schedule.ReflectionHourUTC > 23 {
		c.Schedule.ReflectionHourUTC = 9
	}
	if c.Schedule.MaxConsecutiveFails <= 0 {
		c.Schedule.MaxConsecutiveFails = 5
	}

	if c.Store.Path == "" {
		c.Store.Path = "data/voyant.db"
	}
}
