package config

import (
	"errors"
	"fmt"

	"voyant/internal/scheduler"
)

// ErrCredentialMissing marks a startup-fatal credential problem. main exits
// non-zero on it; nothing else in the process is allowed to be this loud.
var ErrCredentialMissing = errors.New("credential missing")

func validate(c *Config) error {
	if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
		return fmt.Errorf("%w: exchange api_key/api_secret (or BINANCE_API_KEY/BINANCE_API_SECRET)", ErrCredentialMissing)
	}
	if c.Oracle.APIKey == "" {
		return fmt.Errorf("%w: oracle api_key (or OPENAI_API_KEY)", ErrCredentialMissing)
	}
	if _, ok := scheduler.ParseIntervalDuration(c.Schedule.DecisionInterval); !ok {
		return fmt.Errorf("invalid schedule.decision_interval: %q", c.Schedule.DecisionInterval)
	}
	if _, ok := scheduler.ParseIntervalDuration(c.Market.Interval); !ok {
		return fmt.Errorf("invalid market.interval: %q", c.Market.Interval)
	}
	if c.Chart.Enabled && !c.Oracle.SupportsVision {
		return fmt.Errorf("chart.enabled requires oracle.supports_vision")
	}
	if c.Notify.Telegram.Enabled && (c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "") {
		return fmt.Errorf("telegram notify enabled but bot_token/chat_id not set")
	}
	return nil
}
