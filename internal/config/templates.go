package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# growwbot configuration

[broker]
# Market data source: "kite" or "replay"
provider = "kite"
# Directory of <SYMBOL>.json candle files for the replay provider
replay_dir = ""
# Historical data requests per second
requests_per_second = 3.0
# Consecutive broker failures before calls pause, and for how long
breaker_trip_after = 5
breaker_cooldown = "30s"

[database]
# Defaults to <config dir>/growwbot.db
path = ""

[logging]
level = "info"
file = true
path = ""

[backtest]
exchange = "NSE"
segment = "CASH"
interval = "5minute"
initial_capital = 100000.0
risk_percent = 1.0
max_positions = 1
# When one bar touches both stop and target: "proximity" or "conservative"
tie_policy = "proximity"
# Exchange holidays excluded from daily-picks runs (YYYY-MM-DD)
holidays = []

[daily_picks]
max_positions_per_day = 3
max_trade_duration_minutes = 15
workers = 3
use_cached_snapshots = true
# Candidate source: "screener" or "file"
source = "screener"
picks_file = ""
# Groww symbols screened each day, e.g. "NSE-RELIANCE"
universe = []
fno_symbols = []

[fees]
brokerage_flat = 20.0
brokerage_pct = 0.0003
stt_intraday_sell = 0.00025
stt_delivery = 0.001
exchange_txn = 0.0000345
sebi = 0.000001
stamp_duty_buy = 0.00003
gst = 0.18

[strategies.momentum_scalp]
ema_fast = 9
ema_slow = 21
rsi_min = 40.0
rsi_max = 65.0
volume_threshold = 1.5
atr_target_mult = 1.5
atr_sl_mult = 1.0
fee_safety_margin = 0.5

[strategies.mean_reversion]
vwap_distance_atr_min = 1.0
rsi_max = 35.0
volume_threshold = 2.0
atr_sl_mult = 1.5
fee_safety_margin = 0.5

[monitor]
interval = "5s"
batch_size = 50
base_backoff = "5s"
max_backoff = "60s"
# Skip real exit orders
paper_mode = true
# Sleep until 09:15 IST while the market is closed
market_hours_only = true

[server]
addr = ":8000"

[notify]
# Which monitor events are sent: "all", "trades_only" or "errors_only"
level = "all"
# POSTs a JSON payload per event when set
webhook_url = ""
# Telegram chat for exit alerts; the bot token lives in credentials.toml
telegram_chat_id = ""
`

const credentialsTemplate = `# growwbot credentials
# Keep this file private (chmod 600)

[kite]
api_key = ""
access_token = ""

[telegram]
bot_token = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}

	return nil
}
