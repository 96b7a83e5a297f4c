package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Nifty Paper Trading Configuration

[server]
# Listen address for the platform server
addr = ":8080"
# HMAC secret for signing session tokens. Required to run the server.
jwt_secret = ""
# Session token lifetime
token_ttl = "24h"
# Allowed CORS origins
cors_origins = ["*"]
# Graceful shutdown timeout
shutdown_timeout = "10s"

[database]
# SQLite database path. Empty uses the config directory.
path = ""

[feed]
# Simulated tick interval range per symbol
tick_interval_min = "1s"
tick_interval_max = "3s"
# Maximum tick-to-tick move as a percentage of price
max_move_percent = 0.5
# Optional instruments CSV overriding the built-in catalog
instruments_csv = ""
# Days of backfilled daily candles
history_days = 30

[trading]
# Starting virtual wallet balance in INR
initial_balance = 100000.0
# Maximum notional per position in INR
max_position_size = 50000.0
# Maximum orders per user per day
max_orders_per_day = 100
# Minimum order value in INR
min_order_value = 100.0
# Default product type: MIS, CNC, NRML
default_product = "MIS"
# Default exchange: NSE, NFO
default_exchange = "NFO"
# Reject orders outside NSE market hours
enforce_hours = false

[client]
# Platform server endpoints used by the CLI
base_url = "http://localhost:8080"
ws_url = "ws://localhost:8080/ws"
timeout = "10s"

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "02-Jan-2006"
# Time format
time_format = "15:04:05"

[logging]
# Log level: trace, debug, info, warn, error
level = "info"
# Log file path. Empty uses the config directory.
file = ""
max_size_mb = 10
max_backups = 5
max_age_days = 30
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
