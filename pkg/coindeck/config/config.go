package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime settings. Values come from the environment,
// typically via a .env file loaded in main.
type Config struct {
	Port   string
	DBPath string

	// Rate limiting
	RateLimitMax      int           // requests per window per identity
	RateLimitWindow   time.Duration
	RateLimitKeyBurst int           // extra budget for callers presenting an API key
	RateLimitSkip     []string      // paths that bypass rate limiting

	// Price providers
	CoinGeckoBaseURL string
	PriceCacheTTL    time.Duration
	EthereumRPCURL   string
	UniswapPairAddr  string

	// Alerts
	AlertCheckSpec string // cron spec for the alert checker, empty disables it
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		Port:   envStr("PORT", "8080"),
		DBPath: envStr("COINDECK_DB_PATH", "coindeck.db"),

		RateLimitMax:      envInt("RATE_LIMIT_MAX", 60),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		RateLimitKeyBurst: envInt("RATE_LIMIT_KEY_BURST", 20),
		RateLimitSkip:     envList("RATE_LIMIT_SKIP_PATHS", "/health,/health/detailed"),

		CoinGeckoBaseURL: envStr("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
		PriceCacheTTL:    time.Duration(envInt("PRICE_CACHE_TTL_SECONDS", 30)) * time.Second,
		EthereumRPCURL:   envStr("ETHEREUM_RPC_URL", ""),
		// Uniswap V2 USDC/WETH pair
		UniswapPairAddr: envStr("UNISWAP_PAIR_ADDRESS", "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"),

		AlertCheckSpec: envStr("ALERT_CHECK_CRON", "@every 1m"),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envList(key, def string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
