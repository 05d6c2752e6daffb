package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// defaultSymbols is the large-cap universe scanned when SYMBOLS is unset.
const defaultSymbols = "AAPL,MSFT,GOOGL,AMZN,NVDA,TSLA,META,BRK.B,JPM,V," +
	"UNH,XOM,LLY,JNJ,PG,MA,HD,AVGO,CVX,MRK," +
	"ABBV,COST,PEP,ADBE,KO,WMT,CRM,BAC,TMO,CSCO," +
	"MCD,ACN,PFE,NFLX,AMD,LIN,ABT,ORCL,DHR,TXN," +
	"DIS,WFC,CAT,VZ,INTU,AMGN,IBM,QCOM,GE,NOW"

// defaultKings is the short watchlist that qualifies for the deep value tier.
const defaultKings = "AAPL,MSFT,GOOGL,AMZN,NVDA,TSLA,META"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Broker credentials
	BrokerKeyID     string
	BrokerSecretKey string
	BrokerBaseURL   string

	// Infrastructure
	DBPath      string
	MetricsAddr string
	LogLevel    string
	LogPretty   bool

	// Universe
	Symbols         string
	KingsList       string
	BenchmarkSymbol string

	// Risk
	AccountSize         float64
	RiskPct             float64
	MaxSignalAgeMinutes int
	TrailPercentDefault float64

	// Cadence
	ActiveSleepSeconds  int
	PassiveSleepSeconds int

	// Alerting
	WebhookURL string
}

// Load reads configuration from a .env file (if present) and the
// environment. Broker credentials are only required by the binaries that
// talk to the broker; they pass requireBroker.
func Load(requireBroker bool) *Config {
	_ = godotenv.Load()

	c := &Config{
		BrokerBaseURL: getEnv("BROKER_BASE_URL", "https://paper-api.alpaca.markets"),

		DBPath:      getEnv("DB_PATH", "data/trading.db"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogPretty:   getBool("LOG_PRETTY", false),

		Symbols:         getEnv("SYMBOLS", defaultSymbols),
		KingsList:       getEnv("KINGS_LIST", defaultKings),
		BenchmarkSymbol: getEnv("BENCHMARK_SYMBOL", "SPY"),

		AccountSize:         getFloat("ACCOUNT_SIZE", 100000),
		RiskPct:             getFloat("RISK_PCT", 0.01),
		MaxSignalAgeMinutes: getInt("MAX_SIGNAL_AGE_MINUTES", 60),
		TrailPercentDefault: getFloat("TRAIL_PERCENT_DEFAULT", 2.0),

		ActiveSleepSeconds:  getInt("ACTIVE_SLEEP_SECONDS", 300),
		PassiveSleepSeconds: getInt("PASSIVE_SLEEP_SECONDS", 3600),

		WebhookURL: getEnv("WEBHOOK_URL", ""),
	}
	if requireBroker {
		c.BrokerKeyID = mustEnv("BROKER_KEY_ID")
		c.BrokerSecretKey = mustEnv("BROKER_SECRET_KEY")
	} else {
		c.BrokerKeyID = getEnv("BROKER_KEY_ID", "")
		c.BrokerSecretKey = getEnv("BROKER_SECRET_KEY", "")
	}
	return c
}

// SymbolList parses the SYMBOLS universe into a clean slice.
func (c *Config) SymbolList() []string {
	return splitList(c.Symbols)
}

// Kings parses KINGS_LIST into a clean slice.
func (c *Config) Kings() []string {
	return splitList(c.KingsList)
}

func splitList(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, strings.ToUpper(p))
	}
	return out
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return b
}
