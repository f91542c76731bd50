package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DBDriver       string // sqlite | pgx
	DBDSN          string
	LogFile        string
	TemplatesDir   string
	ScanDebounce   time.Duration
	SearchLimit    int
	RecentLimit    int
	PersistTimeout time.Duration
	StationIdle    time.Duration
	OperatorEmail  string
	OperatorPass   string
}

const (
	defaultScanDebounce   = 1500 * time.Millisecond
	defaultSearchLimit    = 5
	defaultRecentLimit    = 15
	defaultPersistTimeout = 10 * time.Second
	defaultStationIdle    = 30 * time.Minute
)

func Load() Config {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}

	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		DBDriver:       getEnv("DB_DRIVER", "sqlite"),
		DBDSN:          getEnv("DB_DSN", "contagem.db"), // sqlite file in project root
		LogFile:        getEnv("LOG_FILE", "./contagem.log"),
		TemplatesDir:   getEnv("TEMPLATES_DIR", "./web/templates"),
		ScanDebounce:   parseDuration("SCAN_DEBOUNCE", defaultScanDebounce),
		SearchLimit:    parseInt("SEARCH_LIMIT", defaultSearchLimit),
		RecentLimit:    parseInt("RECENT_LIMIT", defaultRecentLimit),
		PersistTimeout: parseDuration("PERSIST_TIMEOUT", defaultPersistTimeout),
		StationIdle:    parseDuration("STATION_IDLE", defaultStationIdle),
		OperatorEmail:  getEnv("OPERATOR_EMAIL", "operador@contagem.local"),
		OperatorPass:   getEnv("OPERATOR_PASSWORD", "Contagem1!"),
	}
	if cfg.ScanDebounce < time.Second || cfg.ScanDebounce > 2*time.Second {
		log.Printf("[config] SCAN_DEBOUNCE=%s outside 1s-2s, using %s", cfg.ScanDebounce, defaultScanDebounce)
		cfg.ScanDebounce = defaultScanDebounce
	}
	if cfg.SearchLimit <= 0 || cfg.SearchLimit > 50 {
		cfg.SearchLimit = defaultSearchLimit
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = defaultRecentLimit
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}
	if cfg.StationIdle < time.Minute {
		cfg.StationIdle = defaultStationIdle
	}

	log.Printf("[config] PORT=%s DB_DRIVER=%s DB_DSN=%s LOG_FILE=%s SCAN_DEBOUNCE=%s",
		cfg.Port, cfg.DBDriver, redact(cfg.DBDriver, cfg.DBDSN), cfg.LogFile, cfg.ScanDebounce)
	return cfg
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

// Postgres DSNs carry credentials.
func redact(driver, dsn string) string {
	if driver == "sqlite" {
		return dsn
	}
	return "<redacted>"
}
