// Package config loads the portal's process-wide configuration from the
// environment once at startup. The resulting struct is immutable and is
// passed explicitly to the components that consume it; feature toggles
// are never read from the environment at request time.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port string

	// Record source
	DataBackend  string // "sqlite" or "postgres"
	SQLiteDBPath string
	DatabaseURL  string

	// Summary cache. RedisURL empty means in-process LRU.
	RedisURL        string
	SummaryCacheTTL time.Duration
	SummaryCacheLen int

	// AMQP (load-job queue)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Portal scope
	Language     string
	MainEntityID int64

	// Feature toggles
	SearchEntities    bool // include entities in the generic search
	ShowSectionPages  bool // department sections exist, search them
	ShowPayments      bool // payments are published at all
	PaymentsYearRange bool // offer year ranges rather than single years

	// Breakdown shape
	BreakdownByPayee      []string
	BreakdownByArea       []string
	BreakdownByDepartment []string
	TopPayeesLimit        int

	// Pagination
	PageLength        int
	PageWindowBody    int
	PageWindowPadding int
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/presupuesto.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		RedisURL:        getEnv("REDIS_URL", ""),
		SummaryCacheTTL: getEnvDuration("SUMMARY_CACHE_TTL", 5*time.Minute),
		SummaryCacheLen: getEnvInt("SUMMARY_CACHE_LEN", 256),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "presupuesto"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "load_jobs"),

		Language:     getEnv("LANGUAGE", "es"),
		MainEntityID: int64(getEnvInt("MAIN_ENTITY_ID", 1)),

		SearchEntities:    getEnvBool("SEARCH_ENTITIES", false),
		ShowSectionPages:  getEnvBool("SHOW_SECTION_PAGES", false),
		ShowPayments:      getEnvBool("SHOW_PAYMENTS", true),
		PaymentsYearRange: getEnvBool("PAYMENTS_YEAR_RANGE", true),

		BreakdownByPayee:      getEnvList("BREAKDOWN_BY_PAYEE", []string{"payee", "area", "description"}),
		BreakdownByArea:       getEnvList("BREAKDOWN_BY_AREA", []string{"area", "payee", "description"}),
		BreakdownByDepartment: getEnvList("BREAKDOWN_BY_DEPARTMENT", []string{"department", "payee", "description"}),
		TopPayeesLimit:        getEnvInt("TOP_PAYEES_LIMIT", 50),

		PageLength:        getEnvInt("PAGE_LENGTH", 10),
		PageWindowBody:    getEnvInt("PAGE_WINDOW_BODY", 6),
		PageWindowPadding: getEnvInt("PAGE_WINDOW_PADDING", 2),
	}
}

// Validate returns an error describing every invalid setting.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when using postgres backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of [sqlite postgres]", c.DataBackend))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.MainEntityID < 1 {
		errs = append(errs, fmt.Sprintf("invalid main entity id %d", c.MainEntityID))
	}
	if c.TopPayeesLimit < 1 {
		errs = append(errs, fmt.Sprintf("invalid top payees limit %d: must be at least 1", c.TopPayeesLimit))
	}
	if len(c.BreakdownByPayee) == 0 {
		errs = append(errs, "BREAKDOWN_BY_PAYEE cannot be empty")
	}
	if len(c.BreakdownByArea) == 0 {
		errs = append(errs, "BREAKDOWN_BY_AREA cannot be empty")
	}
	if len(c.BreakdownByDepartment) == 0 {
		errs = append(errs, "BREAKDOWN_BY_DEPARTMENT cannot be empty")
	}

	if c.PageLength < 1 {
		errs = append(errs, fmt.Sprintf("invalid page length %d: must be at least 1", c.PageLength))
	}
	if c.PageWindowBody < 1 {
		errs = append(errs, fmt.Sprintf("invalid page window body %d: must be at least 1", c.PageWindowBody))
	}
	if c.PageWindowPadding < 0 {
		errs = append(errs, fmt.Sprintf("invalid page window padding %d", c.PageWindowPadding))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
