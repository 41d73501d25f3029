package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/retail-price-sweeper/internal/fetch"
)

type Config struct {
	Server   ServerConfig
	Paths    PathsConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type PathsConfig struct {
	Catalog     string
	CustomTerms string
	Results     string
	Retailers   string
	Exports     string
}

type ScraperConfig struct {
	MatchThreshold    float64
	RestartAfter      int
	NavigationTimeout time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	RestartDelayMin   time.Duration
	RestartDelayMax   time.Duration
	HostInterval      time.Duration
	UserAgents        []string
	Viewports         []Viewport
	Engine            string
}

type Viewport struct {
	Width  int
	Height int
}

type BrowserConfig struct {
	Headless       bool
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	Proxy          string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	MaxConns int32
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	StreamMaxLen int64
	PollInterval time.Duration
}

type QueueConfig struct {
	MaxSize int
}

type LoggingConfig struct {
	Level  string
	Format string
}

const (
	EnginePlaywright = "playwright"
	EngineChromedp   = "chromedp"
)

func Load() (*Config, error) {
	viewports, err := parseViewports(getEnvOrDefault("SCRAPER_VIEWPORTS", "1920x1080,1366x768,1440x900"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Paths: PathsConfig{
			Catalog:     getEnvOrDefault("CATALOG_PATH", "data/produtos.json"),
			CustomTerms: getEnvOrDefault("CUSTOM_TERMS_PATH", "data/termosCustomizados.json"),
			Results:     getEnvOrDefault("RESULTS_DIR", "results"),
			Retailers:   getEnvOrDefault("RETAILERS_FILE", ""),
			Exports:     getEnvOrDefault("EXPORT_DIR", "exports"),
		},
		Scraper: ScraperConfig{
			MatchThreshold:    getFloatOrDefault("SCRAPER_MATCH_THRESHOLD", 0.9),
			RestartAfter:      getIntOrDefault("SCRAPER_RESTART_AFTER", 5),
			NavigationTimeout: getDurationOrDefault("SCRAPER_NAVIGATION_TIMEOUT", 60*time.Second),
			MaxRetries:        getIntOrDefault("SCRAPER_MAX_RETRIES", 2),
			RetryDelay:        getDurationOrDefault("SCRAPER_RETRY_DELAY", 2*time.Second),
			RestartDelayMin:   getDurationOrDefault("SCRAPER_RESTART_DELAY_MIN", 5*time.Second),
			RestartDelayMax:   getDurationOrDefault("SCRAPER_RESTART_DELAY_MAX", 8*time.Second),
			HostInterval:      getDurationOrDefault("SCRAPER_HOST_INTERVAL", time.Second),
			UserAgents:        getStringSliceOrDefault("SCRAPER_USER_AGENTS", defaultUserAgents()),
			Viewports:         viewports,
			Engine:            getEnvOrDefault("SCRAPER_BROWSER_ENGINE", EnginePlaywright),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/Sao_Paulo"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "pt-BR"),
			Proxy:          getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "price_sweeper"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:         getEnvOrDefault("REDIS_ADDR", ""),
			Password:     getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:           getIntOrDefault("REDIS_DB", 0),
			StreamMaxLen: int64(getIntOrDefault("REDIS_STREAM_MAXLEN", 10000)),
			PollInterval: getDurationOrDefault("RELAY_POLL_INTERVAL", 5*time.Second),
		},
		Queue: QueueConfig{
			MaxSize: getIntOrDefault("QUEUE_MAX_SIZE", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.MatchThreshold <= 0 || c.Scraper.MatchThreshold > 1 {
		return fmt.Errorf("SCRAPER_MATCH_THRESHOLD must be in (0, 1]")
	}

	if c.Scraper.RestartAfter < 1 {
		return fmt.Errorf("SCRAPER_RESTART_AFTER must be at least 1")
	}

	if c.Scraper.NavigationTimeout < time.Second || c.Scraper.NavigationTimeout > 90*time.Second {
		return fmt.Errorf("SCRAPER_NAVIGATION_TIMEOUT must be between 1s and 90s")
	}

	if c.Scraper.MaxRetries < 1 {
		return fmt.Errorf("SCRAPER_MAX_RETRIES must be at least 1")
	}

	if c.Scraper.RestartDelayMin > c.Scraper.RestartDelayMax {
		return fmt.Errorf("SCRAPER_RESTART_DELAY_MIN cannot be greater than SCRAPER_RESTART_DELAY_MAX")
	}

	if len(c.Scraper.UserAgents) == 0 {
		return fmt.Errorf("SCRAPER_USER_AGENTS must not be empty")
	}

	if c.Scraper.Engine != EnginePlaywright && c.Scraper.Engine != EngineChromedp {
		return fmt.Errorf("SCRAPER_BROWSER_ENGINE must be %q or %q", EnginePlaywright, EngineChromedp)
	}

	if c.Queue.MaxSize < 1 {
		return fmt.Errorf("QUEUE_MAX_SIZE must be at least 1")
	}

	if c.Database.Enabled && c.Database.DBName == "" {
		return fmt.Errorf("DB_NAME is required when DB_ENABLED is set")
	}

	return nil
}

// Identities pairs user agents with viewports round-robin. Session restarts
// walk this list.
func (s ScraperConfig) Identities() []fetch.Identity {
	n := len(s.UserAgents)
	if len(s.Viewports) > n {
		n = len(s.Viewports)
	}

	ids := make([]fetch.Identity, 0, n)
	for i := 0; i < n; i++ {
		var id fetch.Identity
		if len(s.UserAgents) > 0 {
			id.UserAgent = s.UserAgents[i%len(s.UserAgents)]
		}
		if len(s.Viewports) > 0 {
			vp := s.Viewports[i%len(s.Viewports)]
			id.ViewportWidth, id.ViewportHeight = vp.Width, vp.Height
		}
		ids = append(ids, id)
	}
	return ids
}

func parseViewports(value string) ([]Viewport, error) {
	var out []Viewport
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		w, h, ok := strings.Cut(part, "x")
		width, errW := strconv.Atoi(w)
		height, errH := strconv.Atoi(h)
		if !ok || errW != nil || errH != nil || width <= 0 || height <= 0 {
			return nil, fmt.Errorf("invalid viewport %q in SCRAPER_VIEWPORTS", part)
		}
		out = append(out, Viewport{Width: width, Height: height})
	}
	return out, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}
