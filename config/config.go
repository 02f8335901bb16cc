package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Driver string
		URL    string
	}
	Server struct {
		Port int
	}
	Log struct {
		Debug bool
		Dir   string
	}
	Sitemap struct {
		BaseURL            string
		DocumentRoot       string
		Path               string
		IndexName          string
		MaxPerSitemap      int
		IndexMaxPerSitemap int
		BatchSize          int
		Indent             int
		Gzip               bool
		Interval           string
	}
	Sources []SourceConfig
	Ping    struct {
		Google     bool
		Yahoo      bool
		YahooAppID string
		Bing       bool
		Ask        bool
		Timeout    string
	}
	Crawler struct {
		StartURL       string
		SitemapURL     string
		UserAgent      string
		MaxDepth       int
		AllowedDomains []string
		Delay          string
		Parallelism    int
	}
}

// SourceConfig selects one record kind to publish. Zero values inherit the
// sitemap section.
type SourceConfig struct {
	Kind          string
	Name          string
	Path          string
	ChangeFreq    string
	Priority      *float64
	BatchSize     int
	MaxPerSitemap int
	Video         bool
}

// LoadConfig reads config.yaml from path, or from . and ./config when path
// is empty. Every key can be overridden with a SITEMAP_ environment
// variable, e.g. SITEMAP_SITEMAP_BASEURL.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("sitemap")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if len(config.Sources) == 0 {
		config.Sources = []SourceConfig{{Kind: "pages", Name: "sitemap_pages"}}
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.url", "sitemap.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.dir", "logs")

	v.SetDefault("sitemap.path", "sitemaps")
	v.SetDefault("sitemap.indexname", "sitemap_index")
	v.SetDefault("sitemap.maxpersitemap", 50000)
	v.SetDefault("sitemap.indexmaxpersitemap", 50000)
	v.SetDefault("sitemap.batchsize", 1001)
	v.SetDefault("sitemap.gzip", true)
	v.SetDefault("sitemap.interval", "24h")

	v.SetDefault("ping.google", true)
	v.SetDefault("ping.timeout", "10s")

	v.SetDefault("crawler.useragent", "big-sitemap crawler v1.0")
	v.SetDefault("crawler.maxdepth", 10)
	v.SetDefault("crawler.delay", "0s")
	v.SetDefault("crawler.parallelism", 2)
}

// Validate reports settings that would make every generation fail.
func (c *Config) Validate() error {
	var errs []error
	if c.Sitemap.BaseURL == "" {
		errs = append(errs, errors.New("sitemap.baseurl is required"))
	}
	if c.Sitemap.DocumentRoot == "" {
		errs = append(errs, errors.New("sitemap.documentroot is required"))
	}
	if c.Sitemap.BatchSize > c.Sitemap.MaxPerSitemap {
		errs = append(errs, fmt.Errorf("sitemap.batchsize %d exceeds sitemap.maxpersitemap %d",
			c.Sitemap.BatchSize, c.Sitemap.MaxPerSitemap))
	}
	if d, err := time.ParseDuration(c.Sitemap.Interval); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("sitemap.interval %q must be a positive duration", c.Sitemap.Interval))
	}
	for i, s := range c.Sources {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("sources[%d].name is required", i))
		}
	}
	return errors.Join(errs...)
}

// GetInterval falls back to 24h for unparsable or non-positive values.
func (c *Config) GetInterval() time.Duration {
	if d := parseDuration(c.Sitemap.Interval, 24*time.Hour); d > 0 {
		return d
	}
	return 24 * time.Hour
}

func (c *Config) GetPingTimeout() time.Duration {
	return parseDuration(c.Ping.Timeout, 10*time.Second)
}

func (c *Config) GetCrawlDelay() time.Duration {
	return parseDuration(c.Crawler.Delay, 0)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return duration
}
