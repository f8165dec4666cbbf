package config

import "time"

// Config holds all application configuration.
type Config struct {
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	LLM           LLM           `mapstructure:"llm"`
	Cache         Cache         `mapstructure:"cache"`
	Extraction    Extraction    `mapstructure:"extraction"`
	Scraper       Scraper       `mapstructure:"scraper"`
	Storage       Storage       `mapstructure:"storage"`
	MCP           MCP           `mapstructure:"mcp"`
}

// Elasticsearch holds record-store connection configuration.
type Elasticsearch struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// LLM holds the completion client configuration.
type LLM struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Cache holds the completion-cache configuration.
type Cache struct {
	Dir        string `mapstructure:"dir"`
	DisableLog bool   `mapstructure:"disable_log"`
}

// Extraction holds the extraction engine configuration.
type Extraction struct {
	Solution           string  `mapstructure:"solution"`
	Trials             int     `mapstructure:"trials"`
	MaxRetries         int     `mapstructure:"max_retries"`
	AgreementThreshold float64 `mapstructure:"agreement_threshold"`
}

// Scraper holds term-sheet scraping configuration.
type Scraper struct {
	Delay            time.Duration `mapstructure:"delay"`
	MaxDepth         int           `mapstructure:"max_depth"`
	FollowLinks      bool          `mapstructure:"follow_links"`
	Timeout          time.Duration `mapstructure:"timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
	TryMarkdownFirst bool          `mapstructure:"try_markdown_first"`
}

// Storage holds S3/MinIO archive configuration.
type Storage struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Elasticsearch: Elasticsearch{
			Addresses: []string{"http://localhost:9200"},
			Index:     "tradentry-records",
		},
		LLM: LLM{
			BaseURL:     "http://localhost:11434/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		Cache: Cache{
			Dir: "completions",
		},
		Extraction: Extraction{
			Solution:           "annotate",
			Trials:             3,
			MaxRetries:         3,
			AgreementThreshold: 0.2,
		},
		Scraper: Scraper{
			Delay:            1 * time.Second,
			MaxDepth:         2,
			FollowLinks:      true,
			Timeout:          30 * time.Second,
			UserAgent:        "tradentry/1.0",
			TryMarkdownFirst: true,
		},
		Storage: Storage{
			Enabled:         false, // archive is opt-in, requires MinIO
			Endpoint:        "localhost:9000",
			Bucket:          "tradentry",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			UseSSL:          false,
		},
		MCP: MCP{
			Name:    "tradentry",
			Version: "1.0.0",
		},
	}
}
