package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tradentry/tradentry/internal/config"
	"github.com/tradentry/tradentry/internal/store"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "tradentry",
	Short: "Tradentry: trade-entry field extraction",
	Long: `Tradentry turns free-text trade descriptions into structured fields.
It scrapes term sheets, runs LLM-backed annotation retrieval over each trade
in repeated trials, votes the trials into a consensus output, and scores the
results against reference answers.

Commands:
  scrape   Fetch term sheets and register trade inputs
  extract  Run the extraction engine over a trade group
  score    Score extraction outputs against expected results
  serve    Start the MCP server`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/tradentry")
		viper.AddConfigPath(".")
	}

	// Environment variable overrides
	// TRADENTRY_ELASTICSEARCH_ADDRESSES -> elasticsearch.addresses
	viper.SetEnvPrefix("TRADENTRY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.BindEnv("elasticsearch.addresses", "TRADENTRY_ELASTICSEARCH_ADDRESSES")
	viper.BindEnv("elasticsearch.index", "TRADENTRY_ELASTICSEARCH_INDEX")
	viper.BindEnv("elasticsearch.username", "TRADENTRY_ELASTICSEARCH_USERNAME")
	viper.BindEnv("elasticsearch.password", "TRADENTRY_ELASTICSEARCH_PASSWORD")
	viper.BindEnv("llm.base_url", "TRADENTRY_LLM_BASE_URL")
	viper.BindEnv("llm.api_key", "TRADENTRY_LLM_API_KEY")
	viper.BindEnv("llm.model", "TRADENTRY_LLM_MODEL")
	viper.BindEnv("cache.dir", "TRADENTRY_CACHE_DIR")
	viper.BindEnv("extraction.solution", "TRADENTRY_EXTRACTION_SOLUTION")
	viper.BindEnv("extraction.trials", "TRADENTRY_EXTRACTION_TRIALS")
	viper.BindEnv("scraper.delay", "TRADENTRY_SCRAPER_DELAY")
	viper.BindEnv("scraper.max_depth", "TRADENTRY_SCRAPER_MAX_DEPTH")
	viper.BindEnv("storage.endpoint", "TRADENTRY_STORAGE_ENDPOINT")
	viper.BindEnv("storage.bucket", "TRADENTRY_STORAGE_BUCKET")
	viper.BindEnv("mcp.name", "TRADENTRY_MCP_NAME")
	viper.BindEnv("mcp.version", "TRADENTRY_MCP_VERSION")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Addresses may arrive as a comma-separated string from the environment.
	if addrs := os.Getenv("TRADENTRY_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
}

// newRecordStore connects to the Elasticsearch record store and makes sure
// the index exists.
func newRecordStore(ctx context.Context) (*store.Elastic, error) {
	es, err := store.NewElastic(store.ElasticConfig{
		Addresses: cfg.Elasticsearch.Addresses,
		Index:     cfg.Elasticsearch.Index,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create record store: %w", err)
	}
	if err := es.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure record index: %w", err)
	}
	return es, nil
}
