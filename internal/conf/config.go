// Package conf loads and validates the application settings.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MainSettings contains the application-level settings
type MainSettings struct {
	Name string      // name of this node, can be used to identify the source of logs
	Log  LogSettings // logging settings
}

// LogSettings contains settings for the main application log
type LogSettings struct {
	Enabled bool   // true to enable file logging
	Path    string // path to log file
}

// CrawlerSettings controls the crawl scheduler
type CrawlerSettings struct {
	MaxConcurrentPerDomain int           // maximum in-flight requests per source domain
	DownloadDelay          time.Duration // minimum delay between requests to the same domain
	MaxDelay               time.Duration // upper bound for the adaptive delay
	AutoThrottle           bool          // adapt per-domain delay to observed latency
	DepthLimit             int           // maximum task fan-out depth
	ReseedIngredients      bool          // re-seed recipe discovery from resolved ingredient names
	UserAgent              string        // User-Agent header for upstream requests
}

// SourceAPISettings contains the connection settings for one upstream source
type SourceAPISettings struct {
	BaseURL     string        // API endpoint
	AppID       string        // application id, where the source requires one
	AppKey      string        // application key, where the source requires one
	Timeout     time.Duration // per-request timeout
	CacheTTL    time.Duration // response cache time to live
	RateLimitMS int           // minimum milliseconds between requests
}

// SourcesSettings groups the upstream source settings
type SourcesSettings struct {
	MealDB     SourceAPISettings
	Edamam     SourceAPISettings
	StillTasty SourceAPISettings
}

// NLPSettings tunes the ingredient matching engine
type NLPSettings struct {
	SimilarityThreshold float64 // minimum similarity for the score to include the similarity term
	StorageBonus        float64 // bonus for storage-state qualifiers in candidate labels
}

// SQLiteSettings contains the output settings for the SQLite store
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings contains the output settings for the MySQL store
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// OutputSettings groups the persistence store settings
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// Settings is the root of the application configuration
type Settings struct {
	Debug bool

	Main    MainSettings
	Crawler CrawlerSettings
	Sources SourcesSettings
	NLP     NLPSettings
	Output  OutputSettings
}

// Load reads the configuration file and environment into a Settings struct.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/fridgecat")

	// Credentials can come from the environment, e.g. FRIDGECAT_SOURCES_EDAMAM_APPKEY
	viper.SetEnvPrefix("fridgecat")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !asConfigFileNotFound(err, &configFileNotFoundError) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		// No config file is fine, defaults and environment carry the run.
	}

	return nil
}
