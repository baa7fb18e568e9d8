package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Default tuning values. The cache bounds and result caps mirror the
// behavior the search coordinator is specified against; see internal/search.
const (
	DefaultRemoteBaseURL    = "https://world.openfoodfacts.org"
	DefaultRemoteTimeoutMS  = 2000
	DefaultRemotePageSize   = 15
	DefaultSearchCacheSize  = 50
	DefaultPrefixCacheSize  = 100
	DefaultNameCacheSize    = 200
	DefaultResultCap        = 15
	DefaultLocalPrefixLimit = 15
)

// Config holds application configuration.
type Config struct {
	// RemoteBaseURL is the base URL of the food search provider.
	RemoteBaseURL string `json:"remote_base_url,omitempty"`

	// RemoteTimeoutMS bounds each remote search call in milliseconds.
	RemoteTimeoutMS int `json:"remote_timeout_ms,omitempty"`

	// RemotePageSize is the page size requested from the provider.
	RemotePageSize int `json:"remote_page_size,omitempty"`

	// SearchCacheSize bounds the exact-query cache tier.
	SearchCacheSize int `json:"search_cache_size,omitempty"`

	// PrefixCacheSize bounds the prefix cache tier.
	PrefixCacheSize int `json:"prefix_cache_size,omitempty"`

	// NameCacheSize bounds the by-name cache tier.
	NameCacheSize int `json:"name_cache_size,omitempty"`

	// ResultCap limits how many products a search returns.
	ResultCap int `json:"result_cap,omitempty"`

	// LocalPrefixLimit caps catalog prefix-search results per query.
	LocalPrefixLimit int `json:"local_prefix_limit,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is
	// locked" errors). 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DefaultUserID selects the log owner when the CLI is not told otherwise.
	DefaultUserID int64 `json:"default_user_id,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		RemoteBaseURL:    DefaultRemoteBaseURL,
		RemoteTimeoutMS:  DefaultRemoteTimeoutMS,
		RemotePageSize:   DefaultRemotePageSize,
		SearchCacheSize:  DefaultSearchCacheSize,
		PrefixCacheSize:  DefaultPrefixCacheSize,
		NameCacheSize:    DefaultNameCacheSize,
		ResultCap:        DefaultResultCap,
		LocalPrefixLimit: DefaultLocalPrefixLimit,
		DefaultUserID:    1,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.fitplan.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for non-zero scalars.
func Merge(base, overlay *Config) *Config {
	result := *overlay

	if result.RemoteBaseURL == "" {
		result.RemoteBaseURL = base.RemoteBaseURL
	}
	if result.RemoteTimeoutMS == 0 {
		result.RemoteTimeoutMS = base.RemoteTimeoutMS
	}
	if result.RemotePageSize == 0 {
		result.RemotePageSize = base.RemotePageSize
	}
	if result.SearchCacheSize == 0 {
		result.SearchCacheSize = base.SearchCacheSize
	}
	if result.PrefixCacheSize == 0 {
		result.PrefixCacheSize = base.PrefixCacheSize
	}
	if result.NameCacheSize == 0 {
		result.NameCacheSize = base.NameCacheSize
	}
	if result.ResultCap == 0 {
		result.ResultCap = base.ResultCap
	}
	if result.LocalPrefixLimit == 0 {
		result.LocalPrefixLimit = base.LocalPrefixLimit
	}
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}
	if result.DefaultUserID == 0 {
		result.DefaultUserID = base.DefaultUserID
	}

	return &result
}
