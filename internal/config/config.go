// Package config holds the engine's process-wide configuration: cache
// sizing, the cursor-signing secret, default ingest policy, and query
// limits/admission calibration, loaded from a YAML file with built-in
// defaults when no file is present. Shaped after srake's internal/config
// (same DefaultConfig/Load/Save/GetConfigPath surface).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bijux/atlas-engine/internal/cache"
	"github.com/bijux/atlas-engine/internal/policy"
	"github.com/bijux/atlas-engine/internal/query"
	"github.com/bijux/atlas-engine/internal/store"
)

// Config is the engine's top-level, file-loadable configuration.
type Config struct {
	CacheRoot           string       `yaml:"cache_root"`
	CursorSecretHex     string       `yaml:"cursor_secret_hex"`
	CompressionMinBytes int64        `yaml:"compression_min_bytes"`
	Cache               CacheConfig  `yaml:"cache"`
	Ingest              IngestConfig `yaml:"ingest"`
	Query               QueryConfig  `yaml:"query"`
}

// CacheConfig mirrors internal/cache.Config's YAML-facing fields.
type CacheConfig struct {
	MaxDiskBytes            int64 `yaml:"max_disk_bytes"`
	MaxDatasetCount         int   `yaml:"max_dataset_count"`
	BreakerFailureThreshold int   `yaml:"breaker_failure_threshold"`
	BreakerOpenMs           int64 `yaml:"breaker_open_ms"`
	MaxRetryAttempts        int   `yaml:"max_retry_attempts"`
	RetryBaseBackoffMs      int   `yaml:"retry_base_backoff_ms"`
	CachedOnly              bool  `yaml:"cached_only"`
}

// IngestConfig mirrors internal/policy.IngestOptions's scalar knobs; the
// enum-valued policies keep their string form so a config file stays
// human-editable.
type IngestConfig struct {
	Strictness      string `yaml:"strictness"`
	DuplicateGeneId string `yaml:"duplicate_gene_id"`
	MaxThreads      int    `yaml:"max_threads"`
}

// QueryConfig mirrors internal/query.QueryLimits plus the admission-control
// knobs layered on top of it.
type QueryConfig struct {
	MaxLimit               int   `yaml:"max_limit"`
	MaxTranscriptLimit     int   `yaml:"max_transcript_limit"`
	MaxRegionSpan          int64 `yaml:"max_region_span"`
	MaxRegionEstimatedRows int   `yaml:"max_region_estimated_rows"`
	MaxPrefixCostUnits     int   `yaml:"max_prefix_cost_units"`
	HeavyProjectionLimit   int   `yaml:"heavy_projection_limit"`
	MinPrefixLen           int   `yaml:"min_prefix_len"`
	MaxPrefixLen           int   `yaml:"max_prefix_len"`
	MaxWorkUnits           int   `yaml:"max_work_units"`
	MaxSerializationBytes  int   `yaml:"max_serialization_bytes"`

	CheapPermits   int   `yaml:"cheap_permits"`
	MediumPermits  int   `yaml:"medium_permits"`
	HeavyPermits   int   `yaml:"heavy_permits"`
	ShedLatencyMs  int64 `yaml:"shed_latency_ms"`
	ShedMinSamples int   `yaml:"shed_min_samples"`
	HeavyBackoffMs int64 `yaml:"heavy_backoff_ms"`
}

// DefaultConfig returns the engine's built-in defaults, the same values
// DefaultIngestOptions, cache.DefaultConfig, and query.DefaultQueryLimits
// already carry, re-expressed as the file-facing shape.
func DefaultConfig() *Config {
	cacheDefaults := cache.DefaultConfig()
	ingestDefaults := policy.DefaultIngestOptions()
	queryDefaults := query.DefaultQueryLimits()
	admissionDefaults := query.DefaultAdmissionConfig()

	return &Config{
		CacheRoot:           defaultCacheRoot(),
		CursorSecretHex:     "",
		CompressionMinBytes: 1 << 20,
		Cache: CacheConfig{
			MaxDiskBytes:            cacheDefaults.MaxDiskBytes,
			MaxDatasetCount:         cacheDefaults.MaxDatasetCount,
			BreakerFailureThreshold: cacheDefaults.BreakerFailureThreshold,
			BreakerOpenMs:           cacheDefaults.BreakerOpenMs,
			MaxRetryAttempts:        cacheDefaults.Retry.MaxAttempts,
			RetryBaseBackoffMs:      cacheDefaults.Retry.BaseBackoffMs,
			CachedOnly:              cacheDefaults.CachedOnly,
		},
		Ingest: IngestConfig{
			Strictness:      "compat",
			DuplicateGeneId: "fail",
			MaxThreads:      ingestDefaults.MaxThreads,
		},
		Query: QueryConfig{
			MaxLimit:               queryDefaults.MaxLimit,
			MaxTranscriptLimit:     queryDefaults.MaxTranscriptLimit,
			MaxRegionSpan:          int64(queryDefaults.MaxRegionSpan),
			MaxRegionEstimatedRows: queryDefaults.MaxRegionEstimatedRows,
			MaxPrefixCostUnits:     queryDefaults.MaxPrefixCostUnits,
			HeavyProjectionLimit:   queryDefaults.HeavyProjectionLimit,
			MinPrefixLen:           queryDefaults.MinPrefixLen,
			MaxPrefixLen:           queryDefaults.MaxPrefixLen,
			MaxWorkUnits:           queryDefaults.MaxWorkUnits,
			MaxSerializationBytes:  queryDefaults.MaxSerializationBytes,
			CheapPermits:           admissionDefaults.CheapPermits,
			MediumPermits:          admissionDefaults.MediumPermits,
			HeavyPermits:           admissionDefaults.HeavyPermits,
			ShedLatencyMs:          admissionDefaults.ShedLatencyP95.Milliseconds(),
			ShedMinSamples:         admissionDefaults.ShedMinSamples,
			HeavyBackoffMs:         admissionDefaults.HeavyBackoffMs,
		},
	}
}

func defaultCacheRoot() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".atlas", "cache")
	}
	return filepath.Join(".", ".atlas-cache")
}

// Load reads path and overlays it onto DefaultConfig; a missing file is not
// an error and yields the defaults unchanged, matching srake's Load.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.CacheRoot = expandPath(cfg.CacheRoot)
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory for %s: %w", path, err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// GetConfigPath resolves the config file path: the ATLAS_CONFIG
// environment variable, then ./atlas.yaml in the current directory, then a
// per-user default.
func GetConfigPath() string {
	if path := os.Getenv("ATLAS_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat("atlas.yaml"); err == nil {
		return "atlas.yaml"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "atlas.yaml"
	}
	return filepath.Join(home, ".atlas", "config.yaml")
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func expandPath(p string) string {
	if p == "~" || len(p) == 0 {
		return p
	}
	if p[0] == '~' && (len(p) == 1 || p[1] == filepath.Separator || p[1] == '/') {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}

// CacheConfigValue converts the file-facing CacheConfig back into
// internal/cache.Config for constructing a DatasetCache.
func (c *Config) CacheConfigValue() cache.Config {
	return cache.Config{
		MaxDiskBytes:            c.Cache.MaxDiskBytes,
		MaxDatasetCount:         c.Cache.MaxDatasetCount,
		BreakerFailureThreshold: c.Cache.BreakerFailureThreshold,
		BreakerOpenMs:           c.Cache.BreakerOpenMs,
		Retry: store.RetryPolicy{
			MaxAttempts:   c.Cache.MaxRetryAttempts,
			BaseBackoffMs: c.Cache.RetryBaseBackoffMs,
		},
		CachedOnly: c.Cache.CachedOnly,
	}
}

// IngestOptionsValue converts the file-facing IngestConfig back into
// internal/policy.IngestOptions, layered onto DefaultIngestOptions for the
// policies the config file doesn't expose individually.
func (c *Config) IngestOptionsValue() (policy.IngestOptions, error) {
	opts := policy.DefaultIngestOptions()

	strictness, err := policy.ParseStrictness(c.Ingest.Strictness)
	if err != nil {
		return policy.IngestOptions{}, err
	}
	opts.Strictness = strictness

	dup, err := policy.ParseDuplicateGeneIdPolicy(c.Ingest.DuplicateGeneId)
	if err != nil {
		return policy.IngestOptions{}, err
	}
	opts.DuplicateGeneId = dup
	opts.MaxThreads = c.Ingest.MaxThreads
	return opts, nil
}

// QueryLimitsValue converts the file-facing QueryConfig back into
// internal/query.QueryLimits.
func (c *Config) QueryLimitsValue() query.QueryLimits {
	return query.QueryLimits{
		MaxLimit:               c.Query.MaxLimit,
		MaxTranscriptLimit:     c.Query.MaxTranscriptLimit,
		MaxRegionSpan:          uint64(c.Query.MaxRegionSpan),
		MaxRegionEstimatedRows: c.Query.MaxRegionEstimatedRows,
		MaxPrefixCostUnits:     c.Query.MaxPrefixCostUnits,
		HeavyProjectionLimit:   c.Query.HeavyProjectionLimit,
		MinPrefixLen:           c.Query.MinPrefixLen,
		MaxPrefixLen:           c.Query.MaxPrefixLen,
		MaxWorkUnits:           c.Query.MaxWorkUnits,
		MaxSerializationBytes:  c.Query.MaxSerializationBytes,
	}
}

// AdmissionConfigValue converts the file-facing QueryConfig's admission
// fields back into internal/query.AdmissionConfig.
func (c *Config) AdmissionConfigValue() query.AdmissionConfig {
	return query.AdmissionConfig{
		CheapPermits:   c.Query.CheapPermits,
		MediumPermits:  c.Query.MediumPermits,
		HeavyPermits:   c.Query.HeavyPermits,
		ShedLatencyP95: msToDuration(c.Query.ShedLatencyMs),
		ShedMinSamples: c.Query.ShedMinSamples,
		HeavyBackoffMs: c.Query.HeavyBackoffMs,
	}
}
