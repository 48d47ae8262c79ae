package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// MatchingConfig holds the business-tunable matching parameters. Threshold
// values are deployment configuration, not code: estimating teams tune them
// per catalog quality.
type MatchingConfig struct {
	// AutoAcceptFloor is the minimum confidence for automatic acceptance.
	AutoAcceptFloor float64 `mapstructure:"autoAcceptFloor"`
	// AdvisoryFloor marks the soft confidence boundary below which a
	// low-confidence advisory flag is raised.
	AdvisoryFloor float64 `mapstructure:"advisoryFloor"`
	// RejectFloor is the confidence floor below which an item is rejected.
	RejectFloor float64 `mapstructure:"rejectFloor"`

	// DimensionTolerancePct is the relative tolerance for width/height/diameter
	// deltas before a size mismatch becomes a veto flag.
	DimensionTolerancePct float64 `mapstructure:"dimensionTolerancePct"`
	// AngleToleranceDeg is the absolute tolerance for angle deltas in degrees.
	AngleToleranceDeg float64 `mapstructure:"angleToleranceDeg"`
	// StalePriceAfterDays marks catalog entries whose validity window started
	// more than this many days ago as stale (advisory).
	StalePriceAfterDays int `mapstructure:"stalePriceAfterDays"`

	// BaseCurrency is the organization's reporting currency. Candidates priced
	// in another currency get an advisory flag; empty disables the check.
	BaseCurrency string `mapstructure:"baseCurrency"`
	// StandardVATRate is the expected VAT rate for catalog entries. Deviations
	// get an advisory flag; zero disables the check.
	StandardVATRate float64 `mapstructure:"standardVatRate"`

	// CandidatePoolLimit bounds the candidate pool fetched per item.
	CandidatePoolLimit int `mapstructure:"candidatePoolLimit"`
	// RankLimit is the number of scored candidates kept per item.
	RankLimit int `mapstructure:"rankLimit"`
	// EscapeHatchLimit bounds the nearest-candidate fallback when no in-class
	// candidate exists. Hard ceiling of 2: escape-hatch results exist to
	// surface catalog gaps for review, not to widen the pool.
	EscapeHatchLimit int `mapstructure:"escapeHatchLimit"`

	// Workers is the number of concurrent item workers per match run.
	Workers int `mapstructure:"workers"`
	// ItemTimeoutMS is the per-item processing budget in milliseconds.
	ItemTimeoutMS int `mapstructure:"itemTimeoutMs"`

	// WriteRetryAttempts bounds retries on mapping write conflicts.
	WriteRetryAttempts int `mapstructure:"writeRetryAttempts"`
	// WriteRetryBackoffMS is the base backoff between write retries.
	WriteRetryBackoffMS int `mapstructure:"writeRetryBackoffMs"`
}

func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		AutoAcceptFloor:       0.95,
		AdvisoryFloor:         0.75,
		RejectFloor:           0.40,
		DimensionTolerancePct: 0.02,
		AngleToleranceDeg:     1.0,
		StalePriceAfterDays:   365,
		BaseCurrency:          "EUR",
		CandidatePoolLimit:    200,
		RankLimit:             10,
		EscapeHatchLimit:      2,
		Workers:               8,
		ItemTimeoutMS:         2000,
		WriteRetryAttempts:    5,
		WriteRetryBackoffMS:   25,
	}
}

func (c MatchingConfig) ItemTimeout() time.Duration {
	return time.Duration(c.ItemTimeoutMS) * time.Millisecond
}

func (c MatchingConfig) WriteRetryBackoff() time.Duration {
	return time.Duration(c.WriteRetryBackoffMS) * time.Millisecond
}

type MatchingConfigHolder struct {
	current atomic.Value // holds MatchingConfig
}

func NewMatchingConfigHolder() (*MatchingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("matching")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/matchline/config") // Volume-mounted config
	v.AddConfigPath("/etc/matchline")            // System config
	v.AddConfigPath(".")                         // Current directory (dev mode)

	v.SetEnvPrefix("MATCHLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMatchingConfig()
	v.SetDefault("matching.autoAcceptFloor", defaults.AutoAcceptFloor)
	v.SetDefault("matching.advisoryFloor", defaults.AdvisoryFloor)
	v.SetDefault("matching.rejectFloor", defaults.RejectFloor)
	v.SetDefault("matching.dimensionTolerancePct", defaults.DimensionTolerancePct)
	v.SetDefault("matching.angleToleranceDeg", defaults.AngleToleranceDeg)
	v.SetDefault("matching.stalePriceAfterDays", defaults.StalePriceAfterDays)
	v.SetDefault("matching.baseCurrency", defaults.BaseCurrency)
	v.SetDefault("matching.standardVatRate", defaults.StandardVATRate)
	v.SetDefault("matching.candidatePoolLimit", defaults.CandidatePoolLimit)
	v.SetDefault("matching.rankLimit", defaults.RankLimit)
	v.SetDefault("matching.escapeHatchLimit", defaults.EscapeHatchLimit)
	v.SetDefault("matching.workers", defaults.Workers)
	v.SetDefault("matching.itemTimeoutMs", defaults.ItemTimeoutMS)
	v.SetDefault("matching.writeRetryAttempts", defaults.WriteRetryAttempts)
	v.SetDefault("matching.writeRetryBackoffMs", defaults.WriteRetryBackoffMS)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg MatchingConfig
	if err := v.UnmarshalKey("matching", &cfg); err != nil {
		return nil, err
	}
	if err := ValidateMatchingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &MatchingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated MatchingConfig
		if err := v.UnmarshalKey("matching", &updated); err != nil {
			log.Printf("[matching-config] reload failed: %v", err)
			return
		}
		if err := ValidateMatchingConfig(updated); err != nil {
			log.Printf("[matching-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[matching-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *MatchingConfigHolder) Get() MatchingConfig {
	return h.current.Load().(MatchingConfig)
}

// NewStaticMatchingConfigHolder wraps a fixed config, for tests.
func NewStaticMatchingConfigHolder(cfg MatchingConfig) *MatchingConfigHolder {
	holder := &MatchingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func ValidateMatchingConfig(cfg MatchingConfig) error {
	if cfg.RejectFloor <= 0 || cfg.RejectFloor >= 1 {
		return errors.New("matching.rejectFloor must be in (0,1)")
	}
	if cfg.AutoAcceptFloor <= 0 || cfg.AutoAcceptFloor > 1 {
		return errors.New("matching.autoAcceptFloor must be in (0,1]")
	}
	if cfg.AdvisoryFloor <= cfg.RejectFloor || cfg.AdvisoryFloor >= cfg.AutoAcceptFloor {
		return errors.New("matching.advisoryFloor must sit between rejectFloor and autoAcceptFloor")
	}
	if cfg.DimensionTolerancePct < 0 {
		return errors.New("matching.dimensionTolerancePct cannot be negative")
	}
	if cfg.AngleToleranceDeg < 0 {
		return errors.New("matching.angleToleranceDeg cannot be negative")
	}
	if cfg.StalePriceAfterDays <= 0 {
		return errors.New("matching.stalePriceAfterDays must be positive")
	}
	if cfg.StandardVATRate < 0 {
		return errors.New("matching.standardVatRate cannot be negative")
	}
	if cfg.CandidatePoolLimit <= 0 {
		return errors.New("matching.candidatePoolLimit must be positive")
	}
	if cfg.RankLimit <= 0 {
		return errors.New("matching.rankLimit must be positive")
	}
	if cfg.EscapeHatchLimit < 1 || cfg.EscapeHatchLimit > 2 {
		return errors.New("matching.escapeHatchLimit must be 1 or 2")
	}
	if cfg.Workers <= 0 {
		return errors.New("matching.workers must be positive")
	}
	if cfg.ItemTimeoutMS <= 0 {
		return errors.New("matching.itemTimeoutMs must be positive")
	}
	if cfg.WriteRetryAttempts <= 0 {
		return errors.New("matching.writeRetryAttempts must be positive")
	}
	if cfg.WriteRetryBackoffMS < 0 {
		return errors.New("matching.writeRetryBackoffMs cannot be negative")
	}
	return nil
}
