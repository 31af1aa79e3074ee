package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const DefaultResetTimezone = "America/Sao_Paulo"

// CreditSettings holds the tunable values of the credit ledger.
type CreditSettings struct {
	DefaultPlanLimit int64         `mapstructure:"defaultPlanLimit"`
	PriceTable       PriceTable    `mapstructure:"priceTable"`
	ResetTimezone    string        `mapstructure:"resetTimezone"`
	ResetWorkers     int           `mapstructure:"resetWorkers"`
	ChargeDueDays    int           `mapstructure:"chargeDueDays"`
	SubscriptionPoll PollSettings  `mapstructure:"subscriptionPoll"`
	MeteringCacheTTL time.Duration `mapstructure:"meteringCacheTTL"`
}

// PriceTable sells credits in fixed steps, each step carrying a fixed price.
type PriceTable struct {
	StepCredits    int64  `mapstructure:"stepCredits"`
	StepPriceCents int64  `mapstructure:"stepPriceCents"`
	MinCredits     int64  `mapstructure:"minCredits"`
	MaxCredits     int64  `mapstructure:"maxCredits"`
	Currency       string `mapstructure:"currency"`
}

type PollSettings struct {
	Interval time.Duration `mapstructure:"interval"`
	Attempts int           `mapstructure:"attempts"`
}

func DefaultCreditSettings() CreditSettings {
	return CreditSettings{
		DefaultPlanLimit: 1000,
		PriceTable: PriceTable{
			StepCredits:    500,
			StepPriceCents: 4000,
			MinCredits:     500,
			MaxCredits:     10000,
			Currency:       "BRL",
		},
		ResetTimezone: DefaultResetTimezone,
		ResetWorkers:  8,
		ChargeDueDays: 2,
		SubscriptionPoll: PollSettings{
			Interval: time.Second,
			Attempts: 30,
		},
		MeteringCacheTTL: time.Minute,
	}
}

// Location resolves the reset timezone, falling back to UTC.
func (s CreditSettings) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(s.ResetTimezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

type CreditConfigHolder struct {
	current atomic.Value // holds CreditSettings
}

// NewStaticCreditConfigHolder returns a holder that never reloads.
func NewStaticCreditConfigHolder(cfg CreditSettings) *CreditConfigHolder {
	holder := &CreditConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewCreditConfigHolder() (*CreditConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("credits")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/lexcredit/config")
	v.AddConfigPath("/etc/lexcredit")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEXCREDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setCreditDefaults(v, DefaultCreditSettings())

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg CreditSettings
	if err := v.UnmarshalKey("credits", &cfg); err != nil {
		return nil, err
	}
	if err := validateCreditSettings(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticCreditConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CreditSettings
		if err := v.UnmarshalKey("credits", &updated); err != nil {
			log.Printf("[credits-config] reload failed: %v", err)
			return
		}
		if err := validateCreditSettings(updated); err != nil {
			log.Printf("[credits-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[credits-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *CreditConfigHolder) Get() CreditSettings {
	if h == nil {
		return DefaultCreditSettings()
	}
	cfg, ok := h.current.Load().(CreditSettings)
	if !ok {
		return DefaultCreditSettings()
	}
	return cfg
}

func setCreditDefaults(v *viper.Viper, d CreditSettings) {
	v.SetDefault("credits.defaultPlanLimit", d.DefaultPlanLimit)
	v.SetDefault("credits.priceTable.stepCredits", d.PriceTable.StepCredits)
	v.SetDefault("credits.priceTable.stepPriceCents", d.PriceTable.StepPriceCents)
	v.SetDefault("credits.priceTable.minCredits", d.PriceTable.MinCredits)
	v.SetDefault("credits.priceTable.maxCredits", d.PriceTable.MaxCredits)
	v.SetDefault("credits.priceTable.currency", d.PriceTable.Currency)
	v.SetDefault("credits.resetTimezone", d.ResetTimezone)
	v.SetDefault("credits.resetWorkers", d.ResetWorkers)
	v.SetDefault("credits.chargeDueDays", d.ChargeDueDays)
	v.SetDefault("credits.subscriptionPoll.interval", d.SubscriptionPoll.Interval)
	v.SetDefault("credits.subscriptionPoll.attempts", d.SubscriptionPoll.Attempts)
	v.SetDefault("credits.meteringCacheTTL", d.MeteringCacheTTL)
}

func validateCreditSettings(cfg CreditSettings) error {
	if cfg.DefaultPlanLimit < 0 {
		return errors.New("credits.defaultPlanLimit cannot be negative")
	}
	if cfg.PriceTable.StepCredits <= 0 || cfg.PriceTable.StepPriceCents <= 0 {
		return errors.New("credits.priceTable step must be positive")
	}
	if cfg.PriceTable.MaxCredits < cfg.PriceTable.MinCredits {
		return errors.New("credits.priceTable.maxCredits must be >= minCredits")
	}
	if _, err := time.LoadLocation(strings.TrimSpace(cfg.ResetTimezone)); err != nil {
		return fmt.Errorf("credits.resetTimezone: %w", err)
	}
	if cfg.SubscriptionPoll.Attempts <= 0 || cfg.SubscriptionPoll.Interval < 0 {
		return errors.New("credits.subscriptionPoll must have positive attempts")
	}
	if cfg.ResetWorkers <= 0 {
		return errors.New("credits.resetWorkers must be positive")
	}
	return nil
}
