package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/Kilat-Mobility/service-journey/internal/common/config"
	"github.com/Kilat-Mobility/service-journey/internal/domain/journey"
	"github.com/Kilat-Mobility/service-journey/internal/domain/rental"
)

// ServiceConfig holds all configuration for the journey service.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	DBConfig    config.DatabaseConfig
	JWTConfig   config.JWTConfig
	KafkaConfig config.KafkaConfig

	Rules                 journey.Rules
	StreamInterval        time.Duration
	Billing               rental.BillingConfig
	FareTables            map[journey.Kind]journey.FareTable
	WarningDistanceMeters float64
}

// Load reads configuration from environment variables.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("JOURNEY")
	if err != nil {
		return nil, err
	}
	setDefaults(v)

	return &ServiceConfig{
		Port:        config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:      config.GetAppEnv(v),
		DBConfig:    config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:   config.LoadJWTConfig(v),
		KafkaConfig: config.LoadKafkaConfig(v),

		Rules:                 journey.Rules{BoardingDelaySec: v.GetFloat64("BOARDING_DELAY_SEC")},
		StreamInterval:        v.GetDuration("STREAM_INTERVAL"),
		Billing:               loadBilling(v),
		FareTables:            loadFareTables(v),
		WarningDistanceMeters: v.GetFloat64("GEOFENCE_WARNING_METERS"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_NAME", "journey_db")
	v.SetDefault("BOARDING_DELAY_SEC", journey.DefaultBoardingDelaySec)
	v.SetDefault("STREAM_INTERVAL", "1s")
	v.SetDefault("GEOFENCE_WARNING_METERS", 100.0)

	b := rental.DefaultBillingConfig()
	v.SetDefault("BILLING_OUT_OF_ZONE_CENTS", b.OutOfZoneFeeCents)
	v.SetDefault("BILLING_LOW_FUEL_CENTS", b.LowFuelFeeCents)
	v.SetDefault("BILLING_INTER_CITY_CENTS", b.InterCityFeeCents)
	v.SetDefault("BILLING_CROSSING_CENTS", b.GeofenceCrossingFeeCents)
	v.SetDefault("BILLING_LOW_FUEL_PCT", b.LowFuelThresholdPct)
	v.SetDefault("BILLING_FUEL_USED_PCT", b.FuelUsedThresholdPct)

	for kind, t := range journey.DefaultFareTables() {
		prefix := fareKey(kind)
		v.SetDefault(prefix+"_BASE_CENTS", t.BaseCents)
		v.SetDefault(prefix+"_PER_KM_CENTS", t.PerKmCents)
		v.SetDefault(prefix+"_PER_MIN_CENTS", t.PerMinuteCents)
		v.SetDefault(prefix+"_MIN_CENTS", t.MinimumCents)
	}
}

func loadBilling(v *viper.Viper) rental.BillingConfig {
	return rental.BillingConfig{
		OutOfZoneFeeCents:        v.GetInt64("BILLING_OUT_OF_ZONE_CENTS"),
		LowFuelFeeCents:          v.GetInt64("BILLING_LOW_FUEL_CENTS"),
		InterCityFeeCents:        v.GetInt64("BILLING_INTER_CITY_CENTS"),
		GeofenceCrossingFeeCents: v.GetInt64("BILLING_CROSSING_CENTS"),
		LowFuelThresholdPct:      v.GetFloat64("BILLING_LOW_FUEL_PCT"),
		FuelUsedThresholdPct:     v.GetFloat64("BILLING_FUEL_USED_PCT"),
	}
}

func loadFareTables(v *viper.Viper) map[journey.Kind]journey.FareTable {
	tables := make(map[journey.Kind]journey.FareTable)
	for kind := range journey.DefaultFareTables() {
		prefix := fareKey(kind)
		tables[kind] = journey.FareTable{
			BaseCents:      v.GetInt64(prefix + "_BASE_CENTS"),
			PerKmCents:     v.GetInt64(prefix + "_PER_KM_CENTS"),
			PerMinuteCents: v.GetInt64(prefix + "_PER_MIN_CENTS"),
			MinimumCents:   v.GetInt64(prefix + "_MIN_CENTS"),
		}
	}
	return tables
}

// fareKey maps a kind to its env key prefix, e.g. tele_drive -> FARE_TELE_DRIVE.
func fareKey(kind journey.Kind) string {
	switch kind {
	case journey.KindRide:
		return "FARE_RIDE"
	case journey.KindTrip:
		return "FARE_TRIP"
	default:
		return "FARE_TELE_DRIVE"
	}
}
