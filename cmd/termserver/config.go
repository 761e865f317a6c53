package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds cmd/termserver's runtime configuration: listen address,
// package paths to load at startup, cache/budget sizing, and the
// builtin provider families' backing stores. Bound from flags, a
// config file, and environment variables via viper, matching the
// pack's PORT/DATABASE_URL-style env-first configuration.
type Config struct {
	Addr       string   `mapstructure:"ADDR"`
	LogLevel   string   `mapstructure:"LOG_LEVEL"`
	PackageDir []string `mapstructure:"PACKAGE_DIR"`

	OperationTimeout time.Duration `mapstructure:"OPERATION_TIMEOUT"`
	MaxExpansionSize int           `mapstructure:"MAX_EXPANSION_SIZE"`
	WildcardCap      int           `mapstructure:"WILDCARD_CAP"`
	WorkerCount      int           `mapstructure:"WORKER_COUNT"`

	MaintenanceInterval time.Duration `mapstructure:"MAINTENANCE_INTERVAL"`
	MemPressureBytes    uint64        `mapstructure:"MEM_PRESSURE_BYTES"`
	ResourceMaxAge      time.Duration `mapstructure:"RESOURCE_MAX_AGE"`

	LOINCDSN  string `mapstructure:"LOINC_DSN"`
	RxNormDSN string `mapstructure:"RXNORM_DSN"`
	NDCDSN    string `mapstructure:"NDC_DSN"`
	OMOPDSN   string `mapstructure:"OMOP_DSN"`

	SNOMEDVersion string `mapstructure:"SNOMED_VERSION"`
	CPTVersion    string `mapstructure:"CPT_VERSION"`
	UCUMVersion   string `mapstructure:"UCUM_VERSION"`
	BCP47Version  string `mapstructure:"BCP47_VERSION"`

	HGVSValidateURL string `mapstructure:"HGVS_VALIDATE_URL"`
	HGVSVersion     string `mapstructure:"HGVS_VERSION"`
}

func loadConfig(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("termserver")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/termserver")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OPERATION_TIMEOUT", 30*time.Second)
	v.SetDefault("MAX_EXPANSION_SIZE", 1000)
	v.SetDefault("WORKER_COUNT", 0) // 0 -> runtime.NumCPU()
	v.SetDefault("MAINTENANCE_INTERVAL", time.Minute)
	v.SetDefault("MEM_PRESSURE_BYTES", uint64(1<<30))
	v.SetDefault("RESOURCE_MAX_AGE", 24*time.Hour)

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if dirs := v.GetString("PACKAGE_DIR"); dirs != "" && len(cfg.PackageDir) == 0 {
		cfg.PackageDir = strings.Split(dirs, ",")
	}

	return cfg, nil
}
