package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SCRAPER_PARALLEL.
const EnvPrefix = "SCRAPER"

// RegisterFlags declares the command-line flags understood by Load.
func RegisterFlags(flags *pflag.FlagSet) {
	def := DefaultConfig()
	flags.Int("parallel", def.Parallelism, "Number of concurrent detail page requests")
	flags.Duration("timeout", def.Timeout, "Per-request timeout")
	flags.String("user-agent", def.UserAgent, "User-Agent header sent with every request")
	flags.String("output", def.OutputFile, "Also export records to this file")
	flags.String("format", def.OutputFormat, "Export format: csv, json, or dual")
	flags.String("metrics-addr", def.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolP("verbose", "v", def.Verbose, "Enable verbose logging")
	flags.String("listing-class", def.Markers.ListingClass, "Class marking the product list")
	flags.String("price-class", def.Markers.PriceClass, "Class marking the unit price")
	flags.String("detail-class", def.Markers.DetailClass, "Class marking the detail page description")
}

// Load builds a Config from flags, with SCRAPER_* environment variables
// filling in any flag that was not set explicitly.
func Load(baseURL string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Parallelism = v.GetInt("parallel")
	cfg.Timeout = v.GetDuration("timeout")
	cfg.UserAgent = v.GetString("user-agent")
	cfg.OutputFile = v.GetString("output")
	cfg.OutputFormat = strings.ToLower(v.GetString("format"))
	cfg.MetricsAddr = v.GetString("metrics-addr")
	cfg.Verbose = v.GetBool("verbose")
	cfg.Markers.ListingClass = v.GetString("listing-class")
	cfg.Markers.PriceClass = v.GetString("price-class")
	cfg.Markers.DetailClass = v.GetString("detail-class")
	return cfg, nil
}
