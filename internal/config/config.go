// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load layers a YAML file and ECOAUDIT_ environment variables on top.
// - External errors are wrapped with this package's sentinel kinds.
package config

// Meter kinds accepted by MeterKind.
const (
	MeterAuto     = "auto"
	MeterPowercap = "powercap"
	MeterEstimate = "estimate"
	MeterNone     = "none"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":5000".
	Addr string `koanf:"addr"`

	// WriteTimeoutSeconds bounds response writes. Zero disables the limit so
	// long audits are not cut off; put a proxy timeout in front instead.
	WriteTimeoutSeconds int `koanf:"write_timeout_seconds"`

	// MaxUploadMB caps the multipart body accepted by POST /api/audit.
	MaxUploadMB int `koanf:"max_upload_mb"`

	// TempDir holds uploaded artifacts while they are audited. Empty means os.TempDir().
	TempDir string `koanf:"temp_dir"`

	// ResultsDir receives audit_<timestamp>.json files from the local flow.
	ResultsDir string `koanf:"results_dir"`

	// EmissionsLog is the CSV measurement log written by the meter and read
	// as a fallback reading source and report preview.
	EmissionsLog string `koanf:"emissions_log"`

	// DefaultEpochs is used when a request does not set epochs.
	DefaultEpochs int `koanf:"default_epochs"`

	// Seed drives the train/test split, forest bootstraps and synthetic inputs.
	Seed int64 `koanf:"seed"`

	// TreeCount is the number of trees in the baseline forest.
	TreeCount int `koanf:"tree_count"`

	// SyntheticRows is the row count of the synthetic inference workload.
	SyntheticRows int `koanf:"synthetic_rows"`

	// MeterKind selects the energy backend: auto, powercap, estimate or none.
	MeterKind string `koanf:"meter_kind"`

	// PowercapRoot is the sysfs directory holding intel-rapl zones.
	PowercapRoot string `koanf:"powercap_root"`

	// CPUTDPWatts feeds the CPU-time estimate meter.
	CPUTDPWatts float64 `koanf:"cpu_tdp_watts"`

	// CarbonIntensity converts kWh into kg CO2e, in grams per kWh.
	CarbonIntensity float64 `koanf:"carbon_intensity_g_per_kwh"`

	// CountryName is recorded in measurement log rows.
	CountryName string `koanf:"country_name"`

	// AllowedOrigins configures CORS for the HTTP API.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// RateLimitPerMinute bounds audit requests per client IP. Zero disables it.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`

	// ServerURL is the base URL used by `ecoaudit submit`.
	ServerURL string `koanf:"server_url"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":5000",
		WriteTimeoutSeconds: 0,
		MaxUploadMB:         64,
		TempDir:             "",
		ResultsDir:          "results",
		EmissionsLog:        "emissions.csv",
		DefaultEpochs:       1,
		Seed:                42,
		TreeCount:           100,
		SyntheticRows:       1000,
		MeterKind:           MeterAuto,
		PowercapRoot:        "/sys/class/powercap",
		CPUTDPWatts:         65,
		CarbonIntensity:     475,
		CountryName:         "",
		AllowedOrigins:      []string{"*"},
		RateLimitPerMinute:  30,
		ServerURL:           "http://localhost:5000",
	}
}
