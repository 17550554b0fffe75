package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"

	timeutils "github.com/imishinist/markercheck/internal/time"
)

// Databricks domain suffixes for URL detection
var databricksDomains = []string{
	".cloud.databricks.com",
	".azuredatabricks.net",
	".gcp.databricks.com",
}

// Valid configuration values
var (
	validFormats = map[string]bool{
		"": true, "xlsx": true, "json": true, "yaml": true, "csv": true, "table": true,
	}
	validLogFormats = map[string]bool{
		"text": true, "json": true,
	}
)

type Config struct {
	Registry      string
	RegistrySheet string
	Logs          []string
	Output        string
	Format        string
	Tolerance     float64
	Rounding      string
	Concurrency   int
	Strict        bool
	FailOnFail    bool

	LogLevel  string
	LogFormat string

	TrackingURI     string
	ExperimentID    string
	RunID           string
	RunName         string
	UploadReport    bool
	DatabricksHost  string
	DatabricksToken string
}

func New() *Config {
	return &Config{
		Registry:        viper.GetString("registry"),
		RegistrySheet:   viper.GetString("registry_sheet"),
		Logs:            viper.GetStringSlice("logs"),
		Output:          viper.GetString("output"),
		Format:          viper.GetString("format"),
		Tolerance:       viper.GetFloat64("tolerance"),
		Rounding:        viper.GetString("rounding"),
		Concurrency:     viper.GetInt("concurrency"),
		Strict:          viper.GetBool("strict"),
		FailOnFail:      viper.GetBool("fail_on_fail"),
		LogLevel:        viper.GetString("log_level"),
		LogFormat:       viper.GetString("log_format"),
		TrackingURI:     viper.GetString("tracking_uri"),
		ExperimentID:    viper.GetString("experiment_id"),
		RunID:           viper.GetString("run_id"),
		RunName:         viper.GetString("run_name"),
		UploadReport:    viper.GetBool("upload_report"),
		DatabricksHost:  viper.GetString("databricks_host"),
		DatabricksToken: viper.GetString("databricks_token"),
	}
}

// Validate checks the settings a marker check needs.
func (c *Config) Validate() error {
	if c.Registry == "" {
		return fmt.Errorf("registry is required")
	}

	if c.Tolerance < 0 || math.IsNaN(c.Tolerance) || math.IsInf(c.Tolerance, 0) {
		return fmt.Errorf("invalid tolerance: %v (must be a non-negative number of milliseconds)", c.Tolerance)
	}

	if _, err := timeutils.ParseRounding(c.Rounding); err != nil {
		return err
	}

	if !validFormats[strings.ToLower(c.Format)] {
		return fmt.Errorf("invalid format: %s (valid: xlsx, json, yaml, csv, table)", c.Format)
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("invalid concurrency: %d (must be at least 1)", c.Concurrency)
	}

	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.LogFormat)
	}

	if c.UploadReport && c.Output == "" {
		return fmt.Errorf("upload_report requires an output file")
	}

	return nil
}

// PublishEnabled reports whether results should be sent to an MLflow run.
func (c *Config) PublishEnabled() bool {
	return c.RunID != "" || c.ExperimentID != ""
}

// ValidateTracking checks the MLflow settings used when publishing.
func (c *Config) ValidateTracking() error {
	if c.TrackingURI == "" {
		return fmt.Errorf("tracking URI is required")
	}
	if c.RunID == "" && c.ExperimentID == "" {
		return fmt.Errorf("run ID or experiment ID is required to publish results")
	}
	return nil
}

// IsDatabricks checks if the tracking URI points to Databricks
func (c *Config) IsDatabricks() bool {
	if c.TrackingURI == "databricks" {
		return true
	}

	if strings.HasPrefix(c.TrackingURI, "databricks://") {
		return true
	}

	if strings.HasPrefix(c.TrackingURI, "https://") {
		return isDatabricksHost(extractHost(c.TrackingURI))
	}

	return false
}

func extractHost(url string) string {
	host := strings.TrimPrefix(url, "https://")
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	return host
}

func isDatabricksHost(host string) bool {
	for _, domain := range databricksDomains {
		if strings.HasSuffix(host, domain) {
			return true
		}
	}
	return false
}

// GetDatabricksProfile extracts the profile name from databricks://{profile} URI
func (c *Config) GetDatabricksProfile() string {
	if !strings.HasPrefix(c.TrackingURI, "databricks://") {
		return ""
	}

	profile := strings.TrimPrefix(c.TrackingURI, "databricks://")
	if idx := strings.Index(profile, "/"); idx != -1 {
		profile = profile[:idx]
	}
	return profile
}
