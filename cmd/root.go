package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	configErr error
)

var rootCmd = &cobra.Command{
	Use:   "markercheck",
	Short: "Marker timing checker",
	Long: `A command line tool that checks marker timings found in log files
against the thresholds of a marker registry and reports Pass, Fail or No Data
for every marker.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return configErr
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./markercheck.yaml if present)")
	rootCmd.PersistentFlags().String("log-level", "", "Diagnostic log level (debug/info/warn/error)")
	rootCmd.PersistentFlags().String("log-format", "", "Diagnostic log format (text/json)")
	rootCmd.PersistentFlags().String("tracking-uri", "", "MLflow tracking URI (overrides MLFLOW_TRACKING_URI)")
	rootCmd.PersistentFlags().String("experiment-id", "", "MLflow experiment ID (overrides MLFLOW_EXPERIMENT_ID)")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("tracking_uri", rootCmd.PersistentFlags().Lookup("tracking-uri"))
	viper.BindPFlag("experiment_id", rootCmd.PersistentFlags().Lookup("experiment-id"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("markercheck")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	// Environment variables
	viper.SetEnvPrefix("MARKERCHECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// MLflow and Databricks keep their usual variable names
	viper.BindEnv("tracking_uri", "MARKERCHECK_TRACKING_URI", "MLFLOW_TRACKING_URI")
	viper.BindEnv("experiment_id", "MARKERCHECK_EXPERIMENT_ID", "MLFLOW_EXPERIMENT_ID")
	viper.BindEnv("run_id", "MARKERCHECK_RUN_ID", "MLFLOW_RUN_ID")
	viper.BindEnv("databricks_host", "DATABRICKS_HOST")
	viper.BindEnv("databricks_token", "DATABRICKS_TOKEN")

	// Set defaults
	viper.SetDefault("tolerance", 10.0)
	viper.SetDefault("rounding", "half-even")
	viper.SetDefault("concurrency", 1)
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_format", "text")

	configErr = nil
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			configErr = fmt.Errorf("failed to read config: %w", err)
		}
	}
}
