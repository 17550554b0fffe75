// Package mlflow publishes marker check results to an MLflow tracking
// server, either a plain MLflow server or Databricks.
package mlflow

import (
	"fmt"

	"github.com/databricks/databricks-sdk-go"

	"github.com/imishinist/markercheck/internal/config"
)

// plain MLflow servers ignore the token, but the SDK refuses to start without
// credentials
const placeholderToken = "markercheck-mlflow"

type Client struct {
	client *databricks.WorkspaceClient
	config *config.Config
}

var _ Tracker = (*Client)(nil)

func NewClient(cfg *config.Config) (*Client, error) {
	sdkConfig, err := workspaceConfig(cfg)
	if err != nil {
		return nil, err
	}

	client, err := databricks.NewWorkspaceClient(sdkConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create MLflow client: %w", err)
	}

	return &Client{
		client: client,
		config: cfg,
	}, nil
}

// workspaceConfig maps the tracking settings onto an SDK config. Databricks
// tracking URIs take one of three forms:
//
//	databricks              host from DATABRICKS_HOST (or ~/.databrickscfg)
//	databricks://<profile>  named profile from ~/.databrickscfg
//	https://<workspace>     the workspace URL itself
//
// Anything else is treated as the URL of a plain MLflow server.
func workspaceConfig(cfg *config.Config) (*databricks.Config, error) {
	if err := cfg.ValidateTracking(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if !cfg.IsDatabricks() {
		return &databricks.Config{Host: cfg.TrackingURI, Token: placeholderToken}, nil
	}

	sdkConfig := &databricks.Config{Token: cfg.DatabricksToken}
	switch profile := cfg.GetDatabricksProfile(); {
	case cfg.TrackingURI == "databricks":
		sdkConfig.Host = cfg.DatabricksHost
	case profile != "":
		sdkConfig.Profile = profile
	default:
		sdkConfig.Host = cfg.TrackingURI
	}

	if sdkConfig.Host == "" && sdkConfig.Profile == "" {
		return nil, fmt.Errorf("databricks tracking needs a host or profile: set DATABRICKS_HOST, use the workspace URL as tracking URI, or use databricks://<profile>")
	}
	return sdkConfig, nil
}
