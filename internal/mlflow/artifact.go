package mlflow

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/databricks/databricks-sdk-go/service/ml"
)

type destinationKind int

const (
	destinationHTTP destinationKind = iota
	destinationLocal
)

type artifactDestination struct {
	kind     destinationKind
	location string
}

// UploadArtifact uploads the file at filePath to the run's artifact store.
// Only mlflow-artifacts:/ and local file stores are supported.
func (c *Client) UploadArtifact(ctx context.Context, runID, filePath, artifactPath string) error {
	resp, err := c.client.Experiments.GetRun(ctx, ml.GetRunRequest{RunId: runID})
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	if resp.Run.Info.ArtifactUri == "" {
		return fmt.Errorf("artifact URI not found for run %s", runID)
	}

	if artifactPath == "" {
		artifactPath = filepath.Base(filePath)
	}

	dest, err := resolveArtifactDestination(resp.Run.Info.ArtifactUri, c.config.TrackingURI, artifactPath)
	if err != nil {
		return err
	}

	switch dest.kind {
	case destinationLocal:
		return copyFile(filePath, dest.location)
	default:
		return c.putFile(ctx, dest.location, filePath)
	}
}

func resolveArtifactDestination(artifactURI, trackingURI, artifactPath string) (artifactDestination, error) {
	switch {
	case strings.HasPrefix(artifactURI, "mlflow-artifacts:"):
		// mlflow-artifacts:/0/47485d6a0b734e37aaddc60be04b7371/artifacts
		parts := strings.Split(strings.Trim(strings.TrimPrefix(artifactURI, "mlflow-artifacts:"), "/"), "/")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return artifactDestination{}, fmt.Errorf("invalid mlflow-artifacts URI format: %s", artifactURI)
		}
		url := fmt.Sprintf("%s/api/2.0/mlflow-artifacts/artifacts/%s/%s/artifacts/%s",
			strings.TrimSuffix(trackingURI, "/"), parts[0], parts[1], artifactPath)
		return artifactDestination{kind: destinationHTTP, location: url}, nil
	case strings.HasPrefix(artifactURI, "file://") || strings.HasPrefix(artifactURI, "/"):
		dir := strings.TrimPrefix(artifactURI, "file://")
		return artifactDestination{kind: destinationLocal, location: path.Join(dir, artifactPath)}, nil
	default:
		return artifactDestination{}, fmt.Errorf("unsupported artifact URI scheme: %s", artifactURI)
	}
}

func (c *Client) putFile(ctx context.Context, url, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, file)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.config.IsDatabricks() && c.config.DatabricksToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.DatabricksToken)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload to MLflow Artifacts Service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("MLflow Artifacts Service upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(dst), err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy file content: %w", err)
	}
	return out.Close()
}
