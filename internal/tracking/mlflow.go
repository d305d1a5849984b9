// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/webshield/internal/httputil"
	"github.com/pdiddy/webshield/pkg/types"
)

// MLflow logs runs to an MLflow tracking server over its REST API.
type MLflow struct {
	base       string
	experiment string
	headers    map[string]string
	client     *http.Client
	retries    int
	logger     *slog.Logger
}

// NewMLflow returns a client for the server at cfg.MLflowURI.
func NewMLflow(cfg types.TrackingConfig, logger *slog.Logger) (*MLflow, error) {
	if cfg.MLflowURI == "" {
		return nil, fmt.Errorf("mlflow tracking requires tracking.mlflow_uri")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	experiment := cfg.ExperimentID
	if experiment == "" {
		experiment = "0"
	}
	headers := map[string]string{}
	if cfg.Token != "" {
		headers["Authorization"] = "Bearer " + cfg.Token
	}
	return &MLflow{
		base:       strings.TrimRight(cfg.MLflowURI, "/") + "/api/2.0/mlflow",
		experiment: experiment,
		headers:    headers,
		client:     &http.Client{Timeout: timeout},
		retries:    cfg.MaxRetries,
		logger:     logger,
	}, nil
}

// Close releases idle connections.
func (m *MLflow) Close() error {
	m.client.CloseIdleConnections()
	return nil
}

type mlflowTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (m *MLflow) post(ctx context.Context, endpoint string, in, out any) error {
	err := httputil.PostJSON(ctx, m.client, m.base+endpoint, m.headers, in, out, m.retries)
	if err == nil {
		return nil
	}
	var se *httputil.StatusError
	if errors.As(err, &se) {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	return &types.ConnectivityError{Target: "mlflow", Err: err}
}

// StartRun creates a run in the configured experiment.
func (m *MLflow) StartRun(ctx context.Context, name string, tags map[string]string) (Run, error) {
	req := struct {
		ExperimentID string      `json:"experiment_id"`
		RunName      string      `json:"run_name"`
		StartTime    int64       `json:"start_time"`
		Tags         []mlflowTag `json:"tags,omitempty"`
	}{
		ExperimentID: m.experiment,
		RunName:      name,
		StartTime:    time.Now().UnixMilli(),
	}
	for k, v := range tags {
		req.Tags = append(req.Tags, mlflowTag{Key: k, Value: v})
	}

	var resp struct {
		Run struct {
			Info struct {
				RunID string `json:"run_id"`
			} `json:"info"`
		} `json:"run"`
	}
	if err := m.post(ctx, "/runs/create", req, &resp); err != nil {
		return nil, err
	}
	if resp.Run.Info.RunID == "" {
		return nil, fmt.Errorf("/runs/create: response carried no run_id")
	}
	return &mlflowRun{m: m, id: resp.Run.Info.RunID}, nil
}

type mlflowRun struct {
	m  *MLflow
	id string
}

func (r *mlflowRun) ID() string { return r.id }

func (r *mlflowRun) LogMetric(ctx context.Context, key string, value float64) error {
	return r.m.post(ctx, "/runs/log-metric", map[string]any{
		"run_id":    r.id,
		"key":       key,
		"value":     value,
		"timestamp": time.Now().UnixMilli(),
		"step":      0,
	}, nil)
}

func (r *mlflowRun) LogParam(ctx context.Context, key, value string) error {
	return r.m.post(ctx, "/runs/log-parameter", map[string]any{
		"run_id": r.id,
		"key":    key,
		"value":  value,
	}, nil)
}

// LogModel records the model in the run's log-model history and registers a
// new version under m.RegisteredName, creating the registered model on first
// use.
func (r *mlflowRun) LogModel(ctx context.Context, m ModelInfo) error {
	history, err := json.Marshal([]map[string]any{{
		"run_id":           r.id,
		"artifact_path":    m.Name,
		"utc_time_created": time.Now().UTC().Format("2006-01-02 15:04:05.000000"),
		"flavors": map[string]any{
			"webshield": map[string]any{"kind": m.Kind, "path": m.ArtifactPath},
		},
		"signature":                map[string]any{"inputs": m.Features},
		"saved_input_example_info": map[string]any{"example": m.InputExample},
	}})
	if err != nil {
		return fmt.Errorf("encoding model history: %w", err)
	}
	if err := r.m.post(ctx, "/runs/set-tag", map[string]any{
		"run_id": r.id,
		"key":    "mlflow.log-model.history",
		"value":  string(history),
	}, nil); err != nil {
		return err
	}

	if m.RegisteredName == "" {
		return nil
	}
	err = r.m.post(ctx, "/registered-models/create", map[string]any{"name": m.RegisteredName}, nil)
	var se *httputil.StatusError
	if err != nil && !(errors.As(err, &se) && strings.Contains(se.Body, "RESOURCE_ALREADY_EXISTS")) {
		return err
	}

	var version struct {
		ModelVersion struct {
			Version string `json:"version"`
		} `json:"model_version"`
	}
	if err := r.m.post(ctx, "/model-versions/create", map[string]any{
		"name":   m.RegisteredName,
		"source": "runs:/" + r.id + "/" + m.Name,
		"run_id": r.id,
	}, &version); err != nil {
		return err
	}
	r.m.logger.Info("registered model version", "name", m.RegisteredName, "version", version.ModelVersion.Version)
	return nil
}

func (r *mlflowRun) End(ctx context.Context, status Status) error {
	return r.m.post(ctx, "/runs/update", map[string]any{
		"run_id":   r.id,
		"status":   string(status),
		"end_time": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}, nil)
}
