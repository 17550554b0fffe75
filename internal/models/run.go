package models

import "time"

type RunConfig struct {
	ExperimentID string            `json:"experiment_id"`
	RunName      string            `json:"run_name,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

type RunInfo struct {
	RunID        string    `json:"run_id"`
	ExperimentID string    `json:"experiment_id"`
	RunName      string    `json:"run_name"`
	StartTime    time.Time `json:"start_time"`
}

type RunStatus string

const (
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusFinished RunStatus = "FINISHED"
	RunStatusFailed   RunStatus = "FAILED"
	RunStatusKilled   RunStatus = "KILLED"
)
