package models

import "time"

type Metric struct {
	Key       string    `json:"key"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Step      int64     `json:"step"`
}

type Parameter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
