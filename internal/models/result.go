package models

type Status string

const (
	StatusPass   Status = "Pass"
	StatusFail   Status = "Fail"
	StatusNoData Status = "No Data"
)

type ResultRow struct {
	Marker    string  `json:"marker" yaml:"marker"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Average   *int64  `json:"average_ms" yaml:"average_ms"`
	Status    Status  `json:"status" yaml:"status"`
}

type Summary struct {
	Pass   int `json:"pass"`
	Fail   int `json:"fail"`
	NoData int `json:"no_data"`
}

// Summarize counts rows per status.
func Summarize(rows []ResultRow) Summary {
	var s Summary
	for _, row := range rows {
		switch row.Status {
		case StatusPass:
			s.Pass++
		case StatusFail:
			s.Fail++
		case StatusNoData:
			s.NoData++
		}
	}
	return s
}
