package client

import (
	"encoding/json"

	"github.com/YuminosukeSato/ecgstudio/chart"
	"github.com/YuminosukeSato/ecgstudio/metrics"
	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
)

// Endpoint paths relative to the service base URL.
const (
	TrainingSessionPath = "/api/modelling/session/"
	AnalysisSessionPath = "/api/analysis/session/"
	PrimePath           = "/"
)

// CSRF cookie and header names used by the service.
const (
	CSRFCookieName = "csrftoken"
	CSRFHeaderName = "X-CSRFToken"
)

// Status is the lifecycle state of a training session.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusTraining    Status = "training"
	StatusEvaluation  Status = "evaluation"
	StatusRunning     Status = "running"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// InProgress reports whether the session is still being worked on.
func (s Status) InProgress() bool {
	switch s {
	case StatusInitialized, StatusTraining, StatusEvaluation, StatusRunning:
		return true
	}
	return false
}

type createTrainingResponse struct {
	ID string `json:"id"`
}

// TrainingStatus is the decoded status read of a training session.
// Charts and Metrics are populated only when the service sends them.
type TrainingStatus struct {
	Status  Status
	Charts  chart.Set
	Metrics metrics.Metrics
}

// UnmarshalJSON strips status and charts from the body and keeps the
// remaining numeric or percent fields as metrics. Charts are read only for a
// done session, and a chart payload that cannot be decoded never fails the
// status read.
func (s *TrainingStatus) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return errors.Wrap(err, "client: decode training status")
	}
	var out TrainingStatus
	if raw, ok := fields["status"]; ok {
		if err := json.Unmarshal(raw, &out.Status); err != nil {
			return errors.Wrap(err, "client: decode status field")
		}
	}
	if raw, ok := fields["charts"]; ok && out.Status == StatusDone {
		out.Charts = decodeCharts(raw)
	}
	out.Metrics = metrics.Decode(fields, "status", "charts", "id")
	*s = out
	return nil
}

// AnalysisRequest is the multipart payload of an analysis run.
type AnalysisRequest struct {
	FileName          string
	File              []byte
	SamplingFrequency int
	TrainingSessionID string
}

// HeartbeatRow is one row of the analysis heartbeat table.
type HeartbeatRow struct {
	Index          int       `json:"index"`
	PredictedLabel string    `json:"predicted_label"`
	Word           string    `json:"word"`
	WordVector     []float64 `json:"word_vector"`
}

// AnalysisResult is the synchronous response of an analysis run.
type AnalysisResult struct {
	Charts chart.Set
	Table  []HeartbeatRow
}

func (r *AnalysisResult) UnmarshalJSON(data []byte) error {
	var wire struct {
		Charts json.RawMessage `json:"charts"`
		Table  []HeartbeatRow  `json:"table"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return errors.Wrap(err, "client: decode analysis result")
	}
	r.Charts = decodeCharts(wire.Charts)
	r.Table = wire.Table
	return nil
}

// decodeCharts falls back to an empty set and reports the payload as a warning.
func decodeCharts(raw json.RawMessage) chart.Set {
	set, err := chart.DecodeSet(raw)
	if err != nil {
		errors.Warn(errors.Wrap(err, "client: charts ignored"))
		return chart.Set{}
	}
	return set
}
