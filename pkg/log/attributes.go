// Package log defines standard attribute keys for session orchestration.
//
// Using these keys everywhere keeps training, analysis and transport logs
// filterable by the same names ("session.id", "http.status", ...).

package log

// Session context.
const (
	// SessionIDKey is the server-assigned training session id.
	SessionIDKey = "session.id"

	// SessionKindKey is "training" or "analysis".
	SessionKindKey = "session.kind"

	// SessionStatusKey is the last status reported by the service.
	SessionStatusKey = "session.status"

	// PhaseKey is the orchestrator phase (idle, submitting, polling, done, failed).
	PhaseKey = "session.phase"

	// RunIDKey is the client-generated id of an analysis run.
	RunIDKey = "analysis.run_id"

	// ComponentKey identifies the component emitting the record.
	ComponentKey = "component"
)

// Configuration being submitted.
const (
	// AlgorithmKey is the selected algorithm id (knn, svc, random_forest).
	AlgorithmKey = "algorithm.id"

	// HyperParamsKey carries the submitted algorithm parameters.
	HyperParamsKey = "algorithm.params"

	// SamplingFrequencyKey is the analysis sampling frequency in Hz.
	SamplingFrequencyKey = "analysis.fs"
)

// Polling.
const (
	PollIntervalMsKey = "poll.interval_ms"
	PollTickKey       = "poll.tick"
)

// Transport.
const (
	HTTPMethodKey = "http.method"
	HTTPPathKey   = "http.path"
	HTTPStatusKey = "http.status"
	DurationMsKey = "perf.duration_ms"
)

// Uploads.
const (
	UploadNameKey = "upload.name"
	UploadSizeKey = "upload.size_bytes"
)

// Error context.
const (
	// ErrorFieldsKey lists the field names of a field-error map.
	ErrorFieldsKey = "error.fields"

	// ErrorTypeKey categorises the error (ValidationError, ServerError, ...).
	ErrorTypeKey = "error.type"
)

// Standard values.
const (
	KindTraining = "training"
	KindAnalysis = "analysis"
)
