// Package analysis runs a completed training session's model over an
// uploaded ECG recording.
package analysis

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/ecgstudio/chart"
	"github.com/YuminosukeSato/ecgstudio/client"
	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
	"github.com/YuminosukeSato/ecgstudio/pkg/log"
	"github.com/YuminosukeSato/ecgstudio/upload"
)

// DefaultSamplingFrequency is used when no sampling frequency is given.
const DefaultSamplingFrequency = 360

// Status of an analysis run.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Run is one analysis of one recording.
type Run struct {
	ID                string
	TrainingSessionID string
	SamplingFrequency int
	FileName          string
	Status            Status
	Charts            chart.Set
	Table             []client.HeartbeatRow
}

func (r Run) clone() Run {
	out := r
	if r.Charts != nil {
		out.Charts = r.Charts.Clone()
	}
	if r.Table != nil {
		out.Table = append([]client.HeartbeatRow(nil), r.Table...)
	}
	return out
}

// Snapshot is a copy of the orchestrator state. Status is StatusIdle when
// there is no run.
type Snapshot struct {
	Status Status
	HasRun bool
	Run    Run
	Errors errors.FieldErrors
}

// SessionSource reports the completed training session analyses run against.
type SessionSource interface {
	CompletedSessionID() (string, bool)
}

// UploadSource holds the recording to analyse.
type UploadSource interface {
	Pending() (upload.File, bool)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDefaultSamplingFrequency sets the frequency used for an empty input.
func WithDefaultSamplingFrequency(fs int) Option {
	return func(o *Orchestrator) {
		if fs > 0 {
			o.defaultFs = fs
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// OnChange registers fn to receive a snapshot after every state change.
func OnChange(fn func(Snapshot)) Option {
	return func(o *Orchestrator) {
		o.hooks = append(o.hooks, fn)
	}
}

// Orchestrator owns the current analysis run. Safe for concurrent use.
type Orchestrator struct {
	client    client.SessionClient
	sessions  SessionSource
	uploads   UploadSource
	defaultFs int
	logger    log.Logger
	hooks     []func(Snapshot)

	mu   sync.Mutex
	run  *Run
	errs errors.FieldErrors
}

// New returns an idle orchestrator.
func New(c client.SessionClient, sessions SessionSource, uploads UploadSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:    c,
		sessions:  sessions,
		uploads:   uploads,
		defaultFs: DefaultSamplingFrequency,
		logger:    log.GetLoggerWithName("analysis"),
		errs:      errors.FieldErrors{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(log.SessionKindKey, log.KindAnalysis)
	return o
}

// DefaultSamplingFrequency returns the frequency used for an empty input.
func (o *Orchestrator) DefaultSamplingFrequency() int {
	return o.defaultFs
}

// ParseSamplingFrequency converts the sampling frequency input. Empty input
// yields def.
func ParseSamplingFrequency(text string, def int) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return def, nil
	}
	fs, err := strconv.Atoi(text)
	if err != nil {
		return 0, errors.NewValidationError(errors.FieldErrors{
			errors.FieldSamplingFrequency: {errors.MsgInvalidInteger},
		})
	}
	return fs, nil
}

// Submit analyses the pending upload with the completed training session.
//
// The request is synchronous. A response that arrives after the run was
// reset or replaced is discarded.
func (o *Orchestrator) Submit(ctx context.Context, fsText string) error {
	fs, err := ParseSamplingFrequency(fsText, o.defaultFs)
	if err != nil {
		o.recordErrors(errors.AsFieldErrors(err))
		return err
	}

	sessionID, ok := o.sessions.CompletedSessionID()
	if !ok {
		err := errors.NewStateError("analysis.submit", "training not done", errors.ErrSessionNotDone)
		o.recordErrors(errors.FieldErrors{errors.FieldTrainingSession: {"Training must finish before analysis."}})
		return err
	}
	file, ok := o.uploads.Pending()
	if !ok {
		err := errors.NewStateError("analysis.submit", "no upload", errors.ErrNoUpload)
		o.recordErrors(errors.FieldErrors{errors.FieldEcgFile: {"No file was submitted."}})
		return err
	}

	run := &Run{
		ID:                uuid.New().String(),
		TrainingSessionID: sessionID,
		SamplingFrequency: fs,
		FileName:          file.Name,
		Status:            StatusRunning,
	}
	o.mu.Lock()
	o.run = run
	o.errs = errors.FieldErrors{}
	o.mu.Unlock()
	o.notify()

	logger := o.logger.With(log.RunIDKey, run.ID, log.SessionIDKey, sessionID)
	logger.Info("Analysis started",
		log.SamplingFrequencyKey, fs,
		log.UploadNameKey, file.Name,
		log.UploadSizeKey, file.Size,
	)

	res, err := o.client.CreateAnalysisSession(ctx, client.AnalysisRequest{
		FileName:          file.Name,
		File:              file.Data,
		SamplingFrequency: fs,
		TrainingSessionID: sessionID,
	})

	o.mu.Lock()
	if o.run != run {
		current := ""
		if o.run != nil {
			current = o.run.ID
		}
		o.mu.Unlock()
		errors.Warn(errors.NewStaleResponseWarning(log.KindAnalysis, run.ID, current))
		return err
	}
	if err != nil {
		run.Status = StatusFailed
		o.errs = errors.AsFieldErrors(err)
		o.mu.Unlock()
		logger.Error("Analysis failed", err)
		o.notify()
		return err
	}
	run.Status = StatusDone
	run.Charts = res.Charts
	if run.Charts == nil {
		run.Charts = chart.Set{}
	}
	run.Table = res.Table
	o.mu.Unlock()

	logger.Info("Analysis finished", "analysis.heartbeats", len(res.Table))
	o.notify()
	return nil
}

// Reset discards the current run and its errors.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	had := o.run != nil || len(o.errs) > 0
	o.run = nil
	o.errs = errors.FieldErrors{}
	o.mu.Unlock()
	if had {
		o.notify()
	}
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Snapshot{Status: StatusIdle, Errors: o.errs.Clone()}
	if o.run != nil {
		s.HasRun = true
		s.Run = o.run.clone()
		s.Status = o.run.Status
	}
	return s
}

func (o *Orchestrator) recordErrors(fields errors.FieldErrors) {
	o.mu.Lock()
	o.errs.Merge(fields)
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) notify() {
	if len(o.hooks) == 0 {
		return
	}
	snap := o.Snapshot()
	for _, fn := range o.hooks {
		fn(snap)
	}
}
