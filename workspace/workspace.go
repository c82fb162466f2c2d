// Package workspace owns the components of one user session and derives
// what should be visible from their status.
package workspace

import (
	"context"

	"github.com/YuminosukeSato/ecgstudio/analysis"
	"github.com/YuminosukeSato/ecgstudio/client"
	"github.com/YuminosukeSato/ecgstudio/form"
	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
	"github.com/YuminosukeSato/ecgstudio/pkg/log"
	"github.com/YuminosukeSato/ecgstudio/schema"
	"github.com/YuminosukeSato/ecgstudio/training"
	"github.com/YuminosukeSato/ecgstudio/upload"
)

// Options configures a Workspace. Zero values select the defaults.
type Options struct {
	Registry         *schema.Registry
	TrainingOptions  []training.Option
	AnalysisOptions  []analysis.Option
	UploadOptions    []upload.Option
	Logger           log.Logger
	DisableAutoReset bool
}

// Workspace is the owning context for a form, an upload gate and the two
// orchestrators, all sharing one client.
type Workspace struct {
	Client   client.SessionClient
	Form     *form.Builder
	Uploads  *upload.Gate
	Training *training.Orchestrator
	Analysis *analysis.Orchestrator

	logger log.Logger
}

// New wires a workspace around c.
//
// Clearing the upload resets the analysis run, and every training submission
// clears the upload.
func New(c client.SessionClient, opts Options) *Workspace {
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("workspace")
	}

	gate := upload.NewGate(append([]upload.Option{upload.WithLogger(logger.With(log.ComponentKey, "upload"))}, opts.UploadOptions...)...)
	trainer := training.New(c, append([]training.Option{
		training.WithLogger(logger.With(log.ComponentKey, "training")),
		training.WithUploadClearer(gate),
	}, opts.TrainingOptions...)...)
	analyser := analysis.New(c, trainer, gate, append([]analysis.Option{
		analysis.WithLogger(logger.With(log.ComponentKey, "analysis")),
	}, opts.AnalysisOptions...)...)

	if !opts.DisableAutoReset {
		gate.OnClear(analyser.Reset)
	}

	return &Workspace{
		Client:   c,
		Form:     form.NewBuilder(opts.Registry),
		Uploads:  gate,
		Training: trainer,
		Analysis: analyser,
		logger:   logger,
	}
}

// SubmitTraining builds the form's submission and starts training. Client
// validation failures never reach the service; server field errors are
// merged back into the form.
func (w *Workspace) SubmitTraining(ctx context.Context) error {
	cfg, err := w.Form.BuildSubmission()
	if err != nil {
		return err
	}
	if err := w.Training.Submit(ctx, cfg); err != nil {
		var serverErr *errors.ServerError
		if errors.As(err, &serverErr) {
			w.Form.ApplyServerErrors(serverErr.Fields)
		}
		return err
	}
	return nil
}

// TrainingResultsVisible reports whether a submission has been made.
func (w *Workspace) TrainingResultsVisible() bool {
	return w.Training.Snapshot().Phase != training.PhaseIdle
}

// AnalysisEnabled reports whether the training session is done.
func (w *Workspace) AnalysisEnabled() bool {
	_, ok := w.Training.CompletedSessionID()
	return ok
}

// AnalysisResultsVisible reports whether an analysis run exists.
func (w *Workspace) AnalysisResultsVisible() bool {
	return w.Analysis.Snapshot().Status != analysis.StatusIdle
}

// Close stops background polling.
func (w *Workspace) Close() error {
	w.Training.Stop()
	w.logger.Debug("Workspace closed")
	return nil
}
