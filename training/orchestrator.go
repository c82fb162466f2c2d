// Package training submits training sessions and follows them to completion.
//
// An Orchestrator owns at most one session and one poll task. Each tick
// dispatches a status read without waiting for it and then looks at the status
// known before that read. A terminal status ends the task, so one read is
// always issued after the terminal response arrives.
package training

import (
	"context"
	"sync"
	"time"

	"github.com/YuminosukeSato/ecgstudio/chart"
	"github.com/YuminosukeSato/ecgstudio/client"
	"github.com/YuminosukeSato/ecgstudio/metrics"
	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
	"github.com/YuminosukeSato/ecgstudio/pkg/log"
	"github.com/YuminosukeSato/ecgstudio/schema"
)

// DefaultPollInterval is the time between status reads.
const DefaultPollInterval = 2000 * time.Millisecond

// Phase is the orchestrator's view of the submission lifecycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhasePolling    Phase = "polling"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Settled reports whether the phase is final for the current submission.
func (p Phase) Settled() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Session is the client-side record of a training session.
type Session struct {
	ID      string
	Status  client.Status
	Metrics metrics.Metrics
	Charts  chart.Set
}

func (s Session) clone() Session {
	out := s
	if s.Metrics != nil {
		out.Metrics = s.Metrics.Clone()
	}
	if s.Charts != nil {
		out.Charts = s.Charts.Clone()
	}
	return out
}

// Snapshot is a copy of the orchestrator state.
type Snapshot struct {
	Phase      Phase
	HasSession bool
	Session    Session
	Config     schema.TrainingConfig
	Errors     errors.FieldErrors
}

// UploadClearer drops the pending upload when a new submission starts.
type UploadClearer interface {
	Clear()
}

// Ticker starts a periodic timer and returns its channel and stop function.
type Ticker func(d time.Duration) (<-chan time.Time, func())

func newTimeTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPollInterval sets the time between status reads.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithTicker replaces the timer used by the poll task.
func WithTicker(t Ticker) Option {
	return func(o *Orchestrator) {
		o.newTicker = t
	}
}

// WithUploadClearer sets the upload gate cleared on every submission.
func WithUploadClearer(c UploadClearer) Option {
	return func(o *Orchestrator) {
		o.clearer = c
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

// Orchestrator drives one training session at a time. Safe for concurrent use.
type Orchestrator struct {
	client    client.SessionClient
	interval  time.Duration
	newTicker Ticker
	clearer   UploadClearer
	logger    log.Logger
	hooks     []func(Snapshot)

	submitMu sync.Mutex

	mu      sync.Mutex
	phase   Phase
	session *Session
	cfg     schema.TrainingConfig
	errs    errors.FieldErrors
	gen     uint64
	poll    *pollTask
	settled chan struct{}
}

type pollTask struct {
	id     string
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an idle orchestrator reading through c.
func New(c client.SessionClient, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:    c,
		interval:  DefaultPollInterval,
		newTicker: newTimeTicker,
		logger:    log.GetLoggerWithName("training"),
		phase:     PhaseIdle,
		errs:      errors.FieldErrors{},
		settled:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(log.SessionKindKey, log.KindTraining)
	return o
}

// PollInterval returns the time between status reads.
func (o *Orchestrator) PollInterval() time.Duration {
	return o.interval
}

// Submit creates a training session for cfg and starts polling it.
//
// Any running poll task is cancelled first and the pending upload is
// cleared. A failed create leaves the orchestrator in PhaseFailed with the
// reported field errors and returns the error.
func (o *Orchestrator) Submit(ctx context.Context, cfg schema.TrainingConfig) error {
	o.submitMu.Lock()
	defer o.submitMu.Unlock()

	o.stopPolling()
	if o.clearer != nil {
		o.clearer.Clear()
	}

	o.mu.Lock()
	o.gen++
	gen := o.gen
	o.phase = PhaseSubmitting
	o.session = nil
	o.cfg = cfg.Clone()
	o.errs = errors.FieldErrors{}
	o.settled = make(chan struct{})
	o.mu.Unlock()
	o.notify()

	o.logger.Info("Submitting training session",
		log.AlgorithmKey, cfg.GeneralParams.AlgorithmID,
		log.HyperParamsKey, cfg.AlgorithmParams,
	)

	id, err := o.client.CreateTrainingSession(ctx, cfg)
	if err != nil {
		fields := errors.AsFieldErrors(err)
		o.mu.Lock()
		if o.gen == gen {
			o.phase = PhaseFailed
			o.errs = fields
			o.settle()
		}
		o.mu.Unlock()
		o.notify()
		o.logger.Error("Training session create failed", err, log.ErrorFieldsKey, fields.Names())
		return err
	}

	o.mu.Lock()
	o.session = &Session{ID: id, Status: client.StatusInitialized, Metrics: metrics.Metrics{}, Charts: chart.Set{}}
	o.phase = PhasePolling
	o.startPolling(id, gen)
	o.mu.Unlock()
	o.notify()

	o.logger.Info("Training session created", log.SessionIDKey, id, log.PollIntervalMsKey, o.interval.Milliseconds())
	return nil
}

// Stop cancels the poll task, if any, and waits for it to exit. The session
// state is kept.
func (o *Orchestrator) Stop() {
	o.stopPolling()
}

// Polling reports whether a poll task is running.
func (o *Orchestrator) Polling() bool {
	o.mu.Lock()
	p := o.poll
	o.mu.Unlock()
	if p == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	s := Snapshot{
		Phase:  o.phase,
		Config: o.cfg.Clone(),
		Errors: o.errs.Clone(),
	}
	if o.session != nil {
		s.HasSession = true
		s.Session = o.session.clone()
	}
	return s
}

// CompletedSessionID returns the session id when its status is done.
func (o *Orchestrator) CompletedSessionID() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil || o.session.Status != client.StatusDone {
		return "", false
	}
	return o.session.ID, true
}

// Wait blocks until the current submission settles or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	settled := o.settled
	o.mu.Unlock()
	select {
	case <-settled:
		return o.Snapshot(), nil
	case <-ctx.Done():
		return o.Snapshot(), ctx.Err()
	}
}

// startPolling must be called with mu held. The timer exists once it returns.
func (o *Orchestrator) startPolling(id string, gen uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	task := &pollTask{id: id, gen: gen, cancel: cancel, done: make(chan struct{})}
	ticks, stop := o.newTicker(o.interval)
	o.poll = task
	go o.run(ctx, task, ticks, stop)
}

func (o *Orchestrator) stopPolling() {
	o.mu.Lock()
	task := o.poll
	o.poll = nil
	o.mu.Unlock()
	if task == nil {
		return
	}
	task.cancel()
	<-task.done
}

func (o *Orchestrator) run(ctx context.Context, task *pollTask, ticks <-chan time.Time, stop func()) {
	defer close(task.done)
	defer stop()

	logger := o.logger.With(log.SessionIDKey, task.id)
	logger.Debug("Polling started", log.PollIntervalMsKey, o.interval.Milliseconds())

	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			logger.Debug("Polling cancelled")
			return
		case <-ticks:
		}

		terminal := o.terminal(task)
		o.dispatchRead(ctx, task, tick)
		if terminal {
			logger.Debug("Polling stopped", log.PollTickKey, tick)
			return
		}
	}
}

// terminal reports whether the status known now is terminal. A superseded
// task counts as terminal.
func (o *Orchestrator) terminal(task *pollTask) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != task.gen || o.session == nil || o.session.ID != task.id {
		return true
	}
	return o.session.Status.Terminal()
}

func (o *Orchestrator) dispatchRead(ctx context.Context, task *pollTask, tick int) {
	go func() {
		err := errors.SafeExecute("training.poll", func() error {
			st, err := o.client.GetTrainingSession(ctx, task.id)
			o.apply(task, tick, st, err)
			return nil
		})
		if err != nil {
			o.logger.Error("Status read panicked", err, log.SessionIDKey, task.id, log.PollTickKey, tick)
		}
	}()
}

func (o *Orchestrator) apply(task *pollTask, tick int, st *client.TrainingStatus, readErr error) {
	o.mu.Lock()
	if o.gen != task.gen || o.session == nil || o.session.ID != task.id {
		current := ""
		if o.session != nil {
			current = o.session.ID
		}
		o.mu.Unlock()
		errors.Warn(errors.NewStaleResponseWarning(log.KindTraining, task.id, current))
		return
	}
	if readErr != nil {
		if errors.Is(readErr, context.Canceled) {
			o.mu.Unlock()
			return
		}
		o.logger.Warn("Status read failed", readErr, log.SessionIDKey, task.id, log.PollTickKey, tick)
		// 確定後の読み取りは再試行されないので記録しない
		if o.phase.Settled() {
			o.mu.Unlock()
			return
		}
		// the next tick retries; the error stays visible until a read succeeds
		o.errs = errors.AsFieldErrors(readErr)
		o.mu.Unlock()
		o.notify()
		return
	}

	s := o.session
	prev := s.Status
	s.Status = st.Status
	o.errs = errors.FieldErrors{}
	switch st.Status {
	case client.StatusDone:
		s.Charts = st.Charts
		if s.Charts == nil {
			s.Charts = chart.Set{}
		}
		s.Metrics = st.Metrics
		if s.Metrics == nil {
			s.Metrics = metrics.Metrics{}
		}
		o.phase = PhaseDone
		o.settle()
	case client.StatusFailed:
		o.phase = PhaseFailed
		o.settle()
	default:
		o.phase = PhasePolling
	}
	o.mu.Unlock()

	if prev != st.Status {
		o.logger.Info("Training status changed",
			log.SessionIDKey, task.id,
			log.SessionStatusKey, string(st.Status),
			log.PollTickKey, tick,
		)
	}
	o.notify()
}

// settle must be called with mu held.
func (o *Orchestrator) settle() {
	select {
	case <-o.settled:
	default:
		close(o.settled)
	}
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
