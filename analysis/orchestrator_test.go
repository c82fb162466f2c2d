package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/ecgstudio/chart"
	"github.com/YuminosukeSato/ecgstudio/client"
	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
	"github.com/YuminosukeSato/ecgstudio/pkg/log"
	"github.com/YuminosukeSato/ecgstudio/upload"
)

type fakeSessions struct {
	id   string
	done bool
}

func (f *fakeSessions) CompletedSessionID() (string, bool) {
	return f.id, f.done
}

type fakeUploads struct {
	file *upload.File
}

func (f *fakeUploads) Pending() (upload.File, bool) {
	if f.file == nil {
		return upload.File{}, false
	}
	return *f.file, true
}

func sampleResult() *client.AnalysisResult {
	return &client.AnalysisResult{
		Charts: chart.Set{chart.Line: {Data: json.RawMessage(`[]`), Layout: json.RawMessage(`{}`)}},
		Table: []client.HeartbeatRow{
			{Index: 1, PredictedLabel: "Normal beat", Word: "abc", WordVector: []float64{3, 4}},
			{Index: 2, PredictedLabel: "Normal beat", Word: "abd", WordVector: []float64{0.5, 0.25, 1}},
		},
	}
}

func newTestOrchestrator(mock client.SessionClient, sessions SessionSource, uploads UploadSource, opts ...Option) *Orchestrator {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	return New(mock, sessions, uploads, append([]Option{WithLogger(logger)}, opts...)...)
}

func TestSubmitDefaultsSamplingFrequency(t *testing.T) {
	mock := client.NewMockClient()
	mock.AnalysisResult = sampleResult()
	o := newTestOrchestrator(mock,
		&fakeSessions{id: "abc", done: true},
		&fakeUploads{file: &upload.File{Name: "record.csv", Size: 3, Data: []byte("1,2")}},
	)

	require.NoError(t, o.Submit(context.Background(), "  "))

	assert.Equal(t, client.AnalysisRequest{
		FileName:          "record.csv",
		File:              []byte("1,2"),
		SamplingFrequency: DefaultSamplingFrequency,
		TrainingSessionID: "abc",
	}, mock.LastAnalysisRequest)

	snap := o.Snapshot()
	assert.Equal(t, StatusDone, snap.Status)
	require.True(t, snap.HasRun)
	_, err := uuid.Parse(snap.Run.ID)
	assert.NoError(t, err)
	assert.Equal(t, []string{chart.Line}, snap.Run.Charts.Keys())
	assert.Len(t, snap.Run.Table, 2)
	assert.Empty(t, snap.Errors)
}

func TestSubmitExplicitSamplingFrequency(t *testing.T) {
	mock := client.NewMockClient()
	o := newTestOrchestrator(mock,
		&fakeSessions{id: "abc", done: true},
		&fakeUploads{file: &upload.File{Name: "record.xlsx", Size: 1}},
		WithDefaultSamplingFrequency(250),
	)
	assert.Equal(t, 250, o.DefaultSamplingFrequency())

	require.NoError(t, o.Submit(context.Background(), "500"))
	assert.Equal(t, 500, mock.LastAnalysisRequest.SamplingFrequency)

	require.NoError(t, o.Submit(context.Background(), ""))
	assert.Equal(t, 250, mock.LastAnalysisRequest.SamplingFrequency)
}

func TestSubmitRejectsBadSamplingFrequency(t *testing.T) {
	mock := client.NewMockClient()
	o := newTestOrchestrator(mock,
		&fakeSessions{id: "abc", done: true},
		&fakeUploads{file: &upload.File{Name: "record.csv", Size: 1}},
	)

	err := o.Submit(context.Background(), "fast")
	var validationErr *errors.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, errors.MsgInvalidInteger, o.Snapshot().Errors.First(errors.FieldSamplingFrequency))
	assert.Equal(t, 0, mock.AnalysisCalled)
	assert.Equal(t, StatusIdle, o.Snapshot().Status)
}

func TestSubmitRequiresDoneSessionAndUpload(t *testing.T) {
	mock := client.NewMockClient()

	o := newTestOrchestrator(mock, &fakeSessions{id: "abc"}, &fakeUploads{file: &upload.File{Name: "a.csv"}})
	err := o.Submit(context.Background(), "")
	assert.True(t, errors.Is(err, errors.ErrSessionNotDone))

	o = newTestOrchestrator(mock, &fakeSessions{id: "abc", done: true}, &fakeUploads{})
	err = o.Submit(context.Background(), "")
	assert.True(t, errors.Is(err, errors.ErrNoUpload))
	assert.True(t, o.Snapshot().Errors.Has(errors.FieldEcgFile))

	assert.Equal(t, 0, mock.AnalysisCalled)
}

func TestSubmitFailureIsTerminal(t *testing.T) {
	mock := client.NewMockClient()
	mock.AnalysisError = errors.NewServerError("create analysis session", 404, errors.FieldErrors{
		errors.FieldDetail: {"Training session with this ID could not be found."},
	})
	o := newTestOrchestrator(mock,
		&fakeSessions{id: "abc", done: true},
		&fakeUploads{file: &upload.File{Name: "record.csv", Size: 1}},
	)

	require.Error(t, o.Submit(context.Background(), ""))
	snap := o.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "Training session with this ID could not be found.", snap.Errors.First(errors.FieldDetail))

	o.Reset()
	snap = o.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.False(t, snap.HasRun)
	assert.Empty(t, snap.Errors)
}

// blockingClient holds analysis requests until released.
type blockingClient struct {
	*client.MockClient
	entered chan struct{}
	release chan struct{}
}

func (b *blockingClient) CreateAnalysisSession(ctx context.Context, req client.AnalysisRequest) (*client.AnalysisResult, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.MockClient.CreateAnalysisSession(ctx, req)
}

func TestResetDiscardsInFlightResponse(t *testing.T) {
	mock := client.NewMockClient()
	mock.AnalysisResult = sampleResult()
	bc := &blockingClient{MockClient: mock, entered: make(chan struct{}), release: make(chan struct{})}

	var mu sync.Mutex
	var statuses []Status
	o := newTestOrchestrator(bc,
		&fakeSessions{id: "abc", done: true},
		&fakeUploads{file: &upload.File{Name: "record.csv", Size: 1}},
		OnChange(func(s Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			statuses = append(statuses, s.Status)
		}),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- o.Submit(context.Background(), "") }()
	<-bc.entered
	assert.Equal(t, StatusRunning, o.Snapshot().Status)

	o.Reset()
	close(bc.release)
	require.NoError(t, <-errCh)

	assert.Equal(t, StatusIdle, o.Snapshot().Status)
	mu.Lock()
	assert.Equal(t, []Status{StatusRunning, StatusIdle}, statuses)
	mu.Unlock()
}

func TestParseSamplingFrequency(t *testing.T) {
	fs, err := ParseSamplingFrequency("", 360)
	require.NoError(t, err)
	assert.Equal(t, 360, fs)

	fs, err = ParseSamplingFrequency(" 128 ", 360)
	require.NoError(t, err)
	assert.Equal(t, 128, fs)

	_, err = ParseSamplingFrequency("12.5", 360)
	assert.Error(t, err)
}

func TestTableHelpers(t *testing.T) {
	rows := sampleResult().Table
	assert.Equal(t, "3,4...", VectorPreview(rows[0]))
	assert.Equal(t, "0.5,0.25...", VectorPreview(rows[1]))
	assert.Equal(t, "...", VectorPreview(client.HeartbeatRow{}))
	assert.InDelta(t, 5.0, VectorNorm(rows[0]), 1e-12)
	assert.Equal(t, 0.0, VectorNorm(client.HeartbeatRow{}))
	assert.Equal(t, map[string]int{"Normal beat": 2}, LabelCounts(rows))
}

func TestCSVRoundTrip(t *testing.T) {
	rows := sampleResult().Table
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Equal(t, "index,predicted_label,word,vector_norm,word_vector", string(lines[0]))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, back)
}
