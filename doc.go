// Package ecgstudio is a Go client for an ECG heartbeat classification
// service: configure a training session, follow it to completion, then
// analyse an uploaded recording with the trained model.
//
// The modelling service itself is a black box reached over HTTP. ecgstudio
// owns everything on the client side: the schema-driven parameter form, the
// session orchestration with its polling state machine, upload validation,
// and rendering of the chart payloads the service returns.
//
// # Features
//
// - Schema-driven form: per-algorithm hyper-parameters with defaults and choices
// - Training orchestration: 2000 ms polling, terminal detection, stale-response guard
// - Analysis runs tied to a finished training session and a pending upload
// - Unified field errors for client validation and service responses
// - PNG chart rendering with gonum/plot and CSV export of heartbeat tables
//
// # Installation
//
//	go install github.com/YuminosukeSato/ecgstudio/cmd/ecgctl@latest
//
// # Quick Start
//
// Train a k-nearest-neighbours model and analyse a recording with it:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/ecgstudio/client"
//	    "github.com/YuminosukeSato/ecgstudio/schema"
//	    "github.com/YuminosukeSato/ecgstudio/workspace"
//	)
//
//	func main() {
//	    ctx := context.Background()
//	    c, err := client.New("http://localhost:8000")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    _ = c.Prime(ctx)
//
//	    ws := workspace.New(c, workspace.Options{})
//	    defer ws.Close()
//
//	    _ = ws.Form.SelectAlgorithm(schema.KNN)
//	    if err := ws.SubmitTraining(ctx); err != nil {
//	        log.Fatal(err)
//	    }
//	    snap, err := ws.Training.Wait(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(snap.Session.Status, snap.Session.Metrics)
//
//	    if err := ws.Uploads.OfferPath("record.csv"); err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := ws.Analysis.Submit(ctx, "360"); err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(len(ws.Analysis.Snapshot().Run.Table), "heartbeats")
//	}
//
// # Packages
//
// The module is organized into several packages:
//
//   - schema: Algorithm registry, parameter specs and tagged-union values
//   - form: Training form state, validation and submission building
//   - client: HTTP session client with CSRF handling, plus a scripted mock
//   - training: Training orchestrator and poll loop
//   - analysis: Analysis orchestrator, heartbeat table helpers and CSV export
//   - upload: Upload gate (extension and size checks)
//   - chart, chart/plotrender: Chart descriptors and the PNG renderer
//   - metrics: Training metrics and confusion matrix scores
//   - workspace: Per-session owner wiring all of the above
//   - config: YAML and environment configuration
//   - core/parallel: Worker pool used for chart rendering
//   - pkg/errors, pkg/log: Error types and structured logging
//
// # Configuration
//
// cmd/ecgctl reads ecgstudio.yaml (or $ECG_CONFIG_PATH) and ECG_ environment
// variables, for example ECG_SERVER__BASE_URL and ECG_POLLING__INTERVAL.
package ecgstudio
