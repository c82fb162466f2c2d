package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/ecgstudio/analysis"
	"github.com/YuminosukeSato/ecgstudio/chart"
	"github.com/YuminosukeSato/ecgstudio/chart/plotrender"
	"github.com/YuminosukeSato/ecgstudio/form"
	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
	"github.com/YuminosukeSato/ecgstudio/pkg/log"
	"github.com/YuminosukeSato/ecgstudio/schema"
	"github.com/YuminosukeSato/ecgstudio/training"
	"github.com/YuminosukeSato/ecgstudio/upload"
	"github.com/YuminosukeSato/ecgstudio/workspace"
)

func algorithmsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "algorithms",
		Short: "list the algorithms and their hyper-parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printAlgorithms(cmd.OutOrStdout(), schema.DefaultRegistry())
		},
	}
}

// trainFlags are the inputs of the training form.
type trainFlags struct {
	algorithm    string
	alphabetSize string
	vectorSize   string
	params       []string
	chartsDir    string
}

func (f *trainFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.algorithm, "algorithm", "a", "", "algorithm id, see 'ecgctl algorithms'")
	flags.StringVar(&f.alphabetSize, "alphabet-size", form.InitialAlphabetSize, "SAX alphabet size")
	flags.StringVar(&f.vectorSize, "vector-size", form.InitialVectorSize, "word2vec vector size, empty for the default")
	flags.StringArrayVarP(&f.params, "param", "p", nil, "hyper-parameter as name=value, repeatable")
	flags.StringVar(&f.chartsDir, "charts-dir", "", "write the returned charts as PNG files into this directory")
}

// fill copies the flags into b. Field problems are left for BuildSubmission
// to report.
func (f *trainFlags) fill(b *form.Builder) error {
	if f.algorithm != "" {
		if err := b.SelectAlgorithm(f.algorithm); err != nil {
			return err
		}
	}
	b.SetAlphabetSize(f.alphabetSize)
	b.SetVectorSize(f.vectorSize)
	for _, p := range f.params {
		name, value, err := parseParam(p)
		if err != nil {
			return err
		}
		if err := b.SetText(name, value); err != nil {
			return err
		}
	}
	return nil
}

func parseParam(s string) (name, value string, err error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", errors.Newf("parameter %q must be name=value", s)
	}
	return name, value, nil
}

func trainCmd(a *app) *cobra.Command {
	var tf trainFlags
	var wait bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "submit a training session and follow it to completion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := a.newWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			snap, err := a.train(ctx, cmd, ws, &tf, wait)
			if err != nil || !wait {
				return err
			}
			return a.renderCharts(tf.chartsDir, snap.Session.Charts)
		},
	}
	tf.register(cmd)
	cmd.Flags().BoolVar(&wait, "wait", true, "wait for the session to finish")
	return cmd
}

// train submits the form and, when wait is set, blocks until the session
// settles. A failed session is returned as an error after its report.
func (a *app) train(ctx context.Context, cmd *cobra.Command, ws *workspace.Workspace, tf *trainFlags, wait bool) (training.Snapshot, error) {
	if err := tf.fill(ws.Form); err != nil {
		printFieldErrors(cmd.ErrOrStderr(), err)
		return training.Snapshot{}, err
	}
	if err := ws.SubmitTraining(ctx); err != nil {
		printFieldErrors(cmd.ErrOrStderr(), err)
		return training.Snapshot{}, err
	}

	snap := ws.Training.Snapshot()
	if !wait {
		fmt.Fprintln(cmd.OutOrStdout(), snap.Session.ID)
		return snap, nil
	}
	a.logger.Info("Waiting for training", log.SessionIDKey, snap.Session.ID,
		log.PollIntervalMsKey, ws.Training.PollInterval().Milliseconds())

	snap, err := ws.Training.Wait(ctx)
	if err != nil {
		return snap, errors.Wrap(err, "wait for training")
	}
	if err := printTraining(cmd.OutOrStdout(), snap); err != nil {
		return snap, err
	}
	if snap.Phase == training.PhaseFailed {
		return snap, errors.Newf("training session %s failed", snap.Session.ID)
	}
	return snap, nil
}

// fixedSession reports a session id given on the command line as done.
type fixedSession string

func (s fixedSession) CompletedSessionID() (string, bool) {
	return string(s), s != ""
}

// analyzeFlags are the inputs of the analysis form.
type analyzeFlags struct {
	file      string
	fs        string
	tableOut  string
	chartsDir string
}

// register adds the flags to cmd. charts is false when another flag set
// already owns --charts-dir.
func (f *analyzeFlags) register(cmd *cobra.Command, charts bool) {
	flags := cmd.Flags()
	flags.StringVarP(&f.file, "file", "f", "", "ECG recording (.csv or .xlsx)")
	flags.StringVar(&f.fs, "fs", "", "sampling frequency in Hz, empty for the configured default")
	flags.StringVar(&f.tableOut, "table-out", "", "write the heartbeat table as CSV to this file")
	if charts {
		flags.StringVar(&f.chartsDir, "charts-dir", "", "write the returned charts as PNG files into this directory")
	}
	_ = cmd.MarkFlagRequired("file")
}

func analyzeCmd(a *app) *cobra.Command {
	var af analyzeFlags
	var sessionID string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "analyse a recording with a finished training session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.newClient(ctx)
			if err != nil {
				return err
			}
			opts := a.cfg.WorkspaceOptions()
			gate := upload.NewGate(append(opts.UploadOptions, upload.WithLogger(a.logger))...)
			analyser := analysis.New(c, fixedSession(sessionID), gate,
				append(opts.AnalysisOptions, analysis.WithLogger(a.logger))...)
			return a.analyze(ctx, cmd, gate, analyser, &af)
		},
	}
	af.register(cmd, true)
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "id of a training session in status done")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func (a *app) analyze(ctx context.Context, cmd *cobra.Command, gate *upload.Gate, analyser *analysis.Orchestrator, af *analyzeFlags) error {
	if err := gate.OfferPath(af.file); err != nil {
		return err
	}
	if f, ok := gate.Pending(); ok {
		a.logger.Info("Uploading recording", log.UploadNameKey, f.Name, "upload.size_human", humanize.IBytes(uint64(f.Size)))
	}
	if err := analyser.Submit(ctx, af.fs); err != nil {
		printFieldErrors(cmd.ErrOrStderr(), err)
		return err
	}

	snap := analyser.Snapshot()
	if err := printAnalysis(cmd.OutOrStdout(), snap); err != nil {
		return err
	}
	if af.tableOut != "" {
		if err := writeTable(af.tableOut, snap.Run); err != nil {
			return err
		}
	}
	return a.renderCharts(af.chartsDir, snap.Run.Charts)
}

func writeTable(path string, run analysis.Run) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create table directory")
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create table file")
	}
	defer func() {
		err = errors.CombineErrors(err, f.Close())
	}()
	return analysis.WriteCSV(f, run.Table)
}

func (a *app) renderCharts(dir string, charts chart.Set) error {
	if dir == "" || len(charts) == 0 {
		return nil
	}
	r := plotrender.New(dir, plotrender.WithLogger(a.logger))
	err := r.RenderSet(charts)
	a.logger.Info("Charts written", "charts.dir", dir, "charts.count", len(charts))
	return err
}

func runCmd(a *app) *cobra.Command {
	var tf trainFlags
	var af analyzeFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "train, wait, then analyse a recording with the new session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := a.newWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			snap, err := a.train(ctx, cmd, ws, &tf, true)
			if err != nil {
				return err
			}
			if tf.chartsDir != "" {
				if err := a.renderCharts(filepath.Join(tf.chartsDir, "training"), snap.Session.Charts); err != nil {
					return err
				}
				af.chartsDir = filepath.Join(tf.chartsDir, "analysis")
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return a.analyze(ctx, cmd, ws.Uploads, ws.Analysis, &af)
		},
	}
	tf.register(cmd)
	af.register(cmd, false)
	return cmd
}
