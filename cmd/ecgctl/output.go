package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/YuminosukeSato/ecgstudio/analysis"
	"github.com/YuminosukeSato/ecgstudio/chart"
	"github.com/YuminosukeSato/ecgstudio/metrics"
	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
	"github.com/YuminosukeSato/ecgstudio/schema"
	"github.com/YuminosukeSato/ecgstudio/training"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 4, 4, 2, ' ', 0)
}

func printAlgorithms(w io.Writer, r *schema.Registry) error {
	tw := newTabWriter(w)
	for _, a := range r.Algorithms() {
		fmt.Fprintf(tw, "%s\t%s\n", a.ID, a.DisplayName)
		for _, p := range a.Parameters {
			def := p.Default.Text()
			if def == "" {
				def = "-"
			}
			line := fmt.Sprintf("  %s\t%s\tdefault %s", p.Name, p.DisplayName, def)
			if p.IsChoice() {
				line += " (" + strings.Join(p.Choices, ", ") + ")"
			}
			fmt.Fprintln(tw, line)
		}
	}
	return tw.Flush()
}

// printFieldErrors lists the field errors carried by err, if any.
func printFieldErrors(w io.Writer, err error) {
	fields := errors.AsFieldErrors(err)
	for _, name := range fields.Names() {
		for _, msg := range fields[name] {
			fmt.Fprintf(w, "%s: %s\n", name, msg)
		}
	}
}

func printTraining(w io.Writer, snap training.Snapshot) error {
	tw := newTabWriter(w)
	fmt.Fprintf(tw, "session\t%s\n", snap.Session.ID)
	fmt.Fprintf(tw, "status\t%s\n", snap.Session.Status)
	for _, key := range snap.Session.Metrics.Keys() {
		v, _ := snap.Session.Metrics.Get(key)
		fmt.Fprintf(tw, "%s\t%s\n", metrics.DisplayName(key), metrics.FormatPercent(v))
	}
	if keys := snap.Session.Charts.Keys(); len(keys) > 0 {
		fmt.Fprintf(tw, "charts\t%s\n", strings.Join(keys, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	d, ok := snap.Session.Charts[chart.ConfusionMatrix]
	if !ok {
		return nil
	}
	cm, err := metrics.ConfusionFromChart(d)
	if err != nil {
		fmt.Fprintf(w, "\nconfusion matrix unreadable: %v\n", err)
		return nil
	}
	return printConfusion(w, cm)
}

func printConfusion(w io.Writer, cm *metrics.Confusion) error {
	fmt.Fprintf(w, "\nper class (%s beats, accuracy %s)\n", humanize.Comma(int64(cm.Total())), metrics.FormatPercent(cm.Accuracy()))
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "label\tprecision\trecall\tf1\tsupport")
	for _, s := range cm.PerClass() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Label,
			metrics.FormatPercent(s.Precision), metrics.FormatPercent(s.Recall), metrics.FormatPercent(s.F1),
			humanize.Comma(int64(s.Support)))
	}
	p, r, f1 := cm.Weighted()
	fmt.Fprintf(tw, "weighted\t%s\t%s\t%s\t\n", metrics.FormatPercent(p), metrics.FormatPercent(r), metrics.FormatPercent(f1))
	return tw.Flush()
}

func printAnalysis(w io.Writer, snap analysis.Snapshot) error {
	run := snap.Run
	tw := newTabWriter(w)
	fmt.Fprintf(tw, "run\t%s\n", run.ID)
	fmt.Fprintf(tw, "training session\t%s\n", run.TrainingSessionID)
	fmt.Fprintf(tw, "file\t%s\n", run.FileName)
	fmt.Fprintf(tw, "sampling frequency\t%d Hz\n", run.SamplingFrequency)
	fmt.Fprintf(tw, "status\t%s\n", run.Status)

	counts := analysis.LabelCounts(run.Table)
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(tw, "  %s\t%d\n", label, counts[label])
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(run.Table) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw = newTabWriter(w)
	fmt.Fprintln(tw, "#\tlabel\tword\tvector")
	for _, row := range run.Table {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", row.Index, row.PredictedLabel, row.Word, analysis.VectorPreview(row))
	}
	return tw.Flush()
}
