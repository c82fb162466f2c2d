package analysis

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/ecgstudio/client"
	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
)

// MaxTableRows is the most heartbeats the service reports per run.
const MaxTableRows = 20

// PreviewLength is how many vector components VectorPreview shows.
const PreviewLength = 2

// VectorPreview renders the first components of a word vector followed by
// "...", e.g. "0.1,0.2...".
func VectorPreview(row client.HeartbeatRow) string {
	n := len(row.WordVector)
	if n > PreviewLength {
		n = PreviewLength
	}
	parts := make([]string, n)
	for i, v := range row.WordVector[:n] {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",") + "..."
}

// VectorNorm returns the Euclidean norm of the word vector.
func VectorNorm(row client.HeartbeatRow) float64 {
	if len(row.WordVector) == 0 {
		return 0
	}
	return floats.Norm(row.WordVector, 2)
}

// LabelCounts counts heartbeats per predicted label.
func LabelCounts(rows []client.HeartbeatRow) map[string]int {
	out := make(map[string]int)
	for _, r := range rows {
		out[r.PredictedLabel]++
	}
	return out
}

type csvRow struct {
	Index          int     `csv:"index"`
	PredictedLabel string  `csv:"predicted_label"`
	Word           string  `csv:"word"`
	VectorNorm     float64 `csv:"vector_norm"`
	WordVector     string  `csv:"word_vector"`
}

// WriteCSV writes the heartbeat table with a header row. The full word
// vector is written as a JSON array.
func WriteCSV(w io.Writer, rows []client.HeartbeatRow) error {
	records := make([]*csvRow, 0, len(rows))
	for _, r := range rows {
		vector, err := json.Marshal(r.WordVector)
		if err != nil {
			return errors.Wrapf(err, "analysis: encode vector of row %d", r.Index)
		}
		records = append(records, &csvRow{
			Index:          r.Index,
			PredictedLabel: r.PredictedLabel,
			Word:           r.Word,
			VectorNorm:     VectorNorm(r),
			WordVector:     string(vector),
		})
	}
	return errors.Wrap(gocsv.Marshal(&records, w), "analysis: write csv")
}

// ReadCSV reads a table written by WriteCSV.
func ReadCSV(r io.Reader) ([]client.HeartbeatRow, error) {
	var records []*csvRow
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, errors.Wrap(err, "analysis: read csv")
	}
	out := make([]client.HeartbeatRow, 0, len(records))
	for _, rec := range records {
		row := client.HeartbeatRow{Index: rec.Index, PredictedLabel: rec.PredictedLabel, Word: rec.Word}
		if rec.WordVector != "" {
			if err := json.Unmarshal([]byte(rec.WordVector), &row.WordVector); err != nil {
				return nil, errors.Wrapf(err, "analysis: decode vector of row %d", rec.Index)
			}
		}
		out = append(out, row)
	}
	return out, nil
}
