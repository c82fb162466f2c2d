package metrics

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/ecgstudio/chart"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    float64
		wantOK  bool
		wantErr bool
	}{
		{name: "percent string", raw: `"90.0%"`, want: 0.9, wantOK: true},
		{name: "percent with spaces", raw: `" 12.5 % "`, want: 0.125, wantOK: true},
		{name: "plain number", raw: `0.42`, want: 0.42, wantOK: true},
		{name: "numeric string", raw: `"0.42"`, want: 0.42, wantOK: true},
		{name: "null", raw: `null`},
		{name: "empty string", raw: `""`},
		{name: "garbage", raw: `"n/a"`, wantErr: true},
		{name: "object", raw: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ParseValue(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestDecodeSkipsNonMetrics(t *testing.T) {
	fields := map[string]json.RawMessage{
		"status":           json.RawMessage(`"done"`),
		"charts":           json.RawMessage(`"{}"`),
		TrainAccuracy:      json.RawMessage(`"95.0%"`),
		TestAccuracy:       json.RawMessage(`"90.0%"`),
		SilhouetteScore:    json.RawMessage(`0.31`),
		Precision:          json.RawMessage(`null`),
		"created_at":       json.RawMessage(`"2024-01-01T00:00:00Z"`),
		"training_comment": json.RawMessage(`"fast"`),
	}

	m := Decode(fields, "status", "charts")
	assert.Equal(t, Metrics{TrainAccuracy: 0.95, TestAccuracy: 0.9, SilhouetteScore: 0.31}, m)
	assert.Equal(t, []string{TrainAccuracy, TestAccuracy, SilhouetteScore}, m.Keys())
}

func TestKeysAppendsUnknownSorted(t *testing.T) {
	m := Metrics{"zeta": 1, F1Score: 0.5, "alpha": 2, Recall: 0.4}
	assert.Equal(t, []string{Recall, F1Score, "alpha", "zeta"}, m.Keys())
	assert.Equal(t, "F1 score", DisplayName(F1Score))
	assert.Equal(t, "zeta", DisplayName("zeta"))
	assert.Equal(t, "90.0%", FormatPercent(0.9))

	clone := m.Clone()
	clone["alpha"] = 3
	v, _ := m.Get("alpha")
	assert.Equal(t, 2.0, v)
}

func TestConfusion(t *testing.T) {
	c, err := NewConfusion([]string{"N", "V"}, [][]float64{
		{8, 2},
		{1, 9},
	})
	require.NoError(t, err)

	assert.Equal(t, 20.0, c.Total())
	assert.InDelta(t, 0.85, c.Accuracy(), 1e-12)

	scores := c.PerClass()
	require.Len(t, scores, 2)
	assert.Equal(t, "N", scores[0].Label)
	assert.InDelta(t, 8.0/9.0, scores[0].Precision, 1e-12)
	assert.InDelta(t, 0.8, scores[0].Recall, 1e-12)
	assert.InDelta(t, 9.0/11.0, scores[1].Precision, 1e-12)
	assert.InDelta(t, 0.9, scores[1].Recall, 1e-12)

	p, r, f1 := c.Weighted()
	assert.InDelta(t, 0.5*(8.0/9.0)+0.5*(9.0/11.0), p, 1e-12)
	assert.InDelta(t, 0.85, r, 1e-12)
	assert.False(t, math.IsNaN(f1))
}

func TestConfusionZeroDivision(t *testing.T) {
	c, err := NewConfusion(nil, [][]float64{{0, 0}, {3, 0}})
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, c.Labels)
	scores := c.PerClass()
	assert.Equal(t, 0.0, scores[0].Precision)
	assert.Equal(t, 0.0, scores[1].Precision)
	assert.Equal(t, 0.0, scores[1].F1)
	assert.Equal(t, 0.0, c.Accuracy())
}

func TestNewConfusionRejectsBadShapes(t *testing.T) {
	_, err := NewConfusion(nil, nil)
	assert.Error(t, err)
	_, err = NewConfusion(nil, [][]float64{{1, 2}, {3}})
	assert.Error(t, err)
	_, err = NewConfusion([]string{"a"}, [][]float64{{1, 2}, {3, 4}})
	assert.Error(t, err)
}

func TestConfusionFromChart(t *testing.T) {
	d := chart.Descriptor{Data: json.RawMessage(`[
		{"type":"heatmap","z":[[5,0],[1,4]],"x":["N","V"],"y":["N","V"]}
	]`)}
	c, err := ConfusionFromChart(d)
	require.NoError(t, err)
	assert.Equal(t, []string{"N", "V"}, c.Labels)
	assert.InDelta(t, 0.9, c.Accuracy(), 1e-12)

	_, err = ConfusionFromChart(chart.Descriptor{Data: json.RawMessage(`[{"type":"scatter"}]`)})
	assert.Error(t, err)
}
