package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ecgstudio/chart"
	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
)

// Confusion は混同行列。行が正解ラベル、列が予測ラベル。
type Confusion struct {
	Labels []string
	Counts *mat.Dense
}

// ClassScore はクラスごとの評価値
type ClassScore struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   float64
}

// NewConfusion は正方行列の件数から混同行列を作る
func NewConfusion(labels []string, counts [][]float64) (*Confusion, error) {
	n := len(counts)
	if n == 0 {
		return nil, errors.New("metrics: empty confusion matrix")
	}
	data := make([]float64, 0, n*n)
	for i, row := range counts {
		if len(row) != n {
			return nil, errors.Newf("metrics: confusion row %d has %d columns, want %d", i, len(row), n)
		}
		data = append(data, row...)
	}
	if labels == nil {
		labels = make([]string, n)
		for i := range labels {
			labels[i] = fmt.Sprint(i)
		}
	}
	if len(labels) != n {
		return nil, errors.Newf("metrics: %d labels for %d classes", len(labels), n)
	}
	return &Confusion{Labels: labels, Counts: mat.NewDense(n, n, data)}, nil
}

// ConfusionFromChart はヒートマップの図記述子から混同行列を取り出す。
// 最初の heatmap トレースの z と x ラベルを使う。
func ConfusionFromChart(d chart.Descriptor) (*Confusion, error) {
	var traces []struct {
		Type string          `json:"type"`
		X    []any           `json:"x"`
		Z    json.RawMessage `json:"z"`
	}
	if err := json.Unmarshal(d.Data, &traces); err != nil {
		return nil, errors.Wrap(err, "metrics: decode confusion chart")
	}
	for _, tr := range traces {
		if tr.Type != "heatmap" {
			continue
		}
		var z [][]float64
		if err := json.Unmarshal(bytes.TrimSpace(tr.Z), &z); err != nil {
			return nil, errors.Wrap(err, "metrics: decode confusion counts")
		}
		var labels []string
		if tr.X != nil {
			labels = make([]string, len(tr.X))
			for i, x := range tr.X {
				labels[i] = fmt.Sprint(x)
			}
		}
		return NewConfusion(labels, z)
	}
	return nil, errors.New("metrics: chart has no heatmap trace")
}

// Total は全件数を返す
func (c *Confusion) Total() float64 {
	return mat.Sum(c.Counts)
}

// Accuracy は対角成分の合計を全件数で割った正解率を返す
func (c *Confusion) Accuracy() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return mat.Trace(c.Counts) / total
}

// PerClass はクラスごとの適合率・再現率・F1を返す。
// 分母が0の場合は0とする（scikit-learn の zero_division=0 と同じ扱い）。
func (c *Confusion) PerClass() []ClassScore {
	n, _ := c.Counts.Dims()
	out := make([]ClassScore, n)
	for i := 0; i < n; i++ {
		tp := c.Counts.At(i, i)
		predicted := mat.Sum(c.Counts.ColView(i))
		actual := mat.Sum(c.Counts.RowView(i))

		s := ClassScore{Label: c.Labels[i], Support: actual}
		if predicted > 0 {
			s.Precision = tp / predicted
		}
		if actual > 0 {
			s.Recall = tp / actual
		}
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		out[i] = s
	}
	return out
}

// Weighted はサポートで重み付けした適合率・再現率・F1を返す
func (c *Confusion) Weighted() (precision, recall, f1 float64) {
	total := c.Total()
	if total == 0 {
		return 0, 0, 0
	}
	for _, s := range c.PerClass() {
		w := s.Support / total
		precision += w * s.Precision
		recall += w * s.Recall
		f1 += w * s.F1
	}
	return precision, recall, f1
}
