// Package metrics はトレーニングセッションが返す評価指標を扱う。
//
// サービスは指標を数値または "90.0%" のようなパーセント文字列で返す。
// ここでは両方を0〜1の比率に正規化し、表示名と表示順を提供する。
package metrics

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
)

// 既知の指標キー
const (
	TrainAccuracy   = "train_accuracy"
	TestAccuracy    = "test_accuracy"
	Precision       = "precision"
	Recall          = "recall"
	F1Score         = "f1_score"
	SilhouetteScore = "silhouette_score"
)

var displayNames = map[string]string{
	TrainAccuracy:   "Train accuracy",
	TestAccuracy:    "Test accuracy",
	Precision:       "Precision",
	Recall:          "Recall",
	F1Score:         "F1 score",
	SilhouetteScore: "Silhouette score",
}

// 表示順。未知のキーはこの後ろに名前順で並ぶ
var displayOrder = []string{TrainAccuracy, TestAccuracy, Precision, Recall, F1Score, SilhouetteScore}

// DisplayName は指標キーの表示名を返す
func DisplayName(key string) string {
	if name, ok := displayNames[key]; ok {
		return name
	}
	return key
}

// Metrics は指標キーから値への写像。パーセント表記の値は比率（0.9など）で保持する。
type Metrics map[string]float64

// Keys は表示順に並べたキーを返す
func (m Metrics) Keys() []string {
	keys := make([]string, 0, len(m))
	for _, k := range displayOrder {
		if _, ok := m[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range m {
		if _, known := displayNames[k]; !known {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// Get は指標の値を返す
func (m Metrics) Get(key string) (float64, bool) {
	v, ok := m[key]
	return v, ok
}

// Clone はコピーを返す
func (m Metrics) Clone() Metrics {
	out := make(Metrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// FormatPercent は比率を "90.0%" 形式で返す
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 1, 64) + "%"
}

// ParseValue は数値またはパーセント文字列を比率に変換する。
// null と空文字列は ok=false を返す。
func ParseValue(raw json.RawMessage) (v float64, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, nil
	}
	if raw[0] != '"' {
		if err := json.Unmarshal(raw, &v); err != nil {
			return 0, false, errors.Wrap(err, "metrics: decode number")
		}
		return v, true, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false, errors.Wrap(err, "metrics: decode string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	percent := strings.HasSuffix(s, "%")
	v, err = strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "metrics: parse %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, errors.Newf("metrics: %q is not finite", s)
	}
	if percent {
		v /= 100
	}
	return v, true, nil
}

// Decode はステータス応答のフィールドから指標を取り出す。
// skip に含まれるキー（status, charts など）は無視し、null の指標は含めない。
// 数値として解釈できないフィールドは指標ではないとみなして読み飛ばす。
func Decode(fields map[string]json.RawMessage, skip ...string) Metrics {
	skipped := make(map[string]bool, len(skip))
	for _, k := range skip {
		skipped[k] = true
	}
	out := Metrics{}
	for k, raw := range fields {
		if skipped[k] {
			continue
		}
		v, ok, err := ParseValue(raw)
		if err != nil || !ok {
			continue
		}
		out[k] = v
	}
	return out
}
