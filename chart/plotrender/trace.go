package plotrender

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
)

// trace is the subset of a figure trace the renderer understands.
type trace struct {
	Type string          `json:"type"`
	Mode string          `json:"mode"`
	Name string          `json:"name"`
	X    json.RawMessage `json:"x"`
	Y    json.RawMessage `json:"y"`
	Z    json.RawMessage `json:"z"`
}

type layout struct {
	Title title `json:"title"`
	XAxis axis  `json:"xaxis"`
	YAxis axis  `json:"yaxis"`
}

type axis struct {
	Title title `json:"title"`
}

// title is either a bare string or {"text": ...}.
type title struct {
	Text string
}

func (t *title) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &t.Text)
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t.Text = obj.Text
	return nil
}

// series is one decoded axis: numeric values or, for categorical axes, labels.
type series struct {
	values []float64
	labels []string
}

func (s series) len() int {
	if s.labels != nil {
		return len(s.labels)
	}
	return len(s.values)
}

// typedArray is the binary array encoding newer figure serializers emit.
type typedArray struct {
	DType string `json:"dtype"`
	BData string `json:"bdata"`
	Shape string `json:"shape"`
}

// decodeSeries decodes a JSON array of numbers, strings or nulls, or a typed array.
func decodeSeries(raw json.RawMessage) (series, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return series{}, nil
	}
	if raw[0] == '{' {
		var ta typedArray
		if err := json.Unmarshal(raw, &ta); err != nil {
			return series{}, errors.Wrap(err, "plotrender: decode typed array")
		}
		values, err := ta.decode()
		return series{values: values}, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return series{}, errors.Wrap(err, "plotrender: decode array")
	}
	var (
		values      = make([]float64, 0, len(items))
		texts       = make([]string, 0, len(items))
		categorical bool
	)
	for i, item := range items {
		item = bytes.TrimSpace(item)
		switch {
		case bytes.Equal(item, []byte("null")):
			values = append(values, math.NaN())
			texts = append(texts, "")
		case len(item) > 0 && item[0] == '"':
			var label string
			if err := json.Unmarshal(item, &label); err != nil {
				return series{}, err
			}
			categorical = true
			values = append(values, math.NaN())
			texts = append(texts, label)
		default:
			f, err := strconv.ParseFloat(string(item), 64)
			if err != nil {
				return series{}, errors.Wrapf(err, "plotrender: element %d", i)
			}
			values = append(values, f)
			texts = append(texts, string(item))
		}
	}
	if categorical {
		return series{labels: texts}, nil
	}
	return series{values: values}, nil
}

// decodeMatrix decodes a heatmap z value: nested arrays or a typed array with a shape.
func decodeMatrix(raw json.RawMessage) ([][]float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var ta typedArray
		if err := json.Unmarshal(raw, &ta); err != nil {
			return nil, errors.Wrap(err, "plotrender: decode typed matrix")
		}
		flat, err := ta.decode()
		if err != nil {
			return nil, err
		}
		rows, cols, err := parseShape(ta.Shape, len(flat))
		if err != nil {
			return nil, err
		}
		out := make([][]float64, rows)
		for r := range out {
			out[r] = flat[r*cols : (r+1)*cols]
		}
		return out, nil
	}

	var rowsRaw []json.RawMessage
	if err := json.Unmarshal(raw, &rowsRaw); err != nil {
		return nil, errors.Wrap(err, "plotrender: decode matrix")
	}
	out := make([][]float64, 0, len(rowsRaw))
	for i, rowRaw := range rowsRaw {
		row, err := decodeSeries(rowRaw)
		if err != nil {
			return nil, err
		}
		if row.labels != nil {
			return nil, errors.Newf("plotrender: matrix row %d is not numeric", i)
		}
		if len(out) > 0 && len(row.values) != len(out[0]) {
			return nil, errors.Newf("plotrender: matrix row %d has %d columns, want %d", i, len(row.values), len(out[0]))
		}
		out = append(out, row.values)
	}
	return out, nil
}

func parseShape(shape string, n int) (rows, cols int, err error) {
	parts := strings.Split(shape, ",")
	if len(parts) != 2 {
		return 0, 0, errors.Newf("plotrender: unsupported shape %q", shape)
	}
	rows, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, errors.Wrapf(err, "plotrender: shape %q", shape)
	}
	cols, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, errors.Wrapf(err, "plotrender: shape %q", shape)
	}
	if rows*cols != n {
		return 0, 0, errors.Newf("plotrender: shape %q does not match %d values", shape, n)
	}
	return rows, cols, nil
}

func (ta typedArray) decode() ([]float64, error) {
	buf, err := base64.StdEncoding.DecodeString(ta.BData)
	if err != nil {
		return nil, errors.Wrap(err, "plotrender: decode bdata")
	}
	size := map[string]int{"f8": 8, "f4": 4, "i1": 1, "u1": 1, "i2": 2, "u2": 2, "i4": 4, "u4": 4}[ta.DType]
	if size == 0 {
		return nil, errors.Newf("plotrender: unsupported dtype %q", ta.DType)
	}
	if len(buf)%size != 0 {
		return nil, errors.Newf("plotrender: %d bytes is not a multiple of %s", len(buf), ta.DType)
	}
	out := make([]float64, len(buf)/size)
	le := binary.LittleEndian
	for i := range out {
		b := buf[i*size : (i+1)*size]
		switch ta.DType {
		case "f8":
			out[i] = math.Float64frombits(le.Uint64(b))
		case "f4":
			out[i] = float64(math.Float32frombits(le.Uint32(b)))
		case "i1":
			out[i] = float64(int8(b[0]))
		case "u1":
			out[i] = float64(b[0])
		case "i2":
			out[i] = float64(int16(le.Uint16(b)))
		case "u2":
			out[i] = float64(le.Uint16(b))
		case "i4":
			out[i] = float64(int32(le.Uint32(b)))
		case "u4":
			out[i] = float64(le.Uint32(b))
		}
	}
	return out, nil
}
