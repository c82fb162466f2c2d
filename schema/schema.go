// Package schema is the static registry of classification algorithms and
// their configurable hyper-parameters.
//
// Each ParameterSpec carries a default, an optional list of choices and a
// ParamType used by the form to coerce free text into a typed Value before
// the configuration leaves the client.
package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
)

// ParamType describes how free text for a parameter is interpreted.
type ParamType uint8

const (
	TypeString ParamType = iota
	TypeInt
	TypeFloat
	TypeChoice
)

// ParameterSpec describes one hyper-parameter of an algorithm.
type ParameterSpec struct {
	Name        string
	DisplayName string
	Default     Value
	Choices     []string
	Required    bool
	Type        ParamType
}

// IsChoice reports whether the parameter renders as an enumerated selector.
func (p ParameterSpec) IsChoice() bool {
	return len(p.Choices) > 0
}

// Coerce parses text into a Value of the parameter's type.
// Empty text yields the empty string value.
func (p ParameterSpec) Coerce(text string) (Value, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return String(""), nil
	}
	switch p.Type {
	case TypeInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Null(), errors.NewValidationError(errors.FieldErrors{p.Name: {errors.MsgInvalidInteger}})
		}
		return Int(i), nil
	case TypeFloat:
		f, ok := parseFinite(text)
		if !ok {
			return Null(), errors.NewValidationError(errors.FieldErrors{p.Name: {errors.MsgInvalidNumber}})
		}
		return Float(f), nil
	default:
		return String(text), nil
	}
}

// Check validates a non-empty value against the parameter's type and choices.
// It returns the field message describing the problem, or "".
func (p ParameterSpec) Check(v Value) string {
	if v.IsEmpty() {
		if p.Required {
			return errors.MsgRequired
		}
		return ""
	}
	switch p.Type {
	case TypeInt:
		if _, ok := v.Int64(); !ok {
			if s, isStr := v.Str(); isStr {
				if _, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
					return ""
				}
			}
			return errors.MsgInvalidInteger
		}
	case TypeFloat:
		f, ok := v.Float64()
		if !ok {
			if s, isStr := v.Str(); isStr {
				if _, ok := parseFinite(s); ok {
					return ""
				}
			}
			return errors.MsgInvalidNumber
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.MsgInvalidNumber
		}
	}
	if p.IsChoice() {
		s := v.Text()
		for _, c := range p.Choices {
			if c == s {
				return ""
			}
		}
		return fmt.Sprintf("%q is not a valid choice.", s)
	}
	return ""
}

// Normalize converts string payloads of numeric parameters into Int/Float.
// Values that do not parse are returned unchanged; Check reports them.
func (p ParameterSpec) Normalize(v Value) Value {
	s, ok := v.Str()
	if !ok || s == "" {
		return v
	}
	if p.Type == TypeInt || p.Type == TypeFloat {
		if coerced, err := p.Coerce(s); err == nil {
			return coerced
		}
	}
	return v
}

// AlgorithmSpec is an immutable description of one algorithm.
type AlgorithmSpec struct {
	ID          string
	DisplayName string
	Parameters  []ParameterSpec
}

// Parameter looks up a parameter by name.
func (a AlgorithmSpec) Parameter(name string) (ParameterSpec, bool) {
	for _, p := range a.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// Defaults returns a fresh parameter set holding every default.
func (a AlgorithmSpec) Defaults() map[string]Value {
	out := make(map[string]Value, len(a.Parameters))
	for _, p := range a.Parameters {
		out[p.Name] = p.Default
	}
	return out
}

// parseFinite accepts decimal text only. NaN and ±Inf have no JSON encoding.
func parseFinite(text string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
