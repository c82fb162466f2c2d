// Package chart carries plot descriptors between the service and a renderer.
//
// A Descriptor is an opaque {data, layout} pair. Nothing in the client looks
// inside it; it is forwarded to a Renderer as received.
package chart

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
)

// Well-known chart keys.
const (
	ConfusionMatrix = "confusion_matrix"
	TSNEQRS         = "tsne.qrs"
	TSNEP           = "tsne.p"
	TSNET           = "tsne.t"
	Line            = "line"
)

// Descriptor is a {data, layout} pair in the plotting library's schema.
type Descriptor struct {
	Data   json.RawMessage `json:"data"`
	Layout json.RawMessage `json:"layout"`
}

// IsZero reports whether d carries no data.
func (d Descriptor) IsZero() bool {
	return len(d.Data) == 0 && len(d.Layout) == 0
}

// UnmarshalJSON accepts a descriptor object or a JSON string holding one.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return errors.Wrap(err, "chart: decode encoded descriptor")
		}
		data = []byte(inner)
	}
	type plain Descriptor
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.Wrap(err, "chart: decode descriptor")
	}
	*d = Descriptor(p)
	return nil
}

// Set maps chart keys to descriptors. Nested groups use dotted keys.
type Set map[string]Descriptor

// Keys returns the chart keys in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the map. Descriptors are immutable.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// DecodeSet decodes a chart payload into a flat Set.
//
// The payload may be an object or a JSON string holding one (the training
// endpoint sends the latter). Values that are descriptors, directly or as
// encoded strings, are stored under their key; other objects are treated as
// groups and flattened as "group.key". Nested values that are not objects
// are skipped. Empty payloads decode to an empty set.
func DecodeSet(raw json.RawMessage) (Set, error) {
	out := Set{}
	if err := decodeInto(out, "", raw); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeInto(out Set, prefix string, raw json.RawMessage) error {
	raw = unquote(bytes.TrimSpace(raw))
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return errors.Wrapf(err, "chart: decode %q", prefixOr(prefix))
	}

	if prefix != "" && isDescriptor(fields) {
		var d Descriptor
		if err := json.Unmarshal(raw, &d); err != nil {
			return err
		}
		out[prefix] = d
		return nil
	}

	for key, value := range fields {
		if !isObject(value) {
			continue
		}
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		if err := decodeInto(out, name, value); err != nil {
			return err
		}
	}
	return nil
}

// unquote decodes one level of JSON string encoding, if present.
func unquote(raw []byte) []byte {
	if len(raw) == 0 || raw[0] != '"' {
		return raw
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return raw
	}
	return bytes.TrimSpace([]byte(inner))
}

func isObject(raw json.RawMessage) bool {
	raw = unquote(bytes.TrimSpace(raw))
	return len(raw) > 0 && raw[0] == '{'
}

func isDescriptor(fields map[string]json.RawMessage) bool {
	_, hasData := fields["data"]
	return hasData
}

func prefixOr(prefix string) string {
	if prefix == "" {
		return "charts"
	}
	return prefix
}

// Renderer draws descriptors. Implementations live outside the core.
type Renderer interface {
	Render(name string, d Descriptor) error
}

// RenderAll renders every chart of s in key order. A failing chart does not
// stop the others; the failures are combined into the returned error.
func RenderAll(r Renderer, s Set) error {
	var combined error
	for _, key := range s.Keys() {
		if err := r.Render(key, s[key]); err != nil {
			combined = errors.CombineErrors(combined, errors.Wrapf(err, "render %s", key))
		}
	}
	return combined
}
