package errors

import (
	"sort"
	"strings"
)

// Well-known field keys shared by the form, the orchestrators and the service.
const (
	FieldDetail            = "detail"
	FieldNonField          = "non_field_errors"
	FieldAlgorithm         = "algorithm"
	FieldAlphabetSize      = "alphabet_size"
	FieldVectorSize        = "word2vec_vector_size"
	FieldSamplingFrequency = "fs"
	FieldEcgFile           = "ecg_file"
	FieldTrainingSession   = "training_session_id"
)

// Standard messages, worded the way the service words its own field errors.
const (
	MsgRequired       = "This field is required."
	MsgInvalidInteger = "A valid integer is required."
	MsgInvalidNumber  = "A valid number is required."
	MsgInvalidChoice  = "Invalid choice."
)

// FieldErrors maps a field name to its error messages.
// Client-side validation and server-reported errors share this shape.
type FieldErrors map[string][]string

// Add appends msg to the messages recorded for field.
func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// First returns the first message recorded for field, or "".
func (f FieldErrors) First(field string) string {
	if msgs := f[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Has reports whether field has at least one message.
func (f FieldErrors) Has(field string) bool {
	return len(f[field]) > 0
}

// Clear drops every message recorded for field.
func (f FieldErrors) Clear(field string) {
	delete(f, field)
}

// Merge copies other's messages into f, replacing existing entries per field.
func (f FieldErrors) Merge(other FieldErrors) {
	for field, msgs := range other {
		f[field] = append([]string(nil), msgs...)
	}
}

// Clone returns a deep copy. Cloning nil yields an empty map.
func (f FieldErrors) Clone() FieldErrors {
	out := make(FieldErrors, len(f))
	for field, msgs := range f {
		out[field] = append([]string(nil), msgs...)
	}
	return out
}

// Names returns the sorted field names.
func (f FieldErrors) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f FieldErrors) String() string {
	parts := make([]string, 0, len(f))
	for _, name := range f.Names() {
		parts = append(parts, name+": "+strings.Join(f[name], " "))
	}
	return strings.Join(parts, "; ")
}
