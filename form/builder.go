// Package form implements the schema-driven training form: per-algorithm
// parameter sets, general inputs, field errors and submission building.
package form

import (
	"strconv"
	"strings"
	"sync"

	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
	"github.com/YuminosukeSato/ecgstudio/schema"
)

// Initial contents of the general inputs.
const (
	InitialAlphabetSize = "100"
	InitialVectorSize   = "100"
)

// Builder holds the user's training inputs. It performs no I/O.
//
// Parameter sets are kept per algorithm so that switching back to an
// algorithm restores what the user entered for it.
type Builder struct {
	mu       sync.RWMutex
	registry *schema.Registry

	alphabetSize string
	vectorSize   string
	algorithmID  string
	params       map[string]map[string]schema.Value
	errs         errors.FieldErrors
}

// NewBuilder returns a builder over registry, or schema.DefaultRegistry() if nil.
func NewBuilder(registry *schema.Registry) *Builder {
	if registry == nil {
		registry = schema.DefaultRegistry()
	}
	return &Builder{
		registry:     registry,
		alphabetSize: InitialAlphabetSize,
		vectorSize:   InitialVectorSize,
		params:       make(map[string]map[string]schema.Value),
		errs:         errors.FieldErrors{},
	}
}

// Registry returns the schema the builder validates against.
func (b *Builder) Registry() *schema.Registry {
	return b.registry
}

// SelectAlgorithm makes id the active algorithm. The first selection of an
// id copies every default into its parameter set; later selections keep the
// existing values.
func (b *Builder) SelectAlgorithm(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	spec, ok := b.registry.Lookup(id)
	if !ok {
		b.errs[errors.FieldAlgorithm] = []string{errors.MsgInvalidChoice}
		return errors.Wrapf(errors.ErrUnknownAlgorithm, "select %q", id)
	}
	b.algorithmID = id
	if _, exists := b.params[id]; !exists {
		b.params[id] = spec.Defaults()
	}
	b.errs.Clear(errors.FieldAlgorithm)
	return nil
}

// AlgorithmID returns the active algorithm id, or "" if none is selected.
func (b *Builder) AlgorithmID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.algorithmID
}

// Algorithm returns the spec of the active algorithm.
func (b *Builder) Algorithm() (schema.AlgorithmSpec, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.algorithmID == "" {
		return schema.AlgorithmSpec{}, false
	}
	return b.registry.Lookup(b.algorithmID)
}

// SetValue assigns v to the named parameter of the active algorithm and
// clears any error recorded for that field.
func (b *Builder) SetValue(name string, v schema.Value) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.activeParam(name); err != nil {
		return err
	}
	b.params[b.algorithmID][name] = v
	b.errs.Clear(name)
	return nil
}

// SetText assigns text typed into a parameter input. Numeric parameters are
// stored as Int/Float when the text parses; otherwise the raw text is kept
// and reported by BuildSubmission.
func (b *Builder) SetText(name, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	spec, err := b.activeParam(name)
	if err != nil {
		return err
	}
	b.params[b.algorithmID][name] = spec.Normalize(schema.String(strings.TrimSpace(text)))
	b.errs.Clear(name)
	return nil
}

func (b *Builder) activeParam(name string) (schema.ParameterSpec, error) {
	if b.algorithmID == "" {
		return schema.ParameterSpec{}, errors.NewStateError("form.set", "no algorithm", nil)
	}
	spec, _ := b.registry.Lookup(b.algorithmID)
	p, ok := spec.Parameter(name)
	if !ok {
		return schema.ParameterSpec{}, errors.Wrapf(errors.ErrUnknownParameter, "%s.%s", b.algorithmID, name)
	}
	return p, nil
}

// Value returns the current value of a parameter of the active algorithm.
func (b *Builder) Value(name string) (schema.Value, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	set, ok := b.params[b.algorithmID]
	if !ok {
		return schema.Null(), false
	}
	v, ok := set[name]
	return v, ok
}

// Values returns a copy of the active algorithm's parameter set.
func (b *Builder) Values() map[string]schema.Value {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]schema.Value, len(b.params[b.algorithmID]))
	for k, v := range b.params[b.algorithmID] {
		out[k] = v
	}
	return out
}

// SetAlphabetSize sets the alphabet size input.
func (b *Builder) SetAlphabetSize(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alphabetSize = strings.TrimSpace(text)
	b.errs.Clear(errors.FieldAlphabetSize)
}

// SetVectorSize sets the word2vec vector size input.
func (b *Builder) SetVectorSize(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vectorSize = strings.TrimSpace(text)
	b.errs.Clear(errors.FieldVectorSize)
}

// GeneralInputs returns the raw alphabet size and vector size inputs.
func (b *Builder) GeneralInputs() (alphabetSize, vectorSize string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.alphabetSize, b.vectorSize
}

// BuildSubmission validates the inputs and returns the training config.
//
// Empty parameters fall back to their defaults and an empty vector size to
// schema.DefaultVectorSize. Problems are recorded in Errors() and returned
// as a *errors.ValidationError. Calling it twice without edits returns the
// same config.
func (b *Builder) BuildSubmission() (schema.TrainingConfig, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fieldErrs := errors.FieldErrors{}
	cfg := schema.TrainingConfig{
		GeneralParams:   schema.GeneralParams{AlgorithmID: b.algorithmID},
		AlgorithmParams: map[string]schema.Value{},
	}

	if b.algorithmID == "" {
		fieldErrs.Add(errors.FieldAlgorithm, errors.MsgRequired)
	}

	switch n, err := strconv.Atoi(b.alphabetSize); {
	case b.alphabetSize == "":
		fieldErrs.Add(errors.FieldAlphabetSize, errors.MsgRequired)
	case err != nil:
		fieldErrs.Add(errors.FieldAlphabetSize, errors.MsgInvalidInteger)
	default:
		cfg.GeneralParams.AlphabetSize = n
	}

	switch n, err := strconv.Atoi(b.vectorSize); {
	case b.vectorSize == "":
		cfg.GeneralParams.VectorSize = schema.DefaultVectorSize
	case err != nil:
		fieldErrs.Add(errors.FieldVectorSize, errors.MsgInvalidInteger)
	default:
		cfg.GeneralParams.VectorSize = n
	}

	if spec, ok := b.registry.Lookup(b.algorithmID); ok {
		set := b.params[b.algorithmID]
		for _, p := range spec.Parameters {
			v := set[p.Name]
			if v.IsEmpty() {
				v = p.Default
			}
			v = p.Normalize(v)
			if msg := p.Check(v); msg != "" {
				fieldErrs.Add(p.Name, msg)
			}
			cfg.AlgorithmParams[p.Name] = v
		}
	}

	if len(fieldErrs) > 0 {
		b.errs.Merge(fieldErrs)
		return schema.TrainingConfig{}, errors.NewValidationError(fieldErrs)
	}
	return cfg, nil
}

// Errors returns a copy of the recorded field errors.
func (b *Builder) Errors() errors.FieldErrors {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.errs.Clone()
}

// ApplyServerErrors records errors reported by the service alongside client ones.
func (b *Builder) ApplyServerErrors(fields errors.FieldErrors) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs.Merge(fields)
}

// ClearError drops the errors recorded for field.
func (b *Builder) ClearError(field string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs.Clear(field)
}
