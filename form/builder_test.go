package form

import (
	"encoding/json"
	"testing"

	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
	"github.com/YuminosukeSato/ecgstudio/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectAlgorithmPopulatesDefaults(t *testing.T) {
	for _, spec := range schema.DefaultRegistry().Algorithms() {
		t.Run(spec.ID, func(t *testing.T) {
			b := NewBuilder(nil)
			require.NoError(t, b.SelectAlgorithm(spec.ID))

			values := b.Values()
			require.Len(t, values, len(spec.Parameters))
			for _, p := range spec.Parameters {
				assert.Equal(t, p.Default, values[p.Name], p.Name)
			}
		})
	}
}

func TestReselectPreservesValues(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.SelectAlgorithm(schema.KNN))
	require.NoError(t, b.SetValue("n_neighbors", schema.Int(9)))

	require.NoError(t, b.SelectAlgorithm(schema.SVC))
	require.NoError(t, b.SetText("kernel", "linear"))

	require.NoError(t, b.SelectAlgorithm(schema.KNN))
	v, ok := b.Value("n_neighbors")
	require.True(t, ok)
	assert.Equal(t, schema.Int(9), v)

	require.NoError(t, b.SelectAlgorithm(schema.SVC))
	v, _ = b.Value("kernel")
	assert.Equal(t, schema.String("linear"), v)
}

func TestSelectUnknownAlgorithm(t *testing.T) {
	b := NewBuilder(nil)
	err := b.SelectAlgorithm("xgboost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownAlgorithm))
	assert.Equal(t, errors.MsgInvalidChoice, b.Errors().First(errors.FieldAlgorithm))
	assert.Equal(t, "", b.AlgorithmID())

	require.NoError(t, b.SelectAlgorithm(schema.KNN))
	assert.False(t, b.Errors().Has(errors.FieldAlgorithm))
}

func TestSetValueRequiresKnownParameter(t *testing.T) {
	b := NewBuilder(nil)
	err := b.SetValue("n_neighbors", schema.Int(1))
	var stateErr *errors.StateError
	assert.True(t, errors.As(err, &stateErr))

	require.NoError(t, b.SelectAlgorithm(schema.KNN))
	err = b.SetValue("kernel", schema.String("rbf"))
	assert.True(t, errors.Is(err, errors.ErrUnknownParameter))
}

func TestBuildSubmissionEndToEndPayload(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.SelectAlgorithm(schema.KNN))

	cfg, err := b.BuildSubmission()
	require.NoError(t, err)

	payload, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"general_params": {"alphabet_size": 100, "word2vec_vector_size": 100, "algorithm": "knn"},
		"algorithm_params": {"n_neighbors": 5, "weights": "uniform", "algorithm": "auto"}
	}`, string(payload))
}

func TestBuildSubmissionFillsDefaults(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.SelectAlgorithm(schema.RandomForest))
	require.NoError(t, b.SetText("n_estimators", ""))
	require.NoError(t, b.SetValue("criterion", schema.Null()))
	require.NoError(t, b.SetText("max_depth", "12"))
	b.SetVectorSize("")

	cfg, err := b.BuildSubmission()
	require.NoError(t, err)

	assert.Equal(t, schema.DefaultVectorSize, cfg.GeneralParams.VectorSize)
	assert.Equal(t, schema.Int(100), cfg.AlgorithmParams["n_estimators"])
	assert.Equal(t, schema.String("gini"), cfg.AlgorithmParams["criterion"])
	assert.Equal(t, schema.Int(12), cfg.AlgorithmParams["max_depth"])
	assert.Equal(t, []string{"criterion", "max_depth", "n_estimators"}, cfg.ParamNames())
}

func TestBuildSubmissionIsIdempotent(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.SelectAlgorithm(schema.SVC))
	require.NoError(t, b.SetText("C", ""))
	require.NoError(t, b.SetText("degree", "4"))

	first, err := b.BuildSubmission()
	require.NoError(t, err)
	second, err := b.BuildSubmission()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildSubmissionValidation(t *testing.T) {
	b := NewBuilder(nil)
	b.SetAlphabetSize("")

	_, err := b.BuildSubmission()
	require.Error(t, err)

	var validationErr *errors.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, errors.MsgRequired, validationErr.Fields.First(errors.FieldAlgorithm))
	assert.Equal(t, errors.MsgRequired, validationErr.Fields.First(errors.FieldAlphabetSize))

	// 同じ形でビュー側にも残る
	recorded := b.Errors()
	assert.True(t, recorded.Has(errors.FieldAlgorithm))
	assert.True(t, recorded.Has(errors.FieldAlphabetSize))

	b.SetAlphabetSize("64")
	assert.False(t, b.Errors().Has(errors.FieldAlphabetSize))
}

func TestBuildSubmissionRejectsBadParameterValues(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.SelectAlgorithm(schema.KNN))
	require.NoError(t, b.SetText("n_neighbors", "five"))
	require.NoError(t, b.SetText("weights", "manhattan"))
	b.SetAlphabetSize("abc")

	_, err := b.BuildSubmission()
	fields := errors.AsFieldErrors(err)
	assert.Equal(t, errors.MsgInvalidInteger, fields.First("n_neighbors"))
	assert.Equal(t, `"manhattan" is not a valid choice.`, fields.First("weights"))
	assert.Equal(t, errors.MsgInvalidInteger, fields.First(errors.FieldAlphabetSize))

	require.NoError(t, b.SetText("n_neighbors", "3"))
	assert.False(t, b.Errors().Has("n_neighbors"))
	assert.True(t, b.Errors().Has("weights"))
}

func TestBuildSubmissionRejectsNonFiniteNumbers(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.SelectAlgorithm(schema.SVC))
	require.NoError(t, b.SetText("C", "NaN"))

	_, err := b.BuildSubmission()
	require.Error(t, err)
	assert.Equal(t, errors.MsgInvalidNumber, errors.AsFieldErrors(err).First("C"))

	require.NoError(t, b.SetText("C", "0.5"))
	cfg, err := b.BuildSubmission()
	require.NoError(t, err)
	assert.Equal(t, schema.Float(0.5), cfg.AlgorithmParams["C"])
}

func TestServerErrorsShareTheMap(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.SelectAlgorithm(schema.KNN))

	b.ApplyServerErrors(errors.FieldErrors{"n_neighbors": {"Ensure this value is greater than or equal to 1."}})
	assert.Equal(t, "Ensure this value is greater than or equal to 1.", b.Errors().First("n_neighbors"))

	require.NoError(t, b.SetValue("n_neighbors", schema.Int(1)))
	assert.False(t, b.Errors().Has("n_neighbors"))

	b.ApplyServerErrors(errors.FieldErrors{errors.FieldDetail: {"oops"}})
	b.ClearError(errors.FieldDetail)
	assert.Empty(t, b.Errors())
}
