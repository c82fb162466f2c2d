package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		status   int
		fields   FieldErrors
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "field errors",
			op:       "training.create",
			status:   400,
			fields:   FieldErrors{FieldAlphabetSize: {MsgRequired}},
			wantMsg:  "ecgstudio: training.create: server responded 400: alphabet_size: This field is required.",
			hasStack: true,
		},
		{
			name:     "detail",
			op:       "analysis.create",
			status:   404,
			fields:   FieldErrors{FieldDetail: {"Training session with this ID could not be found."}},
			wantMsg:  "ecgstudio: analysis.create: server responded 404: detail: Training session with this ID could not be found.",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewServerError(tt.op, tt.status, tt.fields)

			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				assert.True(t, strings.Contains(formatted, "errors_test.go"), "expected stack trace to contain test file name")
			}

			var serverErr *ServerError
			require.True(t, As(err, &serverErr))
			assert.Equal(t, tt.status, serverErr.StatusCode)
		})
	}
}

func TestAsFieldErrors(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, AsFieldErrors(nil))
	})

	t.Run("validation keeps fields", func(t *testing.T) {
		fields := FieldErrors{FieldAlgorithm: {MsgRequired}}
		got := AsFieldErrors(NewValidationError(fields))
		assert.Equal(t, fields, got)

		// 元のマップとは独立していること
		got.Add(FieldAlgorithm, "other")
		assert.Len(t, fields[FieldAlgorithm], 1)
	})

	t.Run("server keeps fields", func(t *testing.T) {
		err := Wrap(NewServerError("op", 400, FieldErrors{"n_neighbors": {MsgInvalidInteger}}), "submit")
		assert.Equal(t, FieldErrors{"n_neighbors": {MsgInvalidInteger}}, AsFieldErrors(err))
	})

	t.Run("transport becomes detail", func(t *testing.T) {
		err := NewTransportError("training.read", fmt.Errorf("connection refused"))
		got := AsFieldErrors(err)
		require.True(t, got.Has(FieldDetail))
		assert.Contains(t, got.First(FieldDetail), "connection refused")
	})

	t.Run("upload rejection becomes ecg_file", func(t *testing.T) {
		err := NewUploadRejectedError("a.txt", 10, "Invalid file. Please upload a CSV or XLSX file.")
		assert.Equal(t, "Invalid file. Please upload a CSV or XLSX file.", AsFieldErrors(err).First(FieldEcgFile))
	})
}

func TestFieldErrors(t *testing.T) {
	f := FieldErrors{}
	f.Add(FieldAlphabetSize, MsgRequired)
	f.Add(FieldAlphabetSize, MsgInvalidInteger)
	f.Add(FieldAlgorithm, MsgInvalidChoice)

	assert.Equal(t, MsgRequired, f.First(FieldAlphabetSize))
	assert.Equal(t, []string{FieldAlgorithm, FieldAlphabetSize}, f.Names())
	assert.Equal(t, "", f.First("missing"))

	f.Merge(FieldErrors{FieldAlphabetSize: {"server says no"}})
	assert.Equal(t, []string{"server says no"}, f[FieldAlphabetSize])

	f.Clear(FieldAlgorithm)
	assert.False(t, f.Has(FieldAlgorithm))
	assert.Equal(t, "alphabet_size: server says no", f.String())
}

func TestStateErrorUnwrap(t *testing.T) {
	err := NewStateError("analysis.submit", "polling", ErrSessionNotDone)
	assert.True(t, Is(err, ErrSessionNotDone))
	assert.Contains(t, err.Error(), `not allowed in state "polling"`)
}

func TestWarnUsesZerologFunc(t *testing.T) {
	var got error
	SetZerologWarnFunc(func(w error) { got = w })
	defer SetZerologWarnFunc(nil)

	w := NewStaleResponseWarning("training", "old", "new")
	Warn(w)
	require.NotNil(t, got)
	assert.Equal(t, `discarded stale training response for "old" (current target "new")`, got.Error())
}
