package chart

import (
	"encoding/json"
	"testing"

	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scatterFig = `{"data":[{"type":"scatter","mode":"markers","x":[1,2],"y":[3,4]}],"layout":{"title":{"text":"QRS"}}}`

func TestDescriptorAcceptsObjectOrString(t *testing.T) {
	var fromObject Descriptor
	require.NoError(t, json.Unmarshal([]byte(scatterFig), &fromObject))

	encoded, err := json.Marshal(scatterFig)
	require.NoError(t, err)
	var fromString Descriptor
	require.NoError(t, json.Unmarshal(encoded, &fromString))

	assert.JSONEq(t, string(fromObject.Data), string(fromString.Data))
	assert.JSONEq(t, `{"title":{"text":"QRS"}}`, string(fromString.Layout))
	assert.False(t, fromString.IsZero())
	assert.True(t, Descriptor{}.IsZero())
}

func TestDecodeSetFlattensGroups(t *testing.T) {
	encodedFig, err := json.Marshal(scatterFig)
	require.NoError(t, err)

	// training charts arrive as a JSON string whose values are figure strings
	inner := `{"tsne":{"qrs":` + string(encodedFig) + `,"p":` + scatterFig + `,"t":` + string(encodedFig) + `},` +
		`"confusion_matrix":` + string(encodedFig) + `}`
	payload, err := json.Marshal(inner)
	require.NoError(t, err)

	set, err := DecodeSet(payload)
	require.NoError(t, err)
	assert.Equal(t, []string{ConfusionMatrix, TSNEP, TSNEQRS, TSNET}, set.Keys())
	for _, key := range set.Keys() {
		assert.False(t, set[key].IsZero(), key)
	}
}

func TestDecodeSetEmptyPayloads(t *testing.T) {
	for _, raw := range []string{``, `null`, `""`, `{}`, `"{}"`} {
		set, err := DecodeSet(json.RawMessage(raw))
		require.NoError(t, err, raw)
		assert.Empty(t, set, raw)
	}
}

func TestDecodeSetRejectsGarbage(t *testing.T) {
	for _, raw := range []string{`12`, `[1,2]`, `"not json"`} {
		_, err := DecodeSet(json.RawMessage(raw))
		assert.Error(t, err, raw)
	}
}

func TestDecodeSetSkipsNonFigures(t *testing.T) {
	inner := `{"confusion_matrix":` + scatterFig + `,"version":2,"tags":["a"],"tsne":{"qrs":` + scatterFig + `,"note":"x"}}`
	payload, err := json.Marshal(inner)
	require.NoError(t, err)

	set, err := DecodeSet(payload)
	require.NoError(t, err)
	assert.Equal(t, []string{ConfusionMatrix, TSNEQRS}, set.Keys())
}

type recordingRenderer struct {
	seen []string
	fail map[string]bool
}

func (r *recordingRenderer) Render(name string, _ Descriptor) error {
	r.seen = append(r.seen, name)
	if r.fail[name] {
		return errors.New("boom")
	}
	return nil
}

func TestRenderAllContinuesPastFailures(t *testing.T) {
	set := Set{Line: {Data: json.RawMessage(`[]`)}, ConfusionMatrix: {Data: json.RawMessage(`[]`)}}
	r := &recordingRenderer{fail: map[string]bool{ConfusionMatrix: true}}

	err := RenderAll(r, set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render confusion_matrix")
	assert.Equal(t, []string{ConfusionMatrix, Line}, r.seen)

	r = &recordingRenderer{}
	assert.NoError(t, RenderAll(r, set))
}

func TestCloneIsIndependent(t *testing.T) {
	set := Set{Line: {}}
	clone := set.Clone()
	delete(clone, Line)
	assert.Len(t, set, 1)
}
