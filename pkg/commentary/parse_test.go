package commentary

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	text := "```json\n" + `{
  "commentary_data": [
    {"time": 20, "commentary": "The texture thickens."},
    {"time": 0, "commentary": "A quiet opening."},
    {"time": "10.5", "commentary": "Brightness rises."}
  ],
  "report_narrative": "  A gently evolving piece.  "
}` + "\n```"

	r, err := Parse(text)
	require.NoError(t, err)

	require.Len(t, r.Items, 3)
	assert.Equal(t, Item{Time: 0, Commentary: "A quiet opening."}, r.Items[0])
	assert.Equal(t, Item{Time: 10.5, Commentary: "Brightness rises."}, r.Items[1])
	assert.Equal(t, Item{Time: 20, Commentary: "The texture thickens."}, r.Items[2])
	assert.Equal(t, "A gently evolving piece.", r.Narrative)
}

func TestParse_MissingKeys(t *testing.T) {
	r, err := Parse(`{"report_narrative": "Only a narrative."}`)
	require.NoError(t, err)
	assert.Empty(t, r.Items)
	assert.Equal(t, "Only a narrative.", r.Narrative)

	r, err = Parse(`{"commentary_data": [{"time": 1, "commentary": "hi"}]}`)
	require.NoError(t, err)
	assert.Len(t, r.Items, 1)
	assert.Equal(t, DefaultNarrative, r.Narrative)

	r, err = Parse(`{}`)
	require.NoError(t, err)
	assert.Empty(t, r.Items)
	assert.Equal(t, "AI narrative could not be generated.", r.Narrative)
}

func TestParse_DropsMalformedItems(t *testing.T) {
	r, err := Parse(`{"commentary_data": [
		{"time": 0, "commentary": "kept"},
		{"commentary": "no time"},
		{"time": "soon", "commentary": "bad time"},
		"not an object",
		{"time": "12", "commentary": "also kept"}
	], "report_narrative": "fine"}`)
	require.NoError(t, err)
	require.Len(t, r.Items, 2)
	assert.Equal(t, Item{Time: 0, Commentary: "kept"}, r.Items[0])
	assert.Equal(t, Item{Time: 12, Commentary: "also kept"}, r.Items[1])
	assert.Equal(t, "fine", r.Narrative)
}

func TestParse_EmptyNarrative(t *testing.T) {
	r, err := Parse(`{"commentary_data": [{"time": 1, "commentary": "hi"}], "report_narrative": "  "}`)
	require.NoError(t, err)
	assert.Equal(t, DefaultNarrative, r.Narrative)
}

func TestParse_DuplicateTimesLastWins(t *testing.T) {
	r, err := Parse(`{"commentary_data": [
		{"time": 5, "commentary": "first"},
		{"time": 1, "commentary": "early"},
		{"time": 5, "commentary": "second"}
	], "report_narrative": "n"}`)
	require.NoError(t, err)
	require.Len(t, r.Items, 2)
	assert.Equal(t, "early", r.Items[0].Commentary)
	assert.Equal(t, "second", r.Items[1].Commentary)
}

func TestParse_SurroundingProse(t *testing.T) {
	r, err := Parse(`Sure! Here is the analysis: {"commentary_data": [], "report_narrative": "ok"} Hope it helps.`)
	require.NoError(t, err)
	assert.Equal(t, "ok", r.Narrative)
}

func TestParse_Failures(t *testing.T) {
	_, err := Parse("   ")
	assert.True(t, errors.Is(err, ErrEmptyResponse))

	_, err = Parse("I could not analyze this track.")
	assert.ErrorContains(t, err, "decode model json")

	_, err = Parse(`{"commentary_data": "not a list"}`)
	assert.Error(t, err)
}
