package artifact_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/foundryd/internal/artifact"
	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

func sampleUnits() []generation.Unit {
	return []generation.Unit{
		{Kind: generation.UnitMarkdown, Content: "# Demo Workflow", Section: generation.SectionSetup},
		{Kind: generation.UnitCode, Content: "import os\nprint(os.name)", Section: generation.SectionSetup},
		{Kind: generation.UnitCode, Content: "graph = workflow.compile()", Section: generation.SectionGraph},
	}
}

func TestNewNotebook_ConvertsUnits(t *testing.T) {
	nb, err := artifact.NewNotebook(sampleUnits())
	require.NoError(t, err)

	require.Len(t, nb.Cells, 3)
	assert.Equal(t, artifact.CellMarkdown, nb.Cells[0].Type)
	assert.Equal(t, artifact.CellCode, nb.Cells[1].Type)
	assert.Equal(t, generation.SectionSetup, nb.Cells[0].Metadata.Section)
	assert.Equal(t, generation.SectionGraph, nb.Cells[2].Metadata.Section)
	assert.Equal(t, "# Demo Workflow", string(nb.Cells[0].Source))

	assert.Equal(t, 4, nb.NBFormat)
	assert.Equal(t, "python3", nb.Metadata.Kernelspec.Name)
	assert.Equal(t, "python", nb.Metadata.LanguageInfo.Name)
}

func TestNewNotebook_NoUnits(t *testing.T) {
	_, err := artifact.NewNotebook(nil)
	assert.ErrorIs(t, err, artifact.ErrNoUnits)
}

func TestNewNotebook_InvalidKind(t *testing.T) {
	units := []generation.Unit{{Kind: generation.UnitKind("raw"), Content: "x"}}

	_, err := artifact.NewNotebook(units)
	assert.ErrorIs(t, err, artifact.ErrInvalidUnit)
}

func TestRender_RoundTrip(t *testing.T) {
	units := sampleUnits()

	data, err := artifact.Render(units)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	nb, err := artifact.ParseNotebook(data)
	require.NoError(t, err)
	assert.Equal(t, units, nb.Units())
}

func TestRender_CellShape(t *testing.T) {
	data, err := artifact.Render(sampleUnits())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	cells, ok := doc["cells"].([]any)
	require.True(t, ok)
	require.Len(t, cells, 3)

	markdown := cells[0].(map[string]any)
	assert.NotContains(t, markdown, "outputs")
	assert.NotContains(t, markdown, "execution_count")

	code := cells[1].(map[string]any)
	require.Contains(t, code, "outputs")
	require.Contains(t, code, "execution_count")
	assert.Nil(t, code["execution_count"])
	assert.Empty(t, code["outputs"])
}

func TestParseNotebook_RejectsGarbage(t *testing.T) {
	_, err := artifact.ParseNotebook([]byte("not json at all"))
	assert.ErrorIs(t, err, artifact.ErrInvalidNotebook)
}

func TestParseNotebook_RejectsWrongVersion(t *testing.T) {
	_, err := artifact.ParseNotebook([]byte(`{"cells": [], "nbformat": 3, "nbformat_minor": 0}`))
	assert.ErrorIs(t, err, artifact.ErrInvalidNotebook)
}

func TestParseNotebook_RejectsUnknownCellType(t *testing.T) {
	doc := `{"cells": [{"cell_type": "raw", "metadata": {}, "source": "x"}], "nbformat": 4, "nbformat_minor": 5}`

	_, err := artifact.ParseNotebook([]byte(doc))
	assert.ErrorIs(t, err, artifact.ErrInvalidNotebook)
}

func TestParseNotebook_AcceptsListSource(t *testing.T) {
	doc := `{
  "cells": [
    {"cell_type": "markdown", "metadata": {"section": "setup"}, "source": ["# Title\n", "second line"]}
  ],
  "nbformat": 4,
  "nbformat_minor": 5
}`

	nb, err := artifact.ParseNotebook([]byte(doc))
	require.NoError(t, err)
	require.Len(t, nb.Cells, 1)
	assert.Equal(t, "# Title\nsecond line", string(nb.Cells[0].Source))
}
