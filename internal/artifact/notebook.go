// Package artifact renders generation units into notebook documents and
// packages completed runs on disk. The rendered document is nbformat 4 so
// the output opens directly in Jupyter.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

var (
	// ErrNoUnits indicates a render was attempted with no units.
	ErrNoUnits = errors.New("no units to render")

	// ErrInvalidUnit indicates a unit kind outside markdown/code.
	ErrInvalidUnit = errors.New("invalid unit kind")

	// ErrInvalidNotebook indicates bytes that do not parse as a notebook.
	ErrInvalidNotebook = errors.New("invalid notebook document")
)

// CellType distinguishes notebook cell kinds.
type CellType string

const (
	CellMarkdown CellType = "markdown"
	CellCode     CellType = "code"
)

// SourceText accepts both nbformat source encodings: a single string or a
// list of line strings.
type SourceText string

func (s *SourceText) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = SourceText(str)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("source is neither string nor string list: %w", err)
	}
	*s = SourceText(strings.Join(lines, ""))
	return nil
}

// CellMetadata carries the section tag the validators key on.
type CellMetadata struct {
	Section string `json:"section,omitempty"`
}

// Cell is one notebook cell.
type Cell struct {
	Type     CellType     `json:"cell_type"`
	Metadata CellMetadata `json:"metadata"`
	Source   SourceText   `json:"source"`
}

// MarshalJSON emits the nbformat shape for the cell type: code cells carry
// execution_count and outputs keys, markdown cells must not.
func (c Cell) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"cell_type": c.Type,
		"metadata":  c.Metadata,
		"source":    string(c.Source),
	}
	if c.Type == CellCode {
		m["execution_count"] = nil
		m["outputs"] = []any{}
	}
	return json.Marshal(m)
}

// Kernelspec names the kernel the notebook targets.
type Kernelspec struct {
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
	Name        string `json:"name"`
}

// LanguageInfo describes the notebook language.
type LanguageInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NotebookMetadata is the document-level metadata block.
type NotebookMetadata struct {
	Kernelspec   Kernelspec   `json:"kernelspec"`
	LanguageInfo LanguageInfo `json:"language_info"`
}

// Notebook is an nbformat 4 document.
type Notebook struct {
	Cells         []Cell           `json:"cells"`
	Metadata      NotebookMetadata `json:"metadata"`
	NBFormat      int              `json:"nbformat"`
	NBFormatMinor int              `json:"nbformat_minor"`
}

// NewNotebook converts units into a notebook document. Unit order is
// preserved cell for cell.
func NewNotebook(units []generation.Unit) (Notebook, error) {
	if len(units) == 0 {
		return Notebook{}, ErrNoUnits
	}

	cells := make([]Cell, 0, len(units))
	for i, u := range units {
		var cellType CellType
		switch u.Kind {
		case generation.UnitMarkdown:
			cellType = CellMarkdown
		case generation.UnitCode:
			cellType = CellCode
		default:
			return Notebook{}, fmt.Errorf("%w: unit %d has kind %q", ErrInvalidUnit, i, u.Kind)
		}
		cells = append(cells, Cell{
			Type:     cellType,
			Metadata: CellMetadata{Section: u.Section},
			Source:   SourceText(u.Content),
		})
	}

	return Notebook{
		Cells: cells,
		Metadata: NotebookMetadata{
			Kernelspec: Kernelspec{
				DisplayName: "Python 3",
				Language:    "python",
				Name:        "python3",
			},
			LanguageInfo: LanguageInfo{
				Name:    "python",
				Version: "3.11",
			},
		},
		NBFormat:      4,
		NBFormatMinor: 5,
	}, nil
}

// Render serializes units as an nbformat 4 JSON document.
func Render(units []generation.Unit) ([]byte, error) {
	nb, err := NewNotebook(units)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(nb, "", " ")
	if err != nil {
		return nil, fmt.Errorf("encoding notebook: %w", err)
	}
	return append(data, '\n'), nil
}

// ParseNotebook decodes a rendered notebook document.
func ParseNotebook(data []byte) (Notebook, error) {
	var nb Notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return Notebook{}, fmt.Errorf("%w: %v", ErrInvalidNotebook, err)
	}
	if nb.NBFormat != 4 {
		return Notebook{}, fmt.Errorf("%w: nbformat %d, want 4", ErrInvalidNotebook, nb.NBFormat)
	}
	for i, c := range nb.Cells {
		if c.Type != CellMarkdown && c.Type != CellCode {
			return Notebook{}, fmt.Errorf("%w: cell %d has type %q", ErrInvalidNotebook, i, c.Type)
		}
	}
	return nb, nil
}

// Units converts the notebook back into generation units, inverting
// NewNotebook.
func (n Notebook) Units() []generation.Unit {
	units := make([]generation.Unit, 0, len(n.Cells))
	for _, c := range n.Cells {
		kind := generation.UnitMarkdown
		if c.Type == CellCode {
			kind = generation.UnitCode
		}
		units = append(units, generation.Unit{
			Kind:    kind,
			Content: string(c.Source),
			Section: c.Metadata.Section,
		})
	}
	return units
}
